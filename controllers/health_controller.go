// controllers/health_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Pinger is satisfied by the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	store Pinger
}

func NewHealthController(store Pinger) *HealthController {
	return &HealthController{store: store}
}

func (hc *HealthController) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	data := map[string]string{
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := hc.store.Ping(ctx); err != nil {
		log.WithError(err).Warn("Health check: store unreachable")
		data["database"] = "disconnected"
		return respond(c, http.StatusServiceUnavailable, "Service degraded", data)
	}
	return respond(c, http.StatusOK, "Server is running", data)
}
