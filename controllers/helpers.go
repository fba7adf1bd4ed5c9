// controllers/helpers.go
package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/middleware"
	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/services"
	"github.com/HSouheill/referral_backend/utils"
)

func respond(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, models.Response{Status: status, Message: message, Data: data})
}

// bindAndValidate decodes the body into req and runs its validate tags. It
// writes the 400 response itself and reports false when the request is bad.
func bindAndValidate(c echo.Context, req interface{}) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, respond(c, http.StatusBadRequest, "Invalid request body", nil)
	}
	if err := c.Validate(req); err != nil {
		if fe := utils.FirstFieldError(err); fe != nil {
			return false, respond(c, http.StatusBadRequest, fe.Error(), map[string]string{"field": fe.Field})
		}
		return false, respond(c, http.StatusBadRequest, "Validation failed", nil)
	}
	return true, nil
}

// currentAccountID reads the caller's account ID set by the JWT middleware.
func currentAccountID(c echo.Context) (primitive.ObjectID, error) {
	id, err := middleware.ExtractUserID(c)
	if err != nil {
		return primitive.NilObjectID, respond(c, http.StatusUnauthorized, "Invalid user ID in token", nil)
	}
	return id, nil
}

// serviceError maps a service error to its HTTP response. Unknown errors
// become a 500 carrying fallback; the cause is only exposed when debug is set.
func serviceError(c echo.Context, err error, fallback string, debug bool) error {
	var inputErr *services.InputError
	switch {
	case errors.As(err, &inputErr):
		return respond(c, http.StatusBadRequest, inputErr.Error(), map[string]string{"field": inputErr.Field})
	case errors.Is(err, services.ErrAccountNotFound):
		return respond(c, http.StatusNotFound, "User not found", nil)
	case errors.Is(err, services.ErrReferralNotFound):
		return respond(c, http.StatusNotFound, "Referral not found", nil)
	case errors.Is(err, services.ErrCreditsAlreadyAwarded):
		return respond(c, http.StatusConflict, "Credits already awarded for this referral", nil)
	case errors.Is(err, services.ErrEmailTaken):
		return respond(c, http.StatusConflict, "User already exists with this email", nil)
	case errors.Is(err, services.ErrInvalidCredentials):
		return respond(c, http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, services.ErrInvalidResetToken):
		return respond(c, http.StatusBadRequest, "Invalid or expired reset token", nil)
	}

	log.WithFields(log.Fields{
		"path":   c.Path(),
		"method": c.Request().Method,
	}).WithError(err).Error(fallback)

	var data interface{}
	if debug {
		data = map[string]string{"error": err.Error()}
	}
	return respond(c, http.StatusInternalServerError, fallback, data)
}
