package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/referral_backend/controllers"
	"github.com/HSouheill/referral_backend/middleware"
)

// Controllers bundles every handler set the API exposes.
type Controllers struct {
	Auth     *controllers.AuthController
	Password *controllers.PasswordController
	Purchase *controllers.PurchaseController
	Referral *controllers.ReferralController
	Admin    *controllers.AdminController
	Health   *controllers.HealthController
}

// SetupRoutes configures all API routes by calling individual route registration functions
func SetupRoutes(e *echo.Echo, jwtSecret string, h Controllers) {
	auth := middleware.JWTMiddleware(jwtSecret)

	api := e.Group("/api")
	api.GET("/health", h.Health.Health)

	RegisterAuthRoutes(api, auth, h.Auth, h.Password)
	RegisterPurchaseRoutes(api, auth, h.Purchase)
	RegisterReferralRoutes(api, auth, h.Referral)
	RegisterAdminRoutes(api, auth, h.Admin)
}
