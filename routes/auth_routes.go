package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/referral_backend/controllers"
)

// RegisterAuthRoutes sets up account and password reset routes.
func RegisterAuthRoutes(api *echo.Group, auth echo.MiddlewareFunc, ac *controllers.AuthController, pc *controllers.PasswordController) {
	g := api.Group("/auth")

	g.POST("/register", ac.Register)
	g.POST("/login", ac.Login)
	g.POST("/forgot-password", pc.ForgotPassword)
	g.POST("/verify-reset-token", pc.VerifyResetToken)
	g.POST("/reset-password", pc.ResetPassword)

	g.GET("/me", ac.Me, auth)
	g.PUT("/profile", ac.UpdateProfile, auth)
}
