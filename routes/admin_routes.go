package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/referral_backend/controllers"
	"github.com/HSouheill/referral_backend/middleware"
	"github.com/HSouheill/referral_backend/models"
)

// RegisterAdminRoutes sets up admin-only referral routes.
func RegisterAdminRoutes(api *echo.Group, auth echo.MiddlewareFunc, ac *controllers.AdminController) {
	g := api.Group("/admin/referrals", auth, middleware.RequireUserType(models.UserTypeAdmin))

	g.GET("/report", ac.Report)
	g.POST("/:id/award", ac.ManualAward)
	g.POST("/expire", ac.ExpireReferrals)
}
