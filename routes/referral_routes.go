package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/referral_backend/controllers"
)

func RegisterPurchaseRoutes(api *echo.Group, auth echo.MiddlewareFunc, pc *controllers.PurchaseController) {
	g := api.Group("/purchases", auth)
	g.POST("", pc.RecordPurchase)
	g.GET("/history", pc.History)
}

// RegisterReferralRoutes sets up referral routes. Leaderboard and code
// validation are public.
func RegisterReferralRoutes(api *echo.Group, auth echo.MiddlewareFunc, rc *controllers.ReferralController) {
	g := api.Group("/referrals")

	g.GET("/leaderboard", rc.Leaderboard)
	g.GET("/validate/:code", rc.ValidateCode)

	g.GET("/stats", rc.Stats, auth)
	g.GET("/history", rc.History, auth)
	g.GET("/overview", rc.Overview, auth)
	g.GET("/eligibility", rc.Eligibility, auth)
	g.GET("/qrcode", rc.QRCode, auth)
}
