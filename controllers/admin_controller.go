// controllers/admin_controller.go
package controllers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/services"
)

type AdminController struct {
	reporting *services.ReportingService
	referrals *services.ReferralService
	debug     bool
}

func NewAdminController(reporting *services.ReportingService, referrals *services.ReferralService, debug bool) *AdminController {
	return &AdminController{reporting: reporting, referrals: referrals, debug: debug}
}

// parseReportDate accepts RFC3339 or YYYY-MM-DD. A bare end date covers the
// whole day.
func parseReportDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// Report handles GET /api/admin/referrals/report?start=&end=.
func (ac *AdminController) Report(c echo.Context) error {
	start, err := parseReportDate(c.QueryParam("start"), false)
	if err != nil {
		return respond(c, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD", map[string]string{"field": "start"})
	}
	end, err := parseReportDate(c.QueryParam("end"), true)
	if err != nil {
		return respond(c, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD", map[string]string{"field": "end"})
	}
	if start != nil && end != nil && end.Before(*start) {
		return respond(c, http.StatusBadRequest, "end must not be before start", map[string]string{"field": "end"})
	}

	report, err := ac.reporting.Report(c.Request().Context(), start, end)
	if err != nil {
		return serviceError(c, err, "Failed to generate report", ac.debug)
	}
	return respond(c, http.StatusOK, "Referral report generated successfully", report)
}

// ManualAward handles POST /api/admin/referrals/:id/award.
func (ac *AdminController) ManualAward(c echo.Context) error {
	referralID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return respond(c, http.StatusBadRequest, "Invalid referral ID", map[string]string{"field": "id"})
	}
	result, err := ac.referrals.ManualAward(c.Request().Context(), referralID)
	if err != nil {
		return serviceError(c, err, "Failed to award credits", ac.debug)
	}
	return respond(c, http.StatusOK, "Credits awarded successfully", result)
}

// ExpireReferrals handles POST /api/admin/referrals/expire.
func (ac *AdminController) ExpireReferrals(c echo.Context) error {
	n, err := ac.referrals.ExpireStaleReferrals(c.Request().Context())
	if err != nil {
		return serviceError(c, err, "Failed to expire referrals", ac.debug)
	}
	return respond(c, http.StatusOK, "Stale referrals expired", map[string]int64{"expired": n})
}
