// controllers/referral_controller.go
package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/referral_backend/services"
	"github.com/HSouheill/referral_backend/utils"
)

type ReferralController struct {
	reporting *services.ReportingService
	referrals *services.ReferralService
	debug     bool
}

func NewReferralController(reporting *services.ReportingService, referrals *services.ReferralService, debug bool) *ReferralController {
	return &ReferralController{reporting: reporting, referrals: referrals, debug: debug}
}

func (rc *ReferralController) Stats(c echo.Context) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	stats, err := rc.reporting.Stats(c.Request().Context(), accountID)
	if err != nil {
		return serviceError(c, err, "Failed to fetch referral stats", rc.debug)
	}
	return respond(c, http.StatusOK, "Referral stats retrieved successfully", stats)
}

func (rc *ReferralController) History(c echo.Context) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	history, err := rc.reporting.History(c.Request().Context(), accountID)
	if err != nil {
		return serviceError(c, err, "Failed to fetch referral history", rc.debug)
	}
	return respond(c, http.StatusOK, "Referral history retrieved successfully", history)
}

// Leaderboard is public. ?limit= defaults to 10 and is capped at 100.
func (rc *ReferralController) Leaderboard(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return respond(c, http.StatusBadRequest, "limit must be an integer", nil)
		}
		limit = n
	}
	board, err := rc.reporting.Leaderboard(c.Request().Context(), limit)
	if err != nil {
		return serviceError(c, err, "Failed to fetch leaderboard", rc.debug)
	}
	return respond(c, http.StatusOK, "Leaderboard retrieved successfully", board)
}

// ValidateCode is public.
func (rc *ReferralController) ValidateCode(c echo.Context) error {
	result, err := rc.reporting.ValidateCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return serviceError(c, err, "Failed to validate referral code", rc.debug)
	}
	message := "Referral code is valid"
	if !result.Valid {
		message = "Referral code not found"
	}
	return respond(c, http.StatusOK, message, result)
}

func (rc *ReferralController) Overview(c echo.Context) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	overview, err := rc.reporting.Overview(c.Request().Context(), accountID)
	if err != nil {
		return serviceError(c, err, "Failed to fetch referrals", rc.debug)
	}
	return respond(c, http.StatusOK, "Referrals retrieved successfully", overview)
}

func (rc *ReferralController) Eligibility(c echo.Context) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	eligibility, err := rc.referrals.CheckReferralEligibility(c.Request().Context(), accountID)
	if err != nil {
		return serviceError(c, err, "Error checking eligibility", rc.debug)
	}
	return respond(c, http.StatusOK, eligibility.Message, eligibility)
}

// QRCode returns the caller's share link as a PNG data URI.
func (rc *ReferralController) QRCode(c echo.Context) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	link, err := rc.reporting.ShareLink(c.Request().Context(), accountID)
	if err != nil {
		return serviceError(c, err, "Failed to build share link", rc.debug)
	}
	qr, err := utils.QRCodeDataURI(link)
	if err != nil {
		return serviceError(c, err, "Failed to generate QR code", rc.debug)
	}
	return respond(c, http.StatusOK, "QR code generated successfully", map[string]string{
		"shareLink": link,
		"qrCode":    qr,
	})
}
