// controllers/password_controller.go
package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/services"
)

type PasswordController struct {
	passwords *services.PasswordService
	debug     bool
}

func NewPasswordController(passwords *services.PasswordService, debug bool) *PasswordController {
	return &PasswordController{passwords: passwords, debug: debug}
}

// ForgotPassword answers the same way whether or not the email exists.
func (pc *PasswordController) ForgotPassword(c echo.Context) error {
	var req models.ForgotPasswordRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	if err := pc.passwords.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return serviceError(c, err, "Error sending password reset email", pc.debug)
	}
	return respond(c, http.StatusOK, services.ForgotPasswordMessage, nil)
}

func (pc *PasswordController) VerifyResetToken(c echo.Context) error {
	var req models.VerifyResetTokenRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	email, err := pc.passwords.VerifyResetToken(c.Request().Context(), req.Token)
	if err != nil {
		return serviceError(c, err, "Failed to verify reset token", pc.debug)
	}
	return respond(c, http.StatusOK, "Token is valid", map[string]string{"email": email})
}

func (pc *PasswordController) ResetPassword(c echo.Context) error {
	var req models.ResetPasswordRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	if err := pc.passwords.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return serviceError(c, err, "Failed to reset password", pc.debug)
	}
	return respond(c, http.StatusOK, "Password has been reset successfully", nil)
}
