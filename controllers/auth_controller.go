// controllers/auth_controller.go
package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/services"
)

type AuthController struct {
	accounts *services.AccountService
	debug    bool
}

func NewAuthController(accounts *services.AccountService, debug bool) *AuthController {
	return &AuthController{accounts: accounts, debug: debug}
}

func authResponse(res *services.AuthResult) models.AuthResponse {
	out := models.AuthResponse{Token: res.Token, User: res.Account.Summary()}
	if res.ReferrerCode != "" {
		code := res.ReferrerCode
		out.Referrer = &code
	}
	return out
}

// Register handles POST /api/auth/register.
func (ac *AuthController) Register(c echo.Context) error {
	var req models.SignupRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	res, err := ac.accounts.Register(c.Request().Context(), services.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		return serviceError(c, err, "Registration failed", ac.debug)
	}
	return respond(c, http.StatusCreated, "User registered successfully", authResponse(res))
}

// Login handles POST /api/auth/login.
func (ac *AuthController) Login(c echo.Context) error {
	var req models.LoginRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	res, err := ac.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return serviceError(c, err, "Login failed", ac.debug)
	}
	return respond(c, http.StatusOK, "Login successful", authResponse(res))
}

// Me handles GET /api/auth/me.
func (ac *AuthController) Me(c echo.Context) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	account, err := ac.accounts.Me(c.Request().Context(), accountID)
	if err != nil {
		return serviceError(c, err, "Failed to fetch user", ac.debug)
	}
	return respond(c, http.StatusOK, "User retrieved successfully", account)
}

// UpdateProfile handles PUT /api/auth/profile.
func (ac *AuthController) UpdateProfile(c echo.Context) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	var req models.UpdateProfileRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	account, err := ac.accounts.UpdateProfile(c.Request().Context(), accountID, req.Name)
	if err != nil {
		return serviceError(c, err, "Failed to update profile", ac.debug)
	}
	return respond(c, http.StatusOK, "Profile updated successfully", account.Summary())
}
