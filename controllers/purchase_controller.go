// controllers/purchase_controller.go
package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/services"
)

type PurchaseController struct {
	purchases *services.PurchaseService
	debug     bool
}

func NewPurchaseController(purchases *services.PurchaseService, debug bool) *PurchaseController {
	return &PurchaseController{purchases: purchases, debug: debug}
}

// RecordPurchase handles POST /api/purchases.
func (pc *PurchaseController) RecordPurchase(c echo.Context) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}

	var req models.PurchaseRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	result, err := pc.purchases.RecordPurchase(c.Request().Context(), accountID, services.PurchaseInput{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Amount:      *req.Amount,
	})
	if err != nil {
		return serviceError(c, err, "Purchase failed", pc.debug)
	}

	message := "Purchase recorded successfully"
	if result.Award != nil {
		message = "Purchase recorded and referral credits awarded"
	}
	return respond(c, http.StatusOK, message, models.PurchaseResponse{
		Purchase: result.Purchase,
		User:     result.Account.Summary(),
		Referral: result.Award,
	})
}

// History handles GET /api/purchases/history.
func (pc *PurchaseController) History(c echo.Context) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	purchases, err := pc.purchases.History(c.Request().Context(), accountID)
	if err != nil {
		return serviceError(c, err, "Failed to fetch purchase history", pc.debug)
	}
	return respond(c, http.StatusOK, "Purchase history retrieved successfully", purchases)
}
