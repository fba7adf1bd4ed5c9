// services/purchase_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
)

// PurchaseInput is a validated-on-entry purchase request.
type PurchaseInput struct {
	ProductID   string
	ProductName string
	Amount      float64
}

// PurchaseResult is what RecordPurchase committed. Award is nil unless this
// purchase converted the buyer's referral.
type PurchaseResult struct {
	Purchase models.Purchase
	Account  models.Account
	Award    *models.AwardSummary
}

// PurchaseService records purchases and converts the buyer's pending
// referral on their first one.
type PurchaseService struct {
	store repositories.Store
	options
}

func NewPurchaseService(store repositories.Store, opts ...Option) *PurchaseService {
	return &PurchaseService{store: store, options: buildOptions(opts)}
}

func (in PurchaseInput) validate() (PurchaseInput, error) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.ProductName = strings.TrimSpace(in.ProductName)
	switch {
	case in.ProductID == "":
		return in, invalidInput("productId", "is required")
	case in.ProductName == "":
		return in, invalidInput("productName", "is required")
	case math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) || in.Amount < 0:
		return in, invalidInput("amount", "must be a non-negative number")
	}
	return in, nil
}

// RecordPurchase appends a purchase for accountID. When it is the account's
// first purchase and a pending referral exists, the referral is converted and
// both parties are credited in the same unit of work as the purchase insert.
func (s *PurchaseService) RecordPurchase(ctx context.Context, accountID primitive.ObjectID, in PurchaseInput) (*PurchaseResult, error) {
	in, err := in.validate()
	if err != nil {
		s.metrics.observePurchase("invalid")
		return nil, err
	}

	ctx, cancel := s.unitContext(ctx)
	defer cancel()

	var result *PurchaseResult
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		result = nil

		account, err := s.store.Accounts().TouchPurchase(ctx, accountID)
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		count, err := s.store.Purchases().CountByAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("count purchases: %w", err)
		}

		now := s.now()
		purchase := &models.Purchase{
			User:        accountID,
			ProductID:   in.ProductID,
			ProductName: in.ProductName,
			Amount:      in.Amount,
			CreatedAt:   now,
		}

		var award *models.AwardSummary
		if count == 0 {
			award, account, err = s.convertReferral(ctx, account, now)
			if err != nil {
				return err
			}
			purchase.ReferralCreditsAwarded = award != nil
		}

		if err := s.store.Purchases().Create(ctx, purchase); err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}

		result = &PurchaseResult{Purchase: *purchase, Account: *account, Award: award}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.metrics.observePurchase("account_not_found")
			return nil, err
		}
		s.metrics.observePurchase("failed")
		log.WithFields(log.Fields{
			"account_id": accountID.Hex(),
			"product_id": in.ProductID,
		}).WithError(err).Error("Purchase unit of work aborted")
		return nil, fmt.Errorf("%w: %w", ErrPurchaseFailed, err)
	}

	entry := log.WithFields(log.Fields{
		"account_id":  accountID.Hex(),
		"purchase_id": result.Purchase.ID.Hex(),
		"amount":      result.Purchase.Amount,
	})
	if result.Award != nil {
		s.metrics.observePurchase("converted")
		s.metrics.observeConversion(string(models.ConversionPurchase), 2*result.Award.CreditsAwarded)
		entry.WithFields(log.Fields{
			"referrer_id": result.Award.ReferrerID.Hex(),
			"credits":     result.Award.CreditsAwarded,
		}).Info("Purchase converted referral")
	} else {
		s.metrics.observePurchase("recorded")
		entry.Debug("Purchase recorded")
	}
	return result, nil
}

// convertReferral runs inside the purchase unit. It returns the award and
// the buyer as updated, or a nil award when nothing was converted.
func (s *PurchaseService) convertReferral(ctx context.Context, buyer *models.Account, now time.Time) (*models.AwardSummary, *models.Account, error) {
	referral, err := s.store.Referrals().FindPendingByReferred(ctx, buyer.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, buyer, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find pending referral: %w", err)
	}

	referrer, err := s.store.Accounts().FindByID(ctx, referral.Referrer)
	if errors.Is(err, repositories.ErrNotFound) {
		log.WithFields(log.Fields{
			"referral_id": referral.ID.Hex(),
			"referrer_id": referral.Referrer.Hex(),
		}).Warn("Referrer account missing, skipping referral award")
		return nil, buyer, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load referrer: %w", err)
	}

	if referral.IsExpiredAt(now) {
		if _, err := s.store.Referrals().Expire(ctx, referral.ID); err != nil {
			return nil, nil, fmt.Errorf("expire referral: %w", err)
		}
		log.WithField("referral_id", referral.ID.Hex()).Info("Referral expired before first purchase")
		return nil, buyer, nil
	}

	converted, err := s.store.Referrals().Convert(ctx, referral.ID, models.ConversionPurchase, models.ReferralAwardCredits, now)
	if err != nil {
		return nil, nil, fmt.Errorf("convert referral: %w", err)
	}
	if !converted {
		return nil, buyer, nil
	}

	referrer, err = s.store.Accounts().AddCredits(ctx, referrer.ID, models.ReferralAwardCredits, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("credit referrer: %w", err)
	}
	buyer, err = s.store.Accounts().AddCredits(ctx, buyer.ID, models.ReferralAwardCredits, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("credit buyer: %w", err)
	}

	return &models.AwardSummary{
		ReferrerID:     referrer.ID,
		ReferrerEmail:  referrer.Email,
		CreditsAwarded: models.ReferralAwardCredits,
	}, buyer, nil
}

// History returns the account's purchases, newest first.
func (s *PurchaseService) History(ctx context.Context, accountID primitive.ObjectID) ([]models.Purchase, error) {
	purchases, err := s.store.Purchases().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return purchases, nil
}
