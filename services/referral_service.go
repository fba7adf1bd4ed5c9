// services/referral_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
)

// ReferralService owns the referral state machine outside of purchases:
// eligibility checks, expiry, and the administrative award path.
type ReferralService struct {
	store repositories.Store
	options
}

func NewReferralService(store repositories.Store, opts ...Option) *ReferralService {
	return &ReferralService{store: store, options: buildOptions(opts)}
}

// CheckReferralEligibility reports whether the referred account still has a
// convertible referral. A pending referral past the expiry window is moved to
// expired as a side effect.
func (s *ReferralService) CheckReferralEligibility(ctx context.Context, referredID primitive.ObjectID) (*models.Eligibility, error) {
	ctx, cancel := s.unitContext(ctx)
	defer cancel()

	var result *models.Eligibility
	expired := false
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		expired = false
		referral, err := s.store.Referrals().FindPendingByReferred(ctx, referredID)
		if errors.Is(err, repositories.ErrNotFound) {
			result = &models.Eligibility{Eligible: false, Message: "No pending referral found"}
			return nil
		}
		if err != nil {
			return fmt.Errorf("find pending referral: %w", err)
		}

		if referral.IsExpiredAt(s.now()) {
			ok, err := s.store.Referrals().Expire(ctx, referral.ID)
			if err != nil {
				return fmt.Errorf("expire referral: %w", err)
			}
			expired = ok
			referral.Status = models.ReferralExpired
			result = &models.Eligibility{Eligible: false, Referral: referral, Message: "Referral has expired (30 days)"}
			return nil
		}

		result = &models.Eligibility{Eligible: true, Referral: referral, Message: "Referral is eligible for conversion"}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.metrics.observeExpired(1)
	}
	return result, nil
}

// ManualAward converts a pending referral by hand and credits both parties
// with the standard award.
func (s *ReferralService) ManualAward(ctx context.Context, referralID primitive.ObjectID) (*models.ManualAwardResult, error) {
	ctx, cancel := s.unitContext(ctx)
	defer cancel()

	var result *models.ManualAwardResult
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		result = nil

		referral, err := s.store.Referrals().FindByID(ctx, referralID)
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrReferralNotFound
		}
		if err != nil {
			return fmt.Errorf("load referral: %w", err)
		}
		if !referral.IsConvertible() {
			return ErrCreditsAlreadyAwarded
		}

		now := s.now()
		converted, err := s.store.Referrals().Convert(ctx, referral.ID, models.ConversionManual, models.ReferralAwardCredits, now)
		if err != nil {
			return fmt.Errorf("convert referral: %w", err)
		}
		if !converted {
			return ErrCreditsAlreadyAwarded
		}

		referrer, err := s.store.Accounts().AddCredits(ctx, referral.Referrer, models.ReferralAwardCredits, 1)
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("credit referrer: %w", err)
		}
		referred, err := s.store.Accounts().AddCredits(ctx, referral.Referred, models.ReferralAwardCredits, 0)
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("credit referred: %w", err)
		}

		updated, err := s.store.Referrals().FindByID(ctx, referral.ID)
		if err != nil {
			return fmt.Errorf("reload referral: %w", err)
		}

		result = &models.ManualAwardResult{
			Referral: *updated,
			Referrer: referrer.Summary(),
			Referred: referred.Summary(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.observeConversion(string(models.ConversionManual), 2*models.ReferralAwardCredits)
	log.WithFields(log.Fields{
		"referral_id": referralID.Hex(),
		"referrer_id": result.Referrer.ID.Hex(),
		"referred_id": result.Referred.ID.Hex(),
	}).Info("Referral credits awarded manually")
	return result, nil
}

// ExpireStaleReferrals moves every pending referral older than the expiry
// window to expired and returns how many changed.
func (s *ReferralService) ExpireStaleReferrals(ctx context.Context) (int64, error) {
	ctx, cancel := s.unitContext(ctx)
	defer cancel()

	cutoff := s.now().Add(-models.ReferralExpiryWindow)
	n, err := s.store.Referrals().ExpirePendingBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire referrals: %w", err)
	}
	s.metrics.observeExpired(n)
	if n > 0 {
		log.WithFields(log.Fields{"expired": n, "cutoff": cutoff}).Info("Expired stale referrals")
	}
	return n, nil
}
