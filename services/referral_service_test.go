package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
)

func TestCheckReferralEligibility(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, repositories.NewMemoryStore())
	referrer := h.register(t, "r@example.com", "")
	buyer := h.register(t, "u@example.com", referrer.ReferralCode)
	loner := h.register(t, "l@example.com", "")

	got, err := h.referrals.CheckReferralEligibility(ctx, buyer.ID)
	require.NoError(t, err)
	require.True(t, got.Eligible)
	require.Equal(t, "Referral is eligible for conversion", got.Message)

	got, err = h.referrals.CheckReferralEligibility(ctx, loner.ID)
	require.NoError(t, err)
	require.False(t, got.Eligible)
	require.Equal(t, "No pending referral found", got.Message)
}

// Past the window the referral is reported ineligible and expires.
func TestCheckReferralEligibility_Expires(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, repositories.NewMemoryStore())
	referrer := h.register(t, "r@example.com", "")
	buyer := h.register(t, "u@example.com", referrer.ReferralCode)

	h.clock.Advance(31 * 24 * time.Hour)

	got, err := h.referrals.CheckReferralEligibility(ctx, buyer.ID)
	require.NoError(t, err)
	require.False(t, got.Eligible)
	require.Equal(t, "Referral has expired (30 days)", got.Message)
	require.Equal(t, models.ReferralExpired, h.referralFor(t, buyer.ID).Status)

	res, err := h.purchases.RecordPurchase(ctx, buyer.ID, widget("p1"))
	require.NoError(t, err)
	require.Nil(t, res.Award)
	require.Equal(t, 0, h.account(t, referrer.ID).Credits)
}

func TestCheckReferralEligibility_WindowBoundary(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, repositories.NewMemoryStore())
	referrer := h.register(t, "r@example.com", "")
	buyer := h.register(t, "u@example.com", referrer.ReferralCode)

	h.clock.Advance(models.ReferralExpiryWindow)

	got, err := h.referrals.CheckReferralEligibility(ctx, buyer.ID)
	require.NoError(t, err)
	require.True(t, got.Eligible, "exactly 30 days old is still eligible")
}

func TestManualAward(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, repositories.NewMemoryStore())
	referrer := h.register(t, "r@example.com", "")
	buyer := h.register(t, "u@example.com", referrer.ReferralCode)
	referral := h.referralFor(t, buyer.ID)

	res, err := h.referrals.ManualAward(ctx, referral.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReferralConverted, res.Referral.Status)
	require.Equal(t, models.ConversionManual, res.Referral.ConversionType)
	require.Equal(t, 2, res.Referrer.Credits)
	require.Equal(t, 2, res.Referred.Credits)
	require.Equal(t, 1, h.account(t, referrer.ID).SuccessfulReferrals)

	_, err = h.referrals.ManualAward(ctx, referral.ID)
	require.ErrorIs(t, err, ErrCreditsAlreadyAwarded)
	require.Equal(t, 2, h.account(t, referrer.ID).Credits)

	// The later first purchase finds nothing to convert.
	purchase, err := h.purchases.RecordPurchase(ctx, buyer.ID, widget("p1"))
	require.NoError(t, err)
	require.Nil(t, purchase.Award)
}

func TestManualAward_UnknownReferral(t *testing.T) {
	h := newHarness(t, repositories.NewMemoryStore())
	_, err := h.referrals.ManualAward(context.Background(), primitive.NewObjectID())
	require.ErrorIs(t, err, ErrReferralNotFound)
}

func TestManualAward_RollsBackWhenReferrerFails(t *testing.T) {
	ctx := context.Background()
	mem := repositories.NewMemoryStore()
	setup := newHarness(t, mem)
	referrer := setup.register(t, "r@example.com", "")
	buyer := setup.register(t, "u@example.com", referrer.ReferralCode)
	referral := setup.referralFor(t, buyer.ID)

	h := newHarness(t, &faultyStore{MemoryStore: mem, failCreditsFor: referrer.ID})
	_, err := h.referrals.ManualAward(ctx, referral.ID)
	require.ErrorIs(t, err, errInjected)
	require.Equal(t, referral, setup.referralFor(t, buyer.ID))
}

func TestExpireStaleReferrals(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	store := repositories.NewMemoryStore()
	h := newHarness(t, store)
	referrer := h.register(t, "r@example.com", "")
	old := h.register(t, "old@example.com", referrer.ReferralCode)

	h.clock.Advance(20 * 24 * time.Hour)
	fresh := h.register(t, "fresh@example.com", referrer.ReferralCode)
	h.clock.Advance(15 * 24 * time.Hour)

	svc := NewReferralService(store, WithClock(h.clock.Now), WithMetrics(metrics))
	n, err := svc.ExpireStaleReferrals(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Equal(t, models.ReferralExpired, h.referralFor(t, old.ID).Status)
	require.Equal(t, models.ReferralPending, h.referralFor(t, fresh.ID).Status)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.expirations))

	n, err = svc.ExpireStaleReferrals(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestStartExpiryScheduler_SweepsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, repositories.NewMemoryStore())
	referrer := h.register(t, "r@example.com", "")
	buyer := h.register(t, "u@example.com", referrer.ReferralCode)
	h.clock.Advance(31 * 24 * time.Hour)

	sched, err := h.referrals.StartExpiryScheduler(ctx, time.Hour)
	require.NoError(t, err)
	defer func() { require.NoError(t, sched.Shutdown()) }()

	require.Eventually(t, func() bool {
		referral, err := h.store.Referrals().FindByReferred(context.Background(), buyer.ID)
		return err == nil && referral.Status == models.ReferralExpired
	}, 5*time.Second, 20*time.Millisecond)
}
