package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/models"
)

func seedAccount(t *testing.T, store *MemoryStore, email, code string) *models.Account {
	t.Helper()
	account := &models.Account{
		Email:        email,
		Name:         email,
		UserType:     models.UserTypeUser,
		ReferralCode: code,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.Accounts().Create(context.Background(), account))
	require.False(t, account.ID.IsZero())
	return account
}

func TestMemoryStore_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice := seedAccount(t, store, "alice@example.com", "REF-A")
	bob := seedAccount(t, store, "bob@example.com", "REF-B")

	err := store.Accounts().Create(ctx, &models.Account{Email: "alice@example.com", ReferralCode: "REF-X"})
	require.ErrorIs(t, err, ErrDuplicateKey)

	err = store.Accounts().Create(ctx, &models.Account{Email: "carol@example.com", ReferralCode: "REF-A"})
	require.ErrorIs(t, err, ErrDuplicateKey)

	require.NoError(t, store.Referrals().Create(ctx, models.NewReferral(alice.ID, bob.ID, time.Now())))
	err = store.Referrals().Create(ctx, models.NewReferral(alice.ID, bob.ID, time.Now()))
	require.ErrorIs(t, err, ErrDuplicateKey)

	carol := seedAccount(t, store, "carol@example.com", "REF-C")
	err = store.Referrals().Create(ctx, models.NewReferral(carol.ID, bob.ID, time.Now()))
	require.ErrorIs(t, err, ErrDuplicateKey, "an account can be referred only once")
}

func TestMemoryStore_FindMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Accounts().FindByID(ctx, primitive.NewObjectID())
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Accounts().FindByReferralCode(ctx, "REF-NOPE")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Referrals().FindPendingByReferred(ctx, primitive.NewObjectID())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ConvertOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice := seedAccount(t, store, "alice@example.com", "REF-A")
	bob := seedAccount(t, store, "bob@example.com", "REF-B")
	referral := models.NewReferral(alice.ID, bob.ID, time.Now())
	require.NoError(t, store.Referrals().Create(ctx, referral))

	now := time.Now()
	ok, err := store.Referrals().Convert(ctx, referral.ID, models.ConversionPurchase, 2, now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Referrals().Convert(ctx, referral.ID, models.ConversionPurchase, 2, now)
	require.NoError(t, err)
	require.False(t, ok)

	stored, err := store.Referrals().FindByID(ctx, referral.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReferralConverted, stored.Status)
	require.True(t, stored.CreditsAwarded)
	require.Equal(t, models.ConversionPurchase, stored.ConversionType)
	require.NotNil(t, stored.ConvertedAt)

	_, err = store.Referrals().FindPendingByReferred(ctx, bob.ID)
	require.ErrorIs(t, err, ErrNotFound)

	ok, err = store.Referrals().Expire(ctx, referral.ID)
	require.NoError(t, err)
	require.False(t, ok, "converted is terminal")
}

func TestMemoryStore_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice := seedAccount(t, store, "alice@example.com", "REF-A")
	boom := errors.New("boom")

	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := store.Accounts().AddCredits(ctx, alice.ID, 2, 1)
		require.NoError(t, err)
		require.NoError(t, store.Purchases().Create(ctx, &models.Purchase{User: alice.ID, ProductID: "p1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := store.Accounts().FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.Credits)
	require.Equal(t, 0, stored.SuccessfulReferrals)

	count, err := store.Purchases().CountByAccount(ctx, alice.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMemoryStore_NestedTransactionJoinsOuter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice := seedAccount(t, store, "alice@example.com", "REF-A")

	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		return store.WithTransaction(ctx, func(ctx context.Context) error {
			_, err := store.Accounts().TouchPurchase(ctx, alice.ID)
			return err
		})
	})
	require.NoError(t, err)

	stored, err := store.Accounts().FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.PurchaseCount)
}

func TestMemoryStore_TransactionsSerialize(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice := seedAccount(t, store, "alice@example.com", "REF-A")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.WithTransaction(ctx, func(ctx context.Context) error {
				account, err := store.Accounts().FindByID(ctx, alice.ID)
				if err != nil {
					return err
				}
				if account.Credits > 0 {
					return nil
				}
				_, err = store.Accounts().AddCredits(ctx, alice.ID, 2, 1)
				return err
			})
		}()
	}
	wg.Wait()

	stored, err := store.Accounts().FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Credits)
}

func TestMemoryStore_Ordering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice := seedAccount(t, store, "alice@example.com", "REF-A")
	bob := seedAccount(t, store, "bob@example.com", "REF-B")
	carol := seedAccount(t, store, "carol@example.com", "REF-C")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := models.NewReferral(alice.ID, bob.ID, base)
	newer := models.NewReferral(alice.ID, carol.ID, base.Add(time.Hour))
	require.NoError(t, store.Referrals().Create(ctx, older))
	require.NoError(t, store.Referrals().Create(ctx, newer))

	list, err := store.Referrals().ListByReferrer(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)

	from := base.Add(30 * time.Minute)
	list, err = store.Referrals().List(ctx, ReferralFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, newer.ID, list[0].ID)

	_, err = store.Accounts().AddCredits(ctx, bob.ID, 4, 2)
	require.NoError(t, err)
	_, err = store.Accounts().AddCredits(ctx, carol.ID, 6, 2)
	require.NoError(t, err)

	top, err := store.Accounts().TopReferrers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, carol.ID, top[0].ID)
	require.Equal(t, bob.ID, top[1].ID)
}

func TestMemoryStore_ExpirePendingBefore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice := seedAccount(t, store, "alice@example.com", "REF-A")
	bob := seedAccount(t, store, "bob@example.com", "REF-B")
	carol := seedAccount(t, store, "carol@example.com", "REF-C")

	now := time.Now()
	stale := models.NewReferral(alice.ID, bob.ID, now.Add(-40*24*time.Hour))
	fresh := models.NewReferral(alice.ID, carol.ID, now)
	require.NoError(t, store.Referrals().Create(ctx, stale))
	require.NoError(t, store.Referrals().Create(ctx, fresh))

	n, err := store.Referrals().ExpirePendingBefore(ctx, now.Add(-models.ReferralExpiryWindow))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := store.Referrals().FindByID(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReferralExpired, got.Status)
	got, err = store.Referrals().FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReferralPending, got.Status)
}
