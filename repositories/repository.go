package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/models"
)

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when an insert violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
)

// UnitOfWork runs fn as one atomic, isolated unit. Every repository call made
// with the ctx handed to fn joins the unit; if fn returns an error nothing it
// wrote is kept.
type UnitOfWork interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store groups the three ledgers with the unit of work that spans them.
type Store interface {
	UnitOfWork
	Accounts() AccountRepository
	Referrals() ReferralRepository
	Purchases() PurchaseRepository
	Ping(ctx context.Context) error
}

type AccountRepository interface {
	// Create inserts the account and assigns its ID. A taken email or
	// referral code yields ErrDuplicateKey.
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByReferralCode(ctx context.Context, code string) (*models.Account, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Account, error)

	// TouchPurchase bumps purchaseCount and returns the updated account. Inside
	// a unit of work this is the per-account write that serializes purchases.
	TouchPurchase(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	// AddCredits increments credits and successfulReferrals and returns the
	// updated account.
	AddCredits(ctx context.Context, id primitive.ObjectID, credits, successfulReferrals int) (*models.Account, error)
	IncrementTotalReferrals(ctx context.Context, id primitive.ObjectID) error
	UpdateName(ctx context.Context, id primitive.ObjectID, name string) (*models.Account, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error

	// TopReferrers orders by successfulReferrals desc, then credits desc.
	TopReferrers(ctx context.Context, limit int) ([]models.Account, error)
}

// ReferralFilter narrows List by creation time. Nil bounds are open.
type ReferralFilter struct {
	From *time.Time
	To   *time.Time
}

type ReferralRepository interface {
	// Create inserts a referral. A second referral for the same referred
	// account, or the same (referrer, referred) pair, yields ErrDuplicateKey.
	Create(ctx context.Context, referral *models.Referral) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Referral, error)
	// FindPendingByReferred returns the referral with status pending and
	// creditsAwarded false for the referred account.
	FindPendingByReferred(ctx context.Context, referred primitive.ObjectID) (*models.Referral, error)
	FindByReferred(ctx context.Context, referred primitive.ObjectID) (*models.Referral, error)
	// ListByReferrer returns the referrals made by referrer, newest first.
	ListByReferrer(ctx context.Context, referrer primitive.ObjectID) ([]models.Referral, error)
	// CountByReferrer returns all referrals made and those converted with
	// credits awarded.
	CountByReferrer(ctx context.Context, referrer primitive.ObjectID) (total int64, converted int64, err error)
	// List returns referrals in the filter window, newest first.
	List(ctx context.Context, filter ReferralFilter) ([]models.Referral, error)

	// Convert flips a pending, unawarded referral to converted. It reports
	// false when the referral was no longer pending (another writer won).
	Convert(ctx context.Context, id primitive.ObjectID, conversion models.ConversionType, credits int, at time.Time) (bool, error)
	// Expire flips a pending referral to expired, reporting false when it was
	// no longer pending.
	Expire(ctx context.Context, id primitive.ObjectID) (bool, error)
	// ExpirePendingBefore expires every pending referral created before cutoff.
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type PurchaseRepository interface {
	Create(ctx context.Context, purchase *models.Purchase) error
	CountByAccount(ctx context.Context, account primitive.ObjectID) (int64, error)
	// ListByAccount returns the account's purchases, newest first.
	ListByAccount(ctx context.Context, account primitive.ObjectID) ([]models.Purchase, error)
}
