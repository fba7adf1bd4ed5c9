package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Collection names.
const (
	UsersCollection     = "users"
	ReferralsCollection = "referrals"
	PurchasesCollection = "purchases"
)

// MongoStore backs the ledgers with MongoDB. Transactions need a replica set
// or sharded cluster.
type MongoStore struct {
	client    *mongo.Client
	accounts  *MongoAccountRepository
	referrals *MongoReferralRepository
	purchases *MongoPurchaseRepository
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:    client,
		accounts:  NewAccountRepository(db),
		referrals: NewReferralRepository(db),
		purchases: NewPurchaseRepository(db),
	}
}

func (s *MongoStore) Accounts() AccountRepository   { return s.accounts }
func (s *MongoStore) Referrals() ReferralRepository { return s.referrals }
func (s *MongoStore) Purchases() PurchaseRepository { return s.purchases }

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// WithTransaction runs fn inside a snapshot-isolated multi-document
// transaction. The driver re-runs fn on transient errors such as write
// conflicts, so fn must not have side effects outside the store.
func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	}, txnOpts)
	return err
}

// EnsureIndexes creates the unique and lookup indexes the ledgers rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	for _, setup := range []func(context.Context) error{
		s.accounts.ensureIndexes,
		s.referrals.ensureIndexes,
		s.purchases.ensureIndexes,
	} {
		if err := setup(ctx); err != nil {
			return err
		}
	}
	return nil
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	default:
		return err
	}
}
