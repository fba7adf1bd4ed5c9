package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *fixedClock { return &fixedClock{now: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testToken(account *models.Account) (string, error) {
	return "token-" + account.ID.Hex(), nil
}

type harness struct {
	store     repositories.Store
	clock     *fixedClock
	accounts  *AccountService
	purchases *PurchaseService
	referrals *ReferralService
	reporting *ReportingService
}

func newHarness(t *testing.T, store repositories.Store) *harness {
	t.Helper()
	clock := newClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	opts := []Option{WithClock(clock.Now), WithUnitTimeout(5 * time.Second)}
	return &harness{
		store:     store,
		clock:     clock,
		accounts:  NewAccountService(store, testToken, nil, opts...),
		purchases: NewPurchaseService(store, opts...),
		referrals: NewReferralService(store, opts...),
		reporting: NewReportingService(store, "https://app.example", opts...),
	}
}

func (h *harness) register(t *testing.T, email, referralCode string) *models.Account {
	t.Helper()
	res, err := h.accounts.Register(context.Background(), RegisterInput{
		Email:        email,
		Password:     "secret1",
		Name:         email,
		ReferralCode: referralCode,
	})
	require.NoError(t, err)
	return &res.Account
}

func (h *harness) account(t *testing.T, id primitive.ObjectID) models.Account {
	t.Helper()
	account, err := h.store.Accounts().FindByID(context.Background(), id)
	require.NoError(t, err)
	return *account
}

func (h *harness) referralFor(t *testing.T, referred primitive.ObjectID) models.Referral {
	t.Helper()
	referral, err := h.store.Referrals().FindByReferred(context.Background(), referred)
	require.NoError(t, err)
	return *referral
}

func widget(id string) PurchaseInput {
	return PurchaseInput{ProductID: id, ProductName: "Widget", Amount: 10}
}

// faultyStore fails AddCredits for one account so a unit of work aborts
// after the referral has already been flipped.
type faultyStore struct {
	*repositories.MemoryStore
	failCreditsFor primitive.ObjectID
}

var errInjected = errors.New("injected account write failure")

func (s *faultyStore) Accounts() repositories.AccountRepository {
	return faultyAccounts{AccountRepository: s.MemoryStore.Accounts(), failFor: s.failCreditsFor}
}

type faultyAccounts struct {
	repositories.AccountRepository
	failFor primitive.ObjectID
}

func (a faultyAccounts) AddCredits(ctx context.Context, id primitive.ObjectID, credits, successful int) (*models.Account, error) {
	if id == a.failFor {
		return nil, errInjected
	}
	return a.AccountRepository.AddCredits(ctx, id, credits, successful)
}

// captureSender records outgoing mail and can fail a number of times first.
type captureSender struct {
	mu       sync.Mutex
	failures int
	sent     []sentEmail
}

type sentEmail struct {
	to, subject, body string
}

func (c *captureSender) SendEmail(_ context.Context, to, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return errors.New("smtp unavailable")
	}
	c.sent = append(c.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func (c *captureSender) last() sentEmail {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[len(c.sent)-1]
}
