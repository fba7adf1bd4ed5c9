package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/models"
)

type memoryTxKey struct{}

// MemoryStore keeps the ledgers in process. A unit of work holds the store
// mutex for its whole duration and restores a snapshot if it fails, so units
// are serialized and all-or-nothing.
type MemoryStore struct {
	mu        sync.Mutex
	accounts  map[primitive.ObjectID]models.Account
	referrals map[primitive.ObjectID]models.Referral
	purchases map[primitive.ObjectID]models.Purchase
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[primitive.ObjectID]models.Account),
		referrals: make(map[primitive.ObjectID]models.Referral),
		purchases: make(map[primitive.ObjectID]models.Purchase),
	}
}

func (s *MemoryStore) Accounts() AccountRepository   { return memoryAccounts{s} }
func (s *MemoryStore) Referrals() ReferralRepository { return memoryReferrals{s} }
func (s *MemoryStore) Purchases() PurchaseRepository { return memoryPurchases{s} }

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTransaction(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, referrals, purchases := s.snapshot()
	if err := fn(context.WithValue(ctx, memoryTxKey{}, s)); err != nil {
		s.accounts, s.referrals, s.purchases = accounts, referrals, purchases
		return err
	}
	return nil
}

func (s *MemoryStore) inTransaction(ctx context.Context) bool {
	owner, _ := ctx.Value(memoryTxKey{}).(*MemoryStore)
	return owner == s
}

// lock takes the store mutex unless ctx already belongs to a unit of work
// holding it.
func (s *MemoryStore) lock(ctx context.Context) func() {
	if s.inTransaction(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) snapshot() (map[primitive.ObjectID]models.Account, map[primitive.ObjectID]models.Referral, map[primitive.ObjectID]models.Purchase) {
	accounts := make(map[primitive.ObjectID]models.Account, len(s.accounts))
	for k, v := range s.accounts {
		accounts[k] = v
	}
	referrals := make(map[primitive.ObjectID]models.Referral, len(s.referrals))
	for k, v := range s.referrals {
		referrals[k] = v
	}
	purchases := make(map[primitive.ObjectID]models.Purchase, len(s.purchases))
	for k, v := range s.purchases {
		purchases[k] = v
	}
	return accounts, referrals, purchases
}

// ---- accounts ----

type memoryAccounts struct{ s *MemoryStore }

func (r memoryAccounts) Create(ctx context.Context, account *models.Account) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.accounts {
		if existing.Email == account.Email {
			return fmt.Errorf("%w: email %s", ErrDuplicateKey, account.Email)
		}
		if existing.ReferralCode == account.ReferralCode {
			return fmt.Errorf("%w: referralCode %s", ErrDuplicateKey, account.ReferralCode)
		}
	}
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	r.s.accounts[account.ID] = *account
	return nil
}

func (r memoryAccounts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	defer r.s.lock(ctx)()
	account, ok := r.s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (r memoryAccounts) findBy(ctx context.Context, match func(models.Account) bool) (*models.Account, error) {
	defer r.s.lock(ctx)()
	for _, account := range r.s.accounts {
		if match(account) {
			found := account
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryAccounts) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findBy(ctx, func(a models.Account) bool { return a.Email == email })
}

func (r memoryAccounts) FindByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	return r.findBy(ctx, func(a models.Account) bool { return a.ReferralCode == code })
}

func (r memoryAccounts) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Account, error) {
	defer r.s.lock(ctx)()
	out := make(map[primitive.ObjectID]models.Account, len(ids))
	for _, id := range ids {
		if account, ok := r.s.accounts[id]; ok {
			out[id] = account
		}
	}
	return out, nil
}

func (r memoryAccounts) mutate(ctx context.Context, id primitive.ObjectID, apply func(*models.Account)) (*models.Account, error) {
	defer r.s.lock(ctx)()
	account, ok := r.s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	apply(&account)
	account.UpdatedAt = time.Now()
	r.s.accounts[id] = account
	return &account, nil
}

func (r memoryAccounts) TouchPurchase(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return r.mutate(ctx, id, func(a *models.Account) { a.PurchaseCount++ })
}

func (r memoryAccounts) AddCredits(ctx context.Context, id primitive.ObjectID, credits, successfulReferrals int) (*models.Account, error) {
	return r.mutate(ctx, id, func(a *models.Account) {
		a.Credits += credits
		a.SuccessfulReferrals += successfulReferrals
	})
}

func (r memoryAccounts) IncrementTotalReferrals(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.mutate(ctx, id, func(a *models.Account) { a.TotalReferrals++ })
	return err
}

func (r memoryAccounts) UpdateName(ctx context.Context, id primitive.ObjectID, name string) (*models.Account, error) {
	return r.mutate(ctx, id, func(a *models.Account) { a.Name = name })
}

func (r memoryAccounts) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	_, err := r.mutate(ctx, id, func(a *models.Account) { a.Password = hash })
	return err
}

func (r memoryAccounts) TopReferrers(ctx context.Context, limit int) ([]models.Account, error) {
	defer r.s.lock(ctx)()
	accounts := make([]models.Account, 0, len(r.s.accounts))
	for _, account := range r.s.accounts {
		accounts = append(accounts, account)
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].SuccessfulReferrals != accounts[j].SuccessfulReferrals {
			return accounts[i].SuccessfulReferrals > accounts[j].SuccessfulReferrals
		}
		if accounts[i].Credits != accounts[j].Credits {
			return accounts[i].Credits > accounts[j].Credits
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

// ---- referrals ----

type memoryReferrals struct{ s *MemoryStore }

func (r memoryReferrals) Create(ctx context.Context, referral *models.Referral) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.referrals {
		if existing.Referred == referral.Referred {
			return fmt.Errorf("%w: referred %s", ErrDuplicateKey, referral.Referred.Hex())
		}
	}
	if referral.ID.IsZero() {
		referral.ID = primitive.NewObjectID()
	}
	r.s.referrals[referral.ID] = *referral
	return nil
}

func (r memoryReferrals) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Referral, error) {
	defer r.s.lock(ctx)()
	referral, ok := r.s.referrals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &referral, nil
}

func (r memoryReferrals) findBy(ctx context.Context, match func(models.Referral) bool) (*models.Referral, error) {
	defer r.s.lock(ctx)()
	for _, referral := range r.s.referrals {
		if match(referral) {
			found := referral
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryReferrals) FindPendingByReferred(ctx context.Context, referred primitive.ObjectID) (*models.Referral, error) {
	return r.findBy(ctx, func(ref models.Referral) bool {
		return ref.Referred == referred && ref.IsConvertible()
	})
}

func (r memoryReferrals) FindByReferred(ctx context.Context, referred primitive.ObjectID) (*models.Referral, error) {
	return r.findBy(ctx, func(ref models.Referral) bool { return ref.Referred == referred })
}

func (r memoryReferrals) filter(ctx context.Context, match func(models.Referral) bool) []models.Referral {
	defer r.s.lock(ctx)()
	out := []models.Referral{}
	for _, referral := range r.s.referrals {
		if match(referral) {
			out = append(out, referral)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}

func (r memoryReferrals) ListByReferrer(ctx context.Context, referrer primitive.ObjectID) ([]models.Referral, error) {
	return r.filter(ctx, func(ref models.Referral) bool { return ref.Referrer == referrer }), nil
}

func (r memoryReferrals) CountByReferrer(ctx context.Context, referrer primitive.ObjectID) (int64, int64, error) {
	var total, converted int64
	for _, ref := range r.filter(ctx, func(ref models.Referral) bool { return ref.Referrer == referrer }) {
		total++
		if ref.Status == models.ReferralConverted && ref.CreditsAwarded {
			converted++
		}
	}
	return total, converted, nil
}

func (r memoryReferrals) List(ctx context.Context, filter ReferralFilter) ([]models.Referral, error) {
	return r.filter(ctx, func(ref models.Referral) bool {
		if filter.From != nil && ref.CreatedAt.Before(*filter.From) {
			return false
		}
		if filter.To != nil && ref.CreatedAt.After(*filter.To) {
			return false
		}
		return true
	}), nil
}

func (r memoryReferrals) Convert(ctx context.Context, id primitive.ObjectID, conversion models.ConversionType, credits int, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()
	referral, ok := r.s.referrals[id]
	if !ok || !referral.IsConvertible() {
		return false, nil
	}
	convertedAt := at
	referral.Status = models.ReferralConverted
	referral.CreditsAwarded = true
	referral.CreditsAmount = credits
	referral.ConvertedAt = &convertedAt
	referral.ConversionType = conversion
	r.s.referrals[id] = referral
	return true, nil
}

func (r memoryReferrals) Expire(ctx context.Context, id primitive.ObjectID) (bool, error) {
	defer r.s.lock(ctx)()
	referral, ok := r.s.referrals[id]
	if !ok || referral.Status != models.ReferralPending {
		return false, nil
	}
	referral.Status = models.ReferralExpired
	r.s.referrals[id] = referral
	return true, nil
}

func (r memoryReferrals) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for id, referral := range r.s.referrals {
		if referral.Status == models.ReferralPending && referral.CreatedAt.Before(cutoff) {
			referral.Status = models.ReferralExpired
			r.s.referrals[id] = referral
			n++
		}
	}
	return n, nil
}

// ---- purchases ----

type memoryPurchases struct{ s *MemoryStore }

func (r memoryPurchases) Create(ctx context.Context, purchase *models.Purchase) error {
	defer r.s.lock(ctx)()
	if purchase.ID.IsZero() {
		purchase.ID = primitive.NewObjectID()
	}
	r.s.purchases[purchase.ID] = *purchase
	return nil
}

func (r memoryPurchases) CountByAccount(ctx context.Context, account primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, p := range r.s.purchases {
		if p.User == account {
			n++
		}
	}
	return n, nil
}

func (r memoryPurchases) ListByAccount(ctx context.Context, account primitive.ObjectID) ([]models.Purchase, error) {
	defer r.s.lock(ctx)()
	out := []models.Purchase{}
	for _, p := range r.s.purchases {
		if p.User == account {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out, nil
}
