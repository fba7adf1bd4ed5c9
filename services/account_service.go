// services/account_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
	"github.com/HSouheill/referral_backend/utils"
)

const referralCodeAttempts = 3

// TokenIssuer signs a session token for an account.
type TokenIssuer func(account *models.Account) (string, error)

type RegisterInput struct {
	Email        string
	Password     string
	Name         string
	ReferralCode string
}

// AuthResult is returned by Register and Login. ReferrerCode is the code of
// the account that referred this one, empty when there is none.
type AuthResult struct {
	Account      models.Account
	Token        string
	ReferrerCode string
}

// AccountService handles registration, login and profile updates.
// Registration is where referrals are created.
type AccountService struct {
	store    repositories.Store
	issue    TokenIssuer
	notifier *Notifier
	options
}

// NewAccountService builds the service. notifier may be nil, in which case no
// welcome email is sent.
func NewAccountService(store repositories.Store, issue TokenIssuer, notifier *Notifier, opts ...Option) *AccountService {
	return &AccountService{store: store, issue: issue, notifier: notifier, options: buildOptions(opts)}
}

func (in RegisterInput) validate() (RegisterInput, error) {
	email, err := utils.SanitizeEmail(in.Email)
	if err != nil {
		return in, invalidInput("email", "must be a valid email")
	}
	in.Email = email
	if len(in.Password) < utils.MinPasswordLength {
		return in, invalidInput("password", fmt.Sprintf("must be at least %d characters", utils.MinPasswordLength))
	}
	in.Name = utils.SanitizeInput(in.Name)
	if in.Name == "" {
		return in, invalidInput("name", "is required")
	}
	in.ReferralCode = utils.NormalizeReferralCode(in.ReferralCode)
	return in, nil
}

// Register creates the account and, when the referral code resolves, the
// pending referral and the referrer's totalReferrals bump, all in one unit of
// work. Unknown referral codes are ignored.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := s.unitContext(ctx)
	defer cancel()

	var (
		account  *models.Account
		referrer *models.Account
	)
	for attempt := 1; attempt <= referralCodeAttempts; attempt++ {
		code, err := utils.GenerateReferralCode(s.now())
		if err != nil {
			return nil, fmt.Errorf("generate referral code: %w", err)
		}

		err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
			account, referrer = nil, nil
			return s.createAccount(ctx, in, hash, code, &account, &referrer)
		})
		if err == nil {
			break
		}
		if !errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, err
		}
		// Either the email was taken concurrently or the referral code
		// collided.
		if _, lookupErr := s.store.Accounts().FindByEmail(ctx, in.Email); lookupErr == nil {
			return nil, ErrEmailTaken
		}
		if attempt == referralCodeAttempts {
			return nil, fmt.Errorf("allocate referral code: %w", err)
		}
		log.WithField("attempt", attempt).Warn("Referral code collision, retrying")
	}

	s.metrics.observeRegistration(referrer != nil)
	log.WithFields(log.Fields{
		"account_id": account.ID.Hex(),
		"referred":   referrer != nil,
	}).Info("Account registered")

	if s.notifier != nil {
		go func(to, name, code string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.notifier.SendWelcome(ctx, to, name, code); err != nil {
				log.WithError(err).WithField("email", to).Warn("Welcome email not sent")
			}
		}(account.Email, account.Name, account.ReferralCode)
	}

	result := &AuthResult{Account: *account}
	if referrer != nil {
		result.ReferrerCode = referrer.ReferralCode
	}
	if result.Token, err = s.issue(account); err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return result, nil
}

func (s *AccountService) createAccount(ctx context.Context, in RegisterInput, hash, code string, account, referrer **models.Account) error {
	if _, err := s.store.Accounts().FindByEmail(ctx, in.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("check email: %w", err)
	}

	var ref *models.Account
	if in.ReferralCode != "" {
		found, err := s.store.Accounts().FindByReferralCode(ctx, in.ReferralCode)
		switch {
		case err == nil:
			ref = found
		case errors.Is(err, repositories.ErrNotFound):
			log.WithField("code", in.ReferralCode).Info("Unknown referral code ignored at registration")
		default:
			return fmt.Errorf("resolve referral code: %w", err)
		}
	}

	now := s.now()
	acc := &models.Account{
		Email:        in.Email,
		Password:     hash,
		Name:         in.Name,
		UserType:     models.UserTypeUser,
		ReferralCode: code,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if ref != nil {
		acc.ReferredBy = &ref.ID
	}
	if err := s.store.Accounts().Create(ctx, acc); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	if ref != nil {
		if err := s.store.Referrals().Create(ctx, models.NewReferral(ref.ID, acc.ID, now)); err != nil {
			return fmt.Errorf("insert referral: %w", err)
		}
		if err := s.store.Accounts().IncrementTotalReferrals(ctx, ref.ID); err != nil {
			return fmt.Errorf("bump referrer: %w", err)
		}
	}

	*account, *referrer = acc, ref
	return nil
}

// Login checks the credentials and issues a token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := utils.SanitizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	account, err := s.store.Accounts().FindByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if !utils.CheckPassword(account.Password, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issue(account)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Account: *account, Token: token}, nil
}

func (s *AccountService) Me(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	account, err := s.store.Accounts().FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, id primitive.ObjectID, name string) (*models.Account, error) {
	name = utils.SanitizeInput(name)
	if name == "" {
		return nil, invalidInput("name", "is required")
	}
	account, err := s.store.Accounts().UpdateName(ctx, id, name)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return account, nil
}
