// services/reporting.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
	"github.com/HSouheill/referral_backend/utils"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100

	reportReferralLimit = 50
)

// ReportingService serves the read-only referral views. It never writes.
type ReportingService struct {
	store     repositories.Store
	clientURL string
	options
}

func NewReportingService(store repositories.Store, clientURL string, opts ...Option) *ReportingService {
	return &ReportingService{store: store, clientURL: clientURL, options: buildOptions(opts)}
}

func (s *ReportingService) account(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	account, err := s.store.Accounts().FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return account, nil
}

func (s *ReportingService) Stats(ctx context.Context, accountID primitive.ObjectID) (*models.ReferralStats, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	total, converted, err := s.store.Referrals().CountByReferrer(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("count referrals: %w", err)
	}
	return &models.ReferralStats{
		TotalReferred:      total,
		ConvertedUsers:     converted,
		TotalCreditsEarned: converted * models.ReferralAwardCredits,
		CurrentCredits:     account.Credits,
		ReferralCode:       account.ReferralCode,
	}, nil
}

// History lists the referrals made by the account, newest first.
func (s *ReportingService) History(ctx context.Context, accountID primitive.ObjectID) ([]models.ReferralHistoryEntry, error) {
	referrals, err := s.store.Referrals().ListByReferrer(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	referred, err := s.store.Accounts().FindByIDs(ctx, referredIDs(referrals))
	if err != nil {
		return nil, fmt.Errorf("load referred accounts: %w", err)
	}

	history := make([]models.ReferralHistoryEntry, 0, len(referrals))
	for _, ref := range referrals {
		entry := models.ReferralHistoryEntry{
			ReferredEmail:  "Unknown",
			ReferredName:   "Unknown",
			Status:         ref.Status,
			CreatedAt:      ref.CreatedAt,
			ConvertedAt:    ref.ConvertedAt,
			CreditsAwarded: ref.CreditsAwarded,
		}
		if account, ok := referred[ref.Referred]; ok {
			entry.ReferredEmail = account.Email
			entry.ReferredName = account.Name
		}
		if ref.CreditsAwarded {
			entry.Credits = models.ReferralAwardCredits
		}
		history = append(history, entry)
	}
	return history, nil
}

// ClampLeaderboardLimit applies the default and the upper bound.
func ClampLeaderboardLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	}
	return limit
}

func (s *ReportingService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	accounts, err := s.store.Accounts().TopReferrers(ctx, ClampLeaderboardLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("top referrers: %w", err)
	}
	board := make([]models.LeaderboardEntry, 0, len(accounts))
	for i, account := range accounts {
		board = append(board, models.LeaderboardEntry{
			Rank:                i + 1,
			Name:                account.Name,
			Email:               account.Email,
			ReferralCode:        account.ReferralCode,
			SuccessfulReferrals: account.SuccessfulReferrals,
			TotalReferrals:      account.TotalReferrals,
			Credits:             account.Credits,
			ConversionRate:      conversionRate(account.SuccessfulReferrals, account.TotalReferrals),
			Joined:              account.CreatedAt.Format("2006-01-02"),
		})
	}
	return board, nil
}

// ValidateCode looks up a referral code, ignoring case and surrounding space.
func (s *ReportingService) ValidateCode(ctx context.Context, code string) (*models.CodeValidation, error) {
	code = utils.NormalizeReferralCode(code)
	if code == "" {
		return &models.CodeValidation{Valid: false}, nil
	}
	account, err := s.store.Accounts().FindByReferralCode(ctx, code)
	if errors.Is(err, repositories.ErrNotFound) {
		return &models.CodeValidation{Valid: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find referral code: %w", err)
	}
	return &models.CodeValidation{Valid: true, Referrer: referrerInfo(account)}, nil
}

// Overview combines the account, the referrals it made, who referred it,
// and its share link.
func (s *ReportingService) Overview(ctx context.Context, accountID primitive.ObjectID) (*models.ReferralOverview, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	referrals, err := s.store.Referrals().ListByReferrer(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	referred, err := s.store.Accounts().FindByIDs(ctx, referredIDs(referrals))
	if err != nil {
		return nil, fmt.Errorf("load referred accounts: %w", err)
	}

	overview := &models.ReferralOverview{ReferralsMade: make([]models.ReferralMade, 0, len(referrals))}
	overview.User.Name = account.Name
	overview.User.Email = account.Email
	overview.User.ReferralCode = account.ReferralCode
	overview.User.Credits = account.Credits
	overview.User.TotalReferrals = account.TotalReferrals
	overview.User.SuccessfulReferrals = account.SuccessfulReferrals

	pending, converted := 0, 0
	for _, ref := range referrals {
		switch ref.Status {
		case models.ReferralPending:
			pending++
		case models.ReferralConverted:
			converted++
		}
		made := models.ReferralMade{
			Status:         ref.Status,
			CreditsAwarded: ref.CreditsAwarded,
			CreatedAt:      ref.CreatedAt,
			ConvertedAt:    ref.ConvertedAt,
			ConversionType: ref.ConversionType,
		}
		if other, ok := referred[ref.Referred]; ok {
			made.ReferredUser = &models.ReferredUser{
				ID:        other.ID,
				Name:      other.Name,
				Email:     other.Email,
				Credits:   other.Credits,
				CreatedAt: other.CreatedAt,
			}
		}
		overview.ReferralsMade = append(overview.ReferralsMade, made)
	}
	overview.Stats.TotalReferrals = len(referrals)
	overview.Stats.PendingReferrals = pending
	overview.Stats.ConvertedReferrals = converted
	overview.Stats.TotalEarnedCredits = account.Credits
	overview.Stats.ConversionRate = conversionRate(converted, len(referrals))

	by, err := s.store.Referrals().FindByReferred(ctx, accountID)
	switch {
	case err == nil:
		entry := &models.ReferredByEntry{Status: by.Status, CreatedAt: by.CreatedAt}
		if referrer, err := s.store.Accounts().FindByID(ctx, by.Referrer); err == nil {
			entry.Referrer = referrerInfo(referrer)
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("load referrer: %w", err)
		}
		overview.ReferredBy = entry
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("find referred-by: %w", err)
	}

	overview.ShareLink = utils.ShareLink(s.clientURL, account.ReferralCode)
	overview.ShareText = fmt.Sprintf("Join using my referral code %s and we both earn credits!", account.ReferralCode)
	return overview, nil
}

// ShareLink returns the registration link carrying the account's code.
func (s *ReportingService) ShareLink(ctx context.Context, accountID primitive.ObjectID) (string, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return "", err
	}
	return utils.ShareLink(s.clientURL, account.ReferralCode), nil
}

// Report summarises referrals created in [from, to]. Nil bounds are open.
func (s *ReportingService) Report(ctx context.Context, from, to *time.Time) (*models.ReferralReport, error) {
	referrals, err := s.store.Referrals().List(ctx, repositories.ReferralFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}

	report := &models.ReferralReport{GeneratedAt: s.now()}
	report.Period.StartDate = "All time"
	if from != nil {
		report.Period.StartDate = from.UTC().Format(time.RFC3339)
	}
	report.Period.EndDate = "Now"
	if to != nil {
		report.Period.EndDate = to.UTC().Format(time.RFC3339)
	}

	for _, ref := range referrals {
		switch ref.Status {
		case models.ReferralPending:
			report.Summary.PendingReferrals++
		case models.ReferralConverted:
			report.Summary.ConvertedReferrals++
		case models.ReferralExpired:
			report.Summary.ExpiredReferrals++
		}
		if ref.CreditsAwarded {
			amount := ref.CreditsAmount
			if amount == 0 {
				amount = models.ReferralAwardCredits
			}
			report.Summary.TotalCreditsAwarded += amount
		}
	}
	report.Summary.TotalReferrals = len(referrals)
	report.Summary.ConversionRate = conversionRate(report.Summary.ConvertedReferrals, len(referrals))

	if len(referrals) > reportReferralLimit {
		referrals = referrals[:reportReferralLimit]
	}
	report.Referrals = referrals
	return report, nil
}

func referredIDs(referrals []models.Referral) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(referrals))
	for _, ref := range referrals {
		ids = append(ids, ref.Referred)
	}
	return ids
}

func referrerInfo(account *models.Account) *models.ReferrerInfo {
	return &models.ReferrerInfo{Name: account.Name, Email: account.Email, ReferralCode: account.ReferralCode}
}

// conversionRate is a percentage with one decimal, "0.0" when total is zero.
func conversionRate(converted, total int) string {
	if total <= 0 {
		return "0.0"
	}
	return strconv.FormatFloat(float64(converted)/float64(total)*100, 'f', 1, 64)
}
