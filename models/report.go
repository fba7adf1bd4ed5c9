// models/report.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReferralStats backs GET /api/referrals/stats.
type ReferralStats struct {
	TotalReferred      int64  `json:"totalReferred"`
	ConvertedUsers     int64  `json:"convertedUsers"`
	TotalCreditsEarned int64  `json:"totalCreditsEarned"`
	CurrentCredits     int    `json:"currentCredits"`
	ReferralCode       string `json:"referralCode"`
}

// ReferralHistoryEntry is one row of GET /api/referrals/history.
type ReferralHistoryEntry struct {
	ReferredEmail  string         `json:"referredEmail"`
	ReferredName   string         `json:"referredName"`
	Status         ReferralStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	ConvertedAt    *time.Time     `json:"convertedAt,omitempty"`
	CreditsAwarded bool           `json:"creditsAwarded"`
	Credits        int            `json:"credits"`
}

// LeaderboardEntry is one ranked account.
type LeaderboardEntry struct {
	Rank                int    `json:"rank"`
	Name                string `json:"name"`
	Email               string `json:"email"`
	ReferralCode        string `json:"referralCode"`
	SuccessfulReferrals int    `json:"successfulReferrals"`
	TotalReferrals      int    `json:"totalReferrals"`
	Credits             int    `json:"credits"`
	ConversionRate      string `json:"conversionRate"`
	Joined              string `json:"joined"`
}

// ReferrerInfo is the public view of the account behind a referral code.
type ReferrerInfo struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	ReferralCode string `json:"referralCode"`
}

// CodeValidation backs GET /api/referrals/validate/:code.
type CodeValidation struct {
	Valid    bool          `json:"valid"`
	Referrer *ReferrerInfo `json:"referrer,omitempty"`
}

// Eligibility is the outcome of a referral eligibility check.
type Eligibility struct {
	Eligible bool      `json:"eligible"`
	Referral *Referral `json:"referral,omitempty"`
	Message  string    `json:"message"`
}

// ReferralOverview backs GET /api/referrals/overview.
type ReferralOverview struct {
	User struct {
		Name                string `json:"name"`
		Email               string `json:"email"`
		ReferralCode        string `json:"referralCode"`
		Credits             int    `json:"credits"`
		TotalReferrals      int    `json:"totalReferrals"`
		SuccessfulReferrals int    `json:"successfulReferrals"`
	} `json:"user"`
	Stats struct {
		TotalReferrals     int    `json:"totalReferrals"`
		PendingReferrals   int    `json:"pendingReferrals"`
		ConvertedReferrals int    `json:"convertedReferrals"`
		TotalEarnedCredits int    `json:"totalEarnedCredits"`
		ConversionRate     string `json:"conversionRate"`
	} `json:"stats"`
	ReferralsMade []ReferralMade   `json:"referralsMade"`
	ReferredBy    *ReferredByEntry `json:"referredBy"`
	ShareLink     string           `json:"shareLink"`
	ShareText     string           `json:"shareText"`
}

// ReferralMade is a referral seen from the referrer's side.
type ReferralMade struct {
	ReferredUser   *ReferredUser  `json:"referredUser"`
	Status         ReferralStatus `json:"status"`
	CreditsAwarded bool           `json:"creditsAwarded"`
	CreatedAt      time.Time      `json:"createdAt"`
	ConvertedAt    *time.Time     `json:"convertedAt,omitempty"`
	ConversionType ConversionType `json:"conversionType"`
}

type ReferredUser struct {
	ID        primitive.ObjectID `json:"id"`
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	Credits   int                `json:"credits"`
	CreatedAt time.Time          `json:"createdAt"`
}

// ReferredByEntry is the referral seen from the referred side.
type ReferredByEntry struct {
	Referrer  *ReferrerInfo  `json:"referrer"`
	Status    ReferralStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ReferralReport backs the admin report.
type ReferralReport struct {
	Period struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	} `json:"period"`
	Summary struct {
		TotalReferrals      int    `json:"totalReferrals"`
		PendingReferrals    int    `json:"pendingReferrals"`
		ConvertedReferrals  int    `json:"convertedReferrals"`
		ExpiredReferrals    int    `json:"expiredReferrals"`
		ConversionRate      string `json:"conversionRate"`
		TotalCreditsAwarded int    `json:"totalCreditsAwarded"`
	} `json:"summary"`
	Referrals   []Referral `json:"referrals"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// ManualAwardResult is returned by the admin award route.
type ManualAwardResult struct {
	Referral Referral       `json:"referral"`
	Referrer AccountSummary `json:"referrer"`
	Referred AccountSummary `json:"referred"`
}
