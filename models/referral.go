// models/referral.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReferralStatus is the lifecycle state of a referral.
// pending -> converted | expired; both targets are terminal.
type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralConverted ReferralStatus = "converted"
	ReferralExpired   ReferralStatus = "expired"
)

// ConversionType records what triggered a conversion.
type ConversionType string

const (
	ConversionRegistration ConversionType = "registration"
	ConversionPurchase     ConversionType = "purchase"
	ConversionVerification ConversionType = "verification"
	ConversionManual       ConversionType = "manual"
)

const (
	// ReferralAwardCredits is granted to both the referrer and the referred
	// account on conversion.
	ReferralAwardCredits = 2

	// ReferralExpiryWindow is how long a referral may stay pending.
	ReferralExpiryWindow = 30 * 24 * time.Hour
)

// Referral links a referrer to the account that registered with its code.
// (referrer, referred) is unique, and so is referred on its own.
type Referral struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Referrer       primitive.ObjectID `json:"referrer" bson:"referrer"`
	Referred       primitive.ObjectID `json:"referred" bson:"referred"`
	Status         ReferralStatus     `json:"status" bson:"status"`
	CreditsAwarded bool               `json:"creditsAwarded" bson:"creditsAwarded"`
	CreditsAmount  int                `json:"creditsAmount" bson:"creditsAmount"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	ConvertedAt    *time.Time         `json:"convertedAt,omitempty" bson:"convertedAt,omitempty"`
	ConversionType ConversionType     `json:"conversionType" bson:"conversionType"`
}

// NewReferral builds a pending referral as created at registration time.
func NewReferral(referrer, referred primitive.ObjectID, now time.Time) *Referral {
	return &Referral{
		Referrer:       referrer,
		Referred:       referred,
		Status:         ReferralPending,
		CreditsAwarded: false,
		CreditsAmount:  ReferralAwardCredits,
		CreatedAt:      now,
		ConversionType: ConversionRegistration,
	}
}

// IsConvertible reports whether the referral can still award credits.
func (r *Referral) IsConvertible() bool {
	return r.Status == ReferralPending && !r.CreditsAwarded
}

// IsExpiredAt reports whether the referral has aged past the expiry window.
func (r *Referral) IsExpiredAt(now time.Time) bool {
	return now.Sub(r.CreatedAt) > ReferralExpiryWindow
}
