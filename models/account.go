// models/account.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User types carried in the JWT and on the account document.
const (
	UserTypeUser  = "user"
	UserTypeAdmin = "admin"
)

// Account is the root entity. Referrals and purchases point back to it by
// ID; nothing is embedded so the document stays bounded.
type Account struct {
	ID                  primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Email               string              `json:"email" bson:"email"`
	Password            string              `json:"-" bson:"password"`
	Name                string              `json:"name" bson:"name"`
	UserType            string              `json:"userType" bson:"userType"`
	ReferralCode        string              `json:"referralCode" bson:"referralCode"`
	Credits             int                 `json:"credits" bson:"credits"`
	ReferredBy          *primitive.ObjectID `json:"referredBy,omitempty" bson:"referredBy,omitempty"`
	TotalReferrals      int                 `json:"totalReferrals" bson:"totalReferrals"`
	SuccessfulReferrals int                 `json:"successfulReferrals" bson:"successfulReferrals"`
	PurchaseCount       int                 `json:"purchaseCount" bson:"purchaseCount"`
	IsVerified          bool                `json:"isVerified" bson:"isVerified"`
	CreatedAt           time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// IsAdmin reports whether the account may use the administrative routes.
func (a *Account) IsAdmin() bool {
	return a.UserType == UserTypeAdmin
}

// AccountSummary is the public projection returned next to purchases and on
// the auth endpoints.
type AccountSummary struct {
	ID           primitive.ObjectID `json:"id"`
	Email        string             `json:"email"`
	Name         string             `json:"name"`
	Credits      int                `json:"credits"`
	ReferralCode string             `json:"referralCode"`
	IsVerified   bool               `json:"isVerified"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// Summary projects the account onto its public fields.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.Name,
		Credits:      a.Credits,
		ReferralCode: a.ReferralCode,
		IsVerified:   a.IsVerified,
		CreatedAt:    a.CreatedAt,
	}
}
