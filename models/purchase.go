// models/purchase.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Purchase is an append-only purchase event. ReferralCreditsAwarded is set
// only on the purchase that converted the owner's referral.
type Purchase struct {
	ID                     primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	User                   primitive.ObjectID `json:"user" bson:"user"`
	ProductID              string             `json:"productId" bson:"productId"`
	ProductName            string             `json:"productName" bson:"productName"`
	Amount                 float64            `json:"amount" bson:"amount"`
	ReferralCreditsAwarded bool               `json:"referralCreditsAwarded" bson:"referralCreditsAwarded"`
	CreatedAt              time.Time          `json:"createdAt" bson:"createdAt"`
}

// PurchaseRequest is the body of POST /api/purchases.
type PurchaseRequest struct {
	ProductID   string   `json:"productId" validate:"required"`
	ProductName string   `json:"productName" validate:"required"`
	Amount      *float64 `json:"amount" validate:"required,gte=0"`
}

// AwardSummary describes the credits moved by a conversion.
type AwardSummary struct {
	ReferrerID     primitive.ObjectID `json:"referrerId"`
	ReferrerEmail  string             `json:"referrerEmail"`
	CreditsAwarded int                `json:"creditsAwarded"`
}

// PurchaseResponse is the data block returned by POST /api/purchases.
// Referral is null when the purchase did not convert a referral.
type PurchaseResponse struct {
	Purchase Purchase       `json:"purchase"`
	User     AccountSummary `json:"user"`
	Referral *AwardSummary  `json:"referral"`
}
