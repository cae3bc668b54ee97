package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DefaultCommissionRate applies to codes created without an explicit rate and
// to every purchase record's commission snapshot.
var DefaultCommissionRate = decimal.RequireFromString("0.20")

const MinCodeLength = 3

// ReferralCode is the ledger entry for one influencer code, keyed by its
// uppercased form.
type ReferralCode struct {
	Code           string          `json:"code" gorm:"primaryKey;type:varchar(64)"`
	TotalSignups   int64           `json:"total_signups" gorm:"not null"`
	TotalPurchases int64           `json:"total_purchases" gorm:"not null"`
	TotalRevenue   decimal.Decimal `json:"total_revenue" gorm:"type:numeric(20,6);not null"`
	CommissionRate decimal.Decimal `json:"commission_rate" gorm:"type:numeric(5,4);not null"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null"`
	LastUsedAt     *time.Time      `json:"last_used_at"`
	LastPurchaseAt *time.Time      `json:"last_purchase_at"`
}

func (ReferralCode) TableName() string { return "referral_codes" }

// EffectiveCommissionRate treats an unset (zero) rate as the default.
func (r ReferralCode) EffectiveCommissionRate() decimal.Decimal {
	if r.CommissionRate.IsZero() {
		return DefaultCommissionRate
	}
	return r.CommissionRate
}

// PurchaseRecord is an append-only purchase attributed to a referral code.
type PurchaseRecord struct {
	ID         snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Code       string          `json:"code" gorm:"type:varchar(64);not null;index:idx_referral_purchases_code_created,priority:1"`
	UserID     string          `json:"user_id" gorm:"type:text;not null"`
	ProductID  string          `json:"product_id" gorm:"type:text;not null"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(20,6);not null"`
	Commission decimal.Decimal `json:"commission" gorm:"type:numeric(20,6);not null"`
	EventType  EventType       `json:"event_type" gorm:"type:varchar(32);not null"`
	EventID    *string         `json:"event_id,omitempty" gorm:"type:text"`
	RawEvent   datatypes.JSON  `json:"-"`
	CreatedAt  time.Time       `json:"created_at" gorm:"not null;index:idx_referral_purchases_code_created,priority:2,sort:desc"`
}

func (PurchaseRecord) TableName() string { return "referral_purchases" }

type EventType string

const (
	EventInitialPurchase     EventType = "INITIAL_PURCHASE"
	EventRenewal             EventType = "RENEWAL"
	EventProductChange       EventType = "PRODUCT_CHANGE"
	EventNonRenewingPurchase EventType = "NON_RENEWING_PURCHASE"
)

var purchaseEventTypes = map[EventType]struct{}{
	EventInitialPurchase:     {},
	EventRenewal:             {},
	EventProductChange:       {},
	EventNonRenewingPurchase: {},
}

// IsPurchase reports whether the event type moves the ledger.
func (t EventType) IsPurchase() bool {
	_, ok := purchaseEventTypes[t]
	return ok
}

// NormalizeCode returns the canonical ledger key for a code. Surrounding
// whitespace is part of the code.
func NormalizeCode(code string) string {
	return strings.ToUpper(code)
}
