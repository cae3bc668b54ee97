package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	GetStats(ctx context.Context, code string) (*StatsResponse, error)
	ListPurchases(ctx context.Context, req ListPurchasesRequest) (*ListPurchasesResponse, error)
	Create(ctx context.Context, req CreateRequest) (*CreateResponse, error)
	ApplyPurchase(ctx context.Context, p Purchase) (*PurchaseRecord, error)
}

const DefaultPurchasePageSize = 50

type ListPurchasesRequest struct {
	Code  string
	Limit int
}

type ListPurchasesResponse struct {
	Purchases []PurchaseResponse `json:"purchases"`
}

type PurchaseResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ProductID  string    `json:"product_id"`
	Amount     float64   `json:"amount"`
	Commission float64   `json:"commission"`
	EventType  EventType `json:"event_type"`
	CreatedAt  time.Time `json:"created_at"`
}

type StatsResponse struct {
	Code            string     `json:"code"`
	TotalSignups    int64      `json:"total_signups"`
	TotalPurchases  int64      `json:"total_purchases"`
	TotalRevenue    float64    `json:"total_revenue"`
	TotalCommission float64    `json:"total_commission"`
	CommissionRate  float64    `json:"commission_rate"`
	CreatedAt       time.Time  `json:"created_at"`
	LastUsedAt      *time.Time `json:"last_used_at"`
	LastPurchaseAt  *time.Time `json:"last_purchase_at"`
}

type CreateRequest struct {
	Code           string
	AdminKey       string
	CommissionRate *decimal.Decimal
}

type CreateResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
}

// Purchase is a billing event already attributed to a referral code.
type Purchase struct {
	Code      string
	UserID    string
	ProductID string
	Price     decimal.Decimal
	EventType EventType
	EventID   string
	RawEvent  []byte
}

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidCode           = errors.New("code must be at least 3 characters")
	ErrInvalidCommissionRate = errors.New("commission rate must be within (0, 1]")
	ErrInvalidEventType      = errors.New("invalid_event_type")
	ErrNotFound              = errors.New("code not found")
	ErrAlreadyExists         = errors.New("code already exists")
)
