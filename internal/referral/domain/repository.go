package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*ReferralCode, error)
	// FindByCodeForUpdate row-locks the code until the surrounding
	// transaction ends, on drivers that support row locks.
	FindByCodeForUpdate(ctx context.Context, db *gorm.DB, code string) (*ReferralCode, error)
	// Insert creates the code and reports false when it already exists.
	Insert(ctx context.Context, db *gorm.DB, code *ReferralCode) (bool, error)
	UpdatePurchaseTotals(ctx context.Context, db *gorm.DB, code *ReferralCode) error
	InsertPurchase(ctx context.Context, db *gorm.DB, record *PurchaseRecord) error
	ListPurchases(ctx context.Context, db *gorm.DB, code string, limit int) ([]PurchaseRecord, error)
}
