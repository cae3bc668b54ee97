package repository

import (
	"context"

	"github.com/gainsai/gains-backend/internal/referral/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.ReferralCode, error) {
	return r.find(db.WithContext(ctx), code)
}

func (r *repo) FindByCodeForUpdate(ctx context.Context, db *gorm.DB, code string) (*domain.ReferralCode, error) {
	stmt := db.WithContext(ctx)
	// sqlite has no row locks; its writers are already serialized.
	if db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(stmt, code)
}

func (r *repo) find(stmt *gorm.DB, code string) (*domain.ReferralCode, error) {
	var item domain.ReferralCode
	err := stmt.
		Where("code = ?", code).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.Code == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, code *domain.ReferralCode) (bool, error) {
	if code == nil {
		return false, gorm.ErrInvalidData
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(code)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdatePurchaseTotals(ctx context.Context, db *gorm.DB, code *domain.ReferralCode) error {
	if code == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Model(&domain.ReferralCode{}).
		Where("code = ?", code.Code).
		Updates(map[string]any{
			"total_purchases":  code.TotalPurchases,
			"total_revenue":    code.TotalRevenue,
			"last_purchase_at": code.LastPurchaseAt,
		}).Error
}

func (r *repo) InsertPurchase(ctx context.Context, db *gorm.DB, record *domain.PurchaseRecord) error {
	if record == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) ListPurchases(ctx context.Context, db *gorm.DB, code string, limit int) ([]domain.PurchaseRecord, error) {
	items := make([]domain.PurchaseRecord, 0)
	stmt := db.WithContext(ctx).
		Where("code = ?", code).
		Order("created_at desc, id desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
