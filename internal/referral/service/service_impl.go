package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/gainsai/gains-backend/internal/clock"
	"github.com/gainsai/gains-backend/internal/config"
	"github.com/gainsai/gains-backend/internal/db"
	"github.com/gainsai/gains-backend/internal/referral/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *db.Handle
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Cfg   config.Config
}

type Service struct {
	db       *db.Handle
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	adminKey string
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("referral.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		adminKey: p.Cfg.Admin.Key,
	}
}

func (s *Service) GetStats(ctx context.Context, code string) (*domain.StatsResponse, error) {
	conn, err := s.db.Conn()
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByCode(ctx, conn, domain.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	// Read-time commission uses the code's current rate, unlike the flat
	// rate snapshotted on each purchase record.
	rate := item.EffectiveCommissionRate()
	return &domain.StatsResponse{
		Code:            item.Code,
		TotalSignups:    item.TotalSignups,
		TotalPurchases:  item.TotalPurchases,
		TotalRevenue:    item.TotalRevenue.InexactFloat64(),
		TotalCommission: item.TotalRevenue.Mul(rate).InexactFloat64(),
		CommissionRate:  rate.InexactFloat64(),
		CreatedAt:       item.CreatedAt,
		LastUsedAt:      item.LastUsedAt,
		LastPurchaseAt:  item.LastPurchaseAt,
	}, nil
}

func (s *Service) ListPurchases(ctx context.Context, req domain.ListPurchasesRequest) (*domain.ListPurchasesResponse, error) {
	conn, err := s.db.Conn()
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = domain.DefaultPurchasePageSize
	}

	items, err := s.repo.ListPurchases(ctx, conn, domain.NormalizeCode(req.Code), limit)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.PurchaseResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.PurchaseResponse{
			ID:         item.ID.String(),
			UserID:     item.UserID,
			ProductID:  item.ProductID,
			Amount:     item.Amount.InexactFloat64(),
			Commission: item.Commission.InexactFloat64(),
			EventType:  item.EventType,
			CreatedAt:  item.CreatedAt,
		})
	}
	return &domain.ListPurchasesResponse{Purchases: resp}, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.CreateResponse, error) {
	code := domain.NormalizeCode(req.Code)
	if utf8.RuneCountInString(code) < domain.MinCodeLength {
		return nil, domain.ErrInvalidCode
	}

	if s.adminKey == "" || subtle.ConstantTimeCompare([]byte(req.AdminKey), []byte(s.adminKey)) != 1 {
		return nil, domain.ErrUnauthorized
	}

	rate := domain.DefaultCommissionRate
	if req.CommissionRate != nil && !req.CommissionRate.IsZero() {
		rate = *req.CommissionRate
		if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, domain.ErrInvalidCommissionRate
		}
	}

	conn, err := s.db.Conn()
	if err != nil {
		return nil, err
	}

	item := &domain.ReferralCode{
		Code:           code,
		TotalRevenue:   decimal.Zero,
		CommissionRate: rate,
		CreatedAt:      s.clock.Now(ctx),
	}
	created, err := s.repo.Insert(ctx, conn, item)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, domain.ErrAlreadyExists
	}

	s.log.Info("referral code created",
		zap.String("code", code),
		zap.String("commission_rate", rate.String()))
	return &domain.CreateResponse{Success: true, Code: code}, nil
}

// ApplyPurchase records one purchase against a code, creating the code on
// first use. The counter update and the purchase record commit together.
func (s *Service) ApplyPurchase(ctx context.Context, p domain.Purchase) (*domain.PurchaseRecord, error) {
	conn, err := s.db.Conn()
	if err != nil {
		return nil, err
	}

	code := domain.NormalizeCode(p.Code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}
	if !p.EventType.IsPurchase() {
		return nil, domain.ErrInvalidEventType
	}

	price := p.Price
	if price.IsNegative() {
		s.log.Warn("negative purchase price recorded as zero",
			zap.String("code", code),
			zap.String("price", price.String()))
		price = decimal.Zero
	}

	now := s.clock.Now(ctx)
	record := &domain.PurchaseRecord{
		ID:         s.genID.Generate(),
		Code:       code,
		UserID:     p.UserID,
		ProductID:  p.ProductID,
		Amount:     price,
		Commission: price.Mul(domain.DefaultCommissionRate),
		EventType:  p.EventType,
		CreatedAt:  now,
	}
	if p.EventID != "" {
		eventID := p.EventID
		record.EventID = &eventID
	}
	if len(p.RawEvent) > 0 {
		record.RawEvent = datatypes.JSON(p.RawEvent)
	}

	err = conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByCodeForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}
		if item == nil {
			created, err := s.repo.Insert(ctx, tx, &domain.ReferralCode{
				Code:           code,
				TotalSignups:   0,
				TotalPurchases: 1,
				TotalRevenue:   price,
				CommissionRate: domain.DefaultCommissionRate,
				CreatedAt:      now,
				LastPurchaseAt: &now,
			})
			if err != nil {
				return err
			}
			if !created {
				// Lost the insert race to a concurrent delivery; its row is
				// committed now, so lock it and fall through to the update.
				if item, err = s.repo.FindByCodeForUpdate(ctx, tx, code); err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("referral code %s vanished during purchase", code)
				}
			}
		}
		if item != nil {
			item.TotalPurchases++
			item.TotalRevenue = item.TotalRevenue.Add(price)
			item.LastPurchaseAt = &now
			if err := s.repo.UpdatePurchaseTotals(ctx, tx, item); err != nil {
				return err
			}
		}
		return s.repo.InsertPurchase(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("referral purchase tracked",
		zap.String("code", code),
		zap.String("amount", price.String()),
		zap.String("event_type", string(p.EventType)),
		zap.String("purchase_id", record.ID.String()))
	return record, nil
}
