package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gainsai/gains-backend/internal/clock"
	"github.com/gainsai/gains-backend/internal/config"
	"github.com/gainsai/gains-backend/internal/db"
	"github.com/gainsai/gains-backend/internal/referral/domain"
	"github.com/gainsai/gains-backend/internal/referral/repository"
	"github.com/gainsai/gains-backend/internal/referral/service"
	"github.com/gainsai/gains-backend/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const adminKey = "admin-secret"

type fixture struct {
	svc   domain.Service
	repo  domain.Repository
	db    *db.Handle
	clock *clock.Manual
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	handle := testutil.NewLedgerDB(t)
	clk := clock.NewManual(testutil.Epoch)
	repo := repository.Provide()
	svc := service.New(service.Params{
		DB:    handle,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clk,
		Repo:  repo,
		Cfg:   config.Config{Admin: config.AdminConfig{Key: adminKey}},
	})
	return fixture{svc: svc, repo: repo, db: handle, clock: clk}
}

func (f fixture) stored(t *testing.T, code string) *domain.ReferralCode {
	t.Helper()
	conn, err := f.db.Conn()
	require.NoError(t, err)
	item, err := f.repo.FindByCode(context.Background(), conn, code)
	require.NoError(t, err)
	return item
}

func purchase(code string, price string) domain.Purchase {
	return domain.Purchase{
		Code:      code,
		UserID:    "user-1",
		ProductID: "gains_monthly",
		Price:     decimal.RequireFromString(price),
		EventType: domain.EventInitialPurchase,
	}
}

func TestApplyPurchaseCreatesUnknownCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.ApplyPurchase(ctx, purchase("summer10", "0"))
	require.NoError(t, err)
	assert.Equal(t, "SUMMER10", record.Code)

	item := f.stored(t, "SUMMER10")
	require.NotNil(t, item)
	assert.Equal(t, int64(1), item.TotalPurchases)
	assert.Equal(t, int64(0), item.TotalSignups)
	assert.True(t, item.TotalRevenue.IsZero())
	assert.True(t, item.CommissionRate.Equal(domain.DefaultCommissionRate))
	require.NotNil(t, item.LastPurchaseAt)
	assert.True(t, item.LastPurchaseAt.Equal(testutil.Epoch))
	assert.True(t, item.CreatedAt.Equal(testutil.Epoch))
}

func TestApplyPurchaseIncrementsExistingCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rate := decimal.RequireFromString("0.35")
	_, err := f.svc.Create(ctx, domain.CreateRequest{Code: "fit30", AdminKey: adminKey, CommissionRate: &rate})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	record, err := f.svc.ApplyPurchase(ctx, purchase("FIT30", "9.99"))
	require.NoError(t, err)

	item := f.stored(t, "FIT30")
	assert.Equal(t, int64(1), item.TotalPurchases)
	assert.Equal(t, "9.99", item.TotalRevenue.String())
	assert.True(t, item.CommissionRate.Equal(rate), "rate must be untouched")
	assert.True(t, item.CreatedAt.Equal(testutil.Epoch))
	require.NotNil(t, item.LastPurchaseAt)
	assert.True(t, item.LastPurchaseAt.Equal(testutil.Epoch.Add(time.Hour)))

	// per-purchase commission is always the flat default rate
	assert.Equal(t, "1.998", record.Commission.String())

	_, err = f.svc.ApplyPurchase(ctx, purchase("fit30", "20"))
	require.NoError(t, err)
	item = f.stored(t, "FIT30")
	assert.Equal(t, int64(2), item.TotalPurchases)
	assert.Equal(t, "29.99", item.TotalRevenue.String())
}

func TestApplyPurchaseConcurrentDeliveriesDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const deliveries = 8
	var wg sync.WaitGroup
	errs := make(chan error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ApplyPurchase(ctx, purchase("race", "1.5"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	item := f.stored(t, "RACE")
	assert.Equal(t, int64(deliveries), item.TotalPurchases)
	assert.Equal(t, "12", item.TotalRevenue.String())

	resp, err := f.svc.ListPurchases(ctx, domain.ListPurchasesRequest{Code: "race"})
	require.NoError(t, err)
	assert.Len(t, resp.Purchases, deliveries)
}

// rivalRepository commits a competing row for the code right after the first
// locked read reports it missing, as a concurrent delivery would.
type rivalRepository struct {
	domain.Repository
	rival   *domain.ReferralCode
	reads   int
	inserts []bool
}

func (r *rivalRepository) FindByCodeForUpdate(ctx context.Context, db *gorm.DB, code string) (*domain.ReferralCode, error) {
	r.reads++
	if r.reads == 1 {
		if _, err := r.Repository.Insert(ctx, db, r.rival); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return r.Repository.FindByCodeForUpdate(ctx, db, code)
}

func (r *rivalRepository) Insert(ctx context.Context, db *gorm.DB, item *domain.ReferralCode) (bool, error) {
	created, err := r.Repository.Insert(ctx, db, item)
	r.inserts = append(r.inserts, created)
	return created, err
}

func TestApplyPurchaseAfterLosingInsertRace(t *testing.T) {
	handle := testutil.NewLedgerDB(t)
	now := testutil.Epoch
	repo := &rivalRepository{
		Repository: repository.Provide(),
		rival: &domain.ReferralCode{
			Code:           "RIVAL",
			TotalPurchases: 1,
			TotalRevenue:   decimal.NewFromInt(1),
			CommissionRate: domain.DefaultCommissionRate,
			CreatedAt:      now,
			LastPurchaseAt: &now,
		},
	}
	svc := service.New(service.Params{
		DB:    handle,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clock.NewManual(now),
		Repo:  repo,
		Cfg:   config.Config{},
	})

	_, err := svc.ApplyPurchase(context.Background(), purchase("rival", "1"))
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, repo.inserts)
	assert.Equal(t, 2, repo.reads)

	conn, err := handle.Conn()
	require.NoError(t, err)
	item, err := repo.FindByCode(context.Background(), conn, "RIVAL")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, int64(2), item.TotalPurchases)
	assert.Equal(t, "2", item.TotalRevenue.String())

	resp, err := svc.ListPurchases(context.Background(), domain.ListPurchasesRequest{Code: "rival"})
	require.NoError(t, err)
	assert.Len(t, resp.Purchases, 1)
}

func TestApplyPurchaseRejectsNonPurchaseEvents(t *testing.T) {
	f := newFixture(t)
	p := purchase("code", "1")
	p.EventType = "CANCELLATION"

	_, err := f.svc.ApplyPurchase(context.Background(), p)
	assert.ErrorIs(t, err, domain.ErrInvalidEventType)
	assert.Nil(t, f.stored(t, "CODE"))
}

func TestGetStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetStats(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.ApplyPurchase(ctx, purchase("summer10", "9.99"))
	require.NoError(t, err)

	stats, err := f.svc.GetStats(ctx, "Summer10")
	require.NoError(t, err)
	assert.Equal(t, "SUMMER10", stats.Code)
	assert.Equal(t, int64(1), stats.TotalPurchases)
	assert.Equal(t, 9.99, stats.TotalRevenue)
	assert.Equal(t, 0.2, stats.CommissionRate)
	assert.Equal(t, 1.998, stats.TotalCommission)
	assert.Nil(t, stats.LastUsedAt)
	require.NotNil(t, stats.LastPurchaseAt)
}

func TestGetStatsUsesCurrentRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rate := decimal.RequireFromString("0.5")
	_, err := f.svc.Create(ctx, domain.CreateRequest{Code: "half", AdminKey: adminKey, CommissionRate: &rate})
	require.NoError(t, err)
	_, err = f.svc.ApplyPurchase(ctx, purchase("half", "10"))
	require.NoError(t, err)

	stats, err := f.svc.GetStats(ctx, "half")
	require.NoError(t, err)
	assert.Equal(t, 5.0, stats.TotalCommission)

	list, err := f.svc.ListPurchases(ctx, domain.ListPurchasesRequest{Code: "half"})
	require.NoError(t, err)
	require.Len(t, list.Purchases, 1)
	assert.Equal(t, 2.0, list.Purchases[0].Commission)
}

func TestListPurchasesNewestFirstWithLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, price := range []string{"1", "2", "3"} {
		_, err := f.svc.ApplyPurchase(ctx, purchase("order", price))
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	all, err := f.svc.ListPurchases(ctx, domain.ListPurchasesRequest{Code: "order"})
	require.NoError(t, err)
	require.Len(t, all.Purchases, 3)
	assert.Equal(t, 3.0, all.Purchases[0].Amount)
	assert.Equal(t, 2.0, all.Purchases[1].Amount)
	assert.Equal(t, 1.0, all.Purchases[2].Amount)

	one, err := f.svc.ListPurchases(ctx, domain.ListPurchasesRequest{Code: "ORDER", Limit: 1})
	require.NoError(t, err)
	require.Len(t, one.Purchases, 1)
	assert.Equal(t, 3.0, one.Purchases[0].Amount)

	none, err := f.svc.ListPurchases(ctx, domain.ListPurchasesRequest{Code: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, none.Purchases)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("short code fails regardless of key", func(t *testing.T) {
		for _, key := range []string{adminKey, "wrong", ""} {
			_, err := f.svc.Create(ctx, domain.CreateRequest{Code: "ab", AdminKey: key})
			assert.ErrorIs(t, err, domain.ErrInvalidCode)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		_, err := f.svc.Create(ctx, domain.CreateRequest{Code: "valid", AdminKey: "nope"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.Nil(t, f.stored(t, "VALID"))
	})

	t.Run("invalid rate", func(t *testing.T) {
		rate := decimal.RequireFromString("1.5")
		_, err := f.svc.Create(ctx, domain.CreateRequest{Code: "rate", AdminKey: adminKey, CommissionRate: &rate})
		assert.ErrorIs(t, err, domain.ErrInvalidCommissionRate)
	})

	t.Run("default rate and zero counters", func(t *testing.T) {
		resp, err := f.svc.Create(ctx, domain.CreateRequest{Code: "new1", AdminKey: adminKey})
		require.NoError(t, err)
		assert.Equal(t, &domain.CreateResponse{Success: true, Code: "NEW1"}, resp)

		item := f.stored(t, "NEW1")
		require.NotNil(t, item)
		assert.Zero(t, item.TotalPurchases)
		assert.Zero(t, item.TotalSignups)
		assert.True(t, item.TotalRevenue.IsZero())
		assert.True(t, item.CommissionRate.Equal(domain.DefaultCommissionRate))
		assert.Nil(t, item.LastUsedAt)
		assert.Nil(t, item.LastPurchaseAt)
	})

	t.Run("duplicate is a conflict case-insensitively", func(t *testing.T) {
		_, err := f.svc.Create(ctx, domain.CreateRequest{Code: "new1", AdminKey: adminKey})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})
}

func TestCreateKeepsSurroundingWhitespace(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Create(context.Background(), domain.CreateRequest{Code: " ab ", AdminKey: adminKey})
	require.NoError(t, err)
	assert.Equal(t, " AB ", resp.Code)
	assert.NotNil(t, f.stored(t, " AB "))
	assert.Nil(t, f.stored(t, "AB"))
}

func TestOperationsFailFastWithoutDatabase(t *testing.T) {
	svc := service.New(service.Params{
		DB:    &db.Handle{},
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clock.New(),
		Repo:  repository.Provide(),
		Cfg:   config.Config{Admin: config.AdminConfig{Key: adminKey}},
	})
	ctx := context.Background()

	_, err := svc.GetStats(ctx, "code")
	assert.ErrorIs(t, err, db.ErrUnavailable)
	_, err = svc.ListPurchases(ctx, domain.ListPurchasesRequest{Code: "code"})
	assert.ErrorIs(t, err, db.ErrUnavailable)
	_, err = svc.Create(ctx, domain.CreateRequest{Code: "code", AdminKey: adminKey})
	assert.ErrorIs(t, err, db.ErrUnavailable)
	_, err = svc.ApplyPurchase(ctx, purchase("code", "1"))
	assert.ErrorIs(t, err, db.ErrUnavailable)
}
