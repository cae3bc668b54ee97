package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/gainsai/gains-backend/internal/db"
	"github.com/gainsai/gains-backend/internal/referral/domain"
)

var ErrSchemaTablesMissing = errors.New("ledger tables missing")

// SchemaGate reports whether the ledger schema is usable.
type SchemaGate interface {
	MustBeActive(ctx context.Context) error
}

type schemaGate struct {
	handle *db.Handle
}

func NewSchemaGate(handle *db.Handle) SchemaGate {
	return &schemaGate{handle: handle}
}

func (g *schemaGate) MustBeActive(ctx context.Context) error {
	conn, err := g.handle.Conn()
	if err != nil {
		return err
	}

	if g.handle.Driver() == db.DriverPostgres {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return CheckSchema(ctx, sqlDB)
	}

	migrator := conn.WithContext(ctx).Migrator()
	for _, model := range []any{&domain.ReferralCode{}, &domain.PurchaseRecord{}} {
		if !migrator.HasTable(model) {
			return fmt.Errorf("%w: %T", ErrSchemaTablesMissing, model)
		}
	}
	return nil
}
