package migration

import (
	"context"
	"errors"

	"github.com/gainsai/gains-backend/internal/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module migrates the schema and is used by `gains migrate`.
var Module = fx.Module("migrations",
	fx.Invoke(Migrate),
)

// GateModule guards `gains serve`: it checks or auto-migrates the schema at
// startup and provides the gate readiness probes use.
var GateModule = fx.Module("schema_gate",
	fx.Provide(NewSchemaGate),
	fx.Invoke(EnsureSchema),
)

// Migrate brings the ledger schema up to date for the configured driver.
func Migrate(handle *db.Handle, log *zap.Logger) error {
	conn, err := handle.Conn()
	if err != nil {
		return errors.New("DATABASE_URL is required to migrate")
	}
	if handle.Driver() != db.DriverPostgres {
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("ledger schema migrated")
	return nil
}

// EnsureSchema runs at serve time: postgres must already be migrated, other
// drivers are auto-migrated. An unconfigured store is left alone.
func EnsureSchema(handle *db.Handle, log *zap.Logger) error {
	conn, err := handle.Conn()
	if err != nil {
		return nil
	}
	if handle.Driver() != db.DriverPostgres {
		log.Info("auto-migrating ledger schema", zap.String("driver", handle.Driver()))
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := CheckSchema(context.Background(), sqlDB); err != nil {
		log.Error("ledger schema not ready, run `gains migrate`", zap.Error(err))
		return err
	}
	return nil
}
