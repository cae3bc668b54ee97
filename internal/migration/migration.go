package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/gainsai/gains-backend/internal/referral/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres migrations. It is run
// explicitly by `gains migrate`.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	return withSchemaLock(ctx, db, func() error {
		sub, err := fs.Sub(embeddedMigrations, migrationsDir)
		if err != nil {
			return fmt.Errorf("open migrations: %w", err)
		}
		source, err := iofs.New(sub, ".")
		if err != nil {
			return fmt.Errorf("create migration source: %w", err)
		}
		driver, err := postgres.WithInstance(db, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("create migration driver: %w", err)
		}
		migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}

		if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
		return CheckSchema(ctx, db)
	})
}

// AutoMigrate creates the ledger tables from the gorm models. Used for sqlite
// and mysql, which the SQL migrations do not target.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(&domain.ReferralCode{}, &domain.PurchaseRecord{})
}
