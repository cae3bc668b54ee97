package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/gainsai/gains-backend/internal/config"
	"github.com/glebarez/sqlite"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(Open),
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

var (
	ErrUnavailable       = errors.New("database_unavailable")
	ErrUnsupportedDriver = errors.New("unsupported_database_driver")
)

// Handle is the optional ledger store connection. A zero Handle is valid and
// reports ErrUnavailable from Conn; callers must check before touching data.
type Handle struct {
	conn   *gorm.DB
	driver string
}

func NewHandle(conn *gorm.DB, driver string) *Handle {
	return &Handle{conn: conn, driver: driver}
}

func (h *Handle) Conn() (*gorm.DB, error) {
	if h == nil || h.conn == nil {
		return nil, ErrUnavailable
	}
	return h.conn, nil
}

func (h *Handle) Available() bool {
	return h != nil && h.conn != nil
}

func (h *Handle) Driver() string {
	if h == nil {
		return ""
	}
	return h.driver
}

func (h *Handle) Ping(ctx context.Context) error {
	conn, err := h.Conn()
	if err != nil {
		return err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Cfg    config.Config
	Log    *zap.Logger
	Tracer trace.TracerProvider
}

func Open(p Params) (*Handle, error) {
	log := p.Log.Named("db")
	dbCfg := p.Cfg.Database
	if !dbCfg.Enabled() {
		log.Warn("DATABASE_URL not set, ledger endpoints will report database unavailable")
		return &Handle{}, nil
	}

	driver := dbCfg.Driver
	if driver == "postgresql" {
		driver = DriverPostgres
	}

	dialector, err := dialectorFor(driver, dbCfg.URL)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithTracerProvider(p.Tracer))); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          p.Cfg.AppName,
		RefreshInterval: 15,
	})); err != nil {
		return nil, fmt.Errorf("register metrics plugin: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	if driver == DriverSQLite {
		// sqlite serializes writers; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
		OnStop: func(context.Context) error {
			return sqlDB.Close()
		},
	})

	log.Info("database configured", zap.String("driver", driver))
	return NewHandle(conn, driver), nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
}
