package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type queryLogHook struct {
	log logger.Logger
}

func (*queryLogHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	data := logger.Data{
		"duration_ms": time.Since(event.StartTime).Milliseconds(),
	}
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		h.log.Err(event.Err).Debug(event.Query, data)
		return
	}
	h.log.Debug(event.Query, data)
}

// New opens the SQLite database described by cfg. Every connection is set up
// with foreign keys on and the configured busy timeout, and statements that
// hit SQLITE_BUSY are retried with backoff.
func New(cfg *config.Config) (*bun.DB, error) {
	connector, err := openConnector(sqliteshim.Driver(), cfg.DatabaseFilePath)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.DatabaseBusyTimeout.Milliseconds()),
	}
	sqldb := sql.OpenDB(&retryConnector{
		connector:  connector,
		maxRetries: cfg.DatabaseMaxRetries,
		pragmas:    pragmas,
	})
	// A single writer connection keeps SQLite from handing out SQLITE_BUSY
	// under concurrent requests, and lets :memory: databases survive.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if cfg.DatabaseDebug {
		db.AddQueryHook(&queryLogHook{logger.NewWithLevel("debug")})
	}

	attempts := cfg.DatabaseConnectRetryCount
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(cfg.DatabaseConnectRetryDelay)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if cfg.DatabaseFilePath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			return nil, errors.Wrap(err, "failed to enable WAL mode")
		}
	}

	return db, nil
}

// openConnector uses the driver's own connector when it has one.
// modernc.org/sqlite, which sqliteshim picks on most platforms, doesn't.
func openConnector(drv driver.Driver, dsn string) (driver.Connector, error) {
	if dc, ok := drv.(driver.DriverContext); ok {
		connector, err := dc.OpenConnector(dsn)
		return connector, errors.WithStack(err)
	}
	return &driverConnector{driver: drv, dsn: dsn}, nil
}

// IsUniqueViolation reports whether err came from a UNIQUE constraint or
// index. Both mattn/go-sqlite3 and modernc.org/sqlite use the same message.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports whether err came from a FOREIGN KEY
// constraint.
func IsForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
