package database

import (
	"context"
	"database/sql/driver"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	retryBaseDelay = 50 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

// driverConnector adapts a plain driver.Driver for sql.OpenDB.
type driverConnector struct {
	driver driver.Driver
	dsn    string
}

func (dc *driverConnector) Connect(_ context.Context) (driver.Conn, error) {
	return dc.driver.Open(dc.dsn)
}

func (dc *driverConnector) Driver() driver.Driver {
	return dc.driver
}

// retryConnector hands out connections that have had pragmas applied and
// that retry statements failing with SQLITE_BUSY/SQLITE_LOCKED.
type retryConnector struct {
	connector  driver.Connector
	maxRetries int
	pragmas    []string
}

func (rc *retryConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := rc.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	rconn := &retryConn{conn: conn, maxRetries: rc.maxRetries}
	for _, pragma := range rc.pragmas {
		if _, err := rconn.ExecContext(ctx, pragma, nil); err != nil {
			_ = conn.Close()
			return nil, errors.Wrapf(err, "failed to run %q", pragma)
		}
	}
	return rconn, nil
}

func (rc *retryConnector) Driver() driver.Driver {
	return rc.connector.Driver()
}

// isBusyError matches the lock errors of both mattn/go-sqlite3 and
// modernc.org/sqlite, which only share the message text.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"database is locked",
		"database table is locked",
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"(5)",
		"(6)",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// backoff returns the delay before retry number attempt (0-based): doubling
// from retryBaseDelay with up to 25% jitter, capped at retryMaxDelay.
func backoff(attempt int) time.Duration {
	delay := retryBaseDelay << attempt
	if delay <= 0 || delay > retryMaxDelay {
		return retryMaxDelay
	}
	delay += time.Duration(rand.Int63n(int64(delay/4) + 1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isBusyError(err) || attempt >= maxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
}

type retryConn struct {
	conn       driver.Conn
	maxRetries int
}

func (c *retryConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *retryConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var stmt driver.Stmt
	var err error
	if p, ok := c.conn.(driver.ConnPrepareContext); ok {
		stmt, err = p.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.Prepare(query)
	}
	if err != nil {
		return nil, err
	}
	return &retryStmt{stmt: stmt, maxRetries: c.maxRetries}, nil
}

func (c *retryConn) Close() error {
	return c.conn.Close()
}

func (c *retryConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *retryConn) BeginTx(ctx context.Context, opts driver.TxOptions) (tx driver.Tx, err error) {
	err = retryWithBackoff(ctx, c.maxRetries, func() error {
		var innerErr error
		if b, ok := c.conn.(driver.ConnBeginTx); ok {
			tx, innerErr = b.BeginTx(ctx, opts)
		} else {
			tx, innerErr = c.conn.Begin() //nolint:staticcheck // fallback for drivers without BeginTx
		}
		return innerErr
	})
	return tx, err
}

func (c *retryConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (res driver.Result, err error) {
	e, ok := c.conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	err = retryWithBackoff(ctx, c.maxRetries, func() error {
		var innerErr error
		res, innerErr = e.ExecContext(ctx, query, args)
		return innerErr
	})
	return res, err
}

func (c *retryConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (rows driver.Rows, err error) {
	q, ok := c.conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	err = retryWithBackoff(ctx, c.maxRetries, func() error {
		var innerErr error
		rows, innerErr = q.QueryContext(ctx, query, args)
		return innerErr
	})
	return rows, err
}

func (c *retryConn) Ping(ctx context.Context) error {
	if p, ok := c.conn.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *retryConn) ResetSession(ctx context.Context) error {
	if r, ok := c.conn.(driver.SessionResetter); ok {
		return r.ResetSession(ctx)
	}
	return nil
}

func (c *retryConn) IsValid() bool {
	if v, ok := c.conn.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

type retryStmt struct {
	stmt       driver.Stmt
	maxRetries int
}

func (s *retryStmt) Close() error  { return s.stmt.Close() }
func (s *retryStmt) NumInput() int { return s.stmt.NumInput() }

func (s *retryStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

func (s *retryStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

func (s *retryStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (res driver.Result, err error) {
	err = retryWithBackoff(ctx, s.maxRetries, func() error {
		var innerErr error
		if e, ok := s.stmt.(driver.StmtExecContext); ok {
			res, innerErr = e.ExecContext(ctx, args)
		} else {
			res, innerErr = s.stmt.Exec(plainValues(args)) //nolint:staticcheck // fallback
		}
		return innerErr
	})
	return res, err
}

func (s *retryStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (rows driver.Rows, err error) {
	err = retryWithBackoff(ctx, s.maxRetries, func() error {
		var innerErr error
		if q, ok := s.stmt.(driver.StmtQueryContext); ok {
			rows, innerErr = q.QueryContext(ctx, args)
		} else {
			rows, innerErr = s.stmt.Query(plainValues(args)) //nolint:staticcheck // fallback
		}
		return innerErr
	})
	return rows, err
}

func namedValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}

func plainValues(args []driver.NamedValue) []driver.Value {
	values := make([]driver.Value, len(args))
	for i, arg := range args {
		values[i] = arg.Value
	}
	return values
}
