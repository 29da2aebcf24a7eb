package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBusyError(t *testing.T) {
	t.Parallel()

	busy := []string{
		"database is locked",
		"database table is locked",
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"error (5): database busy",
		"error (6): database locked",
	}
	for _, msg := range busy {
		assert.True(t, isBusyError(errors.New(msg)), msg)
	}

	notBusy := []string{
		"connection refused",
		"constraint failed: UNIQUE constraint failed: transactions.book_id (2067)",
		"FOREIGN KEY constraint failed",
	}
	for _, msg := range notBusy {
		assert.False(t, isBusyError(errors.New(msg)), msg)
	}
	assert.False(t, isBusyError(nil))
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	for attempt := 0; attempt < 10; attempt++ {
		d := backoff(attempt)
		assert.GreaterOrEqual(t, d, retryBaseDelay)
		assert.LessOrEqual(t, d, retryMaxDelay)
	}
	assert.Equal(t, retryMaxDelay, backoff(40))
}

func TestRetryWithBackoff(t *testing.T) {
	t.Parallel()

	t.Run("succeeds on first attempt", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := retryWithBackoff(context.Background(), 5, func() error {
			attempts++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("retries busy errors until success", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := retryWithBackoff(context.Background(), 5, func() error {
			attempts++
			if attempts < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("constraint errors are not retried", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := retryWithBackoff(context.Background(), 5, func() error {
			attempts++
			return errors.New("UNIQUE constraint failed: books.accession_number")
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := retryWithBackoff(context.Background(), 2, func() error {
			attempts++
			return errors.New("SQLITE_BUSY")
		})
		require.Error(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		attempts := 0
		err := retryWithBackoff(ctx, 20, func() error {
			attempts++
			return errors.New("database is locked")
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, attempts, 20)
	})
}
