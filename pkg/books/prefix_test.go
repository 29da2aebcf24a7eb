package books

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
)

func TestRewriteStoragePrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewService(db)

	legacy := newBook("ACC-1")
	legacy.StorageLocation = "TLC-R-3-S-2"
	current := newBook("ACC-2")
	odd := newBook("ACC-3")
	odd.StorageLocation = "TLC-R-X-S-1"
	for _, b := range []*models.Book{legacy, current, odd} {
		require.NoError(t, svc.CreateBook(ctx, admin, b))
	}

	t.Run("dry run", func(t *testing.T) {
		changes, err := svc.RewriteStoragePrefix(ctx, RewriteStoragePrefixOptions{From: "TLC", To: "TIC"})
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, "TLC-R-3-S-2", changes[0].From)
		assert.Equal(t, "TIC-R-3-S-2", changes[0].To)

		book, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &legacy.ID})
		require.NoError(t, err)
		assert.Equal(t, "TLC-R-3-S-2", book.StorageLocation)
	})

	t.Run("apply", func(t *testing.T) {
		changes, err := svc.RewriteStoragePrefix(ctx, RewriteStoragePrefixOptions{From: "TLC", To: "TIC", Apply: true})
		require.NoError(t, err)
		require.Len(t, changes, 1)

		book, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &legacy.ID})
		require.NoError(t, err)
		assert.Equal(t, "TIC-R-3-S-2", book.StorageLocation)

		book, err = svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &odd.ID})
		require.NoError(t, err)
		assert.Equal(t, "TLC-R-X-S-1", book.StorageLocation)

		changes, err = svc.RewriteStoragePrefix(ctx, RewriteStoragePrefixOptions{From: "TLC", To: "TIC", Apply: true})
		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("missing prefix", func(t *testing.T) {
		_, err := svc.RewriteStoragePrefix(ctx, RewriteStoragePrefixOptions{From: "", To: "TIC"})
		assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation))
	})
}
