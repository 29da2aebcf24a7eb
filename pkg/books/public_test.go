package books

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
)

func TestPublicSearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewService(db)

	linked := newBook("A-001")
	linked.Title = "Wings of Fire"
	require.NoError(t, svc.CreateBook(ctx, admin, linked))
	plain := newBook("A-002")
	plain.Title = "Fire and Ice"
	require.NoError(t, svc.CreateBook(ctx, admin, plain))
	other := newBook("A-003")
	require.NoError(t, svc.CreateBook(ctx, admin, other))
	issue(t, db, plain)

	now := time.Now().UTC()
	dgb := &models.DigitalBook{
		CreatedAt:    now,
		UpdatedAt:    now,
		Title:        "Wings of Fire",
		Author:       "Kalam",
		Filename:     "wings.epub",
		OriginalName: "wings.epub",
		FileFormat:   models.DigitalFormatEPUB,
		UploadedByID: admin.ID,
	}
	_, err := db.NewInsert().Model(dgb).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&models.BookDigitalLink{
		CreatedAt:     now,
		BookID:        linked.ID,
		DigitalBookID: dgb.ID,
		LinkType:      models.LinkTypeSameEdition,
	}).Exec(ctx)
	require.NoError(t, err)

	results, err := svc.PublicSearch(ctx, "fire")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Wings of Fire", results[0].Title)
	require.NotNil(t, results[0].DigitalBookID)
	assert.Equal(t, dgb.ID, *results[0].DigitalBookID)
	require.NotNil(t, results[0].DigitalBookFormat)
	assert.Equal(t, models.DigitalFormatEPUB, *results[0].DigitalBookFormat)

	assert.Equal(t, "Fire and Ice", results[1].Title)
	assert.True(t, results[1].IsIssued)
	assert.Nil(t, results[1].DigitalBookID)
	assert.Nil(t, results[1].DigitalBookFormat)
}

func TestPublicSearch_Limit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))

	for i := 0; i < publicSearchLimit+5; i++ {
		require.NoError(t, svc.CreateBook(ctx, admin, newBook(fmt.Sprintf("A-%03d", i))))
	}

	results, err := svc.PublicSearch(ctx, "Book")
	require.NoError(t, err)
	assert.Len(t, results, publicSearchLimit)
}

func TestPublicStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewService(db)

	for i, subject := range []string{"Physics", "physics", "History", ""} {
		b := newBook(fmt.Sprintf("S-%03d", i))
		if subject != "" {
			b.Subject = &subject
		}
		require.NoError(t, svc.CreateBook(ctx, admin, b))
		if i == 0 {
			issue(t, db, b)
		}
	}

	stats, err := svc.PublicStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalBooks)
	assert.Equal(t, 3, stats.AvailableBooks)
	assert.Equal(t, 2, stats.Subjects)
	assert.Zero(t, stats.DigitalBooks)
}

func TestHandlerPublicSearch(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	h := &handler{bookService: NewService(db)}
	require.NoError(t, h.bookService.CreateBook(context.Background(), admin, newBook("A-001")))

	c, rr := newTestContext(t, http.MethodGet, "/public/search?q=A-001", "")
	require.NoError(t, h.publicSearch(c))
	assert.Equal(t, http.StatusOK, rr.Code)

	var results []map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "A-001", results[0]["accession_number"])
	assert.NotContains(t, results[0], "storage_location")

	c, _ = newTestContext(t, http.MethodGet, "/public/search?q=", "")
	err := h.publicSearch(c)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation))
}
