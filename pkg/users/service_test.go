package users

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/migrations"
	"github.com/ticnexus/nexus/pkg/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newAdmin(t *testing.T, db *bun.DB) *models.User {
	t.Helper()
	now := time.Now().UTC()
	admin := &models.User{
		CreatedAt:    now,
		UpdatedAt:    now,
		Username:     "root",
		PasswordHash: "x",
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	_, err := db.NewInsert().Model(admin).Exec(context.Background())
	require.NoError(t, err)
	return admin
}

func strPtr(s string) *string { return &s }

func TestServiceCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	admin := newAdmin(t, db)

	user, err := svc.Create(ctx, admin, CreateUserOptions{
		Username:             "jdoe",
		Email:                strPtr("jdoe@example.com"),
		FullName:             strPtr("Jane Doe"),
		Password:             "password123",
		Role:                 models.RoleLibrarian,
		RequirePasswordReset: true,
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.True(t, user.IsActive)
	assert.True(t, user.MustChangePassword)
	assert.True(t, auth.CheckPassword("password123", user.PasswordHash))

	retrieved, err := svc.Retrieve(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleLibrarian, retrieved.Role)
	assert.Equal(t, "Jane Doe", retrieved.DisplayName())
}

func TestServiceCreate_Conflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	admin := newAdmin(t, db)

	_, err := svc.Create(ctx, admin, CreateUserOptions{
		Username: "jdoe",
		Email:    strPtr("jdoe@example.com"),
		Password: "password123",
		Role:     models.RoleViewer,
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, admin, CreateUserOptions{
		Username: "JDoe",
		Password: "password123",
		Role:     models.RoleViewer,
	})
	assert.True(t, errcodes.HasCode(err, errcodes.CodeConflict), "username is case-insensitive")

	_, err = svc.Create(ctx, admin, CreateUserOptions{
		Username: "other",
		Email:    strPtr("JDOE@example.com"),
		Password: "password123",
		Role:     models.RoleViewer,
	})
	assert.True(t, errcodes.HasCode(err, errcodes.CodeConflict))
}

func TestServiceCreate_InvalidRole(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db)
	admin := newAdmin(t, db)

	_, err := svc.Create(context.Background(), admin, CreateUserOptions{
		Username: "someone",
		Password: "password123",
		Role:     "superuser",
	})
	assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation))
}

func TestServiceCreate_RequiresAdmin(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db)

	librarian := &models.User{ID: 99, Role: models.RoleLibrarian, IsActive: true}
	_, err := svc.Create(context.Background(), librarian, CreateUserOptions{
		Username: "someone",
		Password: "password123",
		Role:     models.RoleViewer,
	})
	assert.True(t, errcodes.HasCode(err, errcodes.CodeForbidden))

	count, err := db.NewSelect().Model((*models.User)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestServiceUpdate_CannotDeactivateSelf(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	admin := newAdmin(t, db)

	self := *admin
	self.IsActive = false
	err := svc.Update(ctx, admin, &self, UpdateOptions{Columns: []string{"is_active"}})
	assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation))

	reloaded, err := svc.Retrieve(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsActive)
}

func TestServiceUpdate_RoleAndPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	admin := newAdmin(t, db)

	user, err := svc.Create(ctx, admin, CreateUserOptions{
		Username: "viewer1",
		Password: "password123",
		Role:     models.RoleViewer,
	})
	require.NoError(t, err)

	user.Role = models.RoleLibrarian
	err = svc.Update(ctx, admin, user, UpdateOptions{
		Columns:              []string{"role"},
		Password:             strPtr("another-password"),
		RequirePasswordReset: true,
	})
	require.NoError(t, err)

	reloaded, err := svc.Retrieve(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleLibrarian, reloaded.Role)
	assert.True(t, reloaded.MustChangePassword)
	assert.True(t, auth.CheckPassword("another-password", reloaded.PasswordHash))
}

func TestServiceDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	admin := newAdmin(t, db)

	user, err := svc.Create(ctx, admin, CreateUserOptions{
		Username: "temp",
		Password: "password123",
		Role:     models.RoleViewer,
	})
	require.NoError(t, err)

	err = svc.Delete(ctx, admin, admin.ID)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation), "cannot delete self")

	require.NoError(t, svc.Delete(ctx, admin, user.ID))

	_, err = svc.Retrieve(ctx, user.ID)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeNotFound))

	err = svc.Delete(ctx, admin, user.ID)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeNotFound))
}

func TestServiceDelete_WithHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	admin := newAdmin(t, db)

	user, err := svc.Create(ctx, admin, CreateUserOptions{
		Username: "borrower",
		Password: "password123",
		Role:     models.RoleViewer,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	book := &models.Book{
		CreatedAt:       now,
		UpdatedAt:       now,
		AccessionNumber: "ACC-1",
		Title:           "Title",
		Author:          "Author",
		StorageLocation: "TIC-R-1-S-1",
		IsIssued:        true,
	}
	_, err = db.NewInsert().Model(book).Exec(ctx)
	require.NoError(t, err)

	txn := &models.Transaction{
		CreatedAt: now,
		BookID:    book.ID,
		UserID:    user.ID,
		IssueDate: now,
		DueDate:   now.Add(models.DefaultLoanPeriod),
		Status:    models.TransactionStatusIssued,
	}
	_, err = db.NewInsert().Model(txn).Exec(ctx)
	require.NoError(t, err)

	err = svc.Delete(ctx, admin, user.ID)
	require.True(t, errcodes.HasCode(err, errcodes.CodeConflict))
	var e *errcodes.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 1, e.Details["open_transactions"])

	// Returned history still blocks a hard delete.
	_, err = db.Exec("UPDATE transactions SET status = 'Returned', return_date = ? WHERE id = ?", now, txn.ID)
	require.NoError(t, err)

	err = svc.Delete(ctx, admin, user.ID)
	require.True(t, errcodes.HasCode(err, errcodes.CodeConflict))
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Message, "deactivate")
}

func TestServiceList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	admin := newAdmin(t, db)

	for _, u := range []struct{ name, role string }{
		{"alice", models.RoleViewer},
		{"bob", models.RoleLibrarian},
		{"carol", models.RoleViewer},
	} {
		_, err := svc.Create(ctx, admin, CreateUserOptions{Username: u.name, Password: "password123", Role: u.role})
		require.NoError(t, err)
	}

	users, total, err := svc.List(ctx, ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, users, 4)

	users, total, err = svc.List(ctx, ListOptions{Limit: 10, Role: strPtr(models.RoleViewer)})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "alice", users[0].Username)

	users, _, err = svc.List(ctx, ListOptions{Limit: 10, Search: strPtr("CAR")})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "carol", users[0].Username)

	users, total, err = svc.List(ctx, ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
}
