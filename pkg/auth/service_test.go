package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
)

func TestEnsureBootstrapAdmin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewService(db, "test-secret", time.Hour)

	created, err := svc.EnsureBootstrapAdmin(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, created, "no credentials configured")

	created, err = svc.EnsureBootstrapAdmin(ctx, "admin", "change-me-now")
	require.NoError(t, err)
	assert.True(t, created)

	user, err := svc.Authenticate(ctx, "admin", "change-me-now")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.True(t, user.MustChangePassword)

	created, err = svc.EnsureBootstrapAdmin(ctx, "admin2", "change-me-now")
	require.NoError(t, err)
	assert.False(t, created, "an admin already exists")
}

func TestValidateToken_Expired(t *testing.T) {
	t.Parallel()
	svc := NewService(nil, "test-secret", -time.Minute)

	token, err := svc.GenerateToken(&models.User{ID: 3, Username: "x"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}

func TestHashPassword_TooShort(t *testing.T) {
	t.Parallel()

	_, err := HashPassword("short")
	assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation))

	hash, err := HashPassword("long-enough")
	require.NoError(t, err)
	assert.True(t, CheckPassword("long-enough", hash))
	assert.False(t, CheckPassword("long-enougH", hash))
}

func TestResetPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewService(db, "test-secret", time.Hour)

	locked := createUser(t, db, "locked", "forgotten-pw", models.RoleAdmin, false)
	_, err := db.NewUpdate().Model(locked).Set("is_active = ?", false).WherePK().Exec(ctx)
	require.NoError(t, err)

	user, err := svc.ResetPassword(ctx, "locked", "brand-new-pw", true)
	require.NoError(t, err)
	assert.Equal(t, locked.ID, user.ID)

	user, err = svc.Authenticate(ctx, "locked", "brand-new-pw")
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.True(t, user.MustChangePassword)

	_, err = svc.Authenticate(ctx, "locked", "forgotten-pw")
	require.Error(t, err)

	_, err = svc.ResetPassword(ctx, "nobody", "brand-new-pw", false)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeNotFound))

	_, err = svc.ResetPassword(ctx, "locked", "short", false)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation))
}
