package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/database"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing.
	BcryptCost = 12
	// MinPasswordLength applies to every password set through the API.
	MinPasswordLength = 8
)

// JWTClaims identify the user only. The role is always loaded from the
// database so that a role change takes effect on the next request.
type JWTClaims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service handles authentication operations.
type Service struct {
	db          *bun.DB
	jwtSecret   []byte
	tokenExpiry time.Duration
}

// NewService creates a new auth service.
func NewService(db *bun.DB, jwtSecret string, tokenExpiry time.Duration) *Service {
	return &Service{
		db:          db,
		jwtSecret:   []byte(jwtSecret),
		tokenExpiry: tokenExpiry,
	}
}

// TokenExpiry is how long issued tokens stay valid.
func (s *Service) TokenExpiry() time.Duration {
	return s.tokenExpiry
}

// CountUsers returns the total number of users.
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

// Authenticate validates credentials and returns the user if valid. Inactive
// users are rejected with the same message as a bad password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Where("u.username = ? COLLATE NOCASE", username).
		Where("u.is_active = ?", true).
		Scan(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, errors.WithStack(err)
		}
		return nil, errcodes.Unauthorized("Invalid username or password")
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, errcodes.Unauthorized("Invalid username or password")
	}

	return user, nil
}

// GenerateToken creates a new JWT token for the user.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return signedToken, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// GetUserByID retrieves an active user by ID.
func (s *Service) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Where("u.id = ?", id).
		Where("u.is_active = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return user, nil
}

// CreateFirstAdminOptions are the fields accepted by the first-run setup.
type CreateFirstAdminOptions struct {
	Username           string
	Email              *string
	FullName           *string
	Password           string
	MustChangePassword bool
}

// CreateFirstAdmin creates the first admin user during setup. It fails once
// any user exists.
func (s *Service) CreateFirstAdmin(ctx context.Context, opts CreateFirstAdminOptions) (*models.User, error) {
	user := &models.User{}
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		count, err := tx.NewSelect().Model((*models.User)(nil)).Count(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if count > 0 {
			return errcodes.Forbidden("Setup has already been completed")
		}

		hash, err := HashPassword(opts.Password)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		*user = models.User{
			CreatedAt:          now,
			UpdatedAt:          now,
			Username:           opts.Username,
			Email:              opts.Email,
			FullName:           opts.FullName,
			PasswordHash:       hash,
			Role:               models.RoleAdmin,
			IsActive:           true,
			MustChangePassword: opts.MustChangePassword,
		}
		_, err = tx.NewInsert().Model(user).Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureBootstrapAdmin creates an admin from the configured credentials when
// the database has no active admin yet. The account must change its password
// on first login. It reports whether a user was created.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	log := logger.FromContext(ctx)

	if username == "" || password == "" {
		return false, nil
	}

	admins, err := s.db.NewSelect().
		Model((*models.User)(nil)).
		Where("u.role = ?", models.RoleAdmin).
		Where("u.is_active = ?", true).
		Count(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	if admins > 0 {
		return false, nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	user := &models.User{
		CreatedAt:          now,
		UpdatedAt:          now,
		Username:           username,
		PasswordHash:       hash,
		Role:               models.RoleAdmin,
		IsActive:           true,
		MustChangePassword: true,
	}
	_, err = s.db.NewInsert().Model(user).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return false, errors.Errorf("bootstrap admin %q already exists but isn't an active admin", username)
	}
	if err != nil {
		return false, errors.WithStack(err)
	}

	log.Info("created bootstrap admin", logger.Data{"username": username, "user_id": user.ID})
	return true, nil
}

// ChangePassword replaces a user's password after checking the current one
// and clears any pending password reset.
func (s *Service) ChangePassword(ctx context.Context, userID int, current, next string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return errcodes.NotFound("User")
	}
	if !CheckPassword(current, user.PasswordHash) {
		return errcodes.Unauthorized("Current password is incorrect")
	}
	if current == next {
		return errcodes.ValidationError(`"new_password" must differ from the current password`)
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	_, err = s.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", hash).
		Set("must_change_password = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", userID).
		Exec(ctx)
	return errors.WithStack(err)
}

// ResetPassword sets a new password for the named user and reactivates the
// account. It's meant for operators locked out of the app, so it skips the
// current-password check. mustChange forces another change on next login.
func (s *Service) ResetPassword(ctx context.Context, username, password string, mustChange bool) (*models.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{}
	err = s.db.NewSelect().
		Model(user).
		Where("u.username = ? COLLATE NOCASE", username).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errcodes.NotFound("User")
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	user.PasswordHash = hash
	user.IsActive = true
	user.MustChangePassword = mustChange
	user.UpdatedAt = time.Now().UTC()
	_, err = s.db.NewUpdate().
		Model(user).
		Column("password_hash", "is_active", "must_change_password", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	logger.FromContext(ctx).Info("password reset", logger.Data{"user_id": user.ID, "username": user.Username})
	return user, nil
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(strings.TrimSpace(password)) < MinPasswordLength {
		return "", errcodes.ValidationError(`"password" length must be greater than or equal to 8 characters`)
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(hashedPassword), nil
}

// CheckPassword compares a password with a hash.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
