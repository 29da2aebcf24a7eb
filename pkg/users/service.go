package users

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/database"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
	"github.com/ticnexus/nexus/pkg/roles"
	"github.com/uptrace/bun"
)

// Service handles user operations.
type Service struct {
	db *bun.DB
}

// NewService creates a new users service.
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// CreateUserOptions contains options for creating a user.
type CreateUserOptions struct {
	Username             string
	Email                *string
	FullName             *string
	Password             string
	Role                 string
	RequirePasswordReset bool
}

// Create creates a new user.
func (s *Service) Create(ctx context.Context, actor *models.User, opts CreateUserOptions) (*models.User, error) {
	if err := roles.AuthorizeUser(actor, roles.AdminOnly, "create user"); err != nil {
		return nil, err
	}
	if !models.IsValidRole(opts.Role) {
		return nil, errcodes.ValidationError(`"role" must be one of admin, librarian, viewer`)
	}
	if opts.Email != nil && *opts.Email == "" {
		opts.Email = nil
	}

	hashedPassword, err := auth.HashPassword(opts.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{}
	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.User)(nil)).
			Where("username = ? COLLATE NOCASE", opts.Username).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if exists {
			return errcodes.Conflict("Username already exists", errcodes.Details{"username": opts.Username})
		}

		if opts.Email != nil {
			if err := checkEmailAvailable(ctx, tx, *opts.Email, 0); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		*user = models.User{
			CreatedAt:          now,
			UpdatedAt:          now,
			Username:           opts.Username,
			Email:              opts.Email,
			FullName:           opts.FullName,
			PasswordHash:       hashedPassword,
			Role:               opts.Role,
			IsActive:           true,
			MustChangePassword: opts.RequirePasswordReset,
		}
		_, err = tx.NewInsert().Model(user).Exec(ctx)
		if database.IsUniqueViolation(err) {
			return errcodes.Conflict("Username or email already exists", errcodes.Details{"username": opts.Username})
		}
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("user created", logger.Data{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
		"actor_id": actor.ID,
	})
	return user, nil
}

func checkEmailAvailable(ctx context.Context, db bun.IDB, email string, exceptUserID int) error {
	q := db.NewSelect().
		Model((*models.User)(nil)).
		Where("email = ? COLLATE NOCASE", email)
	if exceptUserID != 0 {
		q = q.Where("id != ?", exceptUserID)
	}
	exists, err := q.Exists(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if exists {
		return errcodes.Conflict("Email already exists", errcodes.Details{"email": email})
	}
	return nil
}

// Retrieve gets a user by ID.
func (s *Service) Retrieve(ctx context.Context, id int) (*models.User, error) {
	return retrieve(ctx, s.db, id)
}

func retrieve(ctx context.Context, db bun.IDB, id int) (*models.User, error) {
	user := &models.User{}
	err := db.NewSelect().
		Model(user).
		Where("u.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errcodes.NotFoundID("User", id)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return user, nil
}

// ListOptions contains options for listing users.
type ListOptions struct {
	Limit    int
	Offset   int
	Role     *string
	IsActive *bool
	Search   *string
}

// List returns a paginated list of users.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*models.User, int, error) {
	users := []*models.User{}

	query := s.db.NewSelect().
		Model(&users).
		Order("u.id ASC")

	if opts.Role != nil {
		query = query.Where("u.role = ?", *opts.Role)
	}
	if opts.IsActive != nil {
		query = query.Where("u.is_active = ?", *opts.IsActive)
	}
	if opts.Search != nil && *opts.Search != "" {
		pattern := "%" + *opts.Search + "%"
		query = query.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("u.username LIKE ?", pattern).
				WhereOr("u.full_name LIKE ?", pattern).
				WhereOr("u.email LIKE ?", pattern)
		})
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	total, err := query.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return users, total, nil
}

// UpdateOptions contains options for updating a user. Columns names the
// fields of the user that changed.
type UpdateOptions struct {
	Columns []string
	// Password, when set, is hashed and stored alongside the other columns.
	Password             *string
	RequirePasswordReset bool
}

// Update updates a user.
func (s *Service) Update(ctx context.Context, actor *models.User, user *models.User, opts UpdateOptions) error {
	if err := roles.AuthorizeUser(actor, roles.AdminOnly, "update user"); err != nil {
		return err
	}
	if actor.ID == user.ID {
		for _, col := range opts.Columns {
			if col == "is_active" && !user.IsActive {
				return errcodes.ValidationError("You cannot deactivate your own account")
			}
		}
	}

	if opts.Password != nil {
		hash, err := auth.HashPassword(*opts.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		user.MustChangePassword = opts.RequirePasswordReset
		opts.Columns = append(opts.Columns, "password_hash", "must_change_password")
	}

	if len(opts.Columns) == 0 {
		return nil
	}

	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, col := range opts.Columns {
			if col == "email" && user.Email != nil {
				if err := checkEmailAvailable(ctx, tx, *user.Email, user.ID); err != nil {
					return err
				}
			}
		}

		user.UpdatedAt = time.Now().UTC()
		columns := append(opts.Columns, "updated_at")
		res, err := tx.NewUpdate().
			Model(user).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errcodes.NotFoundID("User", user.ID)
		}

		logger.FromContext(ctx).Info("user updated", logger.Data{
			"user_id":  user.ID,
			"columns":  opts.Columns,
			"actor_id": actor.ID,
		})
		return nil
	})
}

// Delete permanently removes a user. Users with any circulation history or
// uploads can only be deactivated, so their records stay attributable.
func (s *Service) Delete(ctx context.Context, actor *models.User, id int) error {
	if err := roles.AuthorizeUser(actor, roles.AdminOnly, "delete user"); err != nil {
		return err
	}
	if actor.ID == id {
		return errcodes.ValidationError("You cannot delete your own account")
	}

	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := retrieve(ctx, tx, id); err != nil {
			return err
		}

		open, err := tx.NewSelect().
			Model((*models.Transaction)(nil)).
			Where("t.user_id = ?", id).
			Where("t.status = ?", models.TransactionStatusIssued).
			Count(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if open > 0 {
			return errcodes.Conflict("User has books that haven't been returned", errcodes.Details{
				"user_id":           id,
				"open_transactions": open,
			})
		}

		_, err = tx.NewDelete().
			Model((*models.User)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if database.IsForeignKeyViolation(err) {
			return errcodes.Conflict("User has circulation history; deactivate the account instead", errcodes.Details{
				"user_id": id,
			})
		}
		if err != nil {
			return errors.WithStack(err)
		}

		logger.FromContext(ctx).Info("user deleted", logger.Data{"user_id": id, "actor_id": actor.ID})
		return nil
	})
}
