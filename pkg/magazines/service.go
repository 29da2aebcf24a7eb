package magazines

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/books"
	"github.com/ticnexus/nexus/pkg/config"
	"github.com/ticnexus/nexus/pkg/database"
	"github.com/ticnexus/nexus/pkg/digital"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
	"github.com/ticnexus/nexus/pkg/roles"
	"github.com/uptrace/bun"
)

// recentIssuesLimit is how many issues the public listing shows per magazine.
const recentIssuesLimit = 5

type CreateVendorOptions struct {
	Name           string
	ContactDetails *string
}

type CreateMagazineOptions struct {
	Title     string
	Language  string
	Frequency *string
	Category  *string
	Cover     *CoverUpload
}

type ListMagazinesOptions struct {
	Search    *string
	Language  *string
	Frequency *string
	Category  *string

	activeOnly bool
}

type UpdateMagazineOptions struct {
	Columns []string
}

var updatableColumns = map[string]struct{}{
	"title":     {},
	"language":  {},
	"frequency": {},
	"category":  {},
	"is_active": {},
}

type LogIssueOptions struct {
	MagazineID       int
	VendorID         int
	IssueDescription string
	// ReceivedDate defaults to now.
	ReceivedDate *time.Time
	Remarks      *string
}

type Service struct {
	db     *bun.DB
	covers *digital.Vault
	now    func() time.Time
}

// NewService stores covers in a "covers" directory inside the vault.
func NewService(db *bun.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		covers: digital.NewVault(filepath.Join(cfg.VaultDir, "covers")),
		now:    time.Now,
	}
}

func (svc *Service) clock() time.Time {
	return svc.now().UTC().Truncate(time.Microsecond)
}

// CreateVendor adds a supplier. Names are unique regardless of case.
func (svc *Service) CreateVendor(ctx context.Context, actor *models.User, opts CreateVendorOptions) (*models.Vendor, error) {
	if err := roles.AuthorizeUser(actor, roles.AdminOnly, "create vendor"); err != nil {
		return nil, err
	}

	vendor := &models.Vendor{
		CreatedAt:      svc.clock(),
		Name:           opts.Name,
		ContactDetails: opts.ContactDetails,
	}

	exists, err := svc.db.NewSelect().
		Model((*models.Vendor)(nil)).
		Where("name = ? COLLATE NOCASE", opts.Name).
		Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if exists {
		return nil, duplicateVendor(opts.Name)
	}

	_, err = svc.db.NewInsert().Model(vendor).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return nil, duplicateVendor(opts.Name)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	logger.FromContext(ctx).Info("vendor created", logger.Data{"vendor_id": vendor.ID, "actor_id": actor.ID})
	return vendor, nil
}

func duplicateVendor(name string) error {
	return errcodes.Conflict("Vendor already exists", errcodes.Details{"name": name})
}

func (svc *Service) ListVendors(ctx context.Context) ([]*models.Vendor, error) {
	vendors := []*models.Vendor{}
	err := svc.db.NewSelect().
		Model(&vendors).
		OrderExpr("v.name COLLATE NOCASE ASC").
		Scan(ctx)
	return vendors, errors.WithStack(err)
}

// CreateMagazine adds a magazine to the subscription list, storing its cover
// first when one is given.
func (svc *Service) CreateMagazine(ctx context.Context, actor *models.User, opts CreateMagazineOptions) (*models.Magazine, error) {
	if err := roles.AuthorizeUser(actor, roles.LibrarianOrAdmin, "create magazine"); err != nil {
		return nil, err
	}

	now := svc.clock()
	magazine := &models.Magazine{
		CreatedAt: now,
		UpdatedAt: now,
		Title:     opts.Title,
		Language:  opts.Language,
		Frequency: opts.Frequency,
		Category:  opts.Category,
		IsActive:  true,
	}
	normalizeMagazine(magazine)

	if opts.Cover != nil {
		name, err := svc.saveCover(opts.Cover)
		if err != nil {
			return nil, err
		}
		magazine.CoverImage = &name
	}

	_, err := svc.db.NewInsert().
		Model(magazine).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if magazine.CoverImage != nil {
			svc.removeCover(ctx, *magazine.CoverImage)
		}
		return nil, errors.WithStack(err)
	}

	logger.FromContext(ctx).Info("magazine created", logger.Data{"magazine_id": magazine.ID, "actor_id": actor.ID})
	return magazine, nil
}

func normalizeMagazine(magazine *models.Magazine) {
	if magazine.Language == "" {
		magazine.Language = books.DefaultLanguage
	}
}

func (svc *Service) RetrieveMagazine(ctx context.Context, id int) (*models.Magazine, error) {
	magazine := &models.Magazine{}
	err := svc.db.NewSelect().
		Model(magazine).
		Where("m.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errcodes.NotFoundID("Magazine", id)
	}
	return magazine, errors.WithStack(err)
}

// ListMagazines returns magazines ordered by title. Search matches the title,
// language or category.
func (svc *Service) ListMagazines(ctx context.Context, opts ListMagazinesOptions) ([]*models.Magazine, error) {
	magazines := []*models.Magazine{}

	q := svc.db.NewSelect().
		Model(&magazines).
		OrderExpr("m.title COLLATE NOCASE ASC").
		Order("m.id ASC")

	if opts.Search != nil && *opts.Search != "" {
		pattern := "%" + *opts.Search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("m.title LIKE ?", pattern).
				WhereOr("m.language LIKE ?", pattern).
				WhereOr("m.category LIKE ?", pattern)
		})
	}
	if opts.Language != nil {
		q = q.Where("m.language = ?", *opts.Language)
	}
	if opts.Frequency != nil {
		q = q.Where("m.frequency = ?", *opts.Frequency)
	}
	if opts.Category != nil {
		q = q.Where("m.category = ?", *opts.Category)
	}
	if opts.activeOnly {
		q = q.Where("m.is_active = ?", true)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	return magazines, nil
}

// ListPublicMagazines returns the active magazines, each with its most
// recently received issues.
func (svc *Service) ListPublicMagazines(ctx context.Context) ([]*models.Magazine, error) {
	magazines, err := svc.ListMagazines(ctx, ListMagazinesOptions{activeOnly: true})
	if err != nil {
		return nil, err
	}
	for _, m := range magazines {
		if m.RecentIssues, err = svc.listIssues(ctx, m.ID, recentIssuesLimit); err != nil {
			return nil, err
		}
	}
	return magazines, nil
}

func (svc *Service) UpdateMagazine(ctx context.Context, actor *models.User, magazine *models.Magazine, opts UpdateMagazineOptions) error {
	if err := roles.AuthorizeUser(actor, roles.LibrarianOrAdmin, "update magazine"); err != nil {
		return err
	}
	if len(opts.Columns) == 0 {
		return nil
	}
	for _, col := range opts.Columns {
		if _, ok := updatableColumns[col]; !ok {
			return errcodes.ValidationError(fmt.Sprintf("%q can't be changed", col))
		}
	}

	normalizeMagazine(magazine)
	magazine.UpdatedAt = svc.clock()
	columns := append(opts.Columns, "updated_at")

	res, err := svc.db.NewUpdate().
		Model(magazine).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcodes.NotFoundID("Magazine", magazine.ID)
	}
	return nil
}

// SetCover replaces a magazine's cover. The previous image is removed once
// the new one is recorded.
func (svc *Service) SetCover(ctx context.Context, actor *models.User, id int, cover *CoverUpload) (*models.Magazine, error) {
	if err := roles.AuthorizeUser(actor, roles.LibrarianOrAdmin, "upload magazine cover"); err != nil {
		return nil, err
	}

	magazine, err := svc.RetrieveMagazine(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := magazine.CoverImage

	name, err := svc.saveCover(cover)
	if err != nil {
		return nil, err
	}
	magazine.CoverImage = &name
	magazine.UpdatedAt = svc.clock()

	_, err = svc.db.NewUpdate().
		Model(magazine).
		Column("cover_image", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		svc.removeCover(ctx, name)
		return nil, errors.WithStack(err)
	}

	if previous != nil {
		svc.removeCover(ctx, *previous)
	}
	logger.FromContext(ctx).Info("magazine cover updated", logger.Data{"magazine_id": id, "actor_id": actor.ID})
	return magazine, nil
}

func (svc *Service) saveCover(cover *CoverUpload) (string, error) {
	ext, err := coverExtension(cover)
	if err != nil {
		return "", err
	}
	name, _, err := svc.covers.Save(cover.Content, ext)
	return name, err
}

func (svc *Service) removeCover(ctx context.Context, name string) {
	if err := svc.covers.Remove(name); err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to remove magazine cover", logger.Data{"filename": name})
	}
}

// CoverPath returns where the cover of magazine is stored, or NotFound when it
// has none.
func (svc *Service) CoverPath(magazine *models.Magazine) (string, error) {
	if magazine.CoverImage == nil || !svc.covers.Exists(*magazine.CoverImage) {
		return "", errcodes.NotFound("Cover")
	}
	return svc.covers.Path(*magazine.CoverImage), nil
}

// LogIssue records the receipt of one issue of a magazine from a vendor.
func (svc *Service) LogIssue(ctx context.Context, actor *models.User, opts LogIssueOptions) (*models.MagazineIssue, error) {
	if err := roles.AuthorizeUser(actor, roles.LibrarianOrAdmin, "log magazine issue"); err != nil {
		return nil, err
	}

	now := svc.clock()
	received := now
	if opts.ReceivedDate != nil {
		received = opts.ReceivedDate.UTC().Truncate(time.Microsecond)
	}
	issue := &models.MagazineIssue{
		CreatedAt:        now,
		MagazineID:       opts.MagazineID,
		VendorID:         opts.VendorID,
		IssueDescription: opts.IssueDescription,
		ReceivedDate:     received,
		Remarks:          opts.Remarks,
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Magazine)(nil)).Where("id = ?", opts.MagazineID).Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFoundID("Magazine", opts.MagazineID)
		}

		issue.Vendor = &models.Vendor{}
		err = tx.NewSelect().Model(issue.Vendor).Where("v.id = ?", opts.VendorID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFoundID("Vendor", opts.VendorID)
		}
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewInsert().Model(issue).Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("magazine issue received", logger.Data{
		"issue_id":    issue.ID,
		"magazine_id": issue.MagazineID,
		"vendor_id":   issue.VendorID,
		"actor_id":    actor.ID,
	})
	return issue, nil
}

// ListIssues returns every received issue of a magazine, newest first.
func (svc *Service) ListIssues(ctx context.Context, magazineID int) ([]*models.MagazineIssue, error) {
	exists, err := svc.db.NewSelect().Model((*models.Magazine)(nil)).Where("id = ?", magazineID).Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !exists {
		return nil, errcodes.NotFoundID("Magazine", magazineID)
	}
	return svc.listIssues(ctx, magazineID, 0)
}

func (svc *Service) listIssues(ctx context.Context, magazineID, limit int) ([]*models.MagazineIssue, error) {
	issues := []*models.MagazineIssue{}
	q := svc.db.NewSelect().
		Model(&issues).
		Relation("Vendor").
		Where("mi.magazine_id = ?", magazineID).
		Order("mi.received_date DESC", "mi.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	return issues, nil
}

type Filters struct {
	Languages   []string `json:"languages"`
	Frequencies []string `json:"frequencies"`
	Categories  []string `json:"categories"`
}

// ListFilters returns the distinct values present for each list filter.
func (svc *Service) ListFilters(ctx context.Context) (*Filters, error) {
	filters := &Filters{}
	var err error
	if filters.Languages, err = svc.listDistinct(ctx, "language"); err != nil {
		return nil, err
	}
	if filters.Frequencies, err = svc.listDistinct(ctx, "frequency"); err != nil {
		return nil, err
	}
	if filters.Categories, err = svc.listDistinct(ctx, "category"); err != nil {
		return nil, err
	}
	return filters, nil
}

func (svc *Service) listDistinct(ctx context.Context, column string) ([]string, error) {
	values := []string{}
	err := svc.db.NewSelect().
		Model((*models.Magazine)(nil)).
		Distinct().
		ColumnExpr("?", bun.Ident(column)).
		Where("? IS NOT NULL", bun.Ident(column)).
		Where("? != ''", bun.Ident(column)).
		OrderExpr("? ASC", bun.Ident(column)).
		Scan(ctx, &values)
	return values, errors.WithStack(err)
}
