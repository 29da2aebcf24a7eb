package books

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
	"github.com/uptrace/bun"
)

type PrefixChange struct {
	BookID          int    `json:"book_id"`
	AccessionNumber string `json:"accession_number"`
	From            string `json:"from"`
	To              string `json:"to"`
}

type RewriteStoragePrefixOptions struct {
	From  string
	To    string
	Apply bool
}

// RewriteStoragePrefix moves every shelf location under opts.From to opts.To.
// Without Apply it only reports what would change.
func (svc *Service) RewriteStoragePrefix(ctx context.Context, opts RewriteStoragePrefixOptions) ([]PrefixChange, error) {
	if opts.From == "" || opts.To == "" {
		return nil, errcodes.ValidationError("Both prefixes are required")
	}
	if opts.From == opts.To {
		return []PrefixChange{}, nil
	}

	oldRE := models.StorageLocationRegexp(opts.From)
	changes := []PrefixChange{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		books := []*models.Book{}
		err := tx.NewSelect().
			Model(&books).
			Where("b.storage_location LIKE ?", opts.From+"-R-%").
			Order("b.id ASC").
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		now := time.Now().UTC()
		for _, b := range books {
			// LIKE is case-insensitive in sqlite.
			if !oldRE.MatchString(b.StorageLocation) {
				continue
			}
			to := opts.To + strings.TrimPrefix(b.StorageLocation, opts.From)
			changes = append(changes, PrefixChange{
				BookID:          b.ID,
				AccessionNumber: b.AccessionNumber,
				From:            b.StorageLocation,
				To:              to,
			})
			if !opts.Apply {
				continue
			}
			_, err := tx.NewUpdate().
				Model((*models.Book)(nil)).
				Set("storage_location = ?", to).
				Set("updated_at = ?", now).
				Where("id = ?", b.ID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("storage prefix rewrite", logger.Data{
		"from":    opts.From,
		"to":      opts.To,
		"applied": opts.Apply,
		"count":   len(changes),
	})
	return changes, nil
}
