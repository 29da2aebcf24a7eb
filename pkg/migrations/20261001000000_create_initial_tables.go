package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				username TEXT NOT NULL,
				email TEXT,
				full_name TEXT,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'viewer' CHECK (role IN ('admin', 'librarian', 'viewer')),
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				must_change_password BOOLEAN NOT NULL DEFAULT FALSE
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_users_username ON users (username COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_users_email ON users (email COLLATE NOCASE) WHERE email IS NOT NULL`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				accession_number TEXT NOT NULL,
				title TEXT NOT NULL,
				author TEXT NOT NULL,
				publisher_info TEXT,
				subject TEXT,
				class_number TEXT,
				year INTEGER,
				isbn TEXT,
				language TEXT,
				storage_location TEXT NOT NULL,
				is_issued BOOLEAN NOT NULL DEFAULT FALSE
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_books_accession_number ON books (accession_number)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_books_subject ON books (subject)`)
		if err != nil {
			return errors.WithStack(err)
		}

		// Only Issued and Returned are ever stored; Overdue is computed.
		_, err = db.Exec(`
			CREATE TABLE transactions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_id INTEGER REFERENCES books (id) ON DELETE CASCADE NOT NULL,
				user_id INTEGER REFERENCES users (id) ON DELETE RESTRICT NOT NULL,
				issue_date TIMESTAMPTZ NOT NULL,
				due_date TIMESTAMPTZ NOT NULL,
				return_date TIMESTAMPTZ,
				extension_count INTEGER NOT NULL DEFAULT 0 CHECK (extension_count BETWEEN 0 AND 2),
				status TEXT NOT NULL DEFAULT 'Issued' CHECK (status IN ('Issued', 'Returned')),
				notes TEXT,
				CHECK ((status = 'Returned') = (return_date IS NOT NULL))
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		// At most one open transaction per book.
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_transactions_open_book ON transactions (book_id) WHERE status = 'Issued'`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_transactions_user_id ON transactions (user_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_transactions_status_due_date ON transactions (status, due_date)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE digital_books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				author TEXT NOT NULL,
				filename TEXT NOT NULL,
				original_name TEXT NOT NULL,
				file_size INTEGER NOT NULL DEFAULT 0,
				file_format TEXT NOT NULL CHECK (file_format IN ('pdf', 'epub', 'mobi')),
				page_count INTEGER,
				publisher TEXT,
				publication_year INTEGER,
				isbn TEXT,
				subject TEXT,
				description TEXT,
				language TEXT,
				category TEXT,
				tags TEXT,
				view_count INTEGER NOT NULL DEFAULT 0,
				download_count INTEGER NOT NULL DEFAULT 0,
				uploaded_by_id INTEGER REFERENCES users (id) ON DELETE RESTRICT NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_digital_books_filename ON digital_books (filename)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE book_digital_links (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_id INTEGER REFERENCES books (id) ON DELETE CASCADE NOT NULL,
				digital_book_id INTEGER REFERENCES digital_books (id) ON DELETE CASCADE NOT NULL,
				link_type TEXT NOT NULL DEFAULT 'same_edition' CHECK (link_type IN ('same_edition', 'different_edition', 'related')),
				notes TEXT
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_book_digital_links_pair ON book_digital_links (book_id, digital_book_id)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"book_digital_links", "digital_books", "transactions", "books", "users"} {
			if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
