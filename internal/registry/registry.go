// Package registry performs single-record category and domain upserts.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/hostcat/internal/hostname"
	"github.com/roach88/hostcat/internal/store"
)

// ErrEmptyCategory is returned for an empty category label.
var ErrEmptyCategory = errors.New("category label must not be empty")

// ConflictError reports a domain that is already filed under another category.
// The existing mapping is left unchanged.
type ConflictError struct {
	Domain    string
	Existing  string
	Requested string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("domain %q already registered under category %q (requested %q)",
		e.Domain, e.Existing, e.Requested)
}

// IsConflict returns true if err is a ConflictError.
// Uses errors.As to handle wrapped errors.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// Registry adds categories and domains to a store.
type Registry struct {
	store *store.Store
	log   zerolog.Logger
}

// New creates a registry over st.
func New(st *store.Store, logger zerolog.Logger) *Registry {
	return &Registry{
		store: st,
		log:   logger.With().Str("component", "registry").Logger(),
	}
}

// EnsureCategory inserts label if absent and returns its ID.
func (r *Registry) EnsureCategory(ctx context.Context, label string) (int64, error) {
	db, err := r.store.Conn()
	if err != nil {
		return 0, err
	}
	if label == "" {
		return 0, ErrEmptyCategory
	}

	if err := upsertCategory(ctx, db, label); err != nil {
		r.log.Error().Err(err).Str("category", label).Msg("failed to upsert category")
		return 0, err
	}

	var id int64
	err = db.QueryRowContext(ctx, `SELECT id FROM categories WHERE label = ?`, label).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("select category id: %w", err)
	}
	return id, nil
}

// AddHostName files host under category.
//
// host is validated before the store is touched. Re-adding an existing
// (host, category) pair is a no-op. If host is already filed under a
// different category the original mapping is kept and a *ConflictError is
// returned.
func (r *Registry) AddHostName(ctx context.Context, host, category string) error {
	db, err := r.store.Conn()
	if err != nil {
		return err
	}
	if err := hostname.Validate(host); err != nil {
		return err
	}
	if category == "" {
		return ErrEmptyCategory
	}

	if err := upsertCategory(ctx, db, category); err != nil {
		r.log.Error().Err(err).Str("category", category).Msg("failed to upsert category")
		return err
	}

	// Only the exact pair is checked here; a clash with another category is
	// left to UNIQUE(domain).
	_, err = db.ExecContext(ctx, `
		INSERT INTO domains (domain, category_id)
		SELECT ?, id FROM categories WHERE label = ?
		AND NOT EXISTS (SELECT 1 FROM domains WHERE domain = ? AND category_id = categories.id)
	`, host, category, host)
	if err == nil {
		return nil
	}

	if !store.IsUniqueViolation(err) {
		r.log.Error().Err(err).Str("domain", host).Str("category", category).Msg("failed to add domain")
		return fmt.Errorf("add domain: %w", err)
	}

	existing, lookupErr := existingCategory(ctx, db, host)
	if lookupErr != nil {
		r.log.Error().Err(lookupErr).Str("domain", host).Msg("failed to read existing category")
		return fmt.Errorf("add domain: %w", err)
	}
	r.log.Warn().
		Str("domain", host).
		Str("category", category).
		Str("existing", existing).
		Msg("domain already registered under another category")
	return &ConflictError{Domain: host, Existing: existing, Requested: category}
}

func upsertCategory(ctx context.Context, db *sql.DB, label string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO categories (label)
		SELECT ? WHERE NOT EXISTS (SELECT 1 FROM categories WHERE label = ?)
	`, label, label)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

func existingCategory(ctx context.Context, db *sql.DB, host string) (string, error) {
	var label string
	err := db.QueryRowContext(ctx, `
		SELECT c.label FROM domains d
		JOIN categories c ON d.category_id = c.id
		WHERE d.domain = ?
	`, host).Scan(&label)
	if err != nil {
		return "", fmt.Errorf("select existing category: %w", err)
	}
	return label, nil
}
