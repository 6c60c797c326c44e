// Package resolver maps a hostname to the category of its most specific
// registered ancestor domain.
package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/hostcat/internal/hostname"
	"github.com/roach88/hostcat/internal/store"
)

// AnyCategory matches domains in every category.
const AnyCategory = "any"

// Match is a resolved (domain, category) pair.
type Match struct {
	Domain   string `json:"domain"`
	Category string `json:"category"`
}

// Resolver looks hostnames up in a store.
type Resolver struct {
	store *store.Store
	log   zerolog.Logger
}

// New creates a resolver over st.
func New(st *store.Store, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store: st,
		log:   logger.With().Str("component", "resolver").Logger(),
	}
}

// Lookup returns the registered ancestor of host with the most labels,
// restricted to category unless it is AnyCategory. The full hostname is tried
// first, then each suffix left after dropping the leftmost label; a single
// label is never queried. (nil, nil) means no ancestor is registered.
//
// A query error at one level is logged and the walk moves on to the next
// ancestor, so a coarser match is still found. If no level matched and any
// level failed, the level errors are returned instead of a clean miss.
func (r *Resolver) Lookup(ctx context.Context, host, category string) (*Match, error) {
	db, err := r.store.Conn()
	if err != nil {
		return nil, err
	}

	var levelErrs []error
	for _, candidate := range hostname.Ancestors(host) {
		m, err := r.lookupExact(ctx, db, candidate, category)
		if err != nil {
			r.log.Error().Err(err).Str("domain", candidate).Msg("lookup failed")
			levelErrs = append(levelErrs, err)
			continue
		}
		if m != nil {
			if len(levelErrs) > 0 {
				r.log.Warn().Str("host", host).Str("domain", m.Domain).
					Int("failed_levels", len(levelErrs)).Msg("resolved past failed levels")
			}
			return m, nil
		}
	}

	if len(levelErrs) > 0 {
		return nil, fmt.Errorf("lookup %q: %w", host, errors.Join(levelErrs...))
	}
	return nil, nil
}

// lookupExact returns the match for exactly domain, or nil.
func (r *Resolver) lookupExact(ctx context.Context, db *sql.DB, domain, category string) (*Match, error) {
	var row *sql.Row
	if category == AnyCategory {
		row = db.QueryRowContext(ctx, `
			SELECT d.domain, c.label FROM domains d
			JOIN categories c ON d.category_id = c.id
			WHERE d.domain = ?
		`, domain)
	} else {
		row = db.QueryRowContext(ctx, `
			SELECT d.domain, c.label FROM domains d
			JOIN categories c ON d.category_id = c.id
			WHERE d.domain = ? AND c.label = ?
		`, domain, category)
	}

	var m Match
	if err := row.Scan(&m.Domain, &m.Category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query %q: %w", domain, err)
	}
	return &m, nil
}
