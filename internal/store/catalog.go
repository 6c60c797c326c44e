package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// loadedAtLayout is fixed-width so loaded_at sorts correctly as text.
const loadedAtLayout = "2006-01-02T15:04:05.000000000Z"

// CategoryCount is a category label with the number of domains filed under it.
type CategoryCount struct {
	Label   string `json:"label"`
	Domains int    `json:"domains"`
}

// Stats summarizes the catalog.
type Stats struct {
	Categories int `json:"categories"`
	Domains    int `json:"domains"`
	Loads      int `json:"loads"`
}

// LoadRecord describes one committed bulk load.
type LoadRecord struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	Category string    `json:"category"`
	Inserted int       `json:"inserted"`
	Skipped  int       `json:"skipped"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Categories returns every category with its domain count, ordered by label.
// Returns an empty slice (not nil) for an empty catalog.
func (s *Store) Categories(ctx context.Context) ([]CategoryCount, error) {
	db, err := s.Conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT c.label, COUNT(d.id)
		FROM categories c
		LEFT JOIN domains d ON d.category_id = c.id
		GROUP BY c.id
		ORDER BY c.label COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	counts := []CategoryCount{}
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Label, &cc.Domains); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		counts = append(counts, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return counts, nil
}

// Stats returns row counts for categories, domains and loads.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	db, err := s.Conn()
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	err = db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM categories),
			(SELECT COUNT(*) FROM domains),
			(SELECT COUNT(*) FROM loads)
	`).Scan(&st.Categories, &st.Domains, &st.Loads)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

// RecordLoad inserts a load record inside the caller's transaction.
// The category must already exist.
func (s *Store) RecordLoad(ctx context.Context, tx *sql.Tx, rec LoadRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO loads (id, source, category_id, inserted, skipped, loaded_at)
		SELECT ?, ?, id, ?, ?, ? FROM categories WHERE label = ?
	`,
		rec.ID,
		rec.Source,
		rec.Inserted,
		rec.Skipped,
		rec.LoadedAt.UTC().Format(loadedAtLayout),
		rec.Category,
	)
	if err != nil {
		return fmt.Errorf("record load: %w", err)
	}
	return nil
}

// Loads returns all load records ordered by time, then ID.
func (s *Store) Loads(ctx context.Context) ([]LoadRecord, error) {
	db, err := s.Conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT l.id, l.source, c.label, l.inserted, l.skipped, l.loaded_at
		FROM loads l
		JOIN categories c ON l.category_id = c.id
		ORDER BY l.loaded_at ASC, l.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query loads: %w", err)
	}
	defer rows.Close()

	records := []LoadRecord{}
	for rows.Next() {
		var (
			rec      LoadRecord
			loadedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Category, &rec.Inserted, &rec.Skipped, &loadedAt); err != nil {
			return nil, fmt.Errorf("scan load: %w", err)
		}
		if rec.LoadedAt, err = time.Parse(loadedAtLayout, loadedAt); err != nil {
			return nil, fmt.Errorf("parse loaded_at %q: %w", loadedAt, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loads: %w", err)
	}
	return records, nil
}
