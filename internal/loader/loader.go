// Package loader bulk-loads domain list files into the catalog, one
// transaction per file, and imports whole directory trees of lists.
package loader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/hostcat/internal/registry"
	"github.com/roach88/hostcat/internal/store"
)

// ListFileName is the base name of files picked up by directory imports.
const ListFileName = "domains"

// Report summarizes one file load.
type Report struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Category string `json:"category"`
	Lines    int    `json:"lines"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
}

// Source is a list file discovered under an import root.
type Source struct {
	// Path is slash-separated and relative to the import root.
	Path     string `json:"path"`
	Category string `json:"category"`
}

// Option configures a Loader.
type Option func(*Loader)

// WithIDGenerator overrides the load ID generator (UUIDv7 by default).
func WithIDGenerator(g IDGenerator) Option {
	return func(l *Loader) { l.ids = g }
}

// WithClock overrides the time source for load records.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// Loader loads domain lists through a registry into a store.
// Loads must not run concurrently against the same store.
type Loader struct {
	store    *store.Store
	registry *registry.Registry
	log      zerolog.Logger
	ids      IDGenerator
	now      func() time.Time
}

// New creates a loader.
func New(st *store.Store, reg *registry.Registry, logger zerolog.Logger, opts ...Option) *Loader {
	l := &Loader{
		store:    st,
		registry: reg,
		log:      logger.With().Str("component", "loader").Logger(),
		ids:      UUIDv7Generator{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ParseDomains reads one hostname per line. Lines are trimmed, blank lines
// dropped and a single trailing dot removed; nothing else is normalized.
func ParseDomains(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var domains []string
	for scanner.Scan() {
		domain := strings.TrimSpace(scanner.Text())
		domain = strings.TrimSuffix(domain, ".")
		if domain == "" {
			continue
		}
		domains = append(domains, domain)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read domains: %w", err)
	}
	return domains, nil
}

// LoadDomainsFile files every hostname listed in path under category.
//
// Rows go in through one prepared statement inside one transaction. A row
// that collides with an existing domain is skipped; any other insert error
// rolls the whole file back and is returned. Loading the same file twice
// therefore leaves the catalog unchanged and reports every row as skipped.
func (l *Loader) LoadDomainsFile(ctx context.Context, path, category string) (*Report, error) {
	db, err := l.store.Conn()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open domains file: %w", err)
	}
	domains, err := ParseDomains(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	categoryID, err := l.registry.EnsureCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	report := &Report{
		ID:       l.ids.Generate(),
		Source:   path,
		Category: category,
		Lines:    len(domains),
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s: begin tx: %w", path, err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO domains (domain, category_id) VALUES (?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("load %s: prepare: %w", path, err)
	}
	defer stmt.Close()

	for _, domain := range domains {
		if _, err := stmt.ExecContext(ctx, domain, categoryID); err != nil {
			if store.IsUniqueViolation(err) {
				report.Skipped++
				continue
			}
			l.log.Error().Err(err).Str("file", path).Str("domain", domain).Msg("load aborted")
			return nil, fmt.Errorf("load %s: insert %q: %w", path, domain, err)
		}
		report.Inserted++
	}

	err = l.store.RecordLoad(ctx, tx, store.LoadRecord{
		ID:       report.ID,
		Source:   report.Source,
		Category: report.Category,
		Inserted: report.Inserted,
		Skipped:  report.Skipped,
		LoadedAt: l.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if err := stmt.Close(); err != nil {
		return nil, fmt.Errorf("load %s: finalize: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("load %s: commit: %w", path, err)
	}

	l.log.Info().
		Str("id", report.ID).
		Str("file", path).
		Str("category", category).
		Int("inserted", report.Inserted).
		Int("skipped", report.Skipped).
		Msg("domains loaded")
	return report, nil
}

// Discover walks fsys for files named ListFileName. Each file's category is
// its parent directory path, slash-joined with empty segments removed, so
// "news/tech/domains" belongs to "news/tech". A list at the root has no
// category and is skipped. Results are sorted by path.
func Discover(fsys fs.FS) ([]Source, error) {
	var sources []Source
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || d.Name() != ListFileName {
			return nil
		}
		category := categoryFor(p)
		if category == "" {
			return nil
		}
		sources = append(sources, Source{Path: p, Category: category})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}

func categoryFor(p string) string {
	var segments []string
	for _, s := range strings.Split(path.Dir(p), "/") {
		if s != "" && s != "." {
			segments = append(segments, s)
		}
	}
	return strings.Join(segments, "/")
}

// LoadDomainsDirectory imports every list discovered under root. Discovery
// finishes before the first write; files are then loaded one after another.
// A failing file does not stop the rest: reports for the files that loaded
// are returned together with the joined per-file errors.
func (l *Loader) LoadDomainsDirectory(ctx context.Context, root string) ([]Report, error) {
	if _, err := l.store.Conn(); err != nil {
		return nil, err
	}

	sources, err := Discover(os.DirFS(root))
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	if root != "" {
		if _, err := os.Stat(filepath.Join(root, ListFileName)); err == nil {
			l.log.Warn().Str("root", root).Msg("ignoring domains file at import root: no category")
		}
	}

	reports := []Report{}
	var errs []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := l.LoadDomainsFile(ctx, filepath.Join(root, filepath.FromSlash(src.Path)), src.Category)
		if err != nil {
			l.log.Error().Err(err).Str("file", src.Path).Str("category", src.Category).Msg("failed to load list")
			errs = append(errs, err)
			continue
		}
		reports = append(reports, *report)
	}

	l.log.Info().Str("root", root).Int("files", len(reports)).Int("failed", len(errs)).Msg("directory imported")
	return reports, errors.Join(errs...)
}
