package loader

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hostcat/internal/registry"
	"github.com/roach88/hostcat/internal/resolver"
	"github.com/roach88/hostcat/internal/store"
	"github.com/roach88/hostcat/internal/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *store.Store
	registry *registry.Registry
	resolver *resolver.Resolver
	loader   *Loader
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, st.Init(context.Background()))
	t.Cleanup(st.Close)

	reg := registry.New(st, zerolog.Nop())
	return &fixture{
		store:    st,
		registry: reg,
		resolver: resolver.New(st, zerolog.Nop()),
		loader: New(st, reg, zerolog.Nop(),
			WithIDGenerator(testutil.NewSequentialIDs("load")),
			WithClock(testutil.NewStepClock(epoch, time.Second).Now),
		),
	}
}

func (f *fixture) lookup(t *testing.T, host string) *resolver.Match {
	t.Helper()
	m, err := f.resolver.Lookup(context.Background(), host, resolver.AnyCategory)
	require.NoError(t, err)
	return m
}

func TestParseDomains(t *testing.T) {
	in := "example.com\n\n  spaced.example.org  \ntrailing.example.net.\r\n\t\ndouble.dot..\nUPPER.Example.com\n"

	got, err := ParseDomains(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"example.com",
		"spaced.example.org",
		"trailing.example.net",
		"double.dot.",
		"UPPER.Example.com",
	}, got)
}

func TestParseDomains_Empty(t *testing.T) {
	got, err := ParseDomains(strings.NewReader("\n\n   \n"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadDomainsFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	path := testutil.WriteList(t, filepath.Join(t.TempDir(), "ads.txt"),
		"ads.example.com", "", "tracker.example.net.", "ads.example.com")

	report, err := f.loader.LoadDomainsFile(ctx, path, "ads")
	require.NoError(t, err)
	assert.Equal(t, &Report{
		ID:       "load-1",
		Source:   path,
		Category: "ads",
		Lines:    3,
		Inserted: 2,
		Skipped:  1,
	}, report)

	assert.Equal(t, &resolver.Match{Domain: "ads.example.com", Category: "ads"}, f.lookup(t, "ads.example.com"))
	assert.Equal(t, &resolver.Match{Domain: "tracker.example.net", Category: "ads"}, f.lookup(t, "px.tracker.example.net"))

	loads, err := f.store.Loads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.LoadRecord{{
		ID:       "load-1",
		Source:   path,
		Category: "ads",
		Inserted: 2,
		Skipped:  1,
		LoadedAt: epoch,
	}}, loads)
}

func TestLoadDomainsFile_Idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	path := testutil.WriteList(t, filepath.Join(t.TempDir(), "news"), "example.com", "example.org")

	first, err := f.loader.LoadDomainsFile(ctx, path, "news")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := f.loader.LoadDomainsFile(ctx, path, "news")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Skipped)

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Categories: 1, Domains: 2, Loads: 2}, stats)
	assert.Equal(t, &resolver.Match{Domain: "example.org", Category: "news"}, f.lookup(t, "www.example.org"))
}

func TestLoadDomainsFile_KeepsExistingCategory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.registry.AddHostName(ctx, "example.com", "news"))
	path := testutil.WriteList(t, filepath.Join(t.TempDir(), "ads"), "example.com", "ads.example")

	report, err := f.loader.LoadDomainsFile(ctx, path, "ads")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Skipped)

	assert.Equal(t, &resolver.Match{Domain: "example.com", Category: "news"}, f.lookup(t, "example.com"))
	assert.Equal(t, &resolver.Match{Domain: "ads.example", Category: "ads"}, f.lookup(t, "ads.example"))
}

func TestLoadDomainsFile_RollsBackOnOtherErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// RAISE(ABORT) fails with a constraint error that is not a uniqueness
	// violation, so the row must abort the load rather than be skipped.
	db, err := f.store.Conn()
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TRIGGER reject_poison BEFORE INSERT ON domains
		WHEN NEW.domain = 'poison.example'
		BEGIN SELECT RAISE(ABORT, 'poisoned row'); END`)
	require.NoError(t, err)

	path := testutil.WriteList(t, filepath.Join(t.TempDir(), "list"),
		"first.example", "poison.example", "last.example")

	report, err := f.loader.LoadDomainsFile(ctx, path, "malware")
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "poisoned row")

	assert.Nil(t, f.lookup(t, "first.example"), "rows before the failure must be rolled back")
	assert.Nil(t, f.lookup(t, "last.example"))

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Domains)
	assert.Equal(t, 0, stats.Loads)
	// The category upsert happens before the transaction and survives.
	assert.Equal(t, 1, stats.Categories)

	// The single connection is usable again after the rollback.
	require.NoError(t, f.registry.AddHostName(ctx, "ok.example", "malware"))
}

func TestLoadDomainsFile_MissingFile(t *testing.T) {
	f := setup(t)

	_, err := f.loader.LoadDomainsFile(context.Background(), filepath.Join(t.TempDir(), "missing"), "ads")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadDomainsFile_NotInitialized(t *testing.T) {
	st := store.New(store.MemoryPath, zerolog.Nop())
	l := New(st, registry.New(st, zerolog.Nop()), zerolog.Nop())

	_, err := l.LoadDomainsFile(context.Background(), "/does/not/matter", "ads")
	assert.ErrorIs(t, err, store.ErrNotInitialized)

	_, err = l.LoadDomainsDirectory(context.Background(), "/does/not/matter")
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}

func TestLoadDomainsFile_DefaultIDsAreUUIDv7(t *testing.T) {
	st := store.New(store.MemoryPath, zerolog.Nop())
	require.NoError(t, st.Init(context.Background()))
	defer st.Close()
	l := New(st, registry.New(st, zerolog.Nop()), zerolog.Nop())

	path := testutil.WriteList(t, filepath.Join(t.TempDir(), "list"), "example.com")
	report, err := l.LoadDomainsFile(context.Background(), path, "ads")
	require.NoError(t, err)

	id, err := uuid.Parse(report.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestDiscover(t *testing.T) {
	fsys := fstest.MapFS{
		"ads/domains":           {Data: []byte("a.example\n")},
		"social/fake/domains":   {Data: []byte("b.example\n")},
		"social/fake/urls":      {Data: []byte("ignored\n")},
		"news/tech/domains.bak": {Data: []byte("ignored\n")},
		"domains":               {Data: []byte("root list has no category\n")},
		"deep/a/b/c/domains":    {Data: []byte("c.example\n")},
		"named/domains/domains": {Data: []byte("d.example\n")},
		"empty-dir/.keep":       {Data: nil},
	}

	sources, err := Discover(fsys)
	require.NoError(t, err)
	assert.Equal(t, []Source{
		{Path: "ads/domains", Category: "ads"},
		{Path: "deep/a/b/c/domains", Category: "deep/a/b/c"},
		{Path: "named/domains/domains", Category: "named/domains"},
		{Path: "social/fake/domains", Category: "social/fake"},
	}, sources)
}

func TestLoadDomainsDirectory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string][]string{
		"ads":         {"ads.example.com", "banner.example.net"},
		"social/fake": {"fake.example", "bots.example."},
	})

	reports, err := f.loader.LoadDomainsDirectory(ctx, root)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "ads", reports[0].Category)
	assert.Equal(t, 2, reports[0].Inserted)
	assert.Equal(t, "social/fake", reports[1].Category)
	assert.Equal(t, 2, reports[1].Inserted)

	assert.Equal(t, &resolver.Match{Domain: "banner.example.net", Category: "ads"}, f.lookup(t, "x.banner.example.net"))
	assert.Equal(t, &resolver.Match{Domain: "bots.example", Category: "social/fake"}, f.lookup(t, "bots.example"))

	cats, err := f.store.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.CategoryCount{
		{Label: "ads", Domains: 2},
		{Label: "social/fake", Domains: 2},
	}, cats)

	// A second import skips everything.
	again, err := f.loader.LoadDomainsDirectory(ctx, root)
	require.NoError(t, err)
	for _, r := range again {
		assert.Equal(t, 0, r.Inserted)
		assert.Equal(t, 2, r.Skipped)
	}
}

func TestLoadDomainsDirectory_ContinuesPastFailingFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string][]string{
		"ads":     {"ads.example"},
		"malware": {"poison.example"},
		"news":    {"news.example"},
	})

	db, err := f.store.Conn()
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TRIGGER reject_poison BEFORE INSERT ON domains
		WHEN NEW.domain = 'poison.example'
		BEGIN SELECT RAISE(ABORT, 'poisoned row'); END`)
	require.NoError(t, err)

	reports, err := f.loader.LoadDomainsDirectory(ctx, root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poisoned row")
	require.Len(t, reports, 2)
	assert.Equal(t, "ads", reports[0].Category)
	assert.Equal(t, "news", reports[1].Category)

	assert.NotNil(t, f.lookup(t, "news.example"))
	assert.Nil(t, f.lookup(t, "poison.example"))
}

func TestLoadDomainsDirectory_MissingRoot(t *testing.T) {
	f := setup(t)
	_, err := f.loader.LoadDomainsDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
