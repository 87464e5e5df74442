package tariff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func checkCommercialRate(t *testing.T, doc *Document) {
	t.Helper()
	table, err := doc.BaseRate(2)
	if err != nil {
		t.Fatalf("BaseRate(2) error = %v", err)
	}
	bands := table.(SubtypeTable).Subtypes["under3.5"]
	if len(bands) != 6 || !bands[2].Value.Equal(decimal.NewFromInt(127880)) {
		t.Errorf("under3.5 bands = %v", bands)
	}
}

func TestFileSourceYAML(t *testing.T) {
	path := writeFile(t, "tariff.yaml", defaultTariff)

	doc, err := Load(context.Background(), NewFileSource(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checkCommercialRate(t, doc)
	if doc.Origin() != "file:"+path {
		t.Errorf("Origin() = %q", doc.Origin())
	}
}

func TestFileSourceJSON(t *testing.T) {
	data, err := json.Marshal(defaultDoc(t).Export())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	path := writeFile(t, "tariff.json", data)

	doc, err := Load(context.Background(), NewFileSource(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checkCommercialRate(t, doc)
	if !doc.FGARate().Equal(decimal.RequireFromString("0.025")) {
		t.Errorf("FGARate() = %s", doc.FGARate())
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := Load(context.Background(), NewFileSource(filepath.Join(t.TempDir(), "missing.yaml")))
	if !apperr.IsKind(err, apperr.KindConfigSource) {
		t.Errorf("Load() error = %v, want CONFIG_SOURCE", err)
	}
}

func TestLoadHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src, err := DefaultSource()
	if err != nil {
		t.Fatalf("DefaultSource() error = %v", err)
	}
	if _, err := Load(ctx, src); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	out, err := EncodeYAML(defaultDoc(t))
	if err != nil {
		t.Fatalf("EncodeYAML() error = %v", err)
	}
	tree, err := DecodeYAML(out)
	if err != nil {
		t.Fatalf("DecodeYAML() error = %v", err)
	}
	doc, err := Parse(tree, "roundtrip")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	checkCommercialRate(t, doc)
}

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.data
	return nil
}

type fakeDB struct {
	row      fakeRow
	execSQL  []string
	execArgs [][]any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

func TestPostgresSource(t *testing.T) {
	data, err := json.Marshal(defaultDoc(t).Export())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	db := &fakeDB{row: fakeRow{data: data}}

	doc, err := Load(context.Background(), NewPostgresSource(db))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checkCommercialRate(t, doc)
	if !doc.TaxRate().Equal(decimal.RequireFromString("0.14")) {
		t.Errorf("TaxRate() = %s", doc.TaxRate())
	}

	src := NewPostgresSource(db)
	if err := src.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := src.Publish(context.Background(), doc); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(db.execArgs) != 2 || db.execArgs[1][0] != "2024.1" {
		t.Errorf("Publish() args = %v", db.execArgs)
	}
}

func TestPostgresSourceErrors(t *testing.T) {
	_, err := Load(context.Background(), NewPostgresSource(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}}))
	if !apperr.IsKind(err, apperr.KindConfigSource) {
		t.Errorf("Load() with no rows error = %v, want CONFIG_SOURCE", err)
	}

	_, err = Load(context.Background(), NewPostgresSource(&fakeDB{row: fakeRow{data: []byte("{not json")}}))
	if !apperr.IsKind(err, apperr.KindConfigSource) {
		t.Errorf("Load() with bad json error = %v, want CONFIG_SOURCE", err)
	}
}

// TestPostgresIntegration needs a live database.
func TestPostgresIntegration(t *testing.T) {
	dsn := os.Getenv("PREMIUM_TEST_DSN")
	if dsn == "" {
		t.Skip("PREMIUM_TEST_DSN not set; skipping postgres integration test")
	}
	ctx := context.Background()
	pool, err := OpenPool(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPool() error = %v", err)
	}
	defer pool.Close()

	src := NewPostgresSource(pool)
	if err := src.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := src.Publish(ctx, defaultDoc(t)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	doc, err := Load(ctx, src)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checkCommercialRate(t, doc)
}
