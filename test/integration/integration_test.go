package integration

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iwvelando/premium-engine/internal/config"
	"github.com/iwvelando/premium-engine/internal/premium"
	"github.com/iwvelando/premium-engine/internal/quote"
	"github.com/iwvelando/premium-engine/internal/tariff"
	"github.com/iwvelando/premium-engine/pkg/mathutil"
	"github.com/iwvelando/premium-engine/pkg/output"
	"github.com/iwvelando/premium-engine/pkg/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// writeFixture exports the default tariff and a configuration pointing at it.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	data, err := tariff.EncodeYAML(testutil.Tariff(t))
	if err != nil {
		t.Fatalf("EncodeYAML() error = %v", err)
	}
	tariffPath := filepath.Join(dir, "tariff.yaml")
	if err := os.WriteFile(tariffPath, data, 0o600); err != nil {
		t.Fatalf("failed to write tariff: %v", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	body := "tariff:\n  source: file\n  file: " + tariffPath + "\noutput:\n  format: csv\n"
	if err := os.WriteFile(configPath, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

// loadService loads the configuration and tariff exactly as the CLI does.
func loadService(t *testing.T, opts ...quote.Option) (*quote.Service, *config.Configuration) {
	t.Helper()
	conf, err := config.LoadConfiguration(writeFixture(t))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if problems := conf.ValidateConfiguration(); len(problems) != 0 {
		t.Fatalf("unexpected configuration problems: %v", problems)
	}
	doc, err := tariff.Load(context.Background(), tariff.NewFileSource(conf.Tariff.File))
	if err != nil {
		t.Fatalf("tariff.Load() error = %v", err)
	}
	return quote.NewService(premium.NewEngine(doc, zap.NewNop()), zap.NewNop(), opts...), conf
}

func effective() time.Time {
	return time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
}

func TestQuoteFromFileTariffBaseline(t *testing.T) {
	svc, conf := loadService(t)

	q, err := svc.Quote(context.Background(), testutil.SampleRequest(effective()))
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if !q.Premium.Total.Equal(decimal.NewFromInt(51325)) {
		t.Errorf("expected total 51325, got %s", q.Premium.Total)
	}

	records, err := csv.NewReader(strings.NewReader(output.CsvString(q))).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	if conf.Output.Format != "csv" {
		t.Errorf("expected csv output format, got %q", conf.Output.Format)
	}
	last := records[len(records)-1]
	if last[1] != "total" || last[3] != "51325" {
		t.Errorf("unexpected total row %v", last)
	}
}

func TestPackQuotes(t *testing.T) {
	svc, _ := loadService(t)

	var previous decimal.Decimal
	for _, pack := range []string{"essential", "comfort", "premium"} {
		t.Run(pack, func(t *testing.T) {
			req := testutil.SampleRequest(effective())
			req.PackCode = pack
			req.PassengerOption = 1

			q, err := svc.Quote(context.Background(), req)
			if err != nil {
				t.Fatalf("Quote() error = %v", err)
			}
			if q.PackCode != pack || q.PackName == "" {
				t.Errorf("unexpected pack %q/%q", q.PackCode, q.PackName)
			}
			if testutil.FindCoverage(q.Premium, "civil_liability") == nil {
				t.Error("civil liability missing from pack quote")
			}
			if !q.Premium.Total.GreaterThan(previous) {
				t.Errorf("expected %s total above %s, got %s", pack, previous, q.Premium.Total)
			}
			previous = q.Premium.Total
		})
	}
}

func TestResultConsistency(t *testing.T) {
	svc, _ := loadService(t)

	tests := []struct {
		name    string
		mutate  func(*quote.Request)
		months  int
		partial bool
	}{
		{name: "Annual", months: 12},
		{name: "Three months", mutate: func(r *quote.Request) { r.Contract.Duration = 3 }, months: 3, partial: true},
		{name: "Ninety days", mutate: func(r *quote.Request) {
			r.Contract.Duration = 90
			r.Contract.Periodicity = "day"
		}, months: 3, partial: true},
		{name: "Diesel with options", mutate: func(r *quote.Request) {
			r.Vehicle.FuelType = "diesel"
			r.Coverages = []string{"theft", "fire", "glass_breakage"}
		}, months: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.SampleRequest(effective())
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			q, err := svc.Quote(context.Background(), req)
			if err != nil {
				t.Fatalf("Quote() error = %v", err)
			}
			res := q.Premium
			if res.Months != tt.months {
				t.Errorf("expected %d months, got %d", tt.months, res.Months)
			}

			var prorated decimal.Decimal
			for _, c := range res.Coverages {
				if c.ProratedPremium.GreaterThan(mathutil.Round(c.AnnualPremium)) {
					t.Errorf("%s prorated %s above annual %s", c.Coverage, c.ProratedPremium, c.AnnualPremium)
				}
				prorated = prorated.Add(c.ProratedPremium)
			}
			if !prorated.Equal(res.BasePremium) {
				t.Errorf("base premium %s does not match coverage sum %s", res.BasePremium, prorated)
			}
			sum := mathutil.Sum(res.BasePremium, res.AccessoryAmount, res.Taxes, res.FGA, res.BrownCard)
			if !sum.Equal(res.Total) {
				t.Errorf("total %s does not match components %s", res.Total, sum)
			}
			if tt.partial && !res.BasePremium.LessThan(res.AnnualPremium) {
				t.Errorf("expected prorated base %s below annual %s", res.BasePremium, res.AnnualPremium)
			}
			if !tt.partial && !res.ProrationRate.Equal(decimal.NewFromInt(100)) {
				t.Errorf("expected full-year proration, got %s", res.ProrationRate)
			}
		})
	}
}

func TestConcurrentQuotesAreDeterministic(t *testing.T) {
	store := &testutil.MemoryStore{}
	svc, _ := loadService(t, quote.WithStore(store))

	const workers = 16
	totals := make([]decimal.Decimal, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := testutil.SampleRequest(effective())
			req.PackCode = "premium"
			q, err := svc.Quote(context.Background(), req)
			if err != nil {
				errs[i] = err
				return
			}
			totals[i] = q.Premium.Total
		}(i)
	}
	wg.Wait()

	for i := range totals {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if !totals[i].Equal(totals[0]) {
			t.Errorf("worker %d total %s differs from %s", i, totals[i], totals[0])
		}
	}
	if store.Len() != workers {
		t.Errorf("expected %d stored quotes, got %d", workers, store.Len())
	}
}

func TestPerformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping performance test in short mode")
	}
	svc, _ := loadService(t)
	req := testutil.SampleRequest(effective())
	req.PackCode = "premium"

	start := time.Now()
	const iterations = 1000
	for i := 0; i < iterations; i++ {
		if _, err := svc.Quote(context.Background(), req); err != nil {
			t.Fatalf("Quote() error = %v", err)
		}
	}
	elapsed := time.Since(start)
	t.Logf("priced %d quotes in %v (%v per quote)", iterations, elapsed, elapsed/iterations)

	if elapsed > 5*time.Second {
		t.Errorf("pricing took too long: %v", elapsed)
	}
}
