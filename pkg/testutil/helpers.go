// Package testutil provides common utility functions for testing.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iwvelando/premium-engine/internal/coverage"
	"github.com/iwvelando/premium-engine/internal/premium"
	"github.com/iwvelando/premium-engine/internal/quote"
	"github.com/iwvelando/premium-engine/internal/tariff"
	"github.com/shopspring/decimal"
)

// Tariff returns the embedded default tariff document.
func Tariff(t testing.TB) *tariff.Document {
	t.Helper()
	doc, err := tariff.Default()
	if err != nil {
		t.Fatalf("tariff.Default() error = %v", err)
	}
	return doc
}

// QuoteService returns a quote service over the default tariff.
func QuoteService(t testing.TB, opts ...quote.Option) *quote.Service {
	t.Helper()
	return quote.NewService(premium.NewEngine(Tariff(t), nil), nil, opts...)
}

// SampleRequest is a category 1, 10 hp gasoline car on a 12 month contract
// starting at effective. With only civil liability it totals 51325.
func SampleRequest(effective time.Time) quote.Request {
	return quote.Request{
		Vehicle: coverage.Vehicle{
			Category:      1,
			HorsePower:    10,
			FuelType:      "gasoline",
			OriginalValue: decimal.NewFromInt(5000000),
			MarketValue:   decimal.NewFromInt(3000000),
			MaxWeight:     1500,
		},
		Contract: premium.Contract{Duration: 12, Periodicity: "month", EffectiveDate: effective},
	}
}

// FindCoverage finds a coverage line by id in a premium result.
// Returns nil if the coverage was not priced.
func FindCoverage(res *premium.Result, id string) *premium.CoveragePremium {
	for i := range res.Coverages {
		if res.Coverages[i].Coverage == id {
			return &res.Coverages[i]
		}
	}
	return nil
}

// MemoryStore is an in-memory quote.Store.
type MemoryStore struct {
	mu     sync.Mutex
	quotes map[string]*quote.Quote
	// Err, when set, is returned by Save.
	Err error
}

// Save implements quote.Store.
func (m *MemoryStore) Save(_ context.Context, q *quote.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.quotes == nil {
		m.quotes = make(map[string]*quote.Quote)
	}
	m.quotes[q.Reference] = q
	return nil
}

// Find implements quote.Store.
func (m *MemoryStore) Find(_ context.Context, reference string) (*quote.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[reference]
	if !ok {
		return nil, quote.NotFound(reference)
	}
	return q, nil
}

// Len returns the number of stored quotes.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.quotes)
}
