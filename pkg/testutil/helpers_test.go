package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/iwvelando/premium-engine/internal/quote"
)

func TestSampleRequestTotal(t *testing.T) {
	q, err := QuoteService(t).Quote(context.Background(), SampleRequest(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q.Premium.Total.IntPart() != 51325 {
		t.Errorf("Total = %s, want 51325", q.Premium.Total)
	}
}

func TestFindCoverage(t *testing.T) {
	q, err := QuoteService(t).Quote(context.Background(), SampleRequest(time.Now()))
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}

	tests := []struct {
		name        string
		id          string
		expectFound bool
	}{
		{name: "Priced coverage", id: "civil_liability", expectFound: true},
		{name: "Unselected coverage", id: "theft", expectFound: false},
		{name: "Unknown coverage", id: "flood", expectFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindCoverage(q.Premium, tt.id)
			if (got != nil) != tt.expectFound {
				t.Errorf("FindCoverage(%q) = %v, expected found = %v", tt.id, got, tt.expectFound)
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	store := &MemoryStore{}
	ctx := context.Background()

	if err := store.Save(ctx, &quote.Quote{Reference: "SIM2024ABCDEF012"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
	if _, err := store.Find(ctx, "SIM2024ABCDEF012"); err != nil {
		t.Errorf("Find() error = %v", err)
	}
	if _, err := store.Find(ctx, "SIM2024000000000"); !apperr.IsKind(err, apperr.KindQuoteNotFound) {
		t.Errorf("Find() error = %v, want QUOTE_NOT_FOUND", err)
	}

	store.Err = errors.New("down")
	if err := store.Save(ctx, &quote.Quote{Reference: "SIM2024ABCDEF013"}); err == nil {
		t.Error("Save() should return Err")
	}
}
