package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/iwvelando/premium-engine/internal/quote"
	"github.com/iwvelando/premium-engine/pkg/datetime"
	"github.com/iwvelando/premium-engine/pkg/testutil"
)

func sampleQuote(t *testing.T) *quote.Quote {
	t.Helper()
	issued := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	svc := testutil.QuoteService(t, quote.WithClock(func() time.Time { return issued }))
	q, err := svc.Quote(context.Background(), testutil.SampleRequest(datetime.StartOfDay(issued)))
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	return q
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestPrettyFormat(t *testing.T) {
	q := sampleQuote(t)
	output := captureStdout(t, func() { PrettyFormat(q) })

	for _, want := range []string{
		"--- Quote " + q.Reference + " ---",
		"Vehicle: category 1, 10 hp",
		"Period: 2024-05-10 to 2025-05-10 (12 months, 100%)",
		"Coverage                 | Annual        | Prorated",
		"civil_liability",
		"40,862",
		"51,325 XOF",
		"Tariff 2024.1, valid until 2024-05-17",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("PrettyFormat missing %q in:\n%s", want, output)
		}
	}
}

func TestCsvString(t *testing.T) {
	q := sampleQuote(t)

	records, err := csv.NewReader(strings.NewReader(CsvString(q))).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	if len(records) != 1+len(q.Premium.Coverages)+6 {
		t.Fatalf("expected %d rows, got %d", 1+len(q.Premium.Coverages)+6, len(records))
	}
	if strings.Join(records[0], ",") != "reference,item,annual,prorated" {
		t.Errorf("unexpected header %v", records[0])
	}
	if records[1][1] != "civil_liability" || records[1][3] != "40862" {
		t.Errorf("unexpected coverage row %v", records[1])
	}
	last := records[len(records)-1]
	if last[0] != q.Reference || last[1] != "total" || last[3] != "51325" {
		t.Errorf("unexpected total row %v", last)
	}
}

func TestJSONFormat(t *testing.T) {
	q := sampleQuote(t)
	var err error
	output := captureStdout(t, func() { err = JSONFormat(q) })
	if err != nil {
		t.Fatalf("JSONFormat() error = %v", err)
	}

	var decoded quote.Quote
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("failed to decode JSON output: %v", err)
	}
	if decoded.Reference != q.Reference || !decoded.Premium.Total.Equal(q.Premium.Total) {
		t.Errorf("decoded quote = %+v", decoded)
	}
}

func TestPrint(t *testing.T) {
	q := sampleQuote(t)

	tests := []struct {
		format    string
		contains  string
		wantError bool
	}{
		{format: "", contains: "--- Quote"},
		{format: "PRETTY", contains: "--- Quote"},
		{format: "csv", contains: "reference,item,annual,prorated"},
		{format: "json", contains: `"reference"`},
		{format: "xml", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var err error
			output := captureStdout(t, func() { err = Print(q, tt.format) })
			if tt.wantError {
				if err == nil {
					t.Errorf("Print(%q) expected error but got none", tt.format)
				}
				return
			}
			if err != nil {
				t.Fatalf("Print(%q) error = %v", tt.format, err)
			}
			if !strings.Contains(output, tt.contains) {
				t.Errorf("Print(%q) output missing %q", tt.format, tt.contains)
			}
		})
	}
}
