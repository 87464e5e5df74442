package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/iwvelando/premium-engine/internal/config"
	"github.com/iwvelando/premium-engine/internal/quote"
	"github.com/iwvelando/premium-engine/pkg/constants"
	"github.com/iwvelando/premium-engine/pkg/testutil"
	"go.uber.org/zap"
)

const sampleQuoteJSON = `{
  "vehicle": {"category": 1, "horsePower": 10, "fuelType": "gasoline",
              "originalValue": 5000000, "marketValue": 3000000, "maxWeight": 1500},
  "contract": {"duration": 12, "periodicity": "month", "effectiveDate": "2024-05-10"},
  "coverages": ["civil_liability"]
}`

func newTestHandler(t *testing.T, cfg *Config, opts ...quote.Option) http.Handler {
	t.Helper()
	return NewHandler(zap.NewNop(), testutil.QuoteService(t, opts...), cfg, "1.2.3")
}

func perform(t *testing.T, handler http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestHandleCreateQuoteSuccess(t *testing.T) {
	handler := newTestHandler(t, nil)

	rr := perform(t, handler, http.MethodPost, "/api/v1/quotes", sampleQuoteJSON, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp quoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 51325 {
		t.Fatalf("expected total 51325, got %d", resp.Total)
	}
	if !regexp.MustCompile(`^SIM\d{4}[0-9A-F]{9}$`).MatchString(resp.Reference) {
		t.Fatalf("unexpected reference %q", resp.Reference)
	}
	if rr.Header().Get("Location") != "/api/v1/quotes/"+resp.Reference {
		t.Fatalf("unexpected Location %q", rr.Header().Get("Location"))
	}
	if resp.EffectiveDate != "2024-05-10" || resp.EndDate != "2025-05-10" {
		t.Fatalf("unexpected contract dates %s..%s", resp.EffectiveDate, resp.EndDate)
	}
	if resp.Currency != constants.Currency || resp.TariffVersion != "2024.1" {
		t.Fatalf("unexpected currency %q or tariff version %q", resp.Currency, resp.TariffVersion)
	}
	if len(resp.Coverages) != 1 || resp.Coverages[0].Coverage != "civil_liability" || resp.Coverages[0].ProratedPremium != 40862 {
		t.Fatalf("unexpected coverages %+v", resp.Coverages)
	}
}

func TestHandleCreateQuoteErrors(t *testing.T) {
	handler := newTestHandler(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   apperr.Kind
	}{
		{
			name:       "Malformed JSON",
			body:       `{"vehicle": [`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Missing vehicle",
			body:       `{"contract": {"duration": 12}}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   apperr.KindIncompleteInput,
		},
		{
			name:       "Missing contract",
			body:       `{"vehicle": {"category": 1, "horsePower": 10}}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   apperr.KindIncompleteInput,
		},
		{
			name:       "Bad effective date",
			body:       `{"vehicle": {"category": 1, "horsePower": 10}, "contract": {"duration": 12, "effectiveDate": "10/05/2024"}, "coverages": []}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   apperr.KindIncompleteInput,
		},
		{
			name:       "Missing coverages",
			body:       `{"vehicle": {"category": 1, "horsePower": 10}, "contract": {"duration": 12}}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   apperr.KindIncompleteInput,
		},
		{
			name:       "Category 2 without sub-type",
			body:       `{"vehicle": {"category": 2, "horsePower": 10}, "contract": {"duration": 12}, "coverages": []}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   apperr.KindInvalidVehicleDetails,
		},
		{
			name:       "Unknown coverage",
			body:       `{"vehicle": {"category": 1, "horsePower": 10}, "contract": {"duration": 12}, "coverages": ["flood"]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   apperr.KindUnsupportedCoverage,
		},
		{
			name:       "Unknown pack",
			body:       `{"vehicle": {"category": 1, "horsePower": 10}, "contract": {"duration": 12}, "packCode": "gold"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   apperr.KindUnsupportedCoverage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := perform(t, handler, http.MethodPost, "/api/v1/quotes", tt.body, nil)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			resp := decodeError(t, rr)
			if resp.Error == "" {
				t.Fatal("expected an error message")
			}
			if tt.wantKind != "" && resp.Kind != string(tt.wantKind) {
				t.Fatalf("expected kind %s, got %q", tt.wantKind, resp.Kind)
			}
		})
	}
}

func TestHandleCreateQuoteTooLarge(t *testing.T) {
	cfg := &Config{}
	cfg.SetRequestSizeBytes(64)
	handler := newTestHandler(t, cfg)

	rr := perform(t, handler, http.MethodPost, "/api/v1/quotes", sampleQuoteJSON, nil)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rr.Code)
	}
	if !strings.Contains(decodeError(t, rr).Error, "request exceeds limit") {
		t.Fatalf("expected request limit error message, got %s", rr.Body.String())
	}
}

func TestHandleGetQuote(t *testing.T) {
	store := &testutil.MemoryStore{}
	handler := newTestHandler(t, nil, quote.WithStore(store))

	created := perform(t, handler, http.MethodPost, "/api/v1/quotes", sampleQuoteJSON, nil)
	if created.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", created.Code, created.Body.String())
	}
	var want quoteResponse
	if err := json.Unmarshal(created.Body.Bytes(), &want); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	rr := perform(t, handler, http.MethodGet, "/api/v1/quotes/"+strings.ToLower(want.Reference), "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got quoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Reference != want.Reference || got.Total != want.Total {
		t.Fatalf("expected %s/%d, got %s/%d", want.Reference, want.Total, got.Reference, got.Total)
	}

	missing := perform(t, handler, http.MethodGet, "/api/v1/quotes/SIM2024000000000", "", nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", missing.Code)
	}
	if decodeError(t, missing).Kind != string(apperr.KindQuoteNotFound) {
		t.Fatalf("expected QUOTE_NOT_FOUND, got %s", missing.Body.String())
	}
}

func TestHandleGetQuoteExpired(t *testing.T) {
	store := &testutil.MemoryStore{}
	issued := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	handler := newTestHandler(t, nil, quote.WithStore(store), quote.WithClock(func() time.Time { return issued }))

	created := perform(t, handler, http.MethodPost, "/api/v1/quotes", sampleQuoteJSON, nil)
	if created.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", created.Code, created.Body.String())
	}
	var q quoteResponse
	if err := json.Unmarshal(created.Body.Bytes(), &q); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	rr := perform(t, handler, http.MethodGet, "/api/v1/quotes/"+q.Reference, "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for an expired quote, got %d", rr.Code)
	}
}

func TestHandleTariff(t *testing.T) {
	handler := newTestHandler(t, nil)

	rr := perform(t, handler, http.MethodGet, "/api/v1/tariff", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp tariffResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Version != "2024.1" {
		t.Fatalf("expected version 2024.1, got %q", resp.Version)
	}
	if len(resp.RequiredCoverages) != 1 || resp.RequiredCoverages[0] != "civil_liability" {
		t.Fatalf("unexpected required coverages %v", resp.RequiredCoverages)
	}
	if len(resp.Packs) != 3 || len(resp.Categories) != 5 {
		t.Fatalf("expected 3 packs and 5 categories, got %d and %d", len(resp.Packs), len(resp.Categories))
	}
}

func TestHandleVersionAndHealth(t *testing.T) {
	handler := newTestHandler(t, nil)

	rr := perform(t, handler, http.MethodGet, "/api/version", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["version"] != "1.2.3" || resp["tariffVersion"] != "2024.1" {
		t.Fatalf("unexpected version response %v", resp)
	}

	if rr := perform(t, handler, http.MethodGet, "/health", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for health, got %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, nil)

	rr := perform(t, handler, http.MethodDelete, "/api/v1/tariff", "", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestAuthentication(t *testing.T) {
	hash, err := HashAPIKey("partner-key")
	if err != nil {
		t.Fatalf("HashAPIKey() error = %v", err)
	}
	cfg := &Config{Auth: config.AuthConfig{
		APIKeyHashes: []string{hash},
		JWTSecret:    "s3cret",
		JWTIssuer:    "portal",
	}}
	handler := newTestHandler(t, cfg)

	valid, err := IssueToken("s3cret", "portal", "broker-42", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	wrongIssuer, _ := IssueToken("s3cret", "other", "broker-42", time.Hour)
	wrongSecret, _ := IssueToken("guess", "portal", "broker-42", time.Hour)
	expired, _ := IssueToken("s3cret", "portal", "broker-42", -time.Hour)

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{"No credentials", nil, http.StatusUnauthorized},
		{"Valid API key", map[string]string{constants.APIKeyHeader: "partner-key"}, http.StatusOK},
		{"Wrong API key", map[string]string{constants.APIKeyHeader: "nope"}, http.StatusUnauthorized},
		{"Valid bearer token", map[string]string{"Authorization": "Bearer " + valid}, http.StatusOK},
		{"Wrong issuer", map[string]string{"Authorization": "Bearer " + wrongIssuer}, http.StatusUnauthorized},
		{"Wrong secret", map[string]string{"Authorization": "Bearer " + wrongSecret}, http.StatusUnauthorized},
		{"Expired token", map[string]string{"Authorization": "Bearer " + expired}, http.StatusUnauthorized},
		{"Basic scheme", map[string]string{"Authorization": "Basic cGFydG5lcjprZXk="}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := perform(t, handler, http.MethodGet, "/api/v1/tariff", "", tt.headers)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}

	if rr := perform(t, handler, http.MethodGet, "/health", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected health to stay open, got %d", rr.Code)
	}
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	if _, err := IssueToken("", "portal", "broker", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := HashAPIKey("  "); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestHandler(t, &Config{AllowedOrigins: []string{"https://portal.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/quotes", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example.com" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/quotes", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allowed origin for a foreign site, got %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindIncompleteInput, http.StatusBadRequest},
		{apperr.KindInvalidVehicleDetails, http.StatusUnprocessableEntity},
		{apperr.KindUnsupportedCoverage, http.StatusUnprocessableEntity},
		{apperr.KindRateNotFound, http.StatusUnprocessableEntity},
		{apperr.KindQuoteNotFound, http.StatusNotFound},
		{apperr.KindConfigValidation, http.StatusInternalServerError},
		{apperr.KindPathNotFound, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := statusFor(apperr.New(tt.kind, "x")); got != tt.want {
				t.Errorf("statusFor(%s) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}
