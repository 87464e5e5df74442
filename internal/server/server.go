// Package server exposes the premium engine over HTTP.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/iwvelando/premium-engine/internal/coverage"
	"github.com/iwvelando/premium-engine/internal/premium"
	"github.com/iwvelando/premium-engine/internal/quote"
	"github.com/iwvelando/premium-engine/pkg/constants"
	"github.com/iwvelando/premium-engine/pkg/datetime"
	"github.com/iwvelando/premium-engine/pkg/mathutil"
	"github.com/iwvelando/premium-engine/pkg/validation"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type handler struct {
	logger         *zap.Logger
	quotes         *quote.Service
	maxRequestSize int64
	version        string
	now            func() time.Time
}

// NewHandler constructs the HTTP handler that serves the quote API.
func NewHandler(logger *zap.Logger, quotes *quote.Service, cfg *Config, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{}
	}

	maxRequestSize := cfg.RequestSizeBytes()
	if maxRequestSize <= 0 {
		maxRequestSize = constants.DefaultMaxRequestSizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:         logger,
		quotes:         quotes,
		maxRequestSize: maxRequestSize,
		version:        trimmedVersion,
		now:            time.Now,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/version", h.handleVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(newAuthenticator(cfg.Auth, logger).middleware)
	api.HandleFunc("/quotes", h.handleCreateQuote).Methods(http.MethodPost)
	api.HandleFunc("/quotes/{reference}", h.handleGetQuote).Methods(http.MethodGet)
	api.HandleFunc("/tariff", h.handleTariff).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", constants.APIKeyHeader},
	})
	return c.Handler(r)
}

type vehiclePayload struct {
	Category      int             `json:"category"`
	SubType       string          `json:"subType,omitempty"`
	HorsePower    int             `json:"horsePower"`
	FuelType      string          `json:"fuelType,omitempty"`
	SeatCount     int             `json:"seatCount,omitempty"`
	OriginalValue decimal.Decimal `json:"originalValue"`
	MarketValue   decimal.Decimal `json:"marketValue"`
	MaxWeight     int             `json:"maxWeight,omitempty"`
}

type contractPayload struct {
	Duration      int    `json:"duration"`
	Periodicity   string `json:"periodicity,omitempty"`
	EffectiveDate string `json:"effectiveDate,omitempty"`
}

type quoteRequest struct {
	Vehicle         *vehiclePayload  `json:"vehicle"`
	Contract        *contractPayload `json:"contract"`
	Coverages       []string         `json:"coverages"`
	PassengerOption int              `json:"passengerOption,omitempty"`
	PackCode        string           `json:"packCode,omitempty"`
}

type coverageLine struct {
	Coverage        string `json:"coverage"`
	AnnualPremium   int64  `json:"annualPremium"`
	ProratedPremium int64  `json:"proratedPremium"`
}

type quoteResponse struct {
	Reference       string         `json:"reference"`
	PackCode        string         `json:"packCode,omitempty"`
	PackName        string         `json:"packName,omitempty"`
	Currency        string         `json:"currency"`
	EffectiveDate   string         `json:"effectiveDate"`
	EndDate         string         `json:"endDate"`
	Months          int            `json:"months"`
	ProrationRate   string         `json:"prorationRate"`
	Coverages       []coverageLine `json:"coverages"`
	BasePremium     int64          `json:"basePremium"`
	AccessoryAmount int64          `json:"accessoryAmount"`
	Taxes           int64          `json:"taxes"`
	FGA             int64          `json:"fga"`
	BrownCard       int64          `json:"brownCard"`
	Total           int64          `json:"total"`
	TariffVersion   string         `json:"tariffVersion"`
	IssuedAt        time.Time      `json:"issuedAt"`
	ValidUntil      time.Time      `json:"validUntil"`
}

type packPayload struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Coverages   []string `json:"coverages"`
}

type tariffResponse struct {
	Version           string        `json:"version"`
	Currency          string        `json:"currency"`
	Categories        []int         `json:"categories"`
	Coverages         []string      `json:"coverages"`
	RequiredCoverages []string      `json:"requiredCoverages"`
	Packs             []packPayload `json:"packs"`
}

type errorResponse struct {
	Error      string                 `json:"error"`
	Kind       string                 `json:"kind,omitempty"`
	Violations []string               `json:"violations,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.logger, w, http.StatusOK, map[string]string{
		"version":       h.version,
		"tariffVersion": h.quotes.Engine().Document().Version(),
	})
}

func (h *handler) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCreateQuote"
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxRequestSize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxRequestSize), op)
			return
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to read request: %v", err), op)
		return
	}

	var payload quoteRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode quote request: %v", err), op)
		return
	}

	req, err := h.toQuoteRequest(payload)
	if err != nil {
		h.respondEngineError(w, err, op)
		return
	}

	q, err := h.quotes.Quote(r.Context(), req)
	if err != nil {
		h.respondEngineError(w, err, op)
		return
	}

	h.logger.Info("quote computed",
		zap.String("op", op),
		zap.String("reference", q.Reference),
		zap.Int("coverages", len(q.Premium.Coverages)),
		zap.Duration("duration", time.Since(start)))

	w.Header().Set("Location", "/api/v1/quotes/"+q.Reference)
	writeJSON(h.logger, w, http.StatusCreated, toQuoteResponse(q))
}

func (h *handler) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleGetQuote"
	reference := mux.Vars(r)["reference"]
	if err := validation.ValidateReference(reference); err != nil {
		h.respondEngineError(w, apperr.Wrap(apperr.KindQuoteNotFound, err, "unknown quote reference"), op)
		return
	}

	q, err := h.quotes.Get(r.Context(), reference)
	if err != nil {
		h.respondEngineError(w, err, op)
		return
	}
	if q.Expired(h.now()) {
		h.respondEngineError(w, apperr.Newf(apperr.KindQuoteNotFound, "quote %q has expired", q.Reference), op)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, toQuoteResponse(q))
}

func (h *handler) handleTariff(w http.ResponseWriter, r *http.Request) {
	doc := h.quotes.Engine().Document()

	resp := tariffResponse{
		Version:           doc.Version(),
		Currency:          constants.Currency,
		Categories:        doc.Categories(),
		Coverages:         coverage.Sort(doc.CoverageIDs()),
		RequiredCoverages: coverage.Sort(doc.RequiredCoverages()),
	}
	for _, p := range doc.Packs() {
		resp.Packs = append(resp.Packs, packPayload{
			Code:        p.Code,
			Name:        p.Name,
			Description: p.Description,
			Coverages:   p.Coverages,
		})
	}
	writeJSON(h.logger, w, http.StatusOK, resp)
}

func (h *handler) toQuoteRequest(p quoteRequest) (quote.Request, error) {
	if p.Vehicle == nil {
		return quote.Request{}, apperr.New(apperr.KindIncompleteInput, "vehicle is required")
	}
	if p.Contract == nil {
		return quote.Request{}, apperr.New(apperr.KindIncompleteInput, "contract is required")
	}
	if p.Coverages == nil && p.PackCode == "" {
		return quote.Request{}, apperr.New(apperr.KindIncompleteInput, "coverages are required")
	}

	effective, err := datetime.ParseContractDate(p.Contract.EffectiveDate, h.now())
	if err != nil {
		return quote.Request{}, apperr.Wrap(apperr.KindIncompleteInput, err, "invalid effectiveDate")
	}

	return quote.Request{
		Vehicle: coverage.Vehicle{
			Category:      p.Vehicle.Category,
			SubType:       p.Vehicle.SubType,
			HorsePower:    p.Vehicle.HorsePower,
			FuelType:      p.Vehicle.FuelType,
			SeatCount:     p.Vehicle.SeatCount,
			OriginalValue: p.Vehicle.OriginalValue,
			MarketValue:   p.Vehicle.MarketValue,
			MaxWeight:     p.Vehicle.MaxWeight,
		},
		Contract: premium.Contract{
			Duration:      p.Contract.Duration,
			Periodicity:   p.Contract.Periodicity,
			EffectiveDate: effective,
		},
		Coverages:       p.Coverages,
		PassengerOption: p.PassengerOption,
		PackCode:        p.PackCode,
	}, nil
}

func toQuoteResponse(q *quote.Quote) quoteResponse {
	res := q.Premium
	resp := quoteResponse{
		Reference:       q.Reference,
		PackCode:        q.PackCode,
		PackName:        q.PackName,
		Currency:        q.Currency,
		EffectiveDate:   q.Contract.EffectiveDate.Format(constants.DateLayout),
		EndDate:         q.ContractEnd.Format(constants.DateLayout),
		Months:          res.Months,
		ProrationRate:   res.ProrationRate.String(),
		BasePremium:     amount(res.BasePremium),
		AccessoryAmount: amount(res.AccessoryAmount),
		Taxes:           amount(res.Taxes),
		FGA:             amount(res.FGA),
		BrownCard:       amount(res.BrownCard),
		Total:           amount(res.Total),
		TariffVersion:   res.TariffVersion,
		IssuedAt:        q.IssuedAt,
		ValidUntil:      q.ValidUntil,
	}
	for _, c := range res.Coverages {
		resp.Coverages = append(resp.Coverages, coverageLine{
			Coverage:        c.Coverage,
			AnnualPremium:   amount(c.AnnualPremium),
			ProratedPremium: amount(c.ProratedPremium),
		})
	}
	return resp
}

func amount(d decimal.Decimal) int64 {
	return mathutil.Round(d).IntPart()
}

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindIncompleteInput:
		return http.StatusBadRequest
	case apperr.KindInvalidVehicleDetails, apperr.KindUnsupportedCoverage, apperr.KindRateNotFound:
		return http.StatusUnprocessableEntity
	case apperr.KindQuoteNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) respondEngineError(w http.ResponseWriter, err error, op string) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var e *apperr.Error
	if errors.As(err, &e) {
		resp.Error = e.Message
		resp.Kind = string(e.Kind)
		resp.Violations = e.Violations
		resp.Context = e.Context
	}
	if status == http.StatusInternalServerError {
		// Tariff problems are not the caller's business.
		resp = errorResponse{Error: "failed to compute quote", Kind: resp.Kind}
	}

	logFn := h.logger.Error
	if apperr.IsClientError(err) {
		logFn = h.logger.Warn
	}
	logFn("quote request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.Error(err))
	writeJSON(h.logger, w, status, resp)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("quote request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg))

	writeJSON(h.logger, w, status, errorResponse{Error: msg})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to write JSON response", zap.Error(err))
	}
}
