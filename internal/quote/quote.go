// Package quote turns premium computations into issued, referenced quotes
// and keeps them retrievable through an optional store and cache.
package quote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/iwvelando/premium-engine/internal/coverage"
	"github.com/iwvelando/premium-engine/internal/premium"
	"github.com/iwvelando/premium-engine/pkg/constants"
	"go.uber.org/zap"
)

// Request asks for a quote. When PackCode is set the pack's coverages are
// priced in addition to Coverages.
type Request struct {
	Vehicle         coverage.Vehicle
	Contract        premium.Contract
	Coverages       []string
	PassengerOption int
	PackCode        string
}

// Quote is an issued premium quote.
type Quote struct {
	Reference   string           `json:"reference"`
	PackCode    string           `json:"packCode,omitempty"`
	PackName    string           `json:"packName,omitempty"`
	Vehicle     coverage.Vehicle `json:"vehicle"`
	Contract    premium.Contract `json:"contract"`
	ContractEnd time.Time        `json:"contractEnd"`
	Premium     *premium.Result  `json:"premium"`
	Currency    string           `json:"currency"`
	IssuedAt    time.Time        `json:"issuedAt"`
	ValidUntil  time.Time        `json:"validUntil"`
}

// Expired reports whether the quote is no longer valid at t.
func (q *Quote) Expired(t time.Time) bool {
	return t.After(q.ValidUntil)
}

// Store persists issued quotes.
type Store interface {
	Save(ctx context.Context, q *Quote) error
	Find(ctx context.Context, reference string) (*Quote, error)
}

// Cache keeps recently issued quotes. Get returns a QUOTE_NOT_FOUND error
// on a miss.
type Cache interface {
	Put(ctx context.Context, q *Quote, ttl time.Duration) error
	Get(ctx context.Context, reference string) (*Quote, error)
}

// Option configures a Service.
type Option func(*Service)

// WithStore persists quotes in s.
func WithStore(s Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithCache caches quotes in c.
func WithCache(c Cache) Option {
	return func(svc *Service) { svc.cache = c }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// Service issues and retrieves quotes.
type Service struct {
	engine   *premium.Engine
	store    Store
	cache    Cache
	logger   *zap.Logger
	now      func() time.Time
	validity time.Duration
}

// NewService returns a quote service over engine.
func NewService(engine *premium.Engine, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		engine:   engine,
		logger:   logger,
		now:      time.Now,
		validity: constants.QuoteValidityDays * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Engine returns the premium engine quotes are priced with.
func (s *Service) Engine() *premium.Engine {
	return s.engine
}

// Quote prices req and issues a quote. Failing to store or cache the quote
// is logged and does not fail the request.
func (s *Service) Quote(ctx context.Context, req Request) (*Quote, error) {
	ids := append([]string(nil), req.Coverages...)
	var packName string
	if req.PackCode != "" {
		pack, err := s.engine.Document().Pack(req.PackCode)
		if err != nil {
			return nil, err
		}
		ids = append(ids, pack.Coverages...)
		packName = pack.Name
	}

	result, err := s.engine.ComputePremium(premium.Request{
		Vehicle:   &req.Vehicle,
		Contract:  &req.Contract,
		Selection: &coverage.Selection{Coverages: ids, PassengerOption: req.PassengerOption},
	})
	if err != nil {
		return nil, err
	}

	issued := s.now().UTC()
	q := &Quote{
		Reference:   NewReference(issued),
		PackCode:    strings.ToLower(req.PackCode),
		PackName:    packName,
		Vehicle:     req.Vehicle,
		Contract:    req.Contract,
		ContractEnd: req.Contract.EndDate(result.Months),
		Premium:     result,
		Currency:    constants.Currency,
		IssuedAt:    issued,
		ValidUntil:  issued.Add(s.validity),
	}

	if s.store != nil {
		if err := s.store.Save(ctx, q); err != nil {
			s.logger.Warn("failed to store quote",
				zap.String("op", "quote.Quote"),
				zap.String("reference", q.Reference),
				zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, q, s.validity); err != nil {
			s.logger.Warn("failed to cache quote",
				zap.String("op", "quote.Quote"),
				zap.String("reference", q.Reference),
				zap.Error(err))
		}
	}

	s.logger.Info("issued quote",
		zap.String("op", "quote.Quote"),
		zap.String("reference", q.Reference),
		zap.String("total", result.Total.String()),
		zap.String("tariff_version", result.TariffVersion))
	return q, nil
}

// Get returns an issued quote, from the cache when possible.
func (s *Service) Get(ctx context.Context, reference string) (*Quote, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	if s.cache != nil {
		q, err := s.cache.Get(ctx, reference)
		if err == nil {
			return q, nil
		}
		if !apperr.IsKind(err, apperr.KindQuoteNotFound) {
			s.logger.Warn("quote cache lookup failed",
				zap.String("op", "quote.Get"),
				zap.String("reference", reference),
				zap.Error(err))
		}
	}
	if s.store == nil {
		return nil, NotFound(reference)
	}

	q, err := s.store.Find(ctx, reference)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if ttl := q.ValidUntil.Sub(s.now()); ttl > 0 {
			if err := s.cache.Put(ctx, q, ttl); err != nil {
				s.logger.Warn("failed to cache quote",
					zap.String("op", "quote.Get"),
					zap.String("reference", reference),
					zap.Error(err))
			}
		}
	}
	return q, nil
}

// NotFound returns the error reported for an unknown reference. Store and
// Cache implementations return it on a miss.
func NotFound(reference string) error {
	return apperr.Newf(apperr.KindQuoteNotFound, "quote %q not found", reference)
}

// NewReference returns a quote reference: the prefix, the issue year and a
// hash of a random id, 16 characters in all.
func NewReference(issued time.Time) string {
	sum := sha256.Sum256([]byte(uuid.NewString() + issued.Format(time.RFC3339Nano)))
	prefix := fmt.Sprintf("%s%04d", constants.ReferencePrefix, issued.Year())
	return prefix + strings.ToUpper(hex.EncodeToString(sum[:]))[:constants.ReferenceLength-len(prefix)]
}
