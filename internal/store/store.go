// Package store persists issued quotes in the insurance_simulations table.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/iwvelando/premium-engine/internal/quote"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Simulation is one stored quote. The columns hold what is queried; the
// full quote lives in Payload.
type Simulation struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Reference     string          `gorm:"size:16;not null;uniqueIndex" json:"reference"`
	Category      int             `gorm:"not null" json:"category"`
	HorsePower    int             `gorm:"not null" json:"horse_power"`
	PackCode      string          `gorm:"size:50" json:"pack_code"`
	Coverages     string          `gorm:"not null" json:"coverages"`
	BasePremium   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"base_premium"`
	TotalPremium  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_premium"`
	Currency      string          `gorm:"size:3;not null" json:"currency"`
	TariffVersion string          `gorm:"size:50;not null" json:"tariff_version"`
	Payload       string          `gorm:"type:jsonb;not null" json:"-"`
	IssuedAt      time.Time       `gorm:"not null;index" json:"issued_at"`
	ValidUntil    time.Time       `gorm:"not null" json:"valid_until"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TableName implements gorm's tabler.
func (Simulation) TableName() string {
	return "insurance_simulations"
}

// Open connects to Postgres through gorm.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to quote database, %w", err)
	}
	return db, nil
}

// Migrate creates or updates the simulations table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Simulation{})
}

// Repository stores quotes with gorm. It implements quote.Store.
type Repository struct {
	DB *gorm.DB
}

// NewRepository returns a repository over db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

// Save implements quote.Store.
func (r *Repository) Save(ctx context.Context, q *quote.Quote) error {
	rec, err := ToSimulation(q)
	if err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Create(rec).Error
}

// Find implements quote.Store.
func (r *Repository) Find(ctx context.Context, reference string) (*quote.Quote, error) {
	var rec Simulation
	err := r.DB.WithContext(ctx).Where("reference = ?", reference).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, quote.NotFound(reference)
	}
	if err != nil {
		return nil, err
	}
	return rec.Quote()
}

// Recent lists the latest stored simulations, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Simulation, error) {
	var recs []Simulation
	err := r.DB.WithContext(ctx).Order("issued_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// ToSimulation converts a quote into its stored form.
func ToSimulation(q *quote.Quote) (*Simulation, error) {
	if q.Premium == nil {
		return nil, fmt.Errorf("quote %s has no premium", q.Reference)
	}
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("unable to encode quote %s, %w", q.Reference, err)
	}
	ids := make([]string, 0, len(q.Premium.Coverages))
	for _, c := range q.Premium.Coverages {
		ids = append(ids, c.Coverage)
	}
	return &Simulation{
		Reference:     q.Reference,
		Category:      q.Vehicle.Category,
		HorsePower:    q.Vehicle.HorsePower,
		PackCode:      q.PackCode,
		Coverages:     strings.Join(ids, ","),
		BasePremium:   q.Premium.BasePremium,
		TotalPremium:  q.Premium.Total,
		Currency:      q.Currency,
		TariffVersion: q.Premium.TariffVersion,
		Payload:       string(payload),
		IssuedAt:      q.IssuedAt,
		ValidUntil:    q.ValidUntil,
	}, nil
}

// Quote decodes the stored quote.
func (s *Simulation) Quote() (*quote.Quote, error) {
	var q quote.Quote
	if err := json.Unmarshal([]byte(s.Payload), &q); err != nil {
		return nil, fmt.Errorf("unable to decode stored quote %s, %w", s.Reference, err)
	}
	return &q, nil
}
