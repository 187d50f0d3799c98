// Package eventstore persists committed ledger events so the API can serve
// history without replaying state.
package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crosslend/core/events"
	"crosslend/core/types"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Record is one committed event.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type       string    `gorm:"size:64;index"`
	LoanID     string    `gorm:"size:64;index"`
	OfferID    string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName pins the table name independent of the struct name.
func (Record) TableName() string { return "lending_events" }

// Event decodes the stored attributes back into an event.
func (r Record) Event() (*types.Event, error) {
	attrs := map[string]string{}
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("decode attributes of %s: %w", r.ID, err)
		}
	}
	return &types.Event{Type: r.Type, Attributes: attrs}, nil
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Type    string
	LoanID  string
	OfferID string
	Limit   int
}

// Open connects to the configured driver.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("eventstore: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("eventstore: open %s: %w", driver, err)
	}
	return db, nil
}

// AutoMigrate creates or updates the event table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// Store implements events.Emitter on top of gorm.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func New(db *gorm.DB, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, logger: log, now: time.Now}
}

// Emit persists evt. Emit runs after the ledger commit, so a failed insert
// is logged and never rolls back the transition.
func (s *Store) Emit(evt events.Event) {
	if s == nil || s.db == nil || evt == nil {
		return
	}
	rendered := evt.Event()
	if rendered == nil {
		return
	}
	raw, err := json.Marshal(rendered.Attributes)
	if err != nil {
		s.logger.Error("encode event attributes", slog.String("type", rendered.Type), slog.Any("error", err))
		return
	}
	record := Record{
		ID:         uuid.New(),
		Type:       rendered.Type,
		LoanID:     rendered.Attribute("loanId"),
		OfferID:    rendered.Attribute("offerId"),
		Attributes: string(raw),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.logger.Error("persist event", slog.String("type", record.Type), slog.Any("error", err))
	}
}

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query := s.db.WithContext(ctx).Model(&Record{})
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.LoanID != "" {
		query = query.Where("loan_id = ?", f.LoanID)
	}
	if f.OfferID != "" {
		query = query.Where("offer_id = ?", f.OfferID)
	}
	var records []Record
	if err := query.Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
