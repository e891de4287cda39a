package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"timepresale/core/events"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultListLimit = 100
	maxListLimit     = 1000
)

var ErrUnsupportedDriver = errors.New("journal: unsupported driver")

// Entry is the persisted form of a committed ledger event.
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex;not null"`
	Type       string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

func (Entry) TableName() string { return "presale_events" }

// Record is the decoded view returned to readers.
type Record struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Query filters List results. Sequence numbers start at 1.
type Query struct {
	Type  string
	After uint64
	Limit int
}

// Store appends events to a relational table and serves them back in commit
// order. It implements events.Emitter.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	last uint64
}

// Open connects to the configured backend and migrates the schema.
func Open(driver, dsn string, logger *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", driver, err)
	}
	return New(db, logger)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("journal: nil database")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	var last uint64
	if err := db.Model(&Entry{}).Select("COALESCE(MAX(sequence), 0)").Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("journal: load sequence: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now, last: last}, nil
}

// Emit persists the event. Failures are logged; the ledger commit that
// produced the event has already happened.
func (s *Store) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	if _, err := s.Append(context.Background(), evt); err != nil {
		s.logger.Error("journal append failed", slog.String("type", evt.EventType()), slog.Any("error", err))
	}
}

// Append persists evt and returns the stored record.
func (s *Store) Append(ctx context.Context, evt events.Event) (*Record, error) {
	if evt == nil {
		return nil, errors.New("journal: nil event")
	}
	attrs := map[string]string{}
	if payload, ok := evt.(events.Payload); ok {
		if rendered := payload.Event(); rendered != nil && rendered.Attributes != nil {
			attrs = rendered.Attributes
		}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := Entry{
		ID:         uuid.New(),
		Sequence:   s.last + 1,
		Type:       evt.EventType(),
		Attributes: string(encoded),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("journal: insert: %w", err)
	}
	s.last = entry.Sequence
	return entry.record()
}

// List returns events in sequence order.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	tx := s.db.WithContext(ctx).Model(&Entry{}).Where("sequence > ?", q.After)
	if typ := strings.TrimSpace(q.Type); typ != "" {
		tx = tx.Where("type = ?", typ)
	}
	var rows []Entry
	if err := tx.Order("sequence ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for i := range rows {
		record, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (e *Entry) record() (*Record, error) {
	attrs := map[string]string{}
	if e.Attributes != "" {
		if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("journal: decode attributes of %s: %w", e.ID, err)
		}
	}
	return &Record{
		ID:         e.ID.String(),
		Sequence:   e.Sequence,
		Type:       e.Type,
		Attributes: attrs,
		CreatedAt:  e.CreatedAt,
	}, nil
}
