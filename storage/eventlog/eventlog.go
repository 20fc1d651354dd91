// Package eventlog persists rendered protocol events to a SQL database so
// indexers and operators can query vault history without replaying state.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stablechain/core/types"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Record is one persisted event row.
type Record struct {
	ID         uint      `gorm:"primaryKey"`
	ReceiptID  string    `gorm:"size:36;index;not null"`
	Operation  string    `gorm:"size:32;index;not null"`
	Sequence   int       `gorm:"not null"`
	Type       string    `gorm:"size:64;index;not null"`
	Owner      string    `gorm:"size:96;index"`
	Attributes string    `gorm:"type:text;not null"`
	RecordedAt time.Time `gorm:"index;not null"`
}

// TableName pins the table name independent of gorm's pluraliser.
func (Record) TableName() string { return "stablecoin_events" }

// Decode returns the attribute map stored with the record.
func (r Record) Decode() (map[string]string, error) {
	out := map[string]string{}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Store writes and queries event records.
type Store struct {
	db *gorm.DB
}

// Open connects to driver/dsn and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("eventlog: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("eventlog: database required")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Append stores every event of one receipt in a single transaction.
func (s *Store) Append(ctx context.Context, receiptID, operation string, evs []*types.Event, at time.Time) error {
	if len(evs) == 0 {
		return nil
	}
	records := make([]Record, 0, len(evs))
	for i, ev := range evs {
		if ev == nil {
			continue
		}
		attrs, err := json.Marshal(ev.Attributes)
		if err != nil {
			return fmt.Errorf("eventlog: encode attributes: %w", err)
		}
		records = append(records, Record{
			ReceiptID:  receiptID,
			Operation:  operation,
			Sequence:   i,
			Type:       ev.Type,
			Owner:      ev.Attributes["owner"],
			Attributes: string(attrs),
			RecordedAt: at.UTC(),
		})
	}
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
}

// ByOwner lists the most recent events for owner, newest first.
func (s *Store) ByOwner(ctx context.Context, owner string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []Record
	err := s.db.WithContext(ctx).
		Where("owner = ?", strings.TrimSpace(owner)).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ByReceipt returns the events of one receipt in emission order.
func (s *Store) ByReceipt(ctx context.Context, receiptID string) ([]Record, error) {
	var out []Record
	err := s.db.WithContext(ctx).
		Where("receipt_id = ?", receiptID).
		Order("sequence ASC").
		Find(&out).Error
	return out, err
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
