// Package session persists scanning-session state: a BadgerDB key-value
// mirror of the live session and a SQLite log of finalized lists.
package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gradecart/gradecart/internal/config"
	"github.com/gradecart/gradecart/internal/scan"
)

// historyRecord is the SQLite row for one finalized list
type historyRecord struct {
	ID          string    `gorm:"primaryKey"`
	Timestamp   time.Time `gorm:"index"`
	SchoolName  string
	Grade       string
	TeacherName string
	Year        string
	ItemCount   int
	Items       json.RawMessage `gorm:"type:text"`
}

func (historyRecord) TableName() string {
	return "list_history"
}

// catalogRecord caches a product search response by cleaned term
type catalogRecord struct {
	Term      string          `gorm:"primaryKey"`
	Payload   json.RawMessage `gorm:"type:text"`
	FetchedAt time.Time
}

func (catalogRecord) TableName() string {
	return "catalog_cache"
}

// catalogCacheTTL bounds how stale a cached product search may be
const catalogCacheTTL = 24 * time.Hour

// Store provides unified access to SQLite and BadgerDB
type Store struct {
	db     *gorm.DB
	badger *badger.DB
}

// New opens both databases under the configured data directory
func New(cfg *config.Config) (*Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.Storage.DataDir, "gradecart.db")
	}

	sqliteDB, err := sql.Open("sqlite", sqlitePath+"?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqliteDB.SetMaxOpenConns(10)
	sqliteDB.SetMaxIdleConns(5)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&historyRecord{}, &catalogRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	badgerPath := cfg.Storage.BadgerPath
	if badgerPath == "" {
		badgerPath = filepath.Join(cfg.Storage.DataDir, "badger")
	}

	badgerOpts := badger.DefaultOptions(badgerPath).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db, badger: badgerDB}, nil
}

// Close closes all database connections
func (s *Store) Close() error {
	return s.badger.Close()
}

// DB returns the GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ==================== Session KV (BadgerDB) ====================

// Set stores a session record
func (s *Store) Set(key string, value []byte) error {
	return s.badger.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("session:"+key), value)
	})
}

// Get retrieves a session record; a missing key is not an error
func (s *Store) Get(key string) ([]byte, error) {
	var val []byte
	err := s.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("session:" + key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			val = append([]byte{}, v...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return val, err
}

// Delete removes a session record
func (s *Store) Delete(key string) error {
	return s.badger.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte("session:" + key))
	})
}

// ==================== List History (SQLite) ====================

// Append records a finalized list snapshot
func (s *Store) Append(entry scan.HistoryEntry) error {
	items, err := json.Marshal(entry.Items)
	if err != nil {
		return fmt.Errorf("failed to encode history items: %w", err)
	}
	record := &historyRecord{
		ID:          entry.ID,
		Timestamp:   entry.Timestamp,
		SchoolName:  entry.SchoolName,
		Grade:       entry.Grade,
		TeacherName: entry.TeacherName,
		Year:        entry.Year,
		ItemCount:   entry.ItemCount,
		Items:       items,
	}
	return s.db.Create(record).Error
}

// List returns the most recent finalized lists, newest first
func (s *Store) List(limit int) ([]scan.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []historyRecord
	if err := s.db.Order("timestamp DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}

	entries := make([]scan.HistoryEntry, 0, len(records))
	for _, record := range records {
		entry := scan.HistoryEntry{
			ID:          record.ID,
			Timestamp:   record.Timestamp,
			SchoolName:  record.SchoolName,
			Grade:       record.Grade,
			TeacherName: record.TeacherName,
			Year:        record.Year,
			ItemCount:   record.ItemCount,
		}
		if len(record.Items) > 0 {
			if err := json.Unmarshal(record.Items, &entry.Items); err != nil {
				return nil, fmt.Errorf("failed to decode history items: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ==================== Catalog Cache (SQLite) ====================

// GetSearch returns a cached product search payload, if fresh enough
func (s *Store) GetSearch(term string) ([]byte, bool) {
	var record catalogRecord
	err := s.db.Where("term = ?", term).First(&record).Error
	if err != nil {
		return nil, false
	}
	if time.Since(record.FetchedAt) > catalogCacheTTL {
		return nil, false
	}
	return record.Payload, true
}

// PutSearch caches a product search payload by term
func (s *Store) PutSearch(term string, payload []byte) error {
	record := &catalogRecord{
		Term:      term,
		Payload:   payload,
		FetchedAt: time.Now(),
	}
	return s.db.Save(record).Error
}

// PruneHistory deletes entries older than the cutoff and reports how many
func (s *Store) PruneHistory(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := s.db.Where("timestamp < ?", cutoff).Delete(&historyRecord{})
	return result.RowsAffected, result.Error
}
