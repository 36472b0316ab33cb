// Package state persists the client-local fields that outlive a single
// page view: the current session identity and the ids of purchase
// requests created from this client.
package state

import (
	"fmt"
	"regexp"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nrekik/b1-purchasing-portal/internal/models"
)

var kvPairRegex = regexp.MustCompile(`(?i)\b(host|user|password|dbname|port|sslmode)=`)

// NormalizeDSN accepts either a URL style DSN (postgres://...) or a
// lib/pq key=value list, trims quotes and whitespace, and supplements a
// missing sslmode for key=value form.
func NormalizeDSN(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"'")
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return s
	}
	if !kvPairRegex.MatchString(s) {
		return s
	}
	cleaned := strings.Join(strings.Fields(s), " ")
	if !strings.Contains(strings.ToLower(cleaned), "sslmode=") {
		cleaned += " sslmode=disable"
	}
	return cleaned
}

// isPostgres reports whether the DSN targets postgres rather than a
// sqlite file path.
func isPostgres(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		kvPairRegex.MatchString(lower)
}

// Open connects to the state database and applies migrations. Sqlite is
// the default (a plain file path or file: URI); a postgres DSN is
// detected by its scheme or key=value form.
func Open(dsn string) (*gorm.DB, error) {
	var db *gorm.DB
	var err error
	if isPostgres(dsn) {
		db, err = gorm.Open(postgres.Open(NormalizeDSN(dsn)), &gorm.Config{})
	} else {
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate applies the GORM auto-migrations for the state models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.SessionRecord{},
		&models.CreatedDocument{},
	); err != nil {
		return fmt.Errorf("migrate state db: %w", err)
	}
	return nil
}

// Store wraps the state database with the operations the session manager
// and the purchasing flow need.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveSession replaces the persisted session with the given one. A single
// row is kept; there is never more than one session per client.
func (s *Store) SaveSession(sess models.Session) error {
	if err := s.db.Where("1 = 1").Delete(&models.SessionRecord{}).Error; err != nil {
		return err
	}
	rec := models.SessionRecord{
		SessionID:      sess.SessionID,
		TimeoutMinutes: sess.TimeoutMinutes,
		CreatedAtMs:    sess.CreatedAtMs,
	}
	return s.db.Create(&rec).Error
}

// LoadSession returns the persisted session, or the zero session when
// none is stored.
func (s *Store) LoadSession() (models.Session, error) {
	var rec models.SessionRecord
	err := s.db.Order("id desc").First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return models.Session{}, nil
	}
	if err != nil {
		return models.Session{}, err
	}
	return rec.Session(), nil
}

// ClearSession removes any persisted session.
func (s *Store) ClearSession() error {
	return s.db.Where("1 = 1").Delete(&models.SessionRecord{}).Error
}

// RecordDocument remembers a purchase request created from this client so
// the requests view can query it back later.
func (s *Store) RecordDocument(docEntry, docNum int) error {
	doc := models.CreatedDocument{DocEntry: docEntry, DocNum: docNum}
	return s.db.Create(&doc).Error
}

// DocumentEntries returns the recorded purchase request ids, newest
// first.
func (s *Store) DocumentEntries() ([]int, error) {
	var entries []int
	err := s.db.Model(&models.CreatedDocument{}).
		Order("doc_entry desc").
		Pluck("doc_entry", &entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
