// Package sqlstore persists repayment records in SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/repayment"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Store implements repayment.Store on a SQLite database.
type Store struct {
	db *sqlx.DB
}

var _ repayment.Store = &Store{}

// New opens (or creates) the database at cfg.SQLitePath and applies pending migrations.
func New(cfg config.Payment) (repayment.Store, error) {
	return Open(cfg.SQLitePath)
}

// Open opens (or creates) a SQLite database at path, enables WAL mode, and runs any pending
// schema migrations.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// Pragmas are per connection, and SQLite admits a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info().Str("module", "repayment").Str("phase", "startup").Str("path", path).
		Msg("Opened SQLite repayment store")
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.Get(&v, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	return v, err
}

// runMigrations checks the current schema version and applies any outstanding migrations in
// order.
func (s *Store) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if currentVersion, err = s.SchemaVersion(); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// Get implements repayment.Store.
func (s *Store) Get(ctx context.Context, entityID string) (*repayment.Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, "SELECT * FROM repayments WHERE entity_id = ?", entityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("querying repayment %s: %w", entityID, err)
	}
	return r.record()
}

// Put implements repayment.Store.
func (s *Store) Put(ctx context.Context, rec *repayment.Record) error {
	r, err := toRow(rec)
	if err != nil {
		return err
	}
	const query = `
		INSERT OR REPLACE INTO repayments (
			entity_id, entity_name, entity_group_id, display_name,
			description, logo_url, keywords, ranking_hint,
			expiration_time, modification_time, activity_type, is_public_data,
			extras, payment_id, updated_at
		) VALUES (
			:entity_id, :entity_name, :entity_group_id, :display_name,
			:description, :logo_url, :keywords, :ranking_hint,
			:expiration_time, :modification_time, :activity_type, :is_public_data,
			:extras, :payment_id, :updated_at
		)`
	if _, err := s.db.NamedExecContext(ctx, query, r); err != nil {
		return fmt.Errorf("upserting repayment %s: %w", rec.EntityID, err)
	}
	return nil
}

// row is the database layout of a repayment.Record.  List and object fields are JSON encoded.
type row struct {
	EntityID         string          `db:"entity_id"`
	EntityName       string          `db:"entity_name"`
	EntityGroupID    string          `db:"entity_group_id"`
	DisplayName      string          `db:"display_name"`
	Description      string          `db:"description"`
	LogoURL          string          `db:"logo_url"`
	Keywords         string          `db:"keywords"`
	RankingHint      sql.NullFloat64 `db:"ranking_hint"`
	ExpirationTime   sql.NullFloat64 `db:"expiration_time"`
	ModificationTime sql.NullFloat64 `db:"modification_time"`
	ActivityType     string          `db:"activity_type"`
	IsPublicData     sql.NullBool    `db:"is_public_data"`
	Extras           string          `db:"extras"`
	PaymentID        string          `db:"payment_id"`
	UpdatedAt        int64           `db:"updated_at"` // Unix microseconds.
}

func toRow(rec *repayment.Record) (*row, error) {
	r := &row{
		EntityID:         rec.EntityID,
		EntityName:       rec.EntityName,
		EntityGroupID:    rec.EntityGroupID,
		DisplayName:      rec.DisplayName,
		Description:      rec.Description,
		LogoURL:          rec.LogoURL,
		RankingHint:      nullFloat(rec.RankingHint),
		ExpirationTime:   nullFloat(rec.ExpirationTime),
		ModificationTime: nullFloat(rec.MetadataModificationTime),
		PaymentID:        rec.PaymentID,
		UpdatedAt:        rec.UpdatedAt.UnixMicro(),
	}
	if rec.IsPublicData != nil {
		r.IsPublicData = sql.NullBool{Bool: *rec.IsPublicData, Valid: true}
	}
	var err error
	if r.Keywords, err = encodeJSON(rec.Keywords); err != nil {
		return nil, fmt.Errorf("marshaling keywords for %s: %w", rec.EntityID, err)
	}
	if r.ActivityType, err = encodeJSON(rec.ActivityType); err != nil {
		return nil, fmt.Errorf("marshaling activity_type for %s: %w", rec.EntityID, err)
	}
	if r.Extras, err = encodeJSON(rec.Extras); err != nil {
		return nil, fmt.Errorf("marshaling extras for %s: %w", rec.EntityID, err)
	}
	return r, nil
}

func (r *row) record() (*repayment.Record, error) {
	rec := &repayment.Record{
		EntityID:                 r.EntityID,
		EntityName:               r.EntityName,
		EntityGroupID:            r.EntityGroupID,
		DisplayName:              r.DisplayName,
		Description:              r.Description,
		LogoURL:                  r.LogoURL,
		RankingHint:              floatPtr(r.RankingHint),
		ExpirationTime:           floatPtr(r.ExpirationTime),
		MetadataModificationTime: floatPtr(r.ModificationTime),
		PaymentID:                r.PaymentID,
		UpdatedAt:                time.UnixMicro(r.UpdatedAt).UTC(),
	}
	if r.IsPublicData.Valid {
		v := r.IsPublicData.Bool
		rec.IsPublicData = &v
	}
	if err := json.Unmarshal([]byte(r.Keywords), &rec.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshaling keywords for %s: %w", r.EntityID, err)
	}
	if err := json.Unmarshal([]byte(r.ActivityType), &rec.ActivityType); err != nil {
		return nil, fmt.Errorf("unmarshaling activity_type for %s: %w", r.EntityID, err)
	}
	if err := json.Unmarshal([]byte(r.Extras), &rec.Extras); err != nil {
		return nil, fmt.Errorf("unmarshaling extras for %s: %w", r.EntityID, err)
	}
	return rec, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
