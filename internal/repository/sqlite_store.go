package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"IndiCache/internal/domain/models"
	domrepo "IndiCache/internal/domain/repository"
)

// SQLiteStore is the alternative cache and meta backend for deployments
// that prefer one database file over a JSON tree. Artifacts stay on the
// filesystem either way. The pure-Go driver keeps the binary free of cgo;
// WAL mode plus a single connection gives the same single-writer
// guarantee the meta manager relies on.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cohort         TEXT NOT NULL,
	family         TEXT NOT NULL,
	code           TEXT NOT NULL,
	fingerprint    TEXT NOT NULL,
	last_date      TEXT NOT NULL,
	row_count      INTEGER NOT NULL,
	plugin_state   BLOB,
	last_calc_time TEXT NOT NULL,
	PRIMARY KEY (cohort, family, code)
);
CREATE TABLE IF NOT EXISTS meta_records (
	scope   TEXT PRIMARY KEY,
	payload BLOB NOT NULL
);
`

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// EnsureInitialized is a no-op beyond schema creation.
func (s *SQLiteStore) EnsureInitialized(_ context.Context, _ []string) error { return nil }

// GetEntry loads one cache entry.
func (s *SQLiteStore) GetEntry(ctx context.Context, cohort, family, code string) (*models.CacheEntry, error) {
	const q = `
		SELECT fingerprint, last_date, row_count, plugin_state, last_calc_time
		FROM cache_entries
		WHERE cohort = ? AND family = ? AND code = ?
	`
	entry := &models.CacheEntry{Code: code, Family: family}
	var calcTime string
	err := s.db.QueryRowContext(ctx, q, cohort, family, code).Scan(
		&entry.Fingerprint, &entry.LastDate, &entry.RowCount, &entry.PluginState, &calcTime,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if t, perr := time.Parse(time.RFC3339Nano, calcTime); perr == nil {
		entry.LastCalcTime = t
	}
	return entry, nil
}

// PutEntry upserts one cache entry.
func (s *SQLiteStore) PutEntry(ctx context.Context, cohort string, entry *models.CacheEntry) error {
	const q = `
		INSERT INTO cache_entries
			(cohort, family, code, fingerprint, last_date, row_count, plugin_state, last_calc_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (cohort, family, code) DO UPDATE SET
			fingerprint    = excluded.fingerprint,
			last_date      = excluded.last_date,
			row_count      = excluded.row_count,
			plugin_state   = excluded.plugin_state,
			last_calc_time = excluded.last_calc_time
	`
	_, err := s.db.ExecContext(ctx, q,
		cohort, entry.Family, entry.Code,
		entry.Fingerprint, entry.LastDate, entry.RowCount,
		[]byte(entry.PluginState), entry.LastCalcTime.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	return nil
}

// DeleteEntry removes one cache entry; absence is not an error.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, cohort, family, code string) error {
	const q = `DELETE FROM cache_entries WHERE cohort = ? AND family = ? AND code = ?`
	if _, err := s.db.ExecContext(ctx, q, cohort, family, code); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// ListEntries loads all entries of one (cohort, family), sorted by code.
func (s *SQLiteStore) ListEntries(ctx context.Context, cohort, family string) ([]*models.CacheEntry, error) {
	const q = `
		SELECT code, fingerprint, last_date, row_count, plugin_state, last_calc_time
		FROM cache_entries
		WHERE cohort = ? AND family = ?
		ORDER BY code ASC
	`
	rows, err := s.db.QueryContext(ctx, q, cohort, family)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.CacheEntry
	for rows.Next() {
		entry := &models.CacheEntry{Family: family}
		var calcTime string
		if err := rows.Scan(&entry.Code, &entry.Fingerprint, &entry.LastDate, &entry.RowCount, &entry.PluginState, &calcTime); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, calcTime); perr == nil {
			entry.LastCalcTime = t
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// LoadCohortMeta loads a cohort record from its JSON payload.
func (s *SQLiteStore) LoadCohortMeta(ctx context.Context, cohort string) (*models.CohortMeta, error) {
	payload, err := s.loadMeta(ctx, "cohort:"+cohort)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return models.NewCohortMeta(cohort), nil
	}
	var meta models.CohortMeta
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, models.MetaCorruptionError(fmt.Errorf("cohort %s: %w", cohort, err))
	}
	if meta.Cohort == "" {
		meta.Cohort = cohort
	}
	return &meta, nil
}

// SaveCohortMeta upserts a cohort record.
func (s *SQLiteStore) SaveCohortMeta(ctx context.Context, meta *models.CohortMeta) error {
	return s.saveMeta(ctx, "cohort:"+meta.Cohort, meta)
}

// LoadGlobalMeta loads the global record.
func (s *SQLiteStore) LoadGlobalMeta(ctx context.Context) (*models.GlobalMeta, error) {
	payload, err := s.loadMeta(ctx, "global")
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return &models.GlobalMeta{}, nil
	}
	var meta models.GlobalMeta
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, models.MetaCorruptionError(fmt.Errorf("global: %w", err))
	}
	return &meta, nil
}

// SaveGlobalMeta upserts the global record.
func (s *SQLiteStore) SaveGlobalMeta(ctx context.Context, meta *models.GlobalMeta) error {
	return s.saveMeta(ctx, "global", meta)
}

func (s *SQLiteStore) loadMeta(ctx context.Context, scope string) ([]byte, error) {
	const q = `SELECT payload FROM meta_records WHERE scope = ?`
	var payload []byte
	err := s.db.QueryRowContext(ctx, q, scope).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load meta %s: %w", scope, err)
	}
	return payload, nil
}

func (s *SQLiteStore) saveMeta(ctx context.Context, scope string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal meta %s: %w", scope, err)
	}
	const q = `
		INSERT INTO meta_records (scope, payload) VALUES (?, ?)
		ON CONFLICT (scope) DO UPDATE SET payload = excluded.payload
	`
	if _, err := s.db.ExecContext(ctx, q, scope, payload); err != nil {
		return fmt.Errorf("save meta %s: %w", scope, err)
	}
	return nil
}
