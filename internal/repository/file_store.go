package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"IndiCache/internal/domain/models"
	domrepo "IndiCache/internal/domain/repository"
	"IndiCache/pkg/fsutil"
)

// FileStore is the default on-disk backend. It keeps the three stores of
// the engine under one base directory:
//
//	<base>/cache/<cohort>/<family>/<code>.json   cache entries
//	<base>/output/<cohort>/<family>/<code>.csv   indicator artifacts
//	<base>/meta/<cohort>_meta.json               cohort meta
//	<base>/meta/global_meta.json                 global meta
//
// Every write goes through a temp file and an atomic rename, so a crash
// at any point leaves either the old artifact or the new one, never a
// torn file. Entries and artifacts are partitioned per symbol, so
// concurrent workers never touch the same path.
type FileStore struct {
	base string
}

// NewFileStore creates a store rooted at base.
func NewFileStore(base string) *FileStore {
	return &FileStore{base: base}
}

const calcTimeLayout = time.RFC3339Nano

func (s *FileStore) cacheDir(cohort, family string) string {
	return filepath.Join(s.base, "cache", cohort, family)
}

func (s *FileStore) entryPath(cohort, family, code string) string {
	return filepath.Join(s.cacheDir(cohort, family), code+".json")
}

func (s *FileStore) outputDir(cohort, family string) string {
	return filepath.Join(s.base, "output", cohort, family)
}

func (s *FileStore) artifactPath(cohort, family, code string) string {
	return filepath.Join(s.outputDir(cohort, family), code+".csv")
}

func (s *FileStore) cohortMetaPath(cohort string) string {
	return filepath.Join(s.base, "meta", cohort+"_meta.json")
}

func (s *FileStore) globalMetaPath() string {
	return filepath.Join(s.base, "meta", "global_meta.json")
}

// EnsureInitialized creates the directory skeleton for the given cohorts.
func (s *FileStore) EnsureInitialized(_ context.Context, cohorts []string) error {
	dirs := []string{
		filepath.Join(s.base, "cache"),
		filepath.Join(s.base, "output"),
		filepath.Join(s.base, "meta"),
	}
	for _, cohort := range cohorts {
		dirs = append(dirs,
			filepath.Join(s.base, "cache", cohort),
			filepath.Join(s.base, "output", cohort),
		)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}

// GetEntry loads one cache entry.
func (s *FileStore) GetEntry(_ context.Context, cohort, family, code string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := fsutil.ReadJSON(s.entryPath(cohort, family, code), &entry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domrepo.ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// PutEntry persists one cache entry atomically.
func (s *FileStore) PutEntry(_ context.Context, cohort string, entry *models.CacheEntry) error {
	dir := s.cacheDir(cohort, entry.Family)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return fsutil.WriteJSONAtomic(s.entryPath(cohort, entry.Family, entry.Code), entry)
}

// DeleteEntry removes one cache entry; absence is not an error.
func (s *FileStore) DeleteEntry(_ context.Context, cohort, family, code string) error {
	err := os.Remove(s.entryPath(cohort, family, code))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ListEntries loads all entries of one (cohort, family), sorted by code.
func (s *FileStore) ListEntries(_ context.Context, cohort, family string) ([]*models.CacheEntry, error) {
	dir := s.cacheDir(cohort, family)
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var entries []*models.CacheEntry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		var entry models.CacheEntry
		if err := fsutil.ReadJSON(filepath.Join(dir, f.Name()), &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })
	return entries, nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

// WriteFull replaces the artifact with the given rows in one rename.
func (s *FileStore) WriteFull(_ context.Context, cohort, family, code string, fields []string, rows []models.IndicatorRow) error {
	dir := s.outputDir(cohort, family)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(artifactHeader(fields)); err != nil {
		return err
	}
	if err := writeRows(w, rows); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.artifactPath(cohort, family, code), buf.Bytes())
}

// AppendRows extends the artifact, keeping the existing bytes as an
// untouched prefix. The combined content is still written through a temp
// file and rename. A missing artifact degrades to a full write.
func (s *FileStore) AppendRows(ctx context.Context, cohort, family, code string, fields []string, rows []models.IndicatorRow) error {
	path := s.artifactPath(cohort, family, code)
	existing, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.WriteFull(ctx, cohort, family, code, fields, rows)
		}
		return fmt.Errorf("read artifact %s: %w", path, err)
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		buf.WriteByte('\n')
	}
	w := csv.NewWriter(&buf)
	if err := writeRows(w, rows); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes())
}

// ReadArtifact parses an artifact back into rows.
func (s *FileStore) ReadArtifact(_ context.Context, cohort, family, code string) ([]models.IndicatorRow, error) {
	path := s.artifactPath(cohort, family, code)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("artifact %s: empty", path)
	}
	header := records[0]
	if len(header) < 3 {
		return nil, fmt.Errorf("artifact %s: short header %v", path, header)
	}

	rows := make([]models.IndicatorRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("artifact %s: ragged row %v", path, rec)
		}
		row := models.IndicatorRow{Code: rec[0], Date: rec[1]}
		for _, field := range rec[2 : len(rec)-1] {
			v, err := parseValue(field)
			if err != nil {
				return nil, fmt.Errorf("artifact %s: %w", path, err)
			}
			row.Values = append(row.Values, v)
		}
		if ts := rec[len(rec)-1]; ts != "" {
			t, err := time.Parse(calcTimeLayout, ts)
			if err != nil {
				return nil, fmt.Errorf("artifact %s: calc_time: %w", path, err)
			}
			row.CalcTime = t
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// RemoveArtifact deletes one artifact; absence is not an error.
func (s *FileStore) RemoveArtifact(_ context.Context, cohort, family, code string) error {
	err := os.Remove(s.artifactPath(cohort, family, code))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ListArtifacts returns the symbol codes with an artifact on disk.
func (s *FileStore) ListArtifacts(_ context.Context, cohort, family string) ([]string, error) {
	dir := s.outputDir(cohort, family)
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var codes []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".csv") {
			continue
		}
		codes = append(codes, strings.TrimSuffix(f.Name(), ".csv"))
	}
	sort.Strings(codes)
	return codes, nil
}

// LoadCohortMeta loads a cohort record; a missing file yields an empty
// record and a corrupt one a meta corruption error.
func (s *FileStore) LoadCohortMeta(_ context.Context, cohort string) (*models.CohortMeta, error) {
	var meta models.CohortMeta
	err := fsutil.ReadJSON(s.cohortMetaPath(cohort), &meta)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.NewCohortMeta(cohort), nil
		}
		return nil, models.MetaCorruptionError(err)
	}
	if meta.Cohort == "" {
		meta.Cohort = cohort
	}
	return &meta, nil
}

// SaveCohortMeta persists a cohort record atomically.
func (s *FileStore) SaveCohortMeta(_ context.Context, meta *models.CohortMeta) error {
	if err := os.MkdirAll(filepath.Join(s.base, "meta"), 0o755); err != nil {
		return err
	}
	return fsutil.WriteJSONAtomic(s.cohortMetaPath(meta.Cohort), meta)
}

// LoadGlobalMeta loads the global record with the same missing/corrupt
// semantics as the cohort records.
func (s *FileStore) LoadGlobalMeta(_ context.Context) (*models.GlobalMeta, error) {
	var meta models.GlobalMeta
	err := fsutil.ReadJSON(s.globalMetaPath(), &meta)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &models.GlobalMeta{}, nil
		}
		return nil, models.MetaCorruptionError(err)
	}
	return &meta, nil
}

// SaveGlobalMeta persists the global record atomically.
func (s *FileStore) SaveGlobalMeta(_ context.Context, meta *models.GlobalMeta) error {
	if err := os.MkdirAll(filepath.Join(s.base, "meta"), 0o755); err != nil {
		return err
	}
	return fsutil.WriteJSONAtomic(s.globalMetaPath(), meta)
}

func artifactHeader(fields []string) []string {
	header := make([]string, 0, len(fields)+3)
	header = append(header, "code", "date")
	header = append(header, fields...)
	header = append(header, "calc_time")
	return header
}

func writeRows(w *csv.Writer, rows []models.IndicatorRow) error {
	for _, row := range rows {
		rec := make([]string, 0, len(row.Values)+3)
		rec = append(rec, row.Code, row.Date)
		for _, v := range row.Values {
			rec = append(rec, v.String())
		}
		rec = append(rec, row.CalcTime.UTC().Format(calcTimeLayout))
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func parseValue(s string) (models.Value, error) {
	if s == "" {
		return models.Null(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return models.Value{}, fmt.Errorf("value %q: %w", s, err)
	}
	return models.Num(f), nil
}
