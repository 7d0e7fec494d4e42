package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tessro/encore/internal/blobstore"
	apperrors "github.com/tessro/encore/internal/errors"
	"github.com/tessro/encore/internal/prefs"
)

// ExportData is a complete backup of preferences and blob stores.
type ExportData struct {
	ID           string                                         `json:"id,omitempty"`
	Version      string                                         `json:"version"`
	Timestamp    int64                                          `json:"timestamp"` // epoch ms
	LocalStorage map[string]json.RawMessage                     `json:"localStorage"`
	IndexedDB    map[blobstore.DB]map[string][]blobstore.Record `json:"indexedDB"`
}

// RecordCount returns the number of blob records in the backup.
func (d *ExportData) RecordCount() int {
	n := 0
	for _, stores := range d.IndexedDB {
		for _, records := range stores {
			n += len(records)
		}
	}
	return n
}

// DefaultFileName returns the suggested backup file name for t.
func DefaultFileName(t time.Time) string {
	return fmt.Sprintf("encore-backup-%s.json", t.Format("2006-01-02"))
}

// Export collects every preference and every record of every store.
func (m *Migrator) Export(ctx context.Context) (*ExportData, error) {
	data := &ExportData{
		ID:           uuid.NewString(),
		Version:      strconv.Itoa(m.Version()),
		Timestamp:    m.Now().UnixMilli(),
		LocalStorage: m.prefs.All(),
		IndexedDB:    make(map[blobstore.DB]map[string][]blobstore.Record),
	}
	for _, schema := range blobstore.Schemas {
		stores := make(map[string][]blobstore.Record, len(schema.Stores))
		for _, name := range schema.Stores {
			records, err := m.store.GetAll(ctx, schema.DB, name)
			if err != nil {
				return nil, fmt.Errorf("failed to export %s/%s: %w", schema.DB, name, err)
			}
			if records == nil {
				records = []blobstore.Record{}
			}
			stores[name] = records
		}
		data.IndexedDB[schema.DB] = stores
	}
	return data, nil
}

// WriteExport writes a backup as indented JSON.
func (m *Migrator) WriteExport(ctx context.Context, w io.Writer) (*ExportData, error) {
	data, err := m.Export(ctx)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	return data, nil
}

// ExportFile writes a backup to path, creating parent directories.
func (m *Migrator) ExportFile(ctx context.Context, path string) (*ExportData, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	data, err := m.WriteExport(ctx, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close backup file: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return data, nil
}

// Decode parses and validates a backup without writing anything.
func Decode(r io.Reader) (*ExportData, error) {
	var data ExportData
	dec := json.NewDecoder(r)
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrBackupValidation, err)
	}
	if err := Validate(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Validate checks a decoded backup. Every problem is reported.
func Validate(data *ExportData) error {
	var problems []error
	version, err := strconv.Atoi(data.Version)
	switch {
	case data.Version == "":
		problems = append(problems, errors.New("missing version"))
	case err != nil:
		problems = append(problems, fmt.Errorf("version %q is not a number", data.Version))
	case version < 1 || version > CurrentVersion:
		problems = append(problems, fmt.Errorf("unsupported version %d", version))
	}
	if data.Timestamp <= 0 {
		problems = append(problems, errors.New("missing timestamp"))
	}
	if data.LocalStorage == nil {
		problems = append(problems, errors.New("missing localStorage"))
	}
	for key, raw := range data.LocalStorage {
		if key == "" {
			problems = append(problems, errors.New("localStorage: empty key"))
		}
		if !json.Valid(raw) {
			problems = append(problems, fmt.Errorf("localStorage %q: invalid JSON", key))
		}
	}
	if data.IndexedDB == nil {
		problems = append(problems, errors.New("missing indexedDB"))
	}
	for db, stores := range data.IndexedDB {
		schema, ok := blobstore.SchemaFor(db)
		if !ok {
			problems = append(problems, fmt.Errorf("unknown database %q", db))
			continue
		}
		for name, records := range stores {
			if !hasStore(schema, name) {
				problems = append(problems, fmt.Errorf("unknown store %s/%s", db, name))
				continue
			}
			for i, rec := range records {
				if rec.Key == "" {
					problems = append(problems, fmt.Errorf("%s/%s record %d: empty key", db, name, i))
				}
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", apperrors.ErrBackupValidation, errors.Join(problems...))
	}
	return nil
}

func hasStore(schema blobstore.Schema, name string) bool {
	for _, s := range schema.Stores {
		if s == name {
			return true
		}
	}
	return false
}

// Import validates a backup completely, then overwrites matching preference
// keys and stores and records the backup's version. Later migrations are
// applied afterwards. A backup that fails validation writes nothing.
func (m *Migrator) Import(ctx context.Context, r io.Reader) (*ExportData, error) {
	data, err := Decode(r)
	if err != nil {
		return nil, err
	}
	if err := m.apply(ctx, data); err != nil {
		return nil, err
	}
	if _, err := m.Run(ctx); err != nil {
		return nil, err
	}
	m.logger.Info("imported backup", "version", data.Version, "records", data.RecordCount(), "keys", len(data.LocalStorage))
	return data, nil
}

// ImportFile imports the backup at path.
func (m *Migrator) ImportFile(ctx context.Context, path string) (*ExportData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()
	return m.Import(ctx, f)
}

func (m *Migrator) apply(ctx context.Context, data *ExportData) error {
	for key, raw := range data.LocalStorage {
		if key == prefs.KeyStorageVersion {
			continue
		}
		if err := m.prefs.SetRaw(key, raw); err != nil {
			return fmt.Errorf("failed to restore %q: %w", key, err)
		}
	}
	for db, stores := range data.IndexedDB {
		for name, records := range stores {
			if err := m.store.Clear(ctx, db, name); err != nil {
				return err
			}
			for _, rec := range records {
				if err := m.store.Put(ctx, db, name, rec.Key, rec.Value); err != nil {
					return err
				}
			}
		}
	}
	version, _ := strconv.Atoi(data.Version)
	return m.prefs.SetStorageVersion(version)
}
