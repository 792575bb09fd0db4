// Package csvstore persists station x date matrices as CSV snapshots.
//
// Layout:
//
//	date,Sha Tin,Tai Po
//	2024-05-01,12.5,0
//	2024-05-02,0,3.25
//
// Values are written in the shortest decimal form that parses back to the
// same float64, so Load(Store(m)) reproduces every cell exactly.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/rainfall-etl/internal/domain"
)

// DateColumn is the header label of the first column.
const DateColumn = "date"

// ErrMalformed is wrapped by every Load error caused by file content.
var ErrMalformed = errors.New("malformed matrix csv")

// Store writes m as CSV: a header row, then one row per date.
func Store(w io.Writer, m *domain.Matrix) error {
	cw := csv.NewWriter(w)

	header := append([]string{DateColumn}, m.Stations()...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, d := range m.Dates() {
		row := m.Row(i)
		record := make([]string, 0, len(row)+1)
		record = append(record, d.String())
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", d, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Load reads a matrix written by Store.
func Load(r io.Reader) (*domain.Matrix, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", ErrMalformed)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if strings.TrimPrefix(header[0], "\ufeff") != DateColumn {
		return nil, fmt.Errorf("%w: first column is %q, want %q", ErrMalformed, header[0], DateColumn)
	}
	stations := header[1:]

	var (
		dates  []domain.Date
		values [][]float64
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrMalformed, line, len(record), len(header))
		}

		d, err := domain.ParseISODate(record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}

		row := make([]float64, len(stations))
		for j, field := range record[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d, station %q: %v", ErrMalformed, line, stations[j], err)
			}
			row[j] = v
		}

		dates = append(dates, d)
		values = append(values, row)
	}

	m, err := domain.NewMatrix(dates, stations, values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}

// SaveFile writes m to path atomically: a temp file in the same directory is
// written, synced and renamed over path.
func SaveFile(path string, m *domain.Matrix) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Store(tmp, m); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot from path.
func LoadFile(path string) (*domain.Matrix, error) {
	//nolint:gosec // G304: path comes from configuration or a CLI flag.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// FileSink writes each run's matrix to a fixed path.
// It implements pipeline.Loader.
type FileSink struct {
	path   string
	logger *slog.Logger
}

// NewFileSink creates a sink writing to path.
func NewFileSink(path string, logger *slog.Logger) *FileSink {
	return &FileSink{path: path, logger: logger}
}

// Load persists the snapshot's matrix.
func (s *FileSink) Load(_ context.Context, snap domain.Snapshot) error {
	if err := SaveFile(s.path, snap.Matrix); err != nil {
		return err
	}
	s.logger.Info("snapshot written",
		"path", s.path,
		"run_id", snap.RunID,
		"dates", len(snap.Matrix.Dates()),
		"stations", len(snap.Matrix.Stations()),
	)
	return nil
}
