// Package csvstore reads and writes daily bars as CSV files, one file per
// symbol, so studies can run without network access.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sawpanic/investrun/internal/market"
)

var header = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// Store is a directory of <symbol>.csv files.
type Store struct {
	dir string
}

// New returns a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Name implements data.Source.
func (s *Store) Name() string { return "csv" }

// Path returns the file used for symbol. Characters that are awkward in
// file names (^, /, :) are replaced.
func (s *Store) Path(symbol string) string {
	r := strings.NewReplacer("^", "_", "/", "_", ":", "_")
	return filepath.Join(s.dir, r.Replace(symbol)+".csv")
}

// Fetch implements data.Source, returning bars within [start, end].
func (s *Store) Fetch(_ context.Context, symbol string, start, end market.Date) (*market.Series, error) {
	f, err := os.Open(s.Path(symbol))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", symbol, err)
	}
	defer f.Close()

	series, err := Read(f, symbol)
	if err != nil {
		return nil, err
	}

	kept := series.Bars[:0]
	for _, b := range series.Bars {
		if b.Date.Before(start) || end.Before(b.Date) {
			continue
		}
		kept = append(kept, b)
	}
	series.Bars = kept
	return series, nil
}

// Save writes series to the symbol's file, creating the directory.
func (s *Store) Save(series *market.Series) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", s.dir, err)
	}

	path := s.Path(series.Symbol)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if err := Write(f, series); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, os.Rename(tmp, path)
}

// Read parses CSV bars. The header row is required; Volume may be empty.
func Read(r io.Reader, symbol string) (*market.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", symbol, err)
	}
	if len(head) < 2 || !strings.EqualFold(strings.TrimSpace(head[0]), "Date") {
		return nil, fmt.Errorf("%s: unexpected header %v", symbol, head)
	}

	series := &market.Series{Symbol: symbol}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", symbol, line, err)
		}

		bar, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", symbol, line, err)
		}
		series.Bars = append(series.Bars, bar)
	}

	series.Sort()
	return series, nil
}

func parseRecord(rec []string) (market.Bar, error) {
	var bar market.Bar
	if len(rec) < 2 {
		return bar, fmt.Errorf("expected at least Date and Open, got %d fields", len(rec))
	}

	d, err := market.ParseDate(strings.TrimSpace(rec[0]))
	if err != nil {
		return bar, err
	}
	bar.Date = d

	floats := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close}
	for i, dst := range floats {
		if i+1 >= len(rec) || strings.TrimSpace(rec[i+1]) == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return bar, fmt.Errorf("field %s: %w", header[i+1], err)
		}
		*dst = v
	}

	if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
		v, err := strconv.ParseInt(strings.TrimSpace(rec[5]), 10, 64)
		if err != nil {
			return bar, fmt.Errorf("field Volume: %w", err)
		}
		bar.Volume = v
	}
	return bar, nil
}

// Write encodes series as CSV with a header row.
func Write(w io.Writer, series *market.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, b := range series.Bars {
		rec := []string{
			b.Date.String(),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
