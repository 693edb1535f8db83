package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"phish-feature-poc/features"
)

// CSVSink writes rows as CSV.
type CSVSink struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
	layout Layout
	next   int
}

// NewCSVSink writes the header for layout to w immediately. Close does
// not close w.
func NewCSVSink(w io.Writer, layout Layout) (*CSVSink, error) {
	s := &CSVSink{w: csv.NewWriter(w), layout: layout}
	if err := s.w.Write(layout.Header()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return s, nil
}

// CreateCSV creates (or truncates) path and returns a sink writing to it.
func CreateCSV(path string, layout Layout) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv: %w", err)
	}
	s, err := NewCSVSink(f, layout)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// Write implements Sink. Each row is flushed so partial runs leave a usable file.
func (s *CSVSink) Write(r Row) error {
	if err := checkRow(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := make([]string, 0, features.Count+3)
	if s.layout.Index {
		record = append(record, strconv.Itoa(s.next))
	}
	if s.layout.URL {
		record = append(record, r.URL)
	}
	for _, v := range r.Features {
		record = append(record, strconv.Itoa(v))
	}
	if s.layout.Label {
		label := ""
		if r.Label != nil {
			label = strconv.Itoa(*r.Label)
		}
		record = append(record, label)
	}

	if err := s.w.Write(record); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	s.next++
	return nil
}

// Close implements Sink.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// LoadCSV reads a labeled dataset from path.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads a labeled dataset. Index and url columns are dropped, the
// class column becomes Y and every other column is a feature. A leading
// byte order mark (UTF-8 or UTF-16) is honoured.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("dataset is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	label := -1
	var keep []int
	t := &Table{}
	for i, name := range header {
		name = strings.TrimSpace(name)
		switch {
		case strings.EqualFold(name, LabelColumn):
			label = i
		case isMetaColumn(name):
		default:
			keep = append(keep, i)
			t.Columns = append(t.Columns, name)
		}
	}
	if label < 0 {
		return nil, fmt.Errorf("dataset has no %q column", LabelColumn)
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("dataset has no feature columns")
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		y, err := strconv.Atoi(strings.TrimSpace(record[label]))
		if err != nil {
			return nil, fmt.Errorf("line %d: class %q: %w", line, record[label], err)
		}
		x := make([]float64, len(keep))
		for j, col := range keep {
			x[j], err = strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, header[col], err)
			}
		}
		t.X = append(t.X, x)
		t.Y = append(t.Y, y)
	}
	if t.Len() == 0 {
		return nil, fmt.Errorf("dataset has no rows")
	}
	return t, nil
}
