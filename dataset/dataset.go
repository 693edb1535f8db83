// Package dataset writes extracted feature vectors as tabular datasets and
// reads labeled datasets back for training. Feature columns always follow
// features.Names order; the label column is "class" as in the public
// phishing website dataset.
package dataset

import (
	"errors"
	"fmt"
	"strings"

	"phish-feature-poc/features"
)

// Column names shared by every format.
const (
	IndexColumn = "Index"
	URLColumn   = "url"
	LabelColumn = "class"
)

// Row is one extracted URL.
type Row struct {
	URL      string
	Features features.Vector
	Label    *int // nil when the URL is unlabeled
}

// Sink receives rows. Implementations are safe for concurrent Write calls.
type Sink interface {
	Write(Row) error
	Close() error
}

// Layout selects the optional columns around the feature columns.
type Layout struct {
	Index bool // leading 0-based row counter
	URL   bool
	Label bool
}

// Header returns the column names for l.
func (l Layout) Header() []string {
	var h []string
	if l.Index {
		h = append(h, IndexColumn)
	}
	if l.URL {
		h = append(h, URLColumn)
	}
	h = append(h, features.Names()...)
	if l.Label {
		h = append(h, LabelColumn)
	}
	return h
}

func checkRow(r Row) error {
	if len(r.Features) != features.Count {
		return fmt.Errorf("row %q has %d features, want %d", r.URL, len(r.Features), features.Count)
	}
	return nil
}

// MultiSink writes every row to all sinks.
type MultiSink []Sink

// Write implements Sink. It stops at the first failing sink.
func (m MultiSink) Write(r Row) error {
	for _, s := range m {
		if err := s.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Sink. Every sink is closed even if some fail.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Table is a labeled dataset ready for training.
type Table struct {
	Columns []string
	X       [][]float64
	Y       []int
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Y)
}

// isMetaColumn reports columns that are neither features nor the label.
func isMetaColumn(name string) bool {
	return strings.EqualFold(name, IndexColumn) || strings.EqualFold(name, URLColumn)
}
