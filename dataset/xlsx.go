package dataset

import (
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet rows are written to.
const SheetName = "Sheet1"

// XLSXSink streams rows into a workbook that is saved on Close.
type XLSXSink struct {
	mu     sync.Mutex
	path   string
	file   *excelize.File
	sw     *excelize.StreamWriter
	layout Layout
	row    int // next 1-based sheet row
}

// CreateXLSX starts a workbook that will be saved to path.
func CreateXLSX(path string, layout Layout) (*XLSXSink, error) {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("xlsx stream writer: %w", err)
	}

	s := &XLSXSink{path: path, file: f, sw: sw, layout: layout, row: 1}
	header := layout.Header()
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := s.setRow(cells); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *XLSXSink) setRow(cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	if err := s.sw.SetRow(cell, cells); err != nil {
		return fmt.Errorf("xlsx row %d: %w", s.row, err)
	}
	s.row++
	return nil
}

// Write implements Sink.
func (s *XLSXSink) Write(r Row) error {
	if err := checkRow(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cells := make([]interface{}, 0, len(r.Features)+3)
	if s.layout.Index {
		cells = append(cells, s.row-2)
	}
	if s.layout.URL {
		cells = append(cells, r.URL)
	}
	for _, v := range r.Features {
		cells = append(cells, v)
	}
	if s.layout.Label {
		if r.Label != nil {
			cells = append(cells, *r.Label)
		} else {
			cells = append(cells, nil)
		}
	}
	return s.setRow(cells)
}

// Close implements Sink. The workbook only reaches disk here.
func (s *XLSXSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer s.file.Close()
	if err := s.sw.Flush(); err != nil {
		return fmt.Errorf("xlsx flush: %w", err)
	}
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}
