package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Target is one URL to extract, optionally with its known label.
type Target struct {
	URL   string
	Label *int
}

// LoadTargets reads targets from path, or from stdin when path is "-".
func LoadTargets(path string) ([]Target, error) {
	if path == "-" {
		return ReadTargets(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets: %w", err)
	}
	defer f.Close()
	return ReadTargets(f)
}

// ReadTargets reads one target per line as "url" or "url,label". Blank
// lines, '#' comments and a leading "url" header are skipped.
func ReadTargets(r io.Reader) ([]Target, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var targets []Target
	for first := true; ; first = false {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read targets: %w", err)
		}

		u := strings.TrimSpace(record[0])
		if u == "" {
			continue
		}
		if first && strings.EqualFold(u, URLColumn) {
			continue
		}

		t := Target{URL: u}
		if len(record) > 1 {
			if s := strings.TrimSpace(record[1]); s != "" {
				label, err := strconv.Atoi(s)
				if err != nil {
					line, _ := cr.FieldPos(0)
					return nil, fmt.Errorf("line %d: label %q: %w", line, s, err)
				}
				t.Label = &label
			}
		}
		targets = append(targets, t)
	}
	return targets, nil
}
