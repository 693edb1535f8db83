package evidence

import (
	"errors"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrAcquisition marks a failure to obtain one of the evidence sources.
// Acquisition failures are logged and counted, never returned to callers.
var ErrAcquisition = errors.New("evidence acquisition failed")

// Evidence is everything known about one URL. A nil pointer field means that
// source could not be acquired. Evidence is read-only once Acquire returns.
type Evidence struct {
	URL          string
	Host         string // authority as written, may include a port
	Parts        URLParts
	HTTP         *HTTPResult
	Registration *Registration
	Search       *SearchResult
}

// URLParts is the structural decomposition of the input URL.
// All fields stay empty when the URL could not be parsed.
type URLParts struct {
	Scheme string
	Host   string
	Path   string
	Port   string
}

// HTTPResult is the outcome of the single GET issued for the URL.
type HTTPResult struct {
	Status    int
	FinalURL  string
	Redirects int
	Document  *goquery.Document // nil when the body could not be parsed
}

// Registration is the subset of a WHOIS record the features use.
type Registration struct {
	Domain      string
	Created     *time.Time
	Expires     *time.Time
	NameServers []string
}

// SearchResult holds result URLs returned by a search engine for the host.
type SearchResult struct {
	Query   string
	Results []string
}

// Document returns the parsed page, or nil when the fetch or parse failed.
func (e *Evidence) Document() *goquery.Document {
	if e == nil || e.HTTP == nil {
		return nil
	}
	return e.HTTP.Document
}
