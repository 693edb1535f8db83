// Package features turns an evidence bundle into the fixed-order feature
// vector consumed by the phishing classifier.
//
// Every feature is a total function of the bundle: when the evidence it
// needs is absent it returns its documented default. Downstream models read
// the vector positionally, so Table order must never change.
package features

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"phish-feature-poc/evidence"
)

// ErrExtraction marks evidence that was present but had an unexpected shape.
var ErrExtraction = errors.New("feature extraction failed")

// Func computes one feature. now is fixed per extractor so repeated calls agree.
type Func func(ev *evidence.Evidence, now time.Time) int

// Feature is one column of the vector.
type Feature struct {
	Name    string
	Default int
	Compute Func
}

// Table lists every feature in vector order.
var Table = []Feature{
	{"using_ip", 0, usingIP},
	{"long_url", 0, longURL},
	{"short_url", 0, shortURL},
	{"symbol_count", 0, symbolCount},
	{"redirecting", 0, redirecting},
	{"prefix_suffix", 0, prefixSuffix},
	{"sub_domains", 0, subDomains},
	{"https", 0, https},
	{"domain_reg_len", 0, domainRegLen},
	{"favicon", 1, favicon},
	{"non_std_port", 0, nonStdPort},
	{"https_domain_url", 0, httpsDomainURL},
	{"request_url", 0, requestURL},
	{"anchor_url", 0, anchorURL},
	{"links_in_script_tags", 0, linksInScriptTags},
	{"server_form_handler", 0, serverFormHandler},
	{"info_email", 0, infoEmail},
	{"abnormal_url", 0, abnormalURL},
	{"website_forwarding", 0, websiteForwarding},
	{"status_bar_cust", 0, statusBarCust},
	{"disable_right_click", 0, disableRightClick},
	{"using_popup_window", 0, usingPopupWindow},
	{"iframe_redirection", 0, iframeRedirection},
	{"age_of_domain", 0, ageOfDomain},
	{"dns_recording", 0, dnsRecording},
	{"website_traffic", 0, websiteTraffic},
	{"page_rank", 0, pageRank},
	{"google_index", 0, googleIndex},
	{"links_pointing_to_page", 0, linksPointingToPage},
	{"stats_report", 0, statsReport},
}

// Count is the vector length.
var Count = len(Table)

// Names returns the feature names in vector order.
func Names() []string {
	names := make([]string, len(Table))
	for i, f := range Table {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of the named feature, or -1.
func Index(name string) int {
	for i, f := range Table {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Vector is one row of feature values in Table order.
type Vector []int

// Floats converts the vector for the classifier.
func (v Vector) Floats() []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Value pairs a feature name with its computed value.
type Value struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Extractor computes the feature vector for one evidence bundle.
type Extractor struct {
	ev     *evidence.Evidence
	now    time.Time
	logger logrus.FieldLogger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock pins the reference time used by the domain-age features.
func WithClock(now time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// WithLogger sets where recovered extraction failures are reported.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor wraps ev. A nil bundle is treated as one with no evidence at all.
func NewExtractor(ev *evidence.Evidence, opts ...Option) *Extractor {
	if ev == nil {
		ev = &evidence.Evidence{}
	}
	e := &Extractor{ev: ev, now: time.Now()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		e.logger = l
	}
	return e
}

// Evidence returns the bundle the extractor reads from.
func (e *Extractor) Evidence() *evidence.Evidence {
	return e.ev
}

// FeaturesList evaluates every feature in Table order. The result always
// has Count elements.
func (e *Extractor) FeaturesList() Vector {
	out := make(Vector, len(Table))
	for i, f := range Table {
		out[i] = e.compute(f)
	}
	return out
}

// Named returns the vector as name/value pairs.
func (e *Extractor) Named() []Value {
	vec := e.FeaturesList()
	out := make([]Value, len(vec))
	for i, v := range vec {
		out[i] = Value{Name: Table[i].Name, Value: v}
	}
	return out
}

func (e *Extractor) compute(f Feature) (v int) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{
				"component": "features",
				"feature":   f.Name,
				"url":       e.ev.URL,
				"error":     fmt.Errorf("%w: %s: %v", ErrExtraction, f.Name, r),
			}).Warn("feature fell back to default")
			v = f.Default
		}
	}()
	return f.Compute(e.ev, e.now)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
