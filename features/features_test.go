package features

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phish-feature-poc/evidence"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// urlOnly builds the evidence a URL yields with every network source absent.
func urlOnly(t *testing.T, raw string) *evidence.Evidence {
	t.Helper()
	host, parts, err := evidence.ParseURL(raw)
	require.NoError(t, err)
	return &evidence.Evidence{URL: raw, Host: host, Parts: parts}
}

func withPage(t *testing.T, ev *evidence.Evidence, page string) *evidence.Evidence {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	ev.HTTP = &evidence.HTTPResult{Status: http.StatusOK, FinalURL: ev.URL, Document: doc}
	return ev
}

func valueOf(t *testing.T, vec Vector, name string) int {
	t.Helper()
	i := Index(name)
	require.GreaterOrEqual(t, i, 0, "unknown feature %s", name)
	return vec[i]
}

func TestTable(t *testing.T) {
	assert.Equal(t, 30, Count)
	names := Names()
	require.Len(t, names, Count)
	assert.Equal(t, "using_ip", names[0])
	assert.Equal(t, "favicon", names[9])
	assert.Equal(t, "stats_report", names[Count-1])

	seen := make(map[string]bool)
	for _, n := range names {
		assert.False(t, seen[n], "duplicate feature %s", n)
		seen[n] = true
	}
	assert.Equal(t, -1, Index("nope"))
}

func TestURLFeatures(t *testing.T) {
	vec := NewExtractor(urlOnly(t, "http://example.com/a?x=1&y=2"), WithClock(fixedNow)).FeaturesList()

	assert.Equal(t, 0, valueOf(t, vec, "long_url"))
	assert.Equal(t, 0, valueOf(t, vec, "short_url"))
	assert.Equal(t, 3, valueOf(t, vec, "symbol_count"))
	assert.Equal(t, 0, valueOf(t, vec, "https"))
	assert.Equal(t, 0, valueOf(t, vec, "using_ip"))
	assert.Equal(t, 0, valueOf(t, vec, "sub_domains"))
	assert.Equal(t, 0, valueOf(t, vec, "prefix_suffix"))
	assert.Equal(t, 0, valueOf(t, vec, "non_std_port"))
	assert.Equal(t, 0, valueOf(t, vec, "abnormal_url"))
}

func TestURLFeatures_Table(t *testing.T) {
	tests := []struct {
		raw     string
		feature string
		want    int
	}{
		{"http://192.168.1.1.example.com/", "using_ip", 1},
		{"http://a.co", "short_url", 1},
		{"https://secure-login.accounts.example.com/verify/session/update?id=12345", "long_url", 1},
		{"https://secure-login.example.com/", "prefix_suffix", 1},
		{"https://secure-login.example.com/", "https", 1},
		{"https://a.b.example.com/", "sub_domains", 2},
		{"http://localhost/", "sub_domains", -1},
		{"http://example.com:8080/", "non_std_port", 1},
		{"http://example.com:0/", "non_std_port", 0},
		{"http://example.com:00/", "non_std_port", 0},
		{"http://example.com:8080/", "using_ip", 1},
		{"http://https-paypal.example.com/", "https_domain_url", 1},
		{"http://example.com//evil.test/", "abnormal_url", 1},
		{"http://user@example.com/?a=b&c=d-e", "symbol_count", 6},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.feature+" "+tc.raw, func(t *testing.T) {
			vec := NewExtractor(urlOnly(t, tc.raw)).FeaturesList()
			assert.Equal(t, tc.want, valueOf(t, vec, tc.feature))
		})
	}
}

func TestURLLengthCountsCharacters(t *testing.T) {
	// 24 characters, 34 bytes.
	raw := "http://ex.com/ääääääääää"
	require.Greater(t, len(raw), shortURLMax)
	vec := NewExtractor(urlOnly(t, raw)).FeaturesList()
	assert.Equal(t, 1, valueOf(t, vec, "short_url"))
}

const phishyPage = `<html>
<head>
  <link rel="shortcut icon" href="https://cdn.evil.test/favicon.png">
  <link rel="icon" href="/favicon.ico">
  <meta http-equiv="Refresh" content="0; url=https://evil.test/login">
  <meta name="alexa" content="verify">
  <script src="https://evil.test/track.js?onmouseover=1"></script>
  <script src="https://evil.test/pop.js?window.open"></script>
</head>
<body oncontextmenu="return false">
  <form action="https://collector.evil.test/post"></form>
  <form action="mailto:drop@evil.test"></form>
  <a href="mailto:support@evil.test">help</a>
  <a href="http://example.com/login">self</a>
  <a href="http://example.com/login">self again</a>
  <img src="http://example.com/login">
  <iframe src="https://evil.test/frame"></iframe>
</body>
</html>`

func TestDocumentFeatures(t *testing.T) {
	ev := withPage(t, urlOnly(t, "http://example.com/login"), phishyPage)
	ev.HTTP.Redirects = 2
	vec := NewExtractor(ev).FeaturesList()

	for _, name := range []string{
		"redirecting", "request_url", "anchor_url", "links_in_script_tags",
		"server_form_handler", "info_email", "website_forwarding", "status_bar_cust",
		"disable_right_click", "using_popup_window", "iframe_redirection", "stats_report",
	} {
		assert.Equal(t, 1, valueOf(t, vec, name), name)
	}
	// shortcut icon wins over the later .ico link
	assert.Equal(t, 1, valueOf(t, vec, "favicon"))
	assert.Equal(t, 2, valueOf(t, vec, "links_pointing_to_page"))
}

func TestDocumentFeatures_CleanPage(t *testing.T) {
	page := `<html><head>
		<link rel="icon" type="image/x-icon" href="/favicon.ico">
		<meta http-equiv="content-type" content="text/html; charset=utf-8">
		<meta name="description" content="home">
		<script src="/static/app.js"></script>
	</head><body>
		<form action="/search"></form>
		<a href="/about">about</a>
		<img src="/logo.png">
	</body></html>`
	vec := NewExtractor(withPage(t, urlOnly(t, "https://example.com/"), page)).FeaturesList()

	assert.Equal(t, 0, valueOf(t, vec, "favicon"))
	for _, name := range []string{
		"redirecting", "request_url", "anchor_url", "links_in_script_tags",
		"server_form_handler", "info_email", "website_forwarding", "status_bar_cust",
		"disable_right_click", "using_popup_window", "iframe_redirection",
		"links_pointing_to_page", "stats_report",
	} {
		assert.Equal(t, 0, valueOf(t, vec, name), name)
	}
}

func TestLinksPointingToPage_FallsBackToImages(t *testing.T) {
	page := `<body><a href="/other">x</a><img src="http://example.com/p"><img src="http://example.com/p"></body>`
	vec := NewExtractor(withPage(t, urlOnly(t, "http://example.com/p"), page)).FeaturesList()
	assert.Equal(t, 2, valueOf(t, vec, "links_pointing_to_page"))
}

func TestFavicon_MissingHref(t *testing.T) {
	vec := NewExtractor(withPage(t, urlOnly(t, "http://example.com/"), `<head><link rel="icon"></head>`)).FeaturesList()
	assert.Equal(t, 1, valueOf(t, vec, "favicon"))
}

func TestWebsiteForwarding_MissingContent(t *testing.T) {
	page := `<head><meta http-equiv="refresh"><meta http-equiv="refresh" content="5"></head>`
	vec := NewExtractor(withPage(t, urlOnly(t, "http://example.com/"), page)).FeaturesList()
	assert.Equal(t, 0, valueOf(t, vec, "website_forwarding"))
}

var documentFeatures = []string{
	"favicon", "request_url", "anchor_url", "links_in_script_tags", "server_form_handler",
	"info_email", "website_forwarding", "status_bar_cust", "disable_right_click",
	"using_popup_window", "iframe_redirection", "links_pointing_to_page", "stats_report",
}

func TestFetchAbsent_Defaults(t *testing.T) {
	vec := NewExtractor(urlOnly(t, "http://example.com/")).FeaturesList()
	require.Len(t, vec, Count)
	for _, name := range documentFeatures {
		want := Table[Index(name)].Default
		assert.Equal(t, want, valueOf(t, vec, name), name)
	}
	assert.Equal(t, 1, valueOf(t, vec, "favicon"))
	assert.Equal(t, 0, valueOf(t, vec, "redirecting"))
}

func TestFetchedButUnparsed_Defaults(t *testing.T) {
	ev := urlOnly(t, "http://example.com/")
	ev.HTTP = &evidence.HTTPResult{Status: http.StatusOK, Redirects: 1}
	vec := NewExtractor(ev).FeaturesList()
	assert.Equal(t, 1, valueOf(t, vec, "redirecting"))
	assert.Equal(t, 1, valueOf(t, vec, "favicon"))
	assert.Equal(t, 0, valueOf(t, vec, "anchor_url"))
}

func TestRegistrationFeatures(t *testing.T) {
	date := func(days int) *time.Time {
		d := fixedNow.AddDate(0, 0, days)
		return &d
	}
	tests := []struct {
		name   string
		reg    *evidence.Registration
		regLen int
		age    int
		dns    int
	}{
		{"absent", nil, 0, 0, 0},
		{"empty record", &evidence.Registration{}, 0, 0, 0},
		{"young short-lived", &evidence.Registration{Created: date(-30), Expires: date(335), NameServers: []string{"ns1.evil.test"}}, 1, 1, 1},
		{"established", &evidence.Registration{Created: date(-4000), Expires: date(900), NameServers: []string{"a.iana-servers.net"}}, 0, 0, 1},
		{"exactly one year", &evidence.Registration{Created: date(-365), Expires: date(365)}, 1, 1, 0},
		{"one year and a day", &evidence.Registration{Created: date(-366), Expires: date(366)}, 0, 0, 0},
		{"already expired", &evidence.Registration{Expires: date(-10)}, 1, 0, 0},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ev := urlOnly(t, "http://example.com/")
			ev.Registration = tc.reg
			vec := NewExtractor(ev, WithClock(fixedNow)).FeaturesList()
			assert.Equal(t, tc.regLen, valueOf(t, vec, "domain_reg_len"))
			assert.Equal(t, tc.age, valueOf(t, vec, "age_of_domain"))
			assert.Equal(t, tc.dns, valueOf(t, vec, "dns_recording"))
		})
	}
}

func TestWholeDaysFloors(t *testing.T) {
	assert.Equal(t, 0, wholeDays(23*time.Hour))
	assert.Equal(t, -1, wholeDays(-time.Hour))
	assert.Equal(t, 365, wholeDays(365*24*time.Hour+time.Minute))
}

func TestSearchFeatures(t *testing.T) {
	tests := []struct {
		name                  string
		search                *evidence.SearchResult
		traffic, rank, google int
	}{
		{"absent", nil, 0, 0, 0},
		{"no results", &evidence.SearchResult{}, 0, 0, 0},
		{"plain hit", &evidence.SearchResult{Results: []string{"https://example.com/"}}, 1, 0, 0},
		{"rank hit", &evidence.SearchResult{Results: []string{"https://example.com/pagerank"}}, 1, 1, 0},
		{"index hit", &evidence.SearchResult{Results: []string{"https://www.google.com/url?q=example.com"}}, 1, 0, 1},
		{"only first result counts", &evidence.SearchResult{Results: []string{"https://example.com/", "https://rank.test/"}}, 1, 0, 0},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ev := urlOnly(t, "http://example.com/")
			ev.Search = tc.search
			vec := NewExtractor(ev).FeaturesList()
			assert.Equal(t, tc.traffic, valueOf(t, vec, "website_traffic"))
			assert.Equal(t, tc.rank, valueOf(t, vec, "page_rank"))
			assert.Equal(t, tc.google, valueOf(t, vec, "google_index"))
		})
	}
}

func TestFeaturesList_Idempotent(t *testing.T) {
	ev := withPage(t, urlOnly(t, "http://example.com/login"), phishyPage)
	created := fixedNow.AddDate(-1, 0, 0)
	ev.Registration = &evidence.Registration{Created: &created}
	e := NewExtractor(ev)
	assert.Equal(t, e.FeaturesList(), e.FeaturesList())
}

func TestNilEvidence(t *testing.T) {
	vec := NewExtractor(nil).FeaturesList()
	require.Len(t, vec, Count)
	assert.Equal(t, 1, valueOf(t, vec, "favicon"))
	assert.Equal(t, -1, valueOf(t, vec, "sub_domains"))
}

func TestPanickingFeatureFallsBackToDefault(t *testing.T) {
	saved := Table
	t.Cleanup(func() { Table = saved })
	Table = append([]Feature(nil), saved...)
	Table[9].Compute = func(*evidence.Evidence, time.Time) int { panic("boom") }

	logger, hook := logtest.NewNullLogger()
	vec := NewExtractor(urlOnly(t, "http://example.com/"), WithLogger(logger)).FeaturesList()

	require.Len(t, vec, Count)
	assert.Equal(t, 1, vec[9])
	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, "favicon", entry.Data["feature"])
	err, ok := entry.Data["error"].(error)
	require.True(t, ok)
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestNamed(t *testing.T) {
	named := NewExtractor(urlOnly(t, "https://example.com/")).Named()
	require.Len(t, named, Count)
	assert.Equal(t, Value{Name: "https", Value: 1}, named[Index("https")])
}

func TestConnectionRefused_FullVector(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL + "/login"
	srv.Close()

	acq := &evidence.Acquirer{Fetcher: evidence.NewHTTPFetcher(evidence.DefaultFetchConfig()), Timeout: 2 * time.Second}
	ev := acq.Acquire(context.Background(), target)
	require.Nil(t, ev.HTTP)

	vec := NewExtractor(ev).FeaturesList()
	require.Len(t, vec, Count)
	for _, name := range documentFeatures {
		assert.Equal(t, Table[Index(name)].Default, valueOf(t, vec, name), name)
	}
	assert.Equal(t, 1, valueOf(t, vec, "using_ip"))
	assert.Equal(t, 1, valueOf(t, vec, "non_std_port"))
}
