package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestCustomSearch_ReturnsLinksInOrder(t *testing.T) {
	var gotQuery, gotKey, gotCX string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("key")
		gotCX = r.URL.Query().Get("cx")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[{"link":"https://example.com/"},{"link":""},{"link":"https://example.com/about"}]}`)
	}))
	defer srv.Close()

	c := &CustomSearch{APIKey: "k", EngineID: "cx1", BaseURL: srv.URL, HTTPClient: srv.Client()}
	links, err := c.Search(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/", "https://example.com/about"}, links)
	assert.Equal(t, "example.com", gotQuery)
	assert.Equal(t, "k", gotKey)
	assert.Equal(t, "cx1", gotCX)
}

func TestCustomSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	c := &CustomSearch{APIKey: "k", EngineID: "cx", BaseURL: srv.URL}
	_, err := c.Search(context.Background(), "example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Quota exceeded")
}

func TestCustomSearch_NoItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"searchInformation":{"totalResults":"0"}}`)
	}))
	defer srv.Close()

	links, err := (&CustomSearch{BaseURL: srv.URL}).Search(context.Background(), "nothing.test")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestScraper_ExtractsOrganicLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "example.com", r.URL.Query().Get("q"))
		fmt.Fprint(w, `<html><body>
			<a href="/search?q=example.com&start=10">Next</a>
			<a href="https://accounts.google.com/signin">Sign in</a>
			<a href="/url?q=https://example.com/&sa=U">Example</a>
			<a href="https://example.com/page-rank-tool">Rank</a>
			<a href="/url?q=https://example.com/&sa=U">Example again</a>
			<a href="javascript:void(0)">noop</a>
		</body></html>`)
	}))
	defer srv.Close()

	s := &Scraper{BaseURL: srv.URL, HTTPClient: srv.Client()}
	links, err := s.Search(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/", "https://example.com/page-rank-tool"}, links)
}

func TestScraper_StopsAtNum(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, `<a href="https://site%d.test/">r</a>`, i)
		}
	}))
	defer srv.Close()

	links, err := (&Scraper{BaseURL: srv.URL, Num: 2}).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestScraper_BlockedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unusual traffic", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := (&Scraper{BaseURL: srv.URL}).Search(context.Background(), "q")
	require.Error(t, err)
}

func TestNew_ScraperSendsConfiguredUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		fmt.Fprint(w, `<a href="https://a.test/">a</a>`)
	}))
	defer srv.Close()

	c, err := New(Config{Provider: ProviderScrape, Endpoint: srv.URL, UserAgent: "phish-test/1.0"})
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "phish-test/1.0", got)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Search(context.Background(), "example.com")
	require.ErrorIs(t, err, ErrDisabled)
}

type countingClient struct{ calls int }

func (c *countingClient) Search(context.Context, string) ([]string, error) {
	c.calls++
	return []string{"https://a.test/"}, nil
}

func TestLimited_CancelledContext(t *testing.T) {
	next := &countingClient{}
	l := NewLimited(next, rate.NewLimiter(rate.Limit(0.001), 1))

	_, err := l.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Search(ctx, "second")
	require.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestNew(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, Disabled{}, c)

	_, err = New(Config{Provider: ProviderCustomSearch})
	require.Error(t, err)

	c, err = New(Config{Provider: ProviderCustomSearch, APIKey: "k", EngineID: "e"})
	require.NoError(t, err)
	assert.IsType(t, &CustomSearch{}, c)

	c, err = New(Config{Provider: ProviderScrape, RatePerSecond: 1})
	require.NoError(t, err)
	assert.IsType(t, &Limited{}, c)

	_, err = New(Config{Provider: "bing"})
	require.Error(t, err)
}
