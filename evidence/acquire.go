package evidence

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Searcher queries a search engine and returns result URLs in rank order.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Acquirer gathers the evidence bundle for a URL. Nil collaborators are
// skipped and leave their evidence absent.
type Acquirer struct {
	Fetcher  Fetcher
	Registry RegistryLookup
	Searcher Searcher

	// Timeout bounds each source independently; zero leaves it to the collaborator.
	Timeout time.Duration

	Logger  logrus.FieldLogger
	Metrics *Metrics
}

// Acquire builds the evidence bundle for rawURL. It never fails: every
// source that cannot be acquired is logged and left nil.
func (a *Acquirer) Acquire(ctx context.Context, rawURL string) *Evidence {
	start := time.Now()
	defer a.Metrics.since(start)

	ev := &Evidence{URL: rawURL}

	host, parts, err := ParseURL(rawURL)
	a.Metrics.observe(SourceURL, err)
	if err != nil {
		a.suppressed(rawURL, SourceURL, err)
	}
	ev.Host, ev.Parts = host, parts

	var (
		page   *HTTPResult
		reg    *Registration
		found  *SearchResult
		g      errgroup.Group
		target = ev.Host
	)

	g.Go(func() error {
		if a.Fetcher == nil {
			a.Metrics.skipped(SourceFetch)
			return nil
		}
		sctx, cancel := a.bound(ctx)
		defer cancel()
		res, err := a.Fetcher.Fetch(sctx, rawURL)
		a.Metrics.observe(SourceFetch, err)
		if err != nil {
			a.suppressed(rawURL, SourceFetch, err)
			return nil
		}
		page = res
		return nil
	})

	g.Go(func() error {
		if a.Registry == nil || target == "" {
			a.Metrics.skipped(SourceRegistry)
			return nil
		}
		sctx, cancel := a.bound(ctx)
		defer cancel()
		res, err := a.Registry.Lookup(sctx, target)
		a.Metrics.observe(SourceRegistry, err)
		if err != nil {
			a.suppressed(rawURL, SourceRegistry, err)
			return nil
		}
		reg = res
		return nil
	})

	g.Go(func() error {
		if a.Searcher == nil || target == "" {
			a.Metrics.skipped(SourceSearch)
			return nil
		}
		sctx, cancel := a.bound(ctx)
		defer cancel()
		results, err := a.Searcher.Search(sctx, target)
		a.Metrics.observe(SourceSearch, err)
		if err != nil {
			a.suppressed(rawURL, SourceSearch, err)
			return nil
		}
		found = &SearchResult{Query: target, Results: results}
		return nil
	})

	_ = g.Wait()

	ev.HTTP, ev.Registration, ev.Search = page, reg, found
	return ev
}

func (a *Acquirer) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.Timeout)
}

func (a *Acquirer) suppressed(rawURL, source string, err error) {
	a.logger().WithFields(logrus.Fields{
		"component": "evidence",
		"source":    source,
		"url":       rawURL,
		"error":     fmt.Errorf("%w: %s: %w", ErrAcquisition, source, err),
	}).Warn("evidence source unavailable, using defaults")
}

func (a *Acquirer) logger() logrus.FieldLogger {
	if a.Logger != nil {
		return a.Logger
	}
	return discardLogger
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()
