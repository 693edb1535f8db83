// Package pipeline runs feature extraction over a list of URLs: duplicate
// URLs are dropped, the rest are extracted by a bounded pool of workers
// and each resulting row is handed to a dataset sink.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"

	"phish-feature-poc/dataset"
	"phish-feature-poc/evidence"
	"phish-feature-poc/features"
)

// Acquirer builds the evidence bundle for one URL. *evidence.Acquirer
// satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context, rawURL string) *evidence.Evidence
}

// Runner extracts feature rows for many URLs.
type Runner struct {
	Acquirer Acquirer
	Sink     dataset.Sink

	Workers   int
	BloomSize uint
	BloomFP   float64

	// Progress receives a progress bar when non-nil.
	Progress io.Writer
	Logger   logrus.FieldLogger
	Metrics  *Metrics
}

// Stats summarises a run.
type Stats struct {
	Total       int // targets received
	Duplicates  int // dropped before extraction
	Written     int // rows accepted by the sink
	Unreachable int // written rows whose page could not be fetched
}

// Extract acquires evidence for rawURL and computes its feature vector.
func (r *Runner) Extract(ctx context.Context, rawURL string) (*evidence.Evidence, features.Vector) {
	start := time.Now()
	ev := r.Acquirer.Acquire(ctx, rawURL)
	vec := features.NewExtractor(ev, features.WithLogger(r.logger())).FeaturesList()
	r.Metrics.extracted(time.Since(start))

	r.logger().WithFields(logrus.Fields{
		"component": "pipeline",
		"url":       rawURL,
		"fetched":   ev.HTTP != nil,
		"whois":     ev.Registration != nil,
		"search":    ev.Search != nil,
		"elapsed":   time.Since(start).Round(time.Millisecond),
	}).Debug("extracted")
	return ev, vec
}

// Run extracts every distinct target and writes one row per target. It
// returns early with an error only when the sink fails or ctx is done;
// unreachable URLs are still written with default features.
func (r *Runner) Run(ctx context.Context, targets []dataset.Target) (Stats, error) {
	if r.Acquirer == nil || r.Sink == nil {
		return Stats{}, fmt.Errorf("pipeline needs an acquirer and a sink")
	}

	stats := Stats{Total: len(targets)}
	unique := r.dedup(targets)
	stats.Duplicates = len(targets) - len(unique)
	r.Metrics.duplicates(stats.Duplicates)

	var (
		written     atomic.Int64
		unreachable atomic.Int64
	)

	progress, bar := r.progressBar(ctx, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())

	start := time.Now()
	for _, t := range unique {
		t := t
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			itemStart := time.Now()
			ev, vec := r.Extract(gctx, t.URL)
			if err := gctx.Err(); err != nil {
				// Evidence gathered under a cancelled context is not the page's.
				return err
			}
			if err := r.Sink.Write(dataset.Row{URL: t.URL, Features: vec, Label: t.Label}); err != nil {
				return fmt.Errorf("write %s: %w", t.URL, err)
			}
			written.Add(1)
			if ev.HTTP == nil {
				unreachable.Add(1)
			}
			r.Metrics.written(ev.HTTP != nil)
			if bar != nil {
				bar.EwmaIncrement(time.Since(itemStart))
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	if bar != nil {
		if err != nil {
			bar.Abort(false)
		}
		progress.Wait()
	}

	stats.Written = int(written.Load())
	stats.Unreachable = int(unreachable.Load())

	entry := r.logger().WithFields(logrus.Fields{
		"component":   "pipeline",
		"total":       stats.Total,
		"duplicates":  stats.Duplicates,
		"written":     stats.Written,
		"unreachable": stats.Unreachable,
		"elapsed":     time.Since(start).Round(time.Millisecond),
	})
	if err != nil {
		entry.WithError(err).Error("batch aborted")
		return stats, err
	}
	entry.Info("batch complete")
	return stats, nil
}

// dedup drops repeated URLs, keeping the first occurrence and its label.
// A bloom false positive skips a distinct URL, so BloomFP bounds that loss.
func (r *Runner) dedup(targets []dataset.Target) []dataset.Target {
	size, fp := r.BloomSize, r.BloomFP
	if size == 0 {
		size = uint(len(targets)) + 1
	}
	if fp <= 0 || fp >= 1 {
		fp = 0.001
	}
	filter := bloom.NewWithEstimates(size, fp)

	out := make([]dataset.Target, 0, len(targets))
	for _, t := range targets {
		t.URL = strings.TrimSpace(t.URL)
		if t.URL == "" {
			continue
		}
		if filter.TestAndAddString(t.URL) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (r *Runner) progressBar(ctx context.Context, total int) (*mpb.Progress, *mpb.Bar) {
	if r.Progress == nil || total == 0 {
		return nil, nil
	}
	p := mpb.NewWithContext(ctx, mpb.WithOutput(r.Progress), mpb.WithWidth(48))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("extract", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("[%d / %d]", decor.WCSyncWidth),
			decor.Percentage(decor.WCSyncSpace),
			decor.OnComplete(
				decor.EwmaETA(decor.ET_STYLE_GO, 30, decor.WCSyncSpace), "done",
			),
		),
	)
	return p, bar
}

func (r *Runner) workers() int {
	if r.Workers <= 0 {
		return 1
	}
	return r.Workers
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return discardLogger
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()
