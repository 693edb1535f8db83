package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"phish-feature-poc/config"
	"phish-feature-poc/dataset"
	"phish-feature-poc/evidence"
	"phish-feature-poc/pipeline"
	"phish-feature-poc/search"
)

// assembler wires the configured collaborators for a command.
type assembler struct {
	cfg      *config.Config
	logger   *logrus.Logger
	registry *prometheus.Registry
}

func newAssembler(cfg *config.Config) (*assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &assembler{cfg: cfg, logger: logger, registry: reg}, nil
}

// acquirer builds the evidence acquirer: a plain or rendering fetcher,
// WHOIS unless disabled, and the configured search provider.
func (a *assembler) acquirer() (*evidence.Acquirer, error) {
	acq := &evidence.Acquirer{
		Timeout: a.cfg.Batch.Timeout,
		Logger:  a.logger,
		Metrics: evidence.NewMetrics(a.registry),
	}

	if a.cfg.Fetch.Render {
		acq.Fetcher = evidence.NewBrowserFetcher(a.cfg.BrowserOptions())
	} else {
		acq.Fetcher = evidence.NewHTTPFetcher(a.cfg.FetchOptions())
	}

	if !a.cfg.Whois.Disabled {
		acq.Registry = evidence.NewWhoisLookup(a.cfg.Whois.Timeout)
	}

	client, err := search.New(a.cfg.SearchOptions())
	if err != nil {
		return nil, fmt.Errorf("search client: %w", err)
	}
	if _, disabled := client.(search.Disabled); !disabled {
		acq.Searcher = client
	}

	a.logger.WithFields(logrus.Fields{
		"component": "assembler",
		"render":    a.cfg.Fetch.Render,
		"whois":     acq.Registry != nil,
		"search":    a.cfg.Search.Provider,
	}).Debug("acquirer ready")
	return acq, nil
}

// runner builds a batch runner that writes to sink.
func (a *assembler) runner(sink dataset.Sink) (*pipeline.Runner, error) {
	acq, err := a.acquirer()
	if err != nil {
		return nil, err
	}
	r := &pipeline.Runner{
		Acquirer:  acq,
		Sink:      sink,
		Workers:   a.cfg.Batch.Workers,
		BloomSize: a.cfg.Batch.BloomSize,
		BloomFP:   a.cfg.Batch.BloomFP,
		Logger:    a.logger,
		Metrics:   pipeline.NewMetrics(a.registry),
	}
	if !a.cfg.Batch.Quiet {
		r.Progress = os.Stderr
	}
	return r, nil
}

// sinks opens every requested dataset output. "-" writes CSV to stdout.
func (a *assembler) sinks(csvPath, xlsxPath, sqlitePath string, layout dataset.Layout) (dataset.Sink, error) {
	var out dataset.MultiSink
	fail := func(err error) (dataset.Sink, error) {
		if cerr := out.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}

	switch csvPath {
	case "":
	case "-":
		s, err := dataset.NewCSVSink(os.Stdout, layout)
		if err != nil {
			return fail(err)
		}
		out = append(out, s)
	default:
		s, err := dataset.CreateCSV(csvPath, layout)
		if err != nil {
			return fail(err)
		}
		out = append(out, s)
	}
	if xlsxPath != "" {
		s, err := dataset.CreateXLSX(xlsxPath, layout)
		if err != nil {
			return fail(err)
		}
		out = append(out, s)
	}
	if sqlitePath != "" {
		s, err := dataset.OpenSQLite(sqlitePath)
		if err != nil {
			return fail(err)
		}
		out = append(out, s)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no output: give at least one of --output, --xlsx or --sqlite")
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

// serveMetrics exposes the registry on the configured address until the
// returned stop function is called. Without an address it does nothing.
func (a *assembler) serveMetrics() (stop func()) {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log := a.logger.WithFields(logrus.Fields{"component": "metrics", "addr": a.cfg.MetricsAddr})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	log.Info("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("metrics server shutdown")
		}
	}
}

