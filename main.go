// Command phish-feature-poc extracts phishing URL feature vectors, builds
// labeled datasets from URL lists, and trains and applies a classifier
// over those features.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"phish-feature-poc/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// The parser prints its own errors, including command failures.
	if _, err := newParser(ctx, cfg).ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		return 1
	}
	return 0
}

// app is the state shared by all commands. asm is built once the global
// options are parsed, right before the selected command runs.
type app struct {
	ctx context.Context
	cfg *config.Config
	asm *assembler
}

func newParser(ctx context.Context, cfg *config.Config) *flags.Parser {
	a := &app{ctx: ctx, cfg: cfg}

	parser := flags.NewParser(cfg, flags.Default)
	parser.ShortDescription = "phishing URL feature extraction"
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		asm, err := newAssembler(cfg)
		if err != nil {
			return err
		}
		a.asm = asm
		return cmd.Execute(args)
	}

	mustAdd(parser.AddCommand("extract",
		"Print the feature vector of URLs",
		"Acquire evidence for each URL and print its 30 features as JSON lines or CSV.",
		&extractCommand{app: a}))
	mustAdd(parser.AddCommand("batch",
		"Build a feature dataset from a list of URLs",
		"Extract every distinct URL in the input concurrently and write one row per URL to CSV, XLSX and/or SQLite.",
		&batchCommand{app: a}))
	mustAdd(parser.AddCommand("train",
		"Train the classifier on a labeled dataset",
		"Fit gradient-boosted trees on a labeled dataset, report held-out accuracy and save the model.",
		&trainCommand{app: a}))
	mustAdd(parser.AddCommand("predict",
		"Score URLs with a trained model",
		"Extract each URL's features and print a verdict with its phishing probability and risk level.",
		&predictCommand{app: a}))
	return parser
}

func mustAdd(_ *flags.Command, err error) {
	if err != nil {
		panic(err)
	}
}
