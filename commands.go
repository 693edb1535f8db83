package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/sirupsen/logrus"

	"phish-feature-poc/classifier"
	"phish-feature-poc/dataset"
	"phish-feature-poc/features"
)

type extractCommand struct {
	app *app

	Format string `short:"f" long:"format" choice:"json" choice:"csv" default:"json" description:"Output format"`
	Args   struct {
		URLs []string `positional-arg-name:"URL" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

type extractResult struct {
	URL      string           `json:"url"`
	Fetched  bool             `json:"fetched"`
	Features []features.Value `json:"features"`
}

func (c *extractCommand) Execute([]string) error {
	r, err := c.app.asm.runner(nil)
	if err != nil {
		return err
	}

	var (
		enc  *json.Encoder
		sink *dataset.CSVSink
	)
	if c.Format == "csv" {
		if sink, err = dataset.NewCSVSink(os.Stdout, dataset.Layout{URL: true}); err != nil {
			return err
		}
		defer sink.Close()
	} else {
		enc = json.NewEncoder(os.Stdout)
	}

	for _, u := range c.Args.URLs {
		if err := c.app.ctx.Err(); err != nil {
			return err
		}
		ev, vec := r.Extract(c.app.ctx, u)
		if sink != nil {
			err = sink.Write(dataset.Row{URL: u, Features: vec})
		} else {
			err = enc.Encode(extractResult{URL: u, Fetched: ev.HTTP != nil, Features: named(vec)})
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", u, err)
		}
	}
	return nil
}

type batchCommand struct {
	app *app

	Input  string `short:"i" long:"input" required:"true" description:"Targets file with url[,label] per line, - for stdin"`
	Output string `short:"o" long:"output" description:"CSV dataset path, - for stdout"`
	XLSX   string `long:"xlsx" description:"Also write the dataset as an Excel workbook"`
	SQLite string `long:"sqlite" description:"Also write the dataset to this SQLite database"`
	Index  bool   `long:"index" description:"Lead CSV and XLSX rows with a 0-based Index column"`
	NoURL  bool   `long:"no-url" description:"Leave out the url column"`
}

func (c *batchCommand) Execute([]string) error {
	targets, err := dataset.LoadTargets(c.Input)
	if err != nil {
		return err
	}

	layout := dataset.Layout{Index: c.Index, URL: !c.NoURL}
	for _, t := range targets {
		if t.Label != nil {
			layout.Label = true
			break
		}
	}

	sink, err := c.app.asm.sinks(c.Output, c.XLSX, c.SQLite, layout)
	if err != nil {
		return err
	}
	r, err := c.app.asm.runner(sink)
	if err != nil {
		return errors.Join(err, sink.Close())
	}

	stop := c.app.asm.serveMetrics()
	defer stop()

	_, err = r.Run(c.app.ctx, targets)
	if cerr := sink.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close dataset: %w", cerr))
	}
	return err
}

type trainCommand struct {
	app *app

	Dataset      string  `short:"d" long:"dataset" description:"Labeled CSV dataset"`
	SQLite       string  `long:"sqlite" description:"Labeled SQLite dataset written by batch"`
	Model        string  `short:"m" long:"model" required:"true" description:"Where to save the trained model"`
	TestSize     float64 `long:"test-size" default:"0.2" description:"Share of rows held out for evaluation"`
	Seed         int64   `long:"seed" default:"42" description:"Shuffle seed for the train/test split"`
	Estimators   int     `long:"estimators" default:"100" description:"Boosting rounds"`
	MaxDepth     int     `long:"max-depth" default:"4" description:"Maximum tree depth"`
	LearningRate float64 `long:"learning-rate" default:"0.7" description:"Shrinkage applied to each tree"`
}

func (c *trainCommand) Execute([]string) error {
	var (
		table *dataset.Table
		err   error
	)
	switch {
	case c.Dataset != "" && c.SQLite != "":
		return fmt.Errorf("give either --dataset or --sqlite, not both")
	case c.Dataset != "":
		table, err = dataset.LoadCSV(c.Dataset)
	case c.SQLite != "":
		table, err = dataset.LoadSQLite(c.SQLite)
	default:
		return fmt.Errorf("no dataset: give --dataset or --sqlite")
	}
	if err != nil {
		return err
	}

	split, err := classifier.TrainTestSplit(table.X, table.Y, c.TestSize, c.Seed)
	if err != nil {
		return err
	}

	params := classifier.DefaultParams()
	params.NEstimators = c.Estimators
	params.MaxDepth = c.MaxDepth
	params.LearningRate = c.LearningRate

	log := c.app.asm.logger
	trainer := classifier.Trainer{Params: params, Columns: table.Columns, Logger: log}
	model, err := trainer.Fit(split.XTrain, split.YTrain)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	trainAcc, err := model.Accuracy(split.XTrain, split.YTrain)
	if err != nil {
		return err
	}
	testAcc, err := model.Accuracy(split.XTest, split.YTest)
	if err != nil {
		return err
	}
	if err := model.SaveFile(c.Model); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"component":      "classifier",
		"rows":           table.Len(),
		"train_rows":     len(split.YTrain),
		"test_rows":      len(split.YTest),
		"train_accuracy": trainAcc,
		"test_accuracy":  testAcc,
		"model":          c.Model,
	}).Info("model trained")
	return nil
}

type predictCommand struct {
	app *app

	Model         string `short:"m" long:"model" required:"true" description:"Model saved by train"`
	PhishingLabel int    `long:"phishing-label" default:"-1" description:"Dataset label that marks phishing URLs"`
	HighRiskMax   int    `long:"high-risk-max" default:"40" description:"Highest score reported as high-risk"`
	MediumMax     int    `long:"medium-max" default:"70" description:"Highest score reported as medium"`
	Args          struct {
		URLs []string `positional-arg-name:"URL" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func (c *predictCommand) Execute([]string) error {
	model, err := classifier.LoadFile(c.Model)
	if err != nil {
		return err
	}
	if len(model.Columns) > 0 && !slices.Equal(model.Columns, features.Names()) {
		return fmt.Errorf("model %s was trained on different feature columns", c.Model)
	}
	th := classifier.Thresholds{HighRiskMax: c.HighRiskMax, MediumMax: c.MediumMax}
	if th.HighRiskMax >= th.MediumMax {
		return fmt.Errorf("high-risk max %d must be below medium max %d", th.HighRiskMax, th.MediumMax)
	}

	r, err := c.app.asm.runner(nil)
	if err != nil {
		return err
	}
	return c.predict(os.Stdout, model, th, func(u string) features.Vector {
		_, vec := r.Extract(c.app.ctx, u)
		return vec
	})
}

func (c *predictCommand) predict(w io.Writer, model *classifier.Model, th classifier.Thresholds, extract func(string) features.Vector) error {
	enc := json.NewEncoder(w)
	for _, u := range c.Args.URLs {
		if err := c.app.ctx.Err(); err != nil {
			return err
		}
		vec := extract(u)
		p, err := model.ProbaOf(vec.Floats(), c.PhishingLabel)
		if err != nil {
			return err
		}
		if err := enc.Encode(classifier.NewVerdict(u, p, th, signals(vec))); err != nil {
			return err
		}
	}
	return nil
}

// named pairs vec with the feature names.
func named(vec features.Vector) []features.Value {
	out := make([]features.Value, len(vec))
	for i, v := range vec {
		out[i] = features.Value{Name: features.Table[i].Name, Value: v}
	}
	return out
}

// signals lists the features whose value moved off its default.
func signals(vec features.Vector) []string {
	var out []string
	for i, v := range vec {
		if v != features.Table[i].Default {
			out = append(out, features.Table[i].Name)
		}
	}
	return out
}
