// Package classifier trains and applies a binary gradient-boosted tree
// model over feature vectors. Trees are fitted to the gradient of the
// logistic loss, so the model outputs a class probability.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
)

// ErrShape is returned when inputs do not match the model or each other.
var ErrShape = errors.New("classifier: input shape mismatch")

// Params are the boosting hyperparameters.
type Params struct {
	NEstimators     int     `json:"n_estimators"`
	MaxDepth        int     `json:"max_depth"`
	LearningRate    float64 `json:"learning_rate"`
	MinSamplesSplit int     `json:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`
}

// DefaultParams returns the settings the phishing model was tuned with.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		MaxDepth:        4,
		LearningRate:    0.7,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

// Validate checks p.
func (p Params) Validate() error {
	if p.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be > 0, got %d", p.NEstimators)
	}
	if p.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be > 0, got %d", p.MaxDepth)
	}
	if p.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0, got %f", p.LearningRate)
	}
	if p.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be >= 2, got %d", p.MinSamplesSplit)
	}
	if p.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be >= 1, got %d", p.MinSamplesLeaf)
	}
	return nil
}

// Model is a fitted classifier. Classes holds the two label values in
// ascending order; probabilities refer to Classes[1].
type Model struct {
	Params   Params   `json:"params"`
	Classes  [2]int   `json:"classes"`
	Columns  []string `json:"columns,omitempty"`
	Features int      `json:"features"`
	Prior    float64  `json:"prior"`
	Trees    []*node  `json:"trees"`
}

// Trainer fits models.
type Trainer struct {
	Params  Params
	Columns []string
	Logger  logrus.FieldLogger
}

// Fit trains a model with p on X and y.
func Fit(X [][]float64, y []int, p Params) (*Model, error) {
	return Trainer{Params: p}.Fit(X, y)
}

// Fit trains a model on X and y. y must contain exactly two distinct labels.
func (t Trainer) Fit(X [][]float64, y []int) (*Model, error) {
	if err := t.Params.Validate(); err != nil {
		return nil, err
	}
	width, err := checkShape(X, y)
	if err != nil {
		return nil, err
	}
	if len(t.Columns) > 0 && len(t.Columns) != width {
		return nil, fmt.Errorf("%w: %d column names for %d features", ErrShape, len(t.Columns), width)
	}
	classes, err := binaryClasses(y)
	if err != nil {
		return nil, err
	}

	n := len(y)
	target := make([]float64, n)
	var pos float64
	for i, v := range y {
		if v == classes[1] {
			target[i] = 1
			pos++
		}
	}
	prior := math.Log(pos / (float64(n) - pos))

	m := &Model{
		Params:   t.Params,
		Classes:  classes,
		Columns:  t.Columns,
		Features: width,
		Prior:    prior,
	}

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = prior
	}
	residual := make([]float64, n)
	hessian := make([]float64, n)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	b := &treeBuilder{
		x:         X,
		residual:  residual,
		hessian:   hessian,
		maxDepth:  t.Params.MaxDepth,
		minSplit:  t.Params.MinSamplesSplit,
		minLeaf:   t.Params.MinSamplesLeaf,
		nFeatures: width,
	}

	for iter := 0; iter < t.Params.NEstimators; iter++ {
		for i := range raw {
			p := sigmoid(raw[i])
			residual[i] = target[i] - p
			hessian[i] = p * (1 - p)
		}
		tree := b.build(all, 0)
		m.Trees = append(m.Trees, tree)
		for i := range raw {
			raw[i] += t.Params.LearningRate * tree.predict(X[i])
		}

		if t.Logger != nil && ((iter+1)%10 == 0 || iter == 0) {
			t.Logger.WithFields(logrus.Fields{
				"component": "classifier",
				"iteration": iter + 1,
				"loss":      logLoss(target, raw),
			}).Debug("boosting")
		}
	}
	return m, nil
}

func checkShape(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("%w: no training rows", ErrShape)
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%w: %d rows but %d labels", ErrShape, len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: rows have no features", ErrShape)
	}
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrShape, i, len(row), width)
		}
	}
	return width, nil
}

func binaryClasses(y []int) ([2]int, error) {
	seen := make(map[int]struct{})
	for _, v := range y {
		seen[v] = struct{}{}
	}
	if len(seen) != 2 {
		return [2]int{}, fmt.Errorf("need exactly two classes, got %d", len(seen))
	}
	var labels []int
	for v := range seen {
		labels = append(labels, v)
	}
	sort.Ints(labels)
	return [2]int{labels[0], labels[1]}, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func logLoss(target, raw []float64) float64 {
	var sum float64
	for i, r := range raw {
		// log(1+e^r) - t*r, written to stay finite for large |r|
		sum += math.Max(r, 0) + math.Log1p(math.Exp(-math.Abs(r))) - target[i]*r
	}
	return sum / float64(len(raw))
}

// Decision returns the raw log-odds of Classes[1] for x.
func (m *Model) Decision(x []float64) (float64, error) {
	if len(x) != m.Features {
		return 0, fmt.Errorf("%w: got %d features, model expects %d", ErrShape, len(x), m.Features)
	}
	z := m.Prior
	for _, t := range m.Trees {
		z += m.Params.LearningRate * t.predict(x)
	}
	return z, nil
}

// PredictProba returns the probability that x belongs to Classes[1].
func (m *Model) PredictProba(x []float64) (float64, error) {
	z, err := m.Decision(x)
	if err != nil {
		return 0, err
	}
	return sigmoid(z), nil
}

// ProbaOf returns the probability that x has the given label.
func (m *Model) ProbaOf(x []float64, label int) (float64, error) {
	p, err := m.PredictProba(x)
	if err != nil {
		return 0, err
	}
	switch label {
	case m.Classes[1]:
		return p, nil
	case m.Classes[0]:
		return 1 - p, nil
	}
	return 0, fmt.Errorf("label %d is not one of the model classes %v", label, m.Classes)
}

// Predict returns the more likely label for x.
func (m *Model) Predict(x []float64) (int, error) {
	p, err := m.PredictProba(x)
	if err != nil {
		return 0, err
	}
	if p > 0.5 {
		return m.Classes[1], nil
	}
	return m.Classes[0], nil
}

// Accuracy returns the share of rows of X that m labels as y.
func (m *Model) Accuracy(X [][]float64, y []int) (float64, error) {
	if _, err := checkShape(X, y); err != nil {
		return 0, err
	}
	correct := 0
	for i, x := range X {
		got, err := m.Predict(x)
		if err != nil {
			return 0, err
		}
		if got == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y)), nil
}

// Save writes m as JSON.
func (m *Model) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

// SaveFile writes m to path.
func (m *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a model written by Save.
func Load(r io.Reader) (*Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if m.Features <= 0 || len(m.Trees) == 0 {
		return nil, fmt.Errorf("model file has no trees")
	}
	for i, t := range m.Trees {
		if err := t.check(m.Features); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &m, nil
}

// LoadFile reads a model from path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()
	return Load(f)
}
