package classifier

import (
	"fmt"
	"math"
	"math/rand"
)

// Split is a train/test partition of a dataset.
type Split struct {
	XTrain [][]float64
	YTrain []int
	XTest  [][]float64
	YTest  []int
}

// TrainTestSplit shuffles rows with seed and holds out testSize of them
// (rounded up) for evaluation. The same seed always gives the same split.
func TrainTestSplit(X [][]float64, y []int, testSize float64, seed int64) (Split, error) {
	if len(X) != len(y) {
		return Split{}, fmt.Errorf("%w: %d rows but %d labels", ErrShape, len(X), len(y))
	}
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("test size must be between 0 and 1, got %f", testSize)
	}
	n := len(y)
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest == 0 || nTest >= n {
		return Split{}, fmt.Errorf("cannot hold out %d of %d rows", nTest, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	var s Split
	for k, i := range perm {
		if k < nTest {
			s.XTest = append(s.XTest, X[i])
			s.YTest = append(s.YTest, y[i])
		} else {
			s.XTrain = append(s.XTrain, X[i])
			s.YTrain = append(s.YTrain, y[i])
		}
	}
	return s, nil
}
