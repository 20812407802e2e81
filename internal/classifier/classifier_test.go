package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopPrediction(t *testing.T) {
	t.Parallel()

	labels := []string{"cat", "dog", "bird"}

	pred, ok := TopPrediction(Distribution{"cat": 0.9, "dog": 0.07, "bird": 0.03}, labels)
	assert.True(t, ok)
	assert.Equal(t, "cat", pred.Label)
	assert.InDelta(t, 0.9, pred.Confidence, 1e-9)
}

func TestTopPredictionTieBreaksByCanonicalOrder(t *testing.T) {
	t.Parallel()

	labels := []string{"cat", "dog", "bird"}

	// dog and bird tie; cat is lower. dog comes first in project order.
	pred, ok := TopPrediction(Distribution{"cat": 0.2, "dog": 0.4, "bird": 0.4}, labels)
	assert.True(t, ok)
	assert.Equal(t, "dog", pred.Label)

	// Same distribution against a reordered vocabulary flips the winner.
	pred, ok = TopPrediction(Distribution{"cat": 0.2, "dog": 0.4, "bird": 0.4}, []string{"bird", "dog", "cat"})
	assert.True(t, ok)
	assert.Equal(t, "bird", pred.Label)
}

func TestTopPredictionEmptyDistribution(t *testing.T) {
	t.Parallel()

	_, ok := TopPrediction(Distribution{}, []string{"cat", "dog"})
	assert.False(t, ok)

	_, ok = TopPrediction(nil, []string{"cat"})
	assert.False(t, ok)
}

func TestTopPredictionIgnoresUnknownLabels(t *testing.T) {
	t.Parallel()

	// Labels outside the vocabulary never win, regardless of probability.
	pred, ok := TopPrediction(Distribution{"horse": 0.99, "cat": 0.5}, []string{"cat", "dog"})
	assert.True(t, ok)
	assert.Equal(t, "cat", pred.Label)
}
