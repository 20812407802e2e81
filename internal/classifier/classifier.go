// Package classifier defines the zero-shot classification contract used for
// image pre-labeling and provides the HTTP inference client and the bounded
// dispatch queue in front of it.
package classifier

import (
	"context"
	"image"
)

// Distribution maps each candidate label to its predicted probability.
// An empty distribution means the classifier produced no prediction.
type Distribution map[string]float64

// Interface is the classification oracle contract: given one decoded image
// and a non-empty ordered candidate vocabulary, produce a probability
// distribution over those candidates.
type Interface interface {
	Classify(ctx context.Context, img image.Image, labels []string) (Distribution, error)
}

// Prediction is a resolved top prediction.
type Prediction struct {
	Label      string
	Confidence float64
}

// TopPrediction resolves the label with maximum probability in the
// distribution. Ties are broken by position in the canonical label order, so
// resolution iterates the label sequence rather than the map. Returns false
// when the distribution is empty or shares no labels with the vocabulary.
func TopPrediction(dist Distribution, labels []string) (Prediction, bool) {
	best := Prediction{}
	found := false
	for _, label := range labels {
		prob, ok := dist[label]
		if !ok {
			continue
		}
		if !found || prob > best.Confidence {
			best = Prediction{Label: label, Confidence: prob}
			found = true
		}
	}
	return best, found
}

// Func adapts a plain function to Interface, mostly for tests.
type Func func(ctx context.Context, img image.Image, labels []string) (Distribution, error)

// Classify implements Interface.
func (f Func) Classify(ctx context.Context, img image.Image, labels []string) (Distribution, error) {
	return f(ctx, img, labels)
}
