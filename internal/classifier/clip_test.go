package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolabelhq/autolabel-go/internal/conf"
	"github.com/autolabelhq/autolabel-go/internal/errors"
)

func newTestClassifier(t *testing.T) *HTTPClassifier {
	t.Helper()
	c, err := NewHTTPClassifier(&conf.ClassifierSettings{
		Endpoint:       "http://inference.local/classify",
		PromptTemplate: "a photo of a %s",
		Timeout:        5 * time.Second,
		Concurrency:    1,
	})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestHTTPClassifierClassify(t *testing.T) {
	c := newTestClassifier(t)

	var gotRequest classifyRequest
	httpmock.RegisterResponder(http.MethodPost, "http://inference.local/classify",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&gotRequest); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, classifyResponse{
				Probabilities: []float64{0.9, 0.07, 0.03},
			})
		})

	dist, err := c.Classify(context.Background(), testImage(), []string{"cat", "dog", "bird"})
	require.NoError(t, err)

	assert.InDelta(t, 0.9, dist["cat"], 1e-9)
	assert.InDelta(t, 0.07, dist["dog"], 1e-9)
	assert.InDelta(t, 0.03, dist["bird"], 1e-9)

	// Prompt template applied to each candidate, in vocabulary order.
	assert.Equal(t, []string{"a photo of a cat", "a photo of a dog", "a photo of a bird"},
		gotRequest.Candidates)
	assert.NotEmpty(t, gotRequest.Image)
}

func TestHTTPClassifierServerError(t *testing.T) {
	c := newTestClassifier(t)

	httpmock.RegisterResponder(http.MethodPost, "http://inference.local/classify",
		httpmock.NewStringResponder(http.StatusInternalServerError, "model crashed"))

	_, err := c.Classify(context.Background(), testImage(), []string{"cat"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryClassification))
}

func TestHTTPClassifierLengthMismatch(t *testing.T) {
	c := newTestClassifier(t)

	httpmock.RegisterResponder(http.MethodPost, "http://inference.local/classify",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, classifyResponse{
			Probabilities: []float64{0.5},
		}))

	_, err := c.Classify(context.Background(), testImage(), []string{"cat", "dog"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryClassification))
}

func TestHTTPClassifierOutOfRangeProbability(t *testing.T) {
	c := newTestClassifier(t)

	httpmock.RegisterResponder(http.MethodPost, "http://inference.local/classify",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, classifyResponse{
			Probabilities: []float64{1.5},
		}))

	_, err := c.Classify(context.Background(), testImage(), []string{"cat"})
	require.Error(t, err)
}

func TestHTTPClassifierEmptyLabels(t *testing.T) {
	c := newTestClassifier(t)

	_, err := c.Classify(context.Background(), testImage(), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestNewHTTPClassifierRequiresEndpoint(t *testing.T) {
	_, err := NewHTTPClassifier(&conf.ClassifierSettings{})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
}
