package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/autolabelhq/autolabel-go/internal/conf"
	"github.com/autolabelhq/autolabel-go/internal/errors"
	"github.com/autolabelhq/autolabel-go/internal/logging"
)

// Package-level logger specific to the classifier service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "classifier.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "classifier", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize classifier file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "classifier")
		closeLogger = func() error { return nil }
	}
}

// HTTPClassifier talks to a CLIP-style zero-shot inference sidecar. Each
// candidate label is expanded through the prompt template before the request;
// the response probabilities are mapped back to the bare labels.
type HTTPClassifier struct {
	endpoint       string
	promptTemplate string
	httpClient     *http.Client
}

// classifyRequest is the wire format sent to the inference endpoint.
type classifyRequest struct {
	Image      string   `json:"image"` // base64-encoded PNG
	Candidates []string `json:"candidates"`
}

// classifyResponse is the wire format returned by the inference endpoint.
// Probabilities align with the candidate order of the request.
type classifyResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

// NewHTTPClassifier creates a classifier client from settings.
func NewHTTPClassifier(settings *conf.ClassifierSettings) (*HTTPClassifier, error) {
	if settings.Endpoint == "" {
		return nil, errors.Newf("classifier endpoint is required").
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}
	promptTemplate := settings.PromptTemplate
	if promptTemplate == "" {
		promptTemplate = "a photo of a %s"
	}

	c := &HTTPClassifier{
		endpoint:       settings.Endpoint,
		promptTemplate: promptTemplate,
		// Request deadlines come from the caller's context; the dispatch
		// queue applies the configured per-invocation timeout.
		httpClient: &http.Client{},
	}

	logger.Info("classifier client initialized",
		"endpoint", settings.Endpoint,
		"prompt_template", promptTemplate)

	return c, nil
}

// Close releases the classifier service log file.
func (c *HTTPClassifier) Close() error {
	if closeLogger != nil {
		return closeLogger()
	}
	return nil
}

// Classify implements Interface by invoking the remote inference endpoint.
func (c *HTTPClassifier) Classify(ctx context.Context, img image.Image, labels []string) (Distribution, error) {
	if len(labels) == 0 {
		return nil, errors.Newf("candidate label set must not be empty").
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}

	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		return nil, errors.New(fmt.Errorf("encoding image for inference: %w", err)).
			Component("classifier").
			Category(errors.CategoryImageDecode).
			Build()
	}

	candidates := make([]string, len(labels))
	for i, label := range labels {
		candidates[i] = fmt.Sprintf(c.promptTemplate, label)
	}

	payload, err := json.Marshal(classifyRequest{
		Image:      base64.StdEncoding.EncodeToString(encoded.Bytes()),
		Candidates: candidates,
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("marshaling classify request: %w", err)).
			Component("classifier").
			Category(errors.CategoryClassification).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryHTTP).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("inference request failed", "endpoint", c.endpoint, "error", err)
		return nil, errors.New(fmt.Errorf("inference request: %w", err)).
			Component("classifier").
			Category(errors.CategoryHTTP).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Debug("failed to close inference response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Warn("inference endpoint returned error",
			"status", resp.StatusCode, "body", string(body))
		return nil, errors.Newf("inference endpoint returned status %d", resp.StatusCode).
			Component("classifier").
			Category(errors.CategoryClassification).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.New(fmt.Errorf("decoding inference response: %w", err)).
			Component("classifier").
			Category(errors.CategoryClassification).
			Build()
	}

	if len(parsed.Probabilities) != len(labels) {
		return nil, errors.Newf("inference returned %d probabilities for %d candidates",
			len(parsed.Probabilities), len(labels)).
			Component("classifier").
			Category(errors.CategoryClassification).
			Build()
	}

	dist := make(Distribution, len(labels))
	for i, label := range labels {
		prob := parsed.Probabilities[i]
		if prob < 0 || prob > 1 {
			return nil, errors.Newf("probability %f for label %q out of range", prob, label).
				Component("classifier").
				Category(errors.CategoryClassification).
				Build()
		}
		dist[label] = prob
	}

	return dist, nil
}
