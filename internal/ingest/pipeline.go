// Package ingest implements the image ingestion pipeline: per-file
// validation, blob persistence, classification and record creation. Files in
// a batch are isolated from each other; one rejected or corrupt file never
// prevents recording of its siblings.
package ingest

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	// Image decoders for the allowed upload formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"golang.org/x/sync/errgroup"

	"github.com/autolabelhq/autolabel-go/internal/classifier"
	"github.com/autolabelhq/autolabel-go/internal/datastore"
	"github.com/autolabelhq/autolabel-go/internal/errors"
	"github.com/autolabelhq/autolabel-go/internal/imagestore"
	"github.com/autolabelhq/autolabel-go/internal/logging"
	"github.com/autolabelhq/autolabel-go/internal/observability"
)

// allowedExtensions is the set of accepted upload file extensions.
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

// File is one raw upload destined for a project.
type File struct {
	Name string
	Data []byte
}

// Outcome is the per-file result of a batch ingestion: either a created
// record with its predictions, or a rejection error. Outcomes preserve the
// input file order.
type Outcome struct {
	Filename    string
	Record      *datastore.ImageRecord
	Predictions classifier.Distribution
	Err         error
}

// Rejected reports whether this file was rejected without creating a record.
func (o *Outcome) Rejected() bool {
	return o.Err != nil
}

// Pipeline orchestrates validation, persistence and classification for
// incoming files. Collaborators are injected so tests can substitute doubles.
type Pipeline struct {
	store       datastore.Interface
	blobs       imagestore.Interface
	classifier  classifier.Interface
	metrics     *observability.Metrics
	maxFileSize int64
	logger      *slog.Logger
}

// New creates an ingestion pipeline.
func New(store datastore.Interface, blobs imagestore.Interface, c classifier.Interface, metrics *observability.Metrics, maxFileSize int64) *Pipeline {
	logger := logging.ForService("ingest")
	if logger == nil {
		logger = slog.Default().With("service", "ingest")
	}
	return &Pipeline{
		store:       store,
		blobs:       blobs,
		classifier:  c,
		metrics:     metrics,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// IngestBatch processes a batch of files against one project and returns one
// outcome per input file, in input order. The returned error is non-nil only
// for batch-level failures such as an unknown project.
func (p *Pipeline) IngestBatch(ctx context.Context, projectID uint, files []File) ([]Outcome, error) {
	project, err := p.store.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(files))

	// Files are processed in parallel; ordering of the outcome slice is
	// positional, so execution order does not matter. Classification
	// concurrency is additionally bounded by the classifier dispatcher.
	g := new(errgroup.Group)
	g.SetLimit(4)
	for i := range files {
		i := i
		g.Go(func() error {
			outcomes[i] = p.processFile(ctx, &project, &files[i])
			return nil
		})
	}
	// Workers never return errors; per-file failures live in the outcomes.
	_ = g.Wait()

	return outcomes, nil
}

// processFile runs the per-file algorithm: validate, store, classify, record.
func (p *Pipeline) processFile(ctx context.Context, project *datastore.Project, file *File) Outcome {
	outcome := Outcome{Filename: file.Name}

	if err := p.validate(file); err != nil {
		p.metrics.RecordIngestOutcome(observability.OutcomeRejected)
		outcome.Err = err
		return outcome
	}

	sanitized := imagestore.SanitizeFilename(file.Name)
	storageKey := imagestore.BuildKey(time.Now(), file.Name)

	if err := p.blobs.Save(storageKey, file.Data); err != nil {
		p.logger.Error("failed to store upload", "file", sanitized, "error", err)
		p.metrics.RecordIngestOutcome(observability.OutcomeRejected)
		outcome.Err = err
		return outcome
	}

	// Classification failure of any kind, decode errors included, yields a
	// record without a prediction rather than a rejected file.
	predictions := p.classify(ctx, file.Data, project.Labels)

	rec := datastore.ImageRecord{
		ProjectID:  project.ID,
		Filename:   sanitized,
		StorageKey: storageKey,
	}
	if top, ok := classifier.TopPrediction(predictions, project.Labels); ok {
		rec.Label = &top.Label
		rec.Confidence = &top.Confidence
	}

	if err := p.store.SaveImage(&rec); err != nil {
		p.logger.Error("failed to save image record", "file", sanitized, "error", err)
		p.metrics.RecordIngestOutcome(observability.OutcomeRejected)
		outcome.Err = err
		return outcome
	}

	p.metrics.RecordIngestOutcome(observability.OutcomeRecorded)
	outcome.Record = &rec
	outcome.Predictions = predictions
	return outcome
}

// validate rejects files with a disallowed extension or excessive size.
func (p *Pipeline) validate(file *File) error {
	ext := strings.ToLower(filepath.Ext(file.Name))
	if !allowedExtensions[ext] {
		return errors.Newf("file extension %q is not allowed", ext).
			Component("ingest").
			Category(errors.CategoryValidation).
			FileContext(file.Name, int64(len(file.Data))).
			Build()
	}
	if p.maxFileSize > 0 && int64(len(file.Data)) > p.maxFileSize {
		return errors.Newf("file exceeds maximum size of %d bytes", p.maxFileSize).
			Component("ingest").
			Category(errors.CategoryValidation).
			FileContext(file.Name, int64(len(file.Data))).
			Build()
	}
	return nil
}

// classify decodes the stored bytes and invokes the classification oracle.
// Any failure is recovered as an empty distribution.
func (p *Pipeline) classify(ctx context.Context, data []byte, labels []string) classifier.Distribution {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		p.logger.Warn("failed to decode image, skipping classification", "error", err)
		p.metrics.RecordClassification(observability.StatusFailure, 0)
		return classifier.Distribution{}
	}

	start := time.Now()
	dist, err := p.classifier.Classify(ctx, img, labels)
	elapsed := time.Since(start)
	if err != nil {
		p.logger.Warn("classification failed",
			"format", format,
			"duration_ms", elapsed.Milliseconds(),
			"error", err)
		p.metrics.RecordClassification(observability.StatusFailure, elapsed)
		return classifier.Distribution{}
	}

	p.metrics.RecordClassification(observability.StatusSuccess, elapsed)
	return dist
}
