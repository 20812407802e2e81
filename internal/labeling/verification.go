// Package labeling implements the human side of the labeling workflow:
// applying corrections to suggested labels and exporting project snapshots.
package labeling

import (
	"strings"

	"github.com/autolabelhq/autolabel-go/internal/datastore"
	"github.com/autolabelhq/autolabel-go/internal/errors"
	"github.com/autolabelhq/autolabel-go/internal/observability"
)

// Workflow applies human label corrections to image records.
type Workflow struct {
	store   datastore.Interface
	metrics *observability.Metrics
}

// NewWorkflow creates a verification workflow over the given store.
func NewWorkflow(store datastore.Interface, metrics *observability.Metrics) *Workflow {
	return &Workflow{store: store, metrics: metrics}
}

// SetLabel overwrites an image's label and verified flag. The label is not
// checked against the project vocabulary: annotators may introduce labels
// outside the original set. Applying the same update twice leaves the record
// unchanged.
func (w *Workflow) SetLabel(imageID uint, label string, verified bool) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return errors.Newf("label must not be empty").
			Component("labeling").
			Category(errors.CategoryValidation).
			Build()
	}

	if err := w.store.UpdateImageLabel(imageID, label, verified); err != nil {
		return err
	}

	w.metrics.RecordLabelUpdate()
	return nil
}
