package labeling

import (
	"github.com/autolabelhq/autolabel-go/internal/datastore"
	"github.com/autolabelhq/autolabel-go/internal/observability"
)

// ExportProject is the project header of an export snapshot.
type ExportProject struct {
	Name   string              `json:"name"`
	Labels datastore.LabelList `json:"labels"`
}

// ExportImage is one labeled image in an export snapshot.
type ExportImage struct {
	Filename   string   `json:"filename"`
	StorageKey string   `json:"storage_key"`
	Label      *string  `json:"label"`
	Confidence *float64 `json:"confidence"`
	IsVerified bool     `json:"is_verified"`
}

// ExportSummary holds the snapshot counts; Verified plus Unverified always
// equals TotalImages.
type ExportSummary struct {
	TotalImages int `json:"total_images"`
	Verified    int `json:"verified"`
	Unverified  int `json:"unverified"`
}

// Snapshot is a consistent export of a project's labels and statistics.
type Snapshot struct {
	Project ExportProject `json:"project"`
	Images  []ExportImage `json:"images"`
	Summary ExportSummary `json:"summary"`
}

// Aggregator produces export snapshots.
type Aggregator struct {
	store   datastore.Interface
	metrics *observability.Metrics
}

// NewAggregator creates an export aggregator over the given store.
func NewAggregator(store datastore.Interface, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{store: store, metrics: metrics}
}

// Export builds a snapshot of the project's labels and summary counts. The
// image set comes from a single read, so the counts are internally
// consistent even under concurrent label updates.
func (a *Aggregator) Export(projectID uint) (*Snapshot, error) {
	project, err := a.store.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	records, err := a.store.GetProjectImages(projectID)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Project: ExportProject{
			Name:   project.Name,
			Labels: project.Labels,
		},
		Images: make([]ExportImage, 0, len(records)),
	}

	for i := range records {
		rec := records[i].Copy()
		snapshot.Images = append(snapshot.Images, ExportImage{
			Filename:   rec.Filename,
			StorageKey: rec.StorageKey,
			Label:      rec.Label,
			Confidence: rec.Confidence,
			IsVerified: rec.IsVerified,
		})
		if rec.IsVerified {
			snapshot.Summary.Verified++
		} else {
			snapshot.Summary.Unverified++
		}
	}
	snapshot.Summary.TotalImages = len(snapshot.Images)

	a.metrics.RecordExport()
	return snapshot, nil
}
