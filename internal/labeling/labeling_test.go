package labeling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolabelhq/autolabel-go/internal/conf"
	"github.com/autolabelhq/autolabel-go/internal/datastore"
	"github.com/autolabelhq/autolabel-go/internal/errors"
)

func createDatabase(t *testing.T) datastore.Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = t.TempDir() + "/test.db"

	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

// seedProject creates a project with n unverified image records.
func seedProject(t *testing.T, store datastore.Interface, n int) (datastore.Project, []datastore.ImageRecord) {
	t.Helper()
	project := datastore.Project{Name: "Animals", Labels: datastore.LabelList{"cat", "dog", "bird"}}
	require.NoError(t, store.CreateProject(&project))

	records := make([]datastore.ImageRecord, 0, n)
	for i := 0; i < n; i++ {
		label := "cat"
		confidence := 0.8
		rec := datastore.ImageRecord{
			ProjectID:  project.ID,
			Filename:   "img.png",
			StorageKey: project.Name + "-" + string(rune('a'+i)),
			Label:      &label,
			Confidence: &confidence,
		}
		require.NoError(t, store.SaveImage(&rec))
		records = append(records, rec)
	}
	return project, records
}

func TestSetLabelOverridesSuggestion(t *testing.T) {
	store := createDatabase(t)
	_, records := seedProject(t, store, 1)

	workflow := NewWorkflow(store, nil)
	require.NoError(t, workflow.SetLabel(records[0].ID, "dog", true))

	fetched, err := store.GetImage(records[0].ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Label)
	assert.Equal(t, "dog", *fetched.Label)
	assert.True(t, fetched.IsVerified)
}

func TestSetLabelValidation(t *testing.T) {
	store := createDatabase(t)
	workflow := NewWorkflow(store, nil)

	err := workflow.SetLabel(1, "  ", true)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestSetLabelUnknownImage(t *testing.T) {
	store := createDatabase(t)
	workflow := NewWorkflow(store, nil)

	err := workflow.SetLabel(999, "dog", true)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestSetLabelOutsideVocabularyAccepted(t *testing.T) {
	store := createDatabase(t)
	_, records := seedProject(t, store, 1)

	workflow := NewWorkflow(store, nil)
	require.NoError(t, workflow.SetLabel(records[0].ID, "horse", true))

	fetched, err := store.GetImage(records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "horse", *fetched.Label)
}

func TestSetLabelIdempotent(t *testing.T) {
	store := createDatabase(t)
	_, records := seedProject(t, store, 1)

	workflow := NewWorkflow(store, nil)
	require.NoError(t, workflow.SetLabel(records[0].ID, "bird", true))
	first, err := store.GetImage(records[0].ID)
	require.NoError(t, err)

	require.NoError(t, workflow.SetLabel(records[0].ID, "bird", true))
	second, err := store.GetImage(records[0].ID)
	require.NoError(t, err)

	assert.Equal(t, first.Label, second.Label)
	assert.Equal(t, first.IsVerified, second.IsVerified)
	assert.Equal(t, first.Confidence, second.Confidence)
}

func TestExportSnapshot(t *testing.T) {
	store := createDatabase(t)
	project, records := seedProject(t, store, 3)

	aggregator := NewAggregator(store, nil)
	workflow := NewWorkflow(store, nil)

	before, err := aggregator.Export(project.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, before.Summary.TotalImages)
	assert.Equal(t, 0, before.Summary.Verified)
	assert.Equal(t, 3, before.Summary.Unverified)
	assert.Equal(t, "Animals", before.Project.Name)
	assert.Equal(t, datastore.LabelList{"cat", "dog", "bird"}, before.Project.Labels)

	require.NoError(t, workflow.SetLabel(records[0].ID, "dog", true))

	after, err := aggregator.Export(project.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Summary.TotalImages)
	assert.Equal(t, before.Summary.Verified+1, after.Summary.Verified)
	assert.Equal(t, after.Summary.TotalImages, after.Summary.Verified+after.Summary.Unverified)

	// The corrected image appears with its new label and verified flag.
	var found bool
	for _, img := range after.Images {
		if img.StorageKey == records[0].StorageKey {
			found = true
			require.NotNil(t, img.Label)
			assert.Equal(t, "dog", *img.Label)
			assert.True(t, img.IsVerified)
		}
	}
	assert.True(t, found)
}

func TestExportUnknownProject(t *testing.T) {
	store := createDatabase(t)
	aggregator := NewAggregator(store, nil)

	_, err := aggregator.Export(777)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestExportEmptyProject(t *testing.T) {
	store := createDatabase(t)
	project := datastore.Project{Name: "Empty", Labels: datastore.LabelList{"x"}}
	require.NoError(t, store.CreateProject(&project))

	snapshot, err := NewAggregator(store, nil).Export(project.ID)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Images)
	assert.Equal(t, 0, snapshot.Summary.TotalImages)
	assert.Equal(t, 0, snapshot.Summary.Verified)
	assert.Equal(t, 0, snapshot.Summary.Unverified)
}
