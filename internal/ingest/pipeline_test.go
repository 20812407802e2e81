package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolabelhq/autolabel-go/internal/classifier"
	"github.com/autolabelhq/autolabel-go/internal/conf"
	"github.com/autolabelhq/autolabel-go/internal/datastore"
	"github.com/autolabelhq/autolabel-go/internal/errors"
	"github.com/autolabelhq/autolabel-go/internal/imagestore"
)

// pngBytes returns a valid encoded PNG image.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

type testEnv struct {
	store datastore.Interface
	blobs *imagestore.FileStore
}

// newTestEnv builds a pipeline over a temp SQLite database and blob directory.
func newTestEnv(t *testing.T, c classifier.Interface) (*Pipeline, *testEnv) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = t.TempDir() + "/test.db"

	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	blobs, err := imagestore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	pipeline := New(store, blobs, c, nil, 10*1024*1024)
	return pipeline, &testEnv{store: store, blobs: blobs}
}

func createProject(t *testing.T, store datastore.Interface, labels ...string) datastore.Project {
	t.Helper()
	project := datastore.Project{Name: "Animals", Labels: labels}
	require.NoError(t, store.CreateProject(&project))
	return project
}

func fixedClassifier(dist classifier.Distribution) classifier.Interface {
	return classifier.Func(func(ctx context.Context, img image.Image, labels []string) (classifier.Distribution, error) {
		return dist, nil
	})
}

func TestIngestSingleFile(t *testing.T) {
	dist := classifier.Distribution{"cat": 0.9, "dog": 0.07, "bird": 0.03}
	pipeline, env := newTestEnv(t, fixedClassifier(dist))
	project := createProject(t, env.store, "cat", "dog", "bird")

	outcomes, err := pipeline.IngestBatch(context.Background(), project.ID,
		[]File{{Name: "cat1.jpg", Data: pngBytes(t)}})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	outcome := outcomes[0]
	require.False(t, outcome.Rejected())
	require.NotNil(t, outcome.Record)
	require.NotNil(t, outcome.Record.Label)
	require.NotNil(t, outcome.Record.Confidence)
	assert.Equal(t, "cat", *outcome.Record.Label)
	assert.InDelta(t, 0.9, *outcome.Record.Confidence, 1e-9)
	assert.False(t, outcome.Record.IsVerified)
	assert.Equal(t, dist, outcome.Predictions)

	// Bytes are retrievable under the record's storage key.
	stored, err := env.blobs.Load(outcome.Record.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t), stored)

	// Record was persisted.
	fetched, err := env.store.GetImage(outcome.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, "cat1.jpg", fetched.Filename)
}

func TestIngestRejectsDisallowedExtension(t *testing.T) {
	pipeline, env := newTestEnv(t, fixedClassifier(classifier.Distribution{"cat": 1.0}))
	project := createProject(t, env.store, "cat")

	outcomes, err := pipeline.IngestBatch(context.Background(), project.ID, []File{
		{Name: "scan.bmp", Data: pngBytes(t)},
		{Name: "cat2.png", Data: pngBytes(t)},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	// The .bmp file is rejected and produces no record.
	assert.True(t, outcomes[0].Rejected())
	assert.True(t, errors.HasCategory(outcomes[0].Err, errors.CategoryValidation))
	assert.Nil(t, outcomes[0].Record)

	// The sibling valid file is still recorded.
	require.False(t, outcomes[1].Rejected())
	require.NotNil(t, outcomes[1].Record)

	records, err := env.store.GetProjectImages(project.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestIngestRejectsOversizedFile(t *testing.T) {
	pipeline, env := newTestEnv(t, fixedClassifier(classifier.Distribution{"cat": 1.0}))
	pipeline.maxFileSize = 16
	project := createProject(t, env.store, "cat")

	outcomes, err := pipeline.IngestBatch(context.Background(), project.ID,
		[]File{{Name: "big.png", Data: pngBytes(t)}})
	require.NoError(t, err)
	require.True(t, outcomes[0].Rejected())
	assert.True(t, errors.HasCategory(outcomes[0].Err, errors.CategoryValidation))
}

func TestIngestOracleFailureYieldsNilLabel(t *testing.T) {
	failing := classifier.Func(func(ctx context.Context, img image.Image, labels []string) (classifier.Distribution, error) {
		return nil, errors.Newf("inference backend down").Category(errors.CategoryClassification).Build()
	})
	pipeline, env := newTestEnv(t, failing)
	project := createProject(t, env.store, "cat", "dog")

	outcomes, err := pipeline.IngestBatch(context.Background(), project.ID,
		[]File{{Name: "cat1.png", Data: pngBytes(t)}})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	outcome := outcomes[0]
	require.False(t, outcome.Rejected())
	require.NotNil(t, outcome.Record)
	assert.Nil(t, outcome.Record.Label)
	assert.Nil(t, outcome.Record.Confidence)
	assert.False(t, outcome.Record.IsVerified)
	assert.Empty(t, outcome.Predictions)
}

func TestIngestUndecodableImageStillRecorded(t *testing.T) {
	called := false
	c := classifier.Func(func(ctx context.Context, img image.Image, labels []string) (classifier.Distribution, error) {
		called = true
		return classifier.Distribution{"cat": 1.0}, nil
	})
	pipeline, env := newTestEnv(t, c)
	project := createProject(t, env.store, "cat")

	outcomes, err := pipeline.IngestBatch(context.Background(), project.ID,
		[]File{{Name: "broken.png", Data: []byte("not an image")}})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	// Oracle is never invoked for undecodable bytes but the file is stored
	// and recorded without a prediction.
	assert.False(t, called)
	require.NotNil(t, outcomes[0].Record)
	assert.Nil(t, outcomes[0].Record.Label)
	assert.Nil(t, outcomes[0].Record.Confidence)
}

func TestIngestUnknownProject(t *testing.T) {
	pipeline, _ := newTestEnv(t, fixedClassifier(classifier.Distribution{}))

	_, err := pipeline.IngestBatch(context.Background(), 4242,
		[]File{{Name: "cat1.png", Data: pngBytes(t)}})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestIngestPreservesInputOrder(t *testing.T) {
	pipeline, env := newTestEnv(t, fixedClassifier(classifier.Distribution{"cat": 1.0}))
	project := createProject(t, env.store, "cat")

	files := make([]File, 12)
	for i := range files {
		files[i] = File{Name: fmt.Sprintf("img%02d.png", i), Data: pngBytes(t)}
	}
	// One invalid file in the middle must not shift the others.
	files[5] = File{Name: "img05.tiff", Data: pngBytes(t)}

	outcomes, err := pipeline.IngestBatch(context.Background(), project.ID, files)
	require.NoError(t, err)
	require.Len(t, outcomes, len(files))

	for i, outcome := range outcomes {
		assert.Equal(t, files[i].Name, outcome.Filename, "outcome %d out of order", i)
	}
	assert.True(t, outcomes[5].Rejected())

	records, err := env.store.GetProjectImages(project.ID)
	require.NoError(t, err)
	assert.Len(t, records, len(files)-1)
}

func TestIngestTieBreakUsesProjectLabelOrder(t *testing.T) {
	dist := classifier.Distribution{"cat": 0.4, "dog": 0.4, "bird": 0.2}
	pipeline, env := newTestEnv(t, fixedClassifier(dist))
	project := createProject(t, env.store, "cat", "dog", "bird")

	outcomes, err := pipeline.IngestBatch(context.Background(), project.ID,
		[]File{{Name: "pet.png", Data: pngBytes(t)}})
	require.NoError(t, err)
	require.NotNil(t, outcomes[0].Record)
	require.NotNil(t, outcomes[0].Record.Label)
	assert.Equal(t, "cat", *outcomes[0].Record.Label)
}
