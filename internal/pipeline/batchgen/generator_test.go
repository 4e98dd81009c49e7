package batchgen

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/pipeline/internal/domain/collection"
	"github.com/imagevault/pipeline/internal/domain/jobstate"
	"github.com/imagevault/pipeline/internal/infra/artifactstore"
	"github.com/imagevault/pipeline/internal/infra/messagebus"
	"github.com/imagevault/pipeline/internal/pipelinetest"
)

// fakeStore is an in-memory artifactstore.Store, grounded on the same
// interface LocalStore implements, avoiding real disk I/O in unit tests.
type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) key(kind artifactstore.Kind, collectionID, imageID uuid.UUID, ext string) string {
	return string(kind) + "/" + collectionID.String() + "/" + imageID.String() + ext
}

func (s *fakeStore) Save(ctx context.Context, kind artifactstore.Kind, collectionID, imageID uuid.UUID, ext string, r io.Reader) (string, int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	s.mu.Lock()
	s.data[s.key(kind, collectionID, imageID, ext)] = b
	s.mu.Unlock()
	return s.Path(kind, collectionID, imageID, ext), int64(len(b)), nil
}

func (s *fakeStore) Exists(ctx context.Context, kind artifactstore.Kind, collectionID, imageID uuid.UUID, ext string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[s.key(kind, collectionID, imageID, ext)]
	return ok, nil
}

func (s *fakeStore) Delete(ctx context.Context, kind artifactstore.Kind, collectionID, imageID uuid.UUID, ext string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, s.key(kind, collectionID, imageID, ext))
	return nil
}

func (s *fakeStore) DeleteCollection(ctx context.Context, kind artifactstore.Kind, collectionID uuid.UUID) error {
	return nil
}

func (s *fakeStore) Path(kind artifactstore.Kind, collectionID, imageID uuid.UUID, ext string) string {
	return s.key(kind, collectionID, imageID, ext)
}

// fakeProcessor is an in-memory imageprocessor.ImageProcessor stand-in
// that returns a fixed-size payload instead of touching real image bytes.
type fakeProcessor struct {
	failOn map[string]bool // keyed by sourcePath
}

func (p *fakeProcessor) GenerateVariant(ctx context.Context, sourcePath, destPath string, w, h, q int) error {
	return nil
}

func (p *fakeProcessor) GenerateVariantToBuffer(ctx context.Context, sourcePath, destExt string, w, h, q int) ([]byte, error) {
	if p.failOn != nil && p.failOn[sourcePath] {
		return nil, assert.AnError
	}
	return bytes.Repeat([]byte{0xFF}, 128), nil
}

func (p *fakeProcessor) GetDimensions(ctx context.Context, path string) (int, int, error) {
	return 100, 100, nil
}

func (p *fakeProcessor) Validate(ctx context.Context, path string) error { return nil }

func newTestCollection(t *testing.T, images ...collection.Image) *collection.Collection {
	t.Helper()
	dir := t.TempDir()
	settings := collection.Settings{GenerateThumbnails: true, GenerateCache: true}
	return collection.ReconstructCollection(uuid.New(), "test", dir, collection.TypeFolder, settings, 0, images, nil, nil, time.Now(), time.Now())
}

func newTestImage(t *testing.T, col *collection.Collection, size int64) collection.Image {
	t.Helper()
	img := collection.NewImage(col.ID(), "photo.jpg", "photo.jpg", size, 800, 600, "jpeg")
	require.NoError(t, os.WriteFile(filepath.Join(col.Path(), img.RelativePath), []byte("fake image bytes"), 0644))
	return img
}

func newTestGenerator(repo *pipelinetest.MockCollectionRepository, jobsRepo *pipelinetest.MockJobStateRepository, store artifactstore.Store, proc *fakeProcessor) *Generator {
	cfg := messagebus.DefaultConfig()
	cfg.MaxBatchSize = 10
	cfg.BatchTimeoutSeconds = 1
	cfg.MaxConcurrentBatches = 2
	cfg.MaxConcurrentProcessing = 2
	cfg.MemoryPoolSize = 4
	var jobs *jobstate.Service
	if jobsRepo != nil {
		jobs = jobstate.NewService(jobsRepo)
	}
	return NewGenerator(repo, jobs, proc, store, cfg)
}

func TestGenerator_ProcessThumbnailTask_GeneratesAndCommitsOnFullBatch(t *testing.T) {
	col := newTestCollection(t)
	img := newTestImage(t, col, 2048)
	col2 := collection.ReconstructCollection(col.ID(), col.Name(), col.Path(), col.Type(), col.Settings(), 0, []collection.Image{img}, nil, nil, time.Now(), time.Now())

	repo := new(pipelinetest.MockCollectionRepository)
	repo.On("FindByID", mock.Anything, col2.ID()).Return(col2, nil)
	repo.On("AddThumbnailsBatch", mock.Anything, col2.ID(), mock.Anything).Return(nil)

	store := newFakeStore()
	proc := &fakeProcessor{}
	gen := newTestGenerator(repo, nil, store, proc)
	gen.cfg.MaxBatchSize = 1 // flush on first item

	payload := messagebus.ThumbnailGenerationPayload{
		CollectionID:  col2.ID(),
		ImageID:       img.ID,
		ImagePath:     img.RelativePath,
		ImageFilename: img.Filename,
		Width:         300,
		Height:        300,
	}
	gen.enqueue(item{
		kind: artifactstore.KindThumbnail, collectionID: payload.CollectionID, imageID: payload.ImageID,
		imagePath: payload.ImagePath, imageFilename: payload.ImageFilename, width: payload.Width, height: payload.Height,
	})

	waitForFlush(t, func() bool {
		exists, _ := store.Exists(context.Background(), artifactstore.KindThumbnail, col2.ID(), img.ID, ".jpg")
		return exists
	})

	repo.AssertCalled(t, "AddThumbnailsBatch", mock.Anything, col2.ID(), mock.Anything)
}

func TestGenerator_ProcessItem_SkipsExistingOnDiskArtifact(t *testing.T) {
	col := newTestCollection(t)
	img := newTestImage(t, col, 2048)
	col2 := collection.ReconstructCollection(col.ID(), col.Name(), col.Path(), col.Type(), col.Settings(), 0, []collection.Image{img},
		[]collection.ThumbnailEntry{{ImageID: img.ID, Path: "thumbnails/x/y.jpg", Width: 300, Height: 300, Format: "jpg", SizeBytes: 50}},
		nil, time.Now(), time.Now())

	store := newFakeStore()
	_, _, err := store.Save(context.Background(), artifactstore.KindThumbnail, col2.ID(), img.ID, ".jpg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	gen := newTestGenerator(nil, nil, store, &fakeProcessor{})

	it := item{kind: artifactstore.KindThumbnail, collectionID: col2.ID(), imageID: img.ID, imageFilename: img.Filename, width: 300, height: 300}
	res := gen.processItem(context.Background(), col2, it)

	assert.Equal(t, outcomeSkippedExisting, res.out)
}

func TestGenerator_ProcessItem_OversizeSourceBecomesSentinel(t *testing.T) {
	col := newTestCollection(t)
	img := newTestImage(t, col, 10)
	img.SizeBytes = 10 * (1 << 30) // far beyond any configured limit
	col2 := collection.ReconstructCollection(col.ID(), col.Name(), col.Path(), col.Type(), col.Settings(), 0, []collection.Image{img}, nil, nil, time.Now(), time.Now())

	jobsRepo := new(pipelinetest.MockJobStateRepository)
	jobID := uuid.New()
	jobsRepo.On("TrackError", mock.Anything, jobID, "OversizeSource").Return(1, nil)

	gen := newTestGenerator(nil, jobsRepo, newFakeStore(), &fakeProcessor{})

	it := item{kind: artifactstore.KindCache, collectionID: col2.ID(), imageID: img.ID, width: 1920, height: 1080, format: "jpeg", quality: 85, scanJobID: jobID}
	res := gen.processItem(context.Background(), col2, it)

	assert.Equal(t, outcomeOversize, res.out)
	assert.True(t, res.cacheEntry.IsSentinel())
	jobsRepo.AssertCalled(t, "TrackError", mock.Anything, jobID, "OversizeSource")
}

func TestGenerator_ProcessItem_GenerateFailureBecomesSentinel(t *testing.T) {
	col := newTestCollection(t)
	img := newTestImage(t, col, 2048)
	col2 := collection.ReconstructCollection(col.ID(), col.Name(), col.Path(), col.Type(), col.Settings(), 0, []collection.Image{img}, nil, nil, time.Now(), time.Now())

	jobsRepo := new(pipelinetest.MockJobStateRepository)
	jobID := uuid.New()
	jobsRepo.On("TrackError", mock.Anything, jobID, "DecodeFailure").Return(1, nil)

	proc := &fakeProcessor{failOn: map[string]bool{}}
	gen := newTestGenerator(nil, jobsRepo, newFakeStore(), proc)
	proc.failOn[filepath.Join(col2.Path(), img.RelativePath)] = true

	it := item{kind: artifactstore.KindThumbnail, collectionID: col2.ID(), imageID: img.ID, imageFilename: img.Filename, width: 300, height: 300, scanJobID: jobID}
	res := gen.processItem(context.Background(), col2, it)

	assert.Equal(t, outcomeFailed, res.out)
	jobsRepo.AssertCalled(t, "TrackError", mock.Anything, jobID, "DecodeFailure")
}

func TestItem_Ext(t *testing.T) {
	thumb := item{kind: artifactstore.KindThumbnail, imageFilename: "photo.PNG"}
	assert.Equal(t, ".png", thumb.ext())

	cache := item{kind: artifactstore.KindCache, format: "JPEG"}
	assert.Equal(t, ".jpeg", cache.ext())
}

func waitForFlush(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for batch flush")
}
