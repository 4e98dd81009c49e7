package imageprocessing

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/pipeline/internal/domain/collection"
	"github.com/imagevault/pipeline/internal/infra/messagebus"
	"github.com/imagevault/pipeline/internal/pipelinetest"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestConsumer_ProcessTask_DecodesAndPublishesBothVariants(t *testing.T) {
	root := t.TempDir()
	imgPath := filepath.Join(root, "photo.png")
	writeTestPNG(t, imgPath, 40, 20)

	settings := collection.Settings{
		GenerateThumbnails: true,
		GenerateCache:      true,
		ThumbnailWidth:     300,
		ThumbnailHeight:    300,
		CacheWidth:         1920,
		CacheHeight:        1080,
		CacheFormat:        "jpeg",
		CacheQuality:       85,
	}
	col, err := collection.NewCollection("test", root, collection.TypeFolder, settings)
	require.NoError(t, err)
	img := collection.NewImage(col.ID(), "photo.png", "photo.png", 123, 0, 0, "png")
	col = collection.ReconstructCollection(col.ID(), col.Name(), col.Path(), col.Type(), col.Settings(),
		col.CacheFolderSizeBytes(), []collection.Image{img}, nil, nil, col.CreatedAt(), col.UpdatedAt())

	repo := new(pipelinetest.MockCollectionRepository)
	repo.On("FindByID", mock.Anything, col.ID()).Return(col, nil)
	repo.On("UpdateImageMetadata", mock.Anything, col.ID(), img.ID, int64(123), 40, 20, "png").Return(nil)

	enqueuer := &pipelinetest.FakeEnqueuer{}
	consumer := NewConsumer(repo, nil, enqueuer)

	payload := messagebus.ImageProcessingPayload{
		CollectionID: col.ID(),
		ImageID:      img.ID,
		ImagePath:    imgPath,
		ScanJobID:    uuid.New(),
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	task := asynq.NewTask(messagebus.TypeImageProcessing, raw)

	require.NoError(t, consumer.ProcessTask(context.Background(), task))

	tasks := enqueuer.Tasks()
	require.Len(t, tasks, 2)
	types := map[string]bool{}
	for _, tk := range tasks {
		types[tk.Type()] = true
	}
	require.True(t, types[messagebus.TypeThumbnailGeneration])
	require.True(t, types[messagebus.TypeCacheGeneration])
	repo.AssertExpectations(t)
}

func TestConsumer_ProcessTask_SkipsDisabledVariants(t *testing.T) {
	root := t.TempDir()
	imgPath := filepath.Join(root, "photo.png")
	writeTestPNG(t, imgPath, 10, 10)

	col, err := collection.NewCollection("test", root, collection.TypeFolder, collection.Settings{})
	require.NoError(t, err)
	img := collection.NewImage(col.ID(), "photo.png", "photo.png", 10, 0, 0, "png")
	col = collection.ReconstructCollection(col.ID(), col.Name(), col.Path(), col.Type(), col.Settings(),
		col.CacheFolderSizeBytes(), []collection.Image{img}, nil, nil, col.CreatedAt(), col.UpdatedAt())

	repo := new(pipelinetest.MockCollectionRepository)
	repo.On("FindByID", mock.Anything, col.ID()).Return(col, nil)
	repo.On("UpdateImageMetadata", mock.Anything, col.ID(), img.ID, int64(10), 10, 10, "png").Return(nil)

	enqueuer := &pipelinetest.FakeEnqueuer{}
	consumer := NewConsumer(repo, nil, enqueuer)

	payload := messagebus.ImageProcessingPayload{CollectionID: col.ID(), ImageID: img.ID, ImagePath: imgPath}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	task := asynq.NewTask(messagebus.TypeImageProcessing, raw)

	require.NoError(t, consumer.ProcessTask(context.Background(), task))
	require.Empty(t, enqueuer.Tasks())
}
