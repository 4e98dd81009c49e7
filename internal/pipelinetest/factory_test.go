package pipelinetest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imagevault/pipeline/internal/domain/collection"
)

func TestFactory_Collection_BuildsValidCollection(t *testing.T) {
	f := NewFactory()
	col := f.Collection()

	assert.NoError(t, col.Validate())
	assert.Equal(t, collection.TypeFolder, col.Type())
}

func TestFactory_Collection_WithType(t *testing.T) {
	f := NewFactory()
	col := f.Collection(WithCollectionType(collection.TypeArchive))

	assert.Equal(t, collection.TypeArchive, col.Type())
}

func TestFactory_Image_BuildsImageForCollection(t *testing.T) {
	f := NewFactory()
	col := f.Collection()
	img := f.Image(col.ID())

	assert.Equal(t, col.ID(), img.CollectionID)
	assert.NotEmpty(t, img.Filename)
}
