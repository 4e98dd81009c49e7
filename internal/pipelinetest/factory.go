// Package pipelinetest provides mocks, fakes, and fixture factories shared
// across pipeline package tests.
package pipelinetest

import (
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/imagevault/pipeline/internal/domain/collection"
)

// Factory creates domain entities with realistic fake data, mirroring the
// teacher's internal/testutil/factory package adapted to the image domain.
type Factory struct{}

// NewFactory constructs a Factory.
func NewFactory() *Factory {
	return &Factory{}
}

// CollectionOpt customizes a Collection built by Factory.Collection.
type CollectionOpt func(*collection.Collection)

// Collection builds a Collection with a fake name and path under a
// generated library root. Options can override specific fields afterward.
func (f *Factory) Collection(opts ...CollectionOpt) *collection.Collection {
	name := gofakeit.Word() + "-" + gofakeit.DigitN(4)
	path := "/libraries/" + gofakeit.Word() + "/" + name

	col, err := collection.NewCollection(name, path, collection.TypeFolder, DefaultSettings())
	if err != nil {
		panic("pipelinetest: failed to create collection: " + err.Error())
	}
	for _, opt := range opts {
		opt(col)
	}
	return col
}

// WithCollectionType overrides the collection's type.
func WithCollectionType(t collection.Type) CollectionOpt {
	return func(c *collection.Collection) {
		*c = *collection.ReconstructCollection(c.ID(), c.Name(), c.Path(), t, c.Settings(),
			c.CacheFolderSizeBytes(), c.Images(), c.Thumbnails(), c.CacheImages(), c.CreatedAt(), c.UpdatedAt())
	}
}

// DefaultSettings returns the fake-data default Settings applied to
// factory-built collections, matching libraryscan.DefaultSettings.
func DefaultSettings() collection.Settings {
	return collection.Settings{
		GenerateThumbnails: true,
		GenerateCache:      true,
		ThumbnailWidth:     300,
		ThumbnailHeight:    300,
		CacheWidth:         1920,
		CacheHeight:        1080,
		CacheFormat:        "jpeg",
		CacheQuality:       85,
	}
}

// Image builds an Image with fake filename, dimensions, and size for
// collectionID.
func (f *Factory) Image(collectionID uuid.UUID) collection.Image {
	ext := gofakeit.RandomString([]string{"jpg", "png", "webp"})
	filename := gofakeit.Word() + "." + ext
	return collection.NewImage(
		collectionID,
		filename,
		filename,
		int64(gofakeit.Number(10_000, 20_000_000)),
		gofakeit.Number(400, 6000),
		gofakeit.Number(300, 4000),
		ext,
	)
}
