package batchgen

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/imagevault/pipeline/internal/infra/artifactstore"
)

// item is one thumbnail.generation or cache.generation message pinned to
// its collection bucket, carrying the fields of whichever payload it came
// from (spec §3).
type item struct {
	kind artifactstore.Kind

	collectionID  uuid.UUID
	imageID       uuid.UUID
	imagePath     string
	imageFilename string
	width         int
	height        int
	format        string
	quality       int

	preserveOriginal bool
	forceRegenerate  bool

	jobID     uuid.UUID
	scanJobID uuid.UUID
}

// ext is the artifact extension this item encodes to: the cache format for
// cache items, the source extension for thumbnails (thumbnails keep the
// source's container format).
func (it item) ext() string {
	if it.kind == artifactstore.KindCache {
		return "." + strings.ToLower(it.format)
	}
	return strings.ToLower(filepath.Ext(it.imageFilename))
}

// outcome classifies what happened to one item during a flush.
type outcome int

const (
	outcomeGenerated outcome = iota
	outcomeSkippedExisting
	outcomeReregistered
	outcomeSkippedSentinel
	outcomeOversize
	outcomeFailed
)

func (o outcome) countsCompleted() bool {
	return o == outcomeGenerated || o == outcomeSkippedExisting || o == outcomeReregistered
}

func (o outcome) countsFailed() bool {
	return o == outcomeOversize || o == outcomeFailed
}
