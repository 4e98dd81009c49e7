package library

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewLibrary_Valid(t *testing.T) {
	id := uuid.New()
	lib, err := NewLibrary(id, "/mnt/photos", true)
	assert.NoError(t, err)
	assert.Equal(t, id, lib.ID)
	assert.True(t, lib.AutoScan)
}

func TestNewLibrary_RequiresRootPath(t *testing.T) {
	_, err := NewLibrary(uuid.New(), "", true)
	assert.Error(t, err)
}

func TestNewLibrary_RequiresID(t *testing.T) {
	_, err := NewLibrary(uuid.Nil, "/mnt/photos", true)
	assert.Error(t, err)
}
