package archive

import (
	"fmt"
	"io"
	"strings"
)

// Entry describes one file inside an archive, as read from its central
// directory (or equivalent index) without extracting content.
type Entry struct {
	Name string
	Size int64
}

// Reader lists and opens entries of one archive file without extracting
// the whole archive to disk, per spec §4.2's "read the central directory
// without extracting" requirement.
type Reader interface {
	// Entries returns every file entry in the archive.
	Entries() ([]Entry, error)

	// Open returns a reader for the named entry's content. The caller must
	// close it.
	Open(entryName string) (io.ReadCloser, error)

	// Close releases resources held by the reader.
	Close() error
}

// Format identifies an archive container type by extension.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatRAR
	FormatSevenZip
)

// DetectFormat classifies a collection path by its file extension, the
// same scheme spec §4.2's "archive classification by extension" uses.
func DetectFormat(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".rar"):
		return FormatRAR
	case strings.HasSuffix(lower, ".7z"):
		return FormatSevenZip
	default:
		return FormatUnknown
	}
}

// Open opens path with the reader appropriate for its detected format.
func Open(path string) (Reader, error) {
	switch DetectFormat(path) {
	case FormatZip:
		return openZipReader(path)
	case FormatRAR:
		return openRarReader(path)
	case FormatSevenZip:
		return openSevenZipReader(path)
	default:
		return nil, fmt.Errorf("archive: unrecognized format for %s", path)
	}
}
