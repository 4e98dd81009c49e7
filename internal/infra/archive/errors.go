package archive

import "errors"

// ErrEntryNotFound is returned by Open when the named entry does not
// exist in the archive.
var ErrEntryNotFound = errors.New("archive: entry not found")
