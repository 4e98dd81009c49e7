package archive

import (
	"io"

	"github.com/bodgit/sevenzip"
)

// sevenZipReader wraps bodgit/sevenzip, whose footer-index API mirrors
// archive/zip's: the full file list is available without decompressing
// any entry.
type sevenZipReader struct {
	rc *sevenzip.ReadCloser
}

func openSevenZipReader(path string) (Reader, error) {
	rc, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	return &sevenZipReader{rc: rc}, nil
}

func (r *sevenZipReader) Entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(r.rc.File))
	for _, f := range r.rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, Entry{Name: f.Name, Size: int64(f.UncompressedSize)})
	}
	return entries, nil
}

func (r *sevenZipReader) Open(entryName string) (io.ReadCloser, error) {
	for _, f := range r.rc.File {
		if f.Name == entryName {
			return f.Open()
		}
	}
	return nil, ErrEntryNotFound
}

func (r *sevenZipReader) Close() error {
	return r.rc.Close()
}
