package archive

import (
	"archive/zip"
	"io"
)

// zipReader wraps archive/zip.ReadCloser, grounded on
// camden-git-mediasys/utils/zipper.go's use of the archive/zip package
// (there for writing; here for reading central-directory entries).
type zipReader struct {
	rc *zip.ReadCloser
}

func openZipReader(path string) (Reader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	return &zipReader{rc: rc}, nil
}

func (r *zipReader) Entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(r.rc.File))
	for _, f := range r.rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, Entry{Name: f.Name, Size: int64(f.UncompressedSize64)})
	}
	return entries, nil
}

func (r *zipReader) Open(entryName string) (io.ReadCloser, error) {
	for _, f := range r.rc.File {
		if f.Name == entryName {
			return f.Open()
		}
	}
	return nil, ErrEntryNotFound
}

func (r *zipReader) Close() error {
	return r.rc.Close()
}
