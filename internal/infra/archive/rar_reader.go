package archive

import (
	"io"

	rardecode "github.com/nwaples/rardecode/v2"
)

// rarReader reads RAR archives via nwaples/rardecode. RAR has no true
// central directory, so unlike zip and 7z, Entries and Open each make a
// fresh sequential pass over the file rather than consulting an index.
type rarReader struct {
	path string
}

func openRarReader(path string) (Reader, error) {
	// Fail fast if the archive can't even be opened.
	rc, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, err
	}
	rc.Close()
	return &rarReader{path: path}, nil
}

func (r *rarReader) Entries() ([]Entry, error) {
	rc, err := rardecode.OpenReader(r.path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var entries []Entry
	for {
		header, err := rc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.IsDir {
			continue
		}
		entries = append(entries, Entry{Name: header.Name, Size: header.UnPackedSize})
	}
	return entries, nil
}

func (r *rarReader) Open(entryName string) (io.ReadCloser, error) {
	rc, err := rardecode.OpenReader(r.path)
	if err != nil {
		return nil, err
	}
	for {
		header, err := rc.Next()
		if err == io.EOF {
			rc.Close()
			return nil, ErrEntryNotFound
		}
		if err != nil {
			rc.Close()
			return nil, err
		}
		if header.Name == entryName {
			return &rarEntryReader{rc: rc}, nil
		}
	}
}

func (r *rarReader) Close() error {
	return nil
}

// rarEntryReader adapts the positioned rardecode.ReadCloser, which reads
// the current entry's bytes until the next Next() call, into a
// self-contained io.ReadCloser for one entry.
type rarEntryReader struct {
	rc *rardecode.ReadCloser
}

func (e *rarEntryReader) Read(p []byte) (int, error) {
	return e.rc.Read(p)
}

func (e *rarEntryReader) Close() error {
	return e.rc.Close()
}
