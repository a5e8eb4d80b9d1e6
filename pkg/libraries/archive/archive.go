package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// File is one entry of an in-memory archive.
type File struct {
	Name string
	Data []byte
}

// Zip packs files into a deflate compressed zip archive.
func Zip(files ...File) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, f := range files {
		header := &zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: time.Now().UTC(),
		}
		entry, err := w.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create zip entry %s: %w", f.Name, err)
		}
		if _, err := entry.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write zip entry %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip archive: %w", err)
	}
	return buf.Bytes(), nil
}
