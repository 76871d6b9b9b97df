package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Writer streams files into a zip archive without buffering the archive itself.
type Writer struct {
	zw    *zip.Writer
	names map[string]int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w), names: make(map[string]int)}
}

// Add copies r into a new entry. Duplicate names get a numeric suffix.
func (w *Writer) Add(name string, modified time.Time, r io.Reader) error {
	name = w.uniqueName(cleanName(name))
	hdr := &zip.FileHeader{Name: name, Method: zip.Store, Modified: modified}
	entry, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("zip: create %s: %w", name, err)
	}
	if _, err := io.Copy(entry, r); err != nil {
		return fmt.Errorf("zip: write %s: %w", name, err)
	}
	return nil
}

// Close writes the central directory.
func (w *Writer) Close() error {
	return w.zw.Close()
}

func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

func (w *Writer) uniqueName(name string) string {
	n := w.names[name]
	w.names[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}
