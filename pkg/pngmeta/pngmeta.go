// Package pngmeta reads the embedded text metadata and dimensions of PNG images.
package pngmeta

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrNotPNG is returned when a file does not start with the PNG signature.
	ErrNotPNG = errors.New("not a PNG file")

	// ErrCorrupt is returned when a chunk is malformed or fails its checksum.
	ErrCorrupt = errors.New("corrupt PNG")
)

// Field is a single key/value metadata entry.
type Field struct {
	Key   string
	Value string
}

// Info is the metadata found in an image.
type Info struct {
	Path   string
	Width  int
	Height int

	// Fields holds text entries in the order they appear in the file.
	Fields []Field
}

// Get returns the first value stored under key, ignoring case.
func (i *Info) Get(key string) (string, bool) {
	for _, f := range i.Fields {
		if strings.EqualFold(f.Key, key) {
			return f.Value, true
		}
	}
	return "", false
}

// Reader extracts metadata from an image on disk.
type Reader interface {
	Read(path string) (*Info, error)
}

// ChunkReader reads metadata by parsing PNG chunks directly.
type ChunkReader struct{}

// Read implements Reader.
func (ChunkReader) Read(path string) (*Info, error) {
	return Read(path)
}

// Read opens path and decodes its metadata.
func Read(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	i, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	i.Path = path
	return i, nil
}
