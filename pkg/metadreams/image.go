package metadreams

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/archangelproject/metadreams/pkg/pngmeta"
)

// ImageRecord is a PNG image with its metadata.
type ImageRecord struct {
	Path   string
	Width  int
	Height int

	// Metadata holds the raw text fields in file order.
	Metadata []pngmeta.Field
	// SD holds the decoded sd-metadata entries, nil when the image has none.
	SD []pngmeta.Field
}

// Filename returns the base name of the image.
func (i *ImageRecord) Filename() string {
	return filepath.Base(i.Path)
}

// Size formats the dimensions as "(width, height)".
func (i *ImageRecord) Size() string {
	return fmt.Sprintf("(%d, %d)", i.Width, i.Height)
}

// FolderNode mirrors a folder and the images found beneath it.
type FolderNode struct {
	Name string
	Path string

	Folders []*FolderNode
	Images  []*ImageRecord
}

// Count returns the number of images in f and all of its subfolders.
func (f *FolderNode) Count() int {
	n := len(f.Images)
	for _, sf := range f.Folders {
		n += sf.Count()
	}
	return n
}

func isPNG(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".png")
}

// IsSDMetadata reports whether key names the sd-metadata block.
func IsSDMetadata(key string) bool {
	return strings.EqualFold(key, keySDMetadata)
}
