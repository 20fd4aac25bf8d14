package pngmeta

import (
	"fmt"
	"sort"

	"github.com/barasher/go-exiftool"
	"k8s.io/klog/v2"
)

// exifSkip lists exiftool tags that describe the file or the PNG header rather than embedded metadata.
var exifSkip = map[string]bool{
	"SourceFile":          true,
	"ExifToolVersion":     true,
	"FileName":            true,
	"Directory":           true,
	"FileSize":            true,
	"FileModifyDate":      true,
	"FileAccessDate":      true,
	"FileInodeChangeDate": true,
	"FilePermissions":     true,
	"FileType":            true,
	"FileTypeExtension":   true,
	"MIMEType":            true,
	"ImageWidth":          true,
	"ImageHeight":         true,
	"BitDepth":            true,
	"ColorType":           true,
	"Compression":         true,
	"Filter":              true,
	"Interlace":           true,
	"ImageSize":           true,
	"Megapixels":          true,
}

// ExifReader reads metadata through a long-running exiftool process.
type ExifReader struct {
	et *exiftool.Exiftool
}

// NewExifReader starts exiftool. Callers must Close the reader.
func NewExifReader() (*ExifReader, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("exiftool: %w", err)
	}
	return &ExifReader{et: et}, nil
}

// Close stops the exiftool process.
func (r *ExifReader) Close() error {
	return r.et.Close()
}

// Read implements Reader. Fields are sorted by tag name, since exiftool does not preserve file order.
func (r *ExifReader) Read(path string) (*Info, error) {
	fis := r.et.ExtractMetadata(path)
	if len(fis) == 0 {
		return nil, fmt.Errorf("extract fail for %q: no result", path)
	}
	fi := fis[0]
	if fi.Err != nil {
		return nil, fmt.Errorf("extract fail for %q: %w", path, fi.Err)
	}

	for k, v := range fi.Fields {
		klog.V(2).Infof("%q=%v", k, v)
	}

	ft, err := fi.GetString("FileType")
	if err != nil || ft != "PNG" {
		return nil, fmt.Errorf("%s: %w", path, ErrNotPNG)
	}

	i := &Info{Path: path}
	w, err := fi.GetInt("ImageWidth")
	if err != nil {
		return nil, fmt.Errorf("get ImageWidth: %w", err)
	}
	h, err := fi.GetInt("ImageHeight")
	if err != nil {
		return nil, fmt.Errorf("get ImageHeight: %w", err)
	}
	i.Width = int(w)
	i.Height = int(h)

	keys := []string{}
	for k := range fi.Fields {
		if !exifSkip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := fi.GetString(k)
		if err != nil {
			v = fmt.Sprint(fi.Fields[k])
		}
		i.Fields = append(i.Fields, Field{Key: k, Value: v})
	}

	return i, nil
}
