package pngmeta_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/archangelproject/metadreams/internal/testsupport"
	"github.com/archangelproject/metadreams/pkg/pngmeta"
)

func TestDecodeTextChunks(t *testing.T) {
	bs := testsupport.PNG(t, 512, 256,
		testsupport.Text{Key: "Dream", Value: "cat on a chair -s50"},
		testsupport.Text{Key: "sd-metadata", Value: `{"model":"stable diffusion"}`, Compressed: true},
		testsupport.Text{Key: "comment", Value: "ünïcode", International: true},
		testsupport.Text{Key: "packed", Value: "zipped utf-8 ✓", International: true, Compressed: true},
	)

	i, err := pngmeta.Decode(bytes.NewReader(bs))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if i.Width != 512 || i.Height != 256 {
		t.Fatalf("unexpected size: %dx%d", i.Width, i.Height)
	}

	want := []pngmeta.Field{
		{Key: "Dream", Value: "cat on a chair -s50"},
		{Key: "sd-metadata", Value: `{"model":"stable diffusion"}`},
		{Key: "comment", Value: "ünïcode"},
		{Key: "packed", Value: "zipped utf-8 ✓"},
	}
	if diff := cmp.Diff(want, i.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeLatin1(t *testing.T) {
	body := append([]byte("Title\x00caf"), 0xe9)
	bs := splice(testsupport.PNG(t, 1, 1), testsupport.Chunk("tEXt", body))

	i, err := pngmeta.Decode(bytes.NewReader(bs))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if v, _ := i.Get("title"); v != "café" {
		t.Fatalf("latin-1 text decoded as %q", v)
	}
}

// splice inserts raw chunks just before IEND.
func splice(bs []byte, chunks ...[]byte) []byte {
	iend := len(bs) - 12
	out := append([]byte{}, bs[:iend]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, bs[iend:]...)
}

func TestDecodeSkipsOtherChunks(t *testing.T) {
	bs := splice(testsupport.PNG(t, 2, 2),
		testsupport.Chunk("tEXt", []byte("Dream\x00first")),
		testsupport.Chunk("pHYs", []byte{0, 0, 0x0b, 0x13, 0, 0, 0x0b, 0x13, 1}),
		testsupport.Chunk("prVt", []byte("private data")),
		testsupport.Chunk("tEXt", []byte("Steps\x0050")),
	)

	i, err := pngmeta.Decode(bytes.NewReader(bs))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	want := []pngmeta.Field{
		{Key: "Dream", Value: "first"},
		{Key: "Steps", Value: "50"},
	}
	if diff := cmp.Diff(want, i.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if i.Width != 2 || i.Height != 2 {
		t.Fatalf("unexpected size: %dx%d", i.Width, i.Height)
	}
}

func TestDecodeRejectsBadTextChecksum(t *testing.T) {
	text := testsupport.Chunk("tEXt", []byte("Dream\x00cat"))
	text[len(text)-1] ^= 0xff

	_, err := pngmeta.Decode(bytes.NewReader(splice(testsupport.PNG(t, 2, 2), text)))
	if !errors.Is(err, pngmeta.ErrCorrupt) {
		t.Fatalf("Decode error = %v, want %v", err, pngmeta.ErrCorrupt)
	}
}

func TestDecodeKeepsDuplicateKeys(t *testing.T) {
	bs := testsupport.PNG(t, 4, 4,
		testsupport.Text{Key: "Dream", Value: "first"},
		testsupport.Text{Key: "Dream", Value: "second"},
	)
	i, err := pngmeta.Decode(bytes.NewReader(bs))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(i.Fields) != 2 {
		t.Fatalf("expected both entries, got %+v", i.Fields)
	}
	if v, ok := i.Get("DREAM"); !ok || v != "first" {
		t.Fatalf("Get returned %q, %v", v, ok)
	}
	if _, ok := i.Get("missing"); ok {
		t.Fatal("Get found a missing key")
	}
}

func TestDecodeErrors(t *testing.T) {
	good := testsupport.PNG(t, 8, 8, testsupport.Text{Key: "Dream", Value: "x"})

	badCRC := append([]byte{}, good...)
	// last byte of the IHDR checksum
	badCRC[8+8+13+3] ^= 0xff

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: pngmeta.ErrNotPNG},
		{name: "jpeg", data: []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), want: pngmeta.ErrNotPNG},
		{name: "truncated", data: good[:len(good)/2], want: pngmeta.ErrCorrupt},
		{name: "missing iend", data: good[:len(good)-12], want: pngmeta.ErrCorrupt},
		{name: "bad checksum", data: badCRC, want: pngmeta.ErrCorrupt},
		{name: "no ihdr", data: append([]byte("\x89PNG\r\n\x1a\n"), testsupport.Chunk("IEND", nil)...), want: pngmeta.ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pngmeta.Decode(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadSetsPath(t *testing.T) {
	path := testsupport.WritePNG(t, filepath.Join(t.TempDir(), "x.png"), 3, 2)

	var r pngmeta.Reader = pngmeta.ChunkReader{}
	i, err := r.Read(path)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if i.Path != path {
		t.Fatalf("unexpected path %q", i.Path)
	}
	if i.Width != 3 || i.Height != 2 {
		t.Fatalf("unexpected size: %dx%d", i.Width, i.Height)
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := pngmeta.Read(filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
