// Package testsupport builds PNG fixtures for tests.
package testsupport

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
)

// Text is a text chunk to embed in a fixture.
type Text struct {
	Key   string
	Value string

	// Compressed stores the value as zTXt (or compressed iTXt when International is set).
	Compressed bool
	// International stores the value as UTF-8 iTXt.
	International bool
}

// PNG returns an encoded w x h image carrying the given text chunks before IEND.
func PNG(t testing.TB, w, h int, texts ...Text) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	bs := buf.Bytes()

	// IEND is always the final 12 bytes.
	iend := len(bs) - 12
	out := append([]byte{}, bs[:iend]...)
	for _, tx := range texts {
		typ, data := textChunk(t, tx)
		out = append(out, Chunk(typ, data)...)
	}
	return append(out, bs[iend:]...)
}

// WritePNG writes a fixture to path, creating parent directories.
func WritePNG(t testing.TB, path string, w, h int, texts ...Text) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, PNG(t, w, h, texts...), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Chunk frames data as a PNG chunk with a valid checksum.
func Chunk(typ string, data []byte) []byte {
	out := make([]byte, 4, 12+len(data))
	binary.BigEndian.PutUint32(out, uint32(len(data)))
	out = append(out, typ...)
	out = append(out, data...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out[4:]))
}

func textChunk(t testing.TB, tx Text) (string, []byte) {
	data := append([]byte(tx.Key), 0)
	switch {
	case tx.International:
		flag := byte(0)
		value := []byte(tx.Value)
		if tx.Compressed {
			flag = 1
			value = deflate(t, value)
		}
		data = append(data, flag, 0, 0, 0)
		return "iTXt", append(data, value...)
	case tx.Compressed:
		data = append(data, 0)
		return "zTXt", append(data, deflate(t, []byte(tx.Value))...)
	default:
		return "tEXt", append(data, tx.Value...)
	}
}

func deflate(t testing.TB, bs []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(bs); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	return buf.Bytes()
}
