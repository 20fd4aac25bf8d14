package testsupport_test

import (
	"path/filepath"
	"testing"

	"github.com/anthonynsimon/bild/imgio"

	"github.com/archangelproject/metadreams/internal/testsupport"
)

func TestWritePNGDecodes(t *testing.T) {
	path := testsupport.WritePNG(t, filepath.Join(t.TempDir(), "nested", "x.png"), 7, 3,
		testsupport.Text{Key: "Dream", Value: "plain"},
		testsupport.Text{Key: "sd-metadata", Value: "{}", Compressed: true},
		testsupport.Text{Key: "comment", Value: "ütf-8", International: true, Compressed: true},
	)

	img, err := imgio.Open(path)
	if err != nil {
		t.Fatalf("fixture does not decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 7 || b.Dy() != 3 {
		t.Fatalf("fixture bounds = %v, want 7x3", b)
	}
}
