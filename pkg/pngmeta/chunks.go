package pngmeta

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
	"golang.org/x/text/encoding/charmap"
	"k8s.io/klog/v2"
)

const (
	sigLen = 8

	// maxTextChunk bounds the size of a text chunk we are willing to decode.
	maxTextChunk = 64 << 20
	// maxInflated bounds the decompressed size of a zTXt or iTXt payload.
	maxInflated = 64 << 20
)

// Decode reads a PNG stream and returns its dimensions and text metadata.
// Chunks are visited in file order up to IEND; every checksum must match.
func Decode(r io.Reader) (*Info, error) {
	bs, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	pmp := pngstructure.NewPngMediaParser()
	if len(bs) < sigLen || !pmp.LooksLikeFormat(bs) {
		return nil, ErrNotPNG
	}

	mc, err := pmp.ParseBytes(bs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	cs, ok := mc.(*pngstructure.ChunkSlice)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected parse result %T", ErrCorrupt, mc)
	}

	chunks := cs.Chunks()
	if len(chunks) == 0 || chunks[0].Type != "IHDR" {
		return nil, fmt.Errorf("%w: first chunk is not IHDR", ErrCorrupt)
	}

	i := &Info{}
	for _, c := range chunks {
		if !c.CheckCrc32() {
			return nil, fmt.Errorf("%w: %s checksum mismatch", ErrCorrupt, c.Type)
		}
		if c.Type != "IHDR" && c.Length > maxTextChunk {
			klog.V(3).Infof("skipping %s chunk (%d bytes)", c.Type, c.Length)
			continue
		}

		var (
			f   Field
			err error
		)
		switch c.Type {
		case "IHDR":
			if len(c.Data) != 13 {
				return nil, fmt.Errorf("%w: IHDR length %d", ErrCorrupt, len(c.Data))
			}
			i.Width = int(binary.BigEndian.Uint32(c.Data[0:4]))
			i.Height = int(binary.BigEndian.Uint32(c.Data[4:8]))
			continue
		case "tEXt":
			f, err = parseText(c.Data)
		case "zTXt":
			f, err = parseCompressedText(c.Data)
		case "iTXt":
			f, err = parseInternationalText(c.Data)
		case "IEND":
			return i, nil
		default:
			klog.V(3).Infof("skipping %s chunk (%d bytes)", c.Type, c.Length)
			continue
		}
		if err != nil {
			return nil, err
		}
		i.Fields = append(i.Fields, f)
	}
	return nil, fmt.Errorf("%w: missing IEND", ErrCorrupt)
}

// splitKeyword splits a chunk body at its first NUL.
func splitKeyword(typ string, data []byte) (string, []byte, error) {
	n := bytes.IndexByte(data, 0)
	if n < 1 || n > 79 {
		return "", nil, fmt.Errorf("%w: %s keyword", ErrCorrupt, typ)
	}
	return latin1(data[:n]), data[n+1:], nil
}

func parseText(data []byte) (Field, error) {
	k, rest, err := splitKeyword("tEXt", data)
	if err != nil {
		return Field{}, err
	}
	return Field{Key: k, Value: latin1(rest)}, nil
}

func parseCompressedText(data []byte) (Field, error) {
	k, rest, err := splitKeyword("zTXt", data)
	if err != nil {
		return Field{}, err
	}
	if len(rest) < 1 || rest[0] != 0 {
		return Field{}, fmt.Errorf("%w: zTXt %q: unknown compression method", ErrCorrupt, k)
	}
	bs, err := inflate(rest[1:])
	if err != nil {
		return Field{}, fmt.Errorf("%w: zTXt %q: %v", ErrCorrupt, k, err)
	}
	return Field{Key: k, Value: latin1(bs)}, nil
}

func parseInternationalText(data []byte) (Field, error) {
	k, rest, err := splitKeyword("iTXt", data)
	if err != nil {
		return Field{}, err
	}
	if len(rest) < 2 {
		return Field{}, fmt.Errorf("%w: iTXt %q: short header", ErrCorrupt, k)
	}
	compressed := rest[0] == 1
	if compressed && rest[1] != 0 {
		return Field{}, fmt.Errorf("%w: iTXt %q: unknown compression method", ErrCorrupt, k)
	}
	rest = rest[2:]

	// language tag, then translated keyword
	for range 2 {
		n := bytes.IndexByte(rest, 0)
		if n < 0 {
			return Field{}, fmt.Errorf("%w: iTXt %q: missing separator", ErrCorrupt, k)
		}
		rest = rest[n+1:]
	}

	if compressed {
		rest, err = inflate(rest)
		if err != nil {
			return Field{}, fmt.Errorf("%w: iTXt %q: %v", ErrCorrupt, k, err)
		}
	}
	return Field{Key: k, Value: string(rest)}, nil
}

func inflate(bs []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxInflated+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxInflated {
		return nil, fmt.Errorf("inflated text exceeds %d bytes", maxInflated)
	}
	return out, nil
}

// latin1 converts ISO 8859-1 bytes, the encoding of tEXt and zTXt, to UTF-8.
func latin1(bs []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(bs)
	if err != nil {
		return string(bs)
	}
	return string(out)
}
