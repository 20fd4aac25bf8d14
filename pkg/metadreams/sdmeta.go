package metadreams

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/archangelproject/metadreams/pkg/pngmeta"
)

// ErrMalformedMetadata is returned when an sd-metadata block cannot be decoded.
var ErrMalformedMetadata = errors.New("malformed sd-metadata")

// DecodeSDMetadata decodes an sd-metadata JSON object into its entries, in document order.
// The entries of a nested "image" object are flattened into the result in place of the key.
func DecodeSDMetadata(raw string) ([]pngmeta.Field, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return nil, err
	}

	fields := []pngmeta.Field{}
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() != keyImage {
			fields = append(fields, pngmeta.Field{Key: k.String(), Value: valueText(v)})
			return true
		}

		var img []pngmeta.Field
		img, err = decodeImageInfo(v)
		if err != nil {
			err = fmt.Errorf("image: %w", err)
			return false
		}
		fields = append(fields, img...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// decodeImageInfo decodes the "image" entry, which older producers store as a Python dict literal.
func decodeImageInfo(v gjson.Result) ([]pngmeta.Field, error) {
	var raw string
	switch {
	case v.Type == gjson.Null:
		return nil, nil
	case v.IsObject():
		raw = v.Raw
	case v.Type == gjson.String:
		js, err := pythonLiteralToJSON(v.String())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
		}
		raw = js
	default:
		return nil, fmt.Errorf("%w: unexpected %s value", ErrMalformedMetadata, v.Type)
	}

	obj, err := parseObject(raw)
	if err != nil {
		return nil, err
	}

	fields := []pngmeta.Field{}
	obj.ForEach(func(k, v gjson.Result) bool {
		fields = append(fields, pngmeta.Field{Key: k.String(), Value: valueText(v)})
		return true
	})
	return fields, nil
}

func parseObject(raw string) (gjson.Result, error) {
	if !gjson.Valid(raw) {
		return gjson.Result{}, fmt.Errorf("%w: invalid JSON", ErrMalformedMetadata)
	}
	obj := gjson.Parse(raw)
	if !obj.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: not a JSON object", ErrMalformedMetadata)
	}
	return obj, nil
}

// valueText renders strings verbatim and anything else as compact JSON.
func valueText(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	var b bytes.Buffer
	if err := json.Compact(&b, []byte(v.Raw)); err != nil {
		return v.Raw
	}
	return b.String()
}

// pythonLiteralToJSON rewrites the repr of a Python dict as JSON.
// It understands quoted strings of either kind, None, True, False and tuples,
// which covers what stable diffusion front ends emit; it is not a Python parser.
func pythonLiteralToJSON(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			str, n, err := scanPythonString(s[i:])
			if err != nil {
				return "", err
			}
			bs, err := json.Marshal(str)
			if err != nil {
				return "", err
			}
			b.Write(bs)
			i += n
		case c == '(':
			b.WriteByte('[')
			i++
		case c == ')':
			b.WriteByte(']')
			i++
		case c == '_' || isLetter(c):
			j := i + 1
			for j < len(s) && (s[j] == '_' || isLetter(s[j]) || isDigit(s[j])) {
				j++
			}
			switch word := s[i:j]; word {
			case "None":
				b.WriteString("null")
			case "True":
				b.WriteString("true")
			case "False":
				b.WriteString("false")
			default:
				b.WriteString(word)
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// scanPythonString decodes the quoted string at the start of s and returns it with the number of bytes consumed.
func scanPythonString(s string) (string, int, error) {
	q := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == q {
			return b.String(), i + 1, nil
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}

		i++
		if i >= len(s) {
			break
		}
		switch e := s[i]; e {
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'x', 'u', 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
			if i+width >= len(s) {
				return "", 0, fmt.Errorf("short \\%c escape", e)
			}
			r, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil {
				return "", 0, fmt.Errorf("bad \\%c escape: %w", e, err)
			}
			b.WriteRune(rune(r))
			i += width
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
