package metadreams

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/archangelproject/metadreams/pkg/pngmeta"
)

func TestDecodeSDMetadata(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []pngmeta.Field
	}{
		{
			name: "keeps document order",
			raw:  `{"model": "stable diffusion", "app_id": "invoke-ai/InvokeAI", "app_version": "2.2.4"}`,
			want: []pngmeta.Field{
				{Key: "model", Value: "stable diffusion"},
				{Key: "app_id", Value: "invoke-ai/InvokeAI"},
				{Key: "app_version", Value: "2.2.4"},
			},
		},
		{
			name: "python literal image with None",
			raw:  `{"image": "{'key': None}"}`,
			want: []pngmeta.Field{{Key: "key", Value: "null"}},
		},
		{
			name: "image flattened in place",
			raw:  `{"model": "sd", "image": "{'prompt': 'a cat', 'steps': 50, 'seed': 42}", "model_hash": "abc"}`,
			want: []pngmeta.Field{
				{Key: "model", Value: "sd"},
				{Key: "prompt", Value: "a cat"},
				{Key: "steps", Value: "50"},
				{Key: "seed", Value: "42"},
				{Key: "model_hash", Value: "abc"},
			},
		},
		{
			name: "image already an object",
			raw:  `{"image": {"cfg_scale": 7.5, "variations": [], "facetool": null}}`,
			want: []pngmeta.Field{
				{Key: "cfg_scale", Value: "7.5"},
				{Key: "variations", Value: "[]"},
				{Key: "facetool", Value: "null"},
			},
		},
		{
			name: "null image",
			raw:  `{"model": "sd", "image": null}`,
			want: []pngmeta.Field{{Key: "model", Value: "sd"}},
		},
		{
			name: "nested values compacted",
			raw:  `{"extra": { "a": [1, 2],  "b": true }}`,
			want: []pngmeta.Field{{Key: "extra", Value: `{"a":[1,2],"b":true}`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSDMetadata(tt.raw)
			if err != nil {
				t.Fatalf("DecodeSDMetadata returned error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeSDMetadataMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{"model": `},
		{name: "not an object", raw: `["model"]`},
		{name: "broken image literal", raw: `{"image": "{'prompt': 'unterminated}"}`},
		{name: "image not a dict", raw: `{"image": 42}`},
		{name: "image literal not a dict", raw: `{"image": "['a', 'b']"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSDMetadata(tt.raw)
			if !errors.Is(err, ErrMalformedMetadata) {
				t.Fatalf("expected ErrMalformedMetadata, got %v", err)
			}
		})
	}
}

func TestPythonLiteralToJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `{'key': None}`, want: `{"key": null}`},
		{in: `{'a': True, 'b': False}`, want: `{"a": true, "b": false}`},
		{in: `{'prompt': "it's a cat"}`, want: `{"prompt": "it's a cat"}`},
		{in: `{'prompt': 'say "None"'}`, want: `{"prompt": "say \"None\""}`},
		{in: `{'prompt': 'don\'t'}`, want: `{"prompt": "don't"}`},
		{in: `{'size': (512, 768)}`, want: `{"size": [512, 768]}`},
		{in: `{'path': 'C:\\out'}`, want: `{"path": "C:\\out"}`},
		{in: `{'e': '\xe9'}`, want: `{"e": "é"}`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := pythonLiteralToJSON(tt.in)
			if err != nil {
				t.Fatalf("pythonLiteralToJSON returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPythonLiteralToJSONErrors(t *testing.T) {
	for _, in := range []string{`{'a': 'open`, `{'a': '\x4'}`, `{'a': '\`} {
		if _, err := pythonLiteralToJSON(in); err == nil {
			t.Errorf("%s: expected error", in)
		}
	}
}

func TestTagName(t *testing.T) {
	tests := map[string]string{
		"Dream":       "dream",
		"sd-metadata": "sd-metadata",
		"Model Hash":  "model_hash",
		"2nd pass":    "_2nd_pass",
		"-flag":       "_-flag",
		"a:b":         "a_b",
		"":            "_",
		"  cfg ":      "cfg",
	}
	for in, want := range tests {
		if got := tagName(in); got != want {
			t.Errorf("tagName(%q) = %q, want %q", in, got, want)
		}
	}
}
