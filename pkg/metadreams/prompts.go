package metadreams

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"k8s.io/klog/v2"

	"github.com/archangelproject/metadreams/pkg/pngmeta"
)

// Prompts returns the dream of every image in a catalog, in document order.
// With output set, each prompt gets " -o <dir>" naming the image's folder.
func Prompts(doc *etree.Document, output bool) []string {
	ps := []string{}
	eachImage(doc.Root(), func(img *etree.Element) {
		d := img.SelectElement(keyDream)
		if d == nil {
			return
		}

		p := d.Text()
		if p == "" {
			klog.V(1).Infof("skipping empty dream in %s", img.SelectAttrValue(keyFilename, "?"))
			return
		}

		if output {
			if pe := img.SelectElement(keyImagePath); pe != nil && pe.Text() != "" {
				p = strings.Join([]string{p, filepath.Dir(pe.Text())}, " -o ")
			}
		}

		klog.V(1).Infof("Found dream: %s", p)
		ps = append(ps, p)
	})
	return ps
}

// eachImage visits image elements depth-first.
func eachImage(el *etree.Element, fn func(*etree.Element)) {
	if el == nil {
		return
	}
	for _, ch := range el.ChildElements() {
		if ch.Tag == keyImage {
			fn(ch)
			continue
		}
		eachImage(ch, fn)
	}
}

// ReadCatalog parses a catalog file.
func ReadCatalog(path string) (*etree.Document, error) {
	klog.V(1).Infof("Parsing the file %s", path)
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("parse %s: no root element", path)
	}
	return doc, nil
}

// WritePrompts extracts the prompts from c.Root's catalog into its prompts file,
// generating the catalog first when it does not exist. It returns the prompts file path.
func WritePrompts(c *Config, r pngmeta.Reader) (string, error) {
	in := c.MetadataPath()

	exists, err := fileExists(in)
	if err != nil {
		return "", err
	}
	if !exists {
		klog.Infof("%s not found, generating it", in)
		if _, err := Generate(c, r, nil); err != nil {
			return "", fmt.Errorf("generate: %w", err)
		}
	}

	doc, err := ReadCatalog(in)
	if err != nil {
		return "", err
	}

	if c.Output {
		klog.V(1).Infof("Output folder added to each prompt")
	}
	ps := Prompts(doc, c.Output)

	var b strings.Builder
	for _, p := range ps {
		b.WriteString(p)
		b.WriteByte('\n')
	}

	out := c.PromptsPath()
	if err := os.WriteFile(out, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}

	klog.Infof("wrote %d prompts to %s", len(ps), out)
	return out, nil
}
