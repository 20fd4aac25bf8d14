package metadreams

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"k8s.io/klog/v2"
)

// Render builds the catalog document for a folder tree.
// Non-string sd-metadata values appear as compact JSON (null, true, [1,2]),
// not in Python repr form (None, True, [1, 2]).
func Render(c *Config, root *FolderNode) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	md := doc.CreateElement(keyMetadata)
	md.CreateAttr(keySoftware, Software())
	addFolder(c, md, root)

	doc.Indent(2)
	return doc
}

// WriteDocument renders root and writes it to path.
func WriteDocument(c *Config, root *FolderNode, path string) error {
	bs, err := Render(c, root).WriteToBytes()
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	klog.V(1).Infof("writing %d bytes to %s", len(bs), path)
	if err := os.WriteFile(path, bs, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func addFolder(c *Config, parent *etree.Element, f *FolderNode) {
	el := parent.CreateElement(keyFolder)
	el.CreateAttr(keyFolderName, f.Name)
	el.CreateAttr(keyFolderPath, f.Path)

	for _, i := range f.Images {
		addImage(c, el, i)
	}
	for _, sf := range f.Folders {
		addFolder(c, el, sf)
	}
}

func addImage(c *Config, parent *etree.Element, i *ImageRecord) {
	el := parent.CreateElement(keyImage)
	el.CreateAttr(keyFilename, i.Filename())
	addText(el, keyImagePath, i.Path)
	addText(el, keySize, i.Size())

	sdDone := false
	for _, f := range i.Metadata {
		if !IsSDMetadata(f.Key) {
			addText(el, f.Key, f.Value)
			continue
		}
		if sdDone {
			klog.Warningf("%s: ignoring repeated %s block", i.Path, f.Key)
			continue
		}
		sdDone = true

		sd := el.CreateElement(tagName(f.Key))
		if c.Ckpt != "" {
			addText(sd, keyCkpt, c.Ckpt)
		}
		for _, e := range i.SD {
			addText(sd, e.Key, e.Value)
		}
	}
}

func addText(parent *etree.Element, key string, value string) {
	parent.CreateElement(tagName(key)).SetText(xmlText(value))
}

// tagName lower-cases key and replaces anything that is not legal in an XML name.
func tagName(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "_"
	}

	var b strings.Builder
	for n, r := range key {
		switch {
		case r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case r == '-' || r == '.' || unicode.IsDigit(r):
			if n == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// xmlText drops characters that XML 1.0 cannot carry.
func xmlText(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r == 0xfffe, r == 0xffff:
			return -1
		}
		return r
	}, s)
}
