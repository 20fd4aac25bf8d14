package metadreams

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/otiai10/copy"
	"k8s.io/klog/v2"

	"github.com/archangelproject/metadreams/pkg/pngmeta"
)

// Confirmer decides whether an existing file may be overwritten.
type Confirmer interface {
	Confirm(path string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(path string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(path string) bool {
	return f(path)
}

// Always is a Confirmer that allows every overwrite.
var Always = ConfirmFunc(func(string) bool { return true })

// Generate catalogs c.Root into its metadata file. If the file exists, confirm
// must allow the overwrite; a declined or nil confirm writes nothing and returns "".
func Generate(c *Config, r pngmeta.Reader, confirm Confirmer) (string, error) {
	out := c.MetadataPath()

	exists, err := fileExists(out)
	if err != nil {
		return "", err
	}

	if exists {
		if confirm == nil || !confirm.Confirm(out) {
			klog.Infof("%s exists. NOT authorized to overwrite", out)
			return "", nil
		}
		klog.V(1).Infof("%s exists. Authorized to overwrite", out)
		if c.Backup {
			if err := backup(out); err != nil {
				return "", err
			}
		}
	} else {
		klog.V(1).Infof("%s doesn't exist. Proceeding to generate it", out)
	}

	tree, err := Collect(c, r)
	if err != nil {
		return "", fmt.Errorf("collect: %w", err)
	}

	if err := WriteDocument(c, tree, out); err != nil {
		return "", err
	}

	klog.Infof("XML file created: %s (%d images)", out, tree.Count())
	return out, nil
}

func backup(path string) error {
	dst := path + ".bak"
	klog.V(1).Infof("backing up %s to %s", path, dst)
	if err := copy.Copy(path, dst); err != nil {
		return fmt.Errorf("backup %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}
