package metadreams

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"

	"github.com/archangelproject/metadreams/pkg/pngmeta"
)

var errVisited = errors.New("already visited")

type walker struct {
	c       *Config
	r       pngmeta.Reader
	seen    map[string]bool
	scratch []byte
}

// Collect walks c.Root and returns its folder tree. Every PNG file is read,
// including dot-named ones; hidden folders are not descended into. Unreadable
// images and subfolders are logged and skipped; only a failure on the root
// itself is returned.
func Collect(c *Config, r pngmeta.Reader) (*FolderNode, error) {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return nil, fmt.Errorf("abs: %w", err)
	}

	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%s is not a folder", root)
	}

	klog.V(1).Infof("collecting %s (recursive=%v)", root, c.Recursive)
	w := &walker{
		c:       c,
		r:       r,
		seen:    map[string]bool{},
		scratch: make([]byte, godirwalk.MinimumScratchBufferSize),
	}
	return w.folder(root)
}

func (w *walker) folder(path string) (*FolderNode, error) {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	if w.seen[real] {
		return nil, errVisited
	}
	w.seen[real] = true

	des, err := godirwalk.ReadDirents(path, w.scratch)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	sort.Slice(des, func(i, j int) bool {
		return des[i].Name() < des[j].Name()
	})

	node := &FolderNode{Name: filepath.Base(path), Path: path}
	if len(des) == 0 {
		klog.V(1).Infof("folder %s is empty", path)
		return node, nil
	}

	for _, de := range des {
		name := de.Name()
		p := filepath.Join(path, name)

		isDir, isFile := kind(p, de)
		if isDir {
			if !w.c.Recursive || strings.HasPrefix(name, ".") {
				continue
			}
			klog.V(1).Infof("processing folder: %s ...", p)
			sf, err := w.folder(p)
			if errors.Is(err, errVisited) {
				klog.Warningf("skipping %s: %v", p, err)
				continue
			}
			if err != nil {
				klog.Warningf("skipping folder %s: %v", p, err)
				continue
			}
			node.Folders = append(node.Folders, sf)
			continue
		}

		if !isFile || !isPNG(name) {
			continue
		}

		i, err := w.image(p)
		if errors.Is(err, ErrMalformedMetadata) {
			klog.Errorf("excluding %s: %v", p, err)
			continue
		}
		if err != nil {
			klog.Warningf("error processing %s: %v", p, err)
			continue
		}
		node.Images = append(node.Images, i)
	}

	if w.c.Recursive && node.Count() == 0 {
		klog.V(1).Infof("folder %s has no PNG images", path)
	}
	return node, nil
}

// kind reports whether de is a directory or a regular file, following symlinks.
func kind(path string, de *godirwalk.Dirent) (isDir bool, isFile bool) {
	if !de.IsSymlink() {
		return de.IsDir(), de.IsRegular()
	}
	st, err := os.Stat(path)
	if err != nil {
		klog.Warningf("skipping broken link %s: %v", path, err)
		return false, false
	}
	return st.IsDir(), st.Mode().IsRegular()
}

func (w *walker) image(path string) (*ImageRecord, error) {
	klog.V(1).Infof("processing file: %s ...", path)
	info, err := w.r.Read(path)
	if err != nil {
		return nil, err
	}

	i := &ImageRecord{
		Path:     path,
		Width:    info.Width,
		Height:   info.Height,
		Metadata: info.Fields,
	}

	for _, f := range info.Fields {
		if !IsSDMetadata(f.Key) {
			continue
		}
		i.SD, err = DecodeSDMetadata(f.Value)
		if err != nil {
			return nil, err
		}
		break
	}
	return i, nil
}

// Dirs returns root and, when recursive, every folder Collect would descend into.
func Dirs(root string, recursive bool) ([]string, error) {
	if !recursive {
		return []string{root}, nil
	}

	dirs := []string{}
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path != root && strings.HasPrefix(de.Name(), ".") {
				return godirwalk.SkipThis
			}
			if de.IsDir() {
				dirs = append(dirs, path)
			}
			return nil
		},
	})
	return dirs, err
}
