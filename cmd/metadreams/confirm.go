package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"k8s.io/klog/v2"
)

// promptConfirmer asks on the terminal before a catalog is overwritten.
type promptConfirmer struct {
	in          io.Reader
	out         io.Writer
	assumeYes   bool
	interactive bool
}

func newConfirmer(in io.Reader, out io.Writer, assumeYes bool) *promptConfirmer {
	return &promptConfirmer{
		in:          in,
		out:         out,
		assumeYes:   assumeYes,
		interactive: isTerminal(in),
	}
}

func (p *promptConfirmer) Confirm(path string) bool {
	if p.assumeYes {
		return true
	}
	if !p.interactive {
		klog.Warningf("%s already exists and stdin is not a terminal; use --yes to overwrite it", path)
		return false
	}

	fmt.Fprintf(p.out, "File %s already exists, do you want to overwrite it? (yes/no): ", filepath.Base(path))
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return isYes(line)
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "y":
		return true
	}
	return false
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
