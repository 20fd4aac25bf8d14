// metadreams catalogs the generation metadata embedded in PNG images.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"k8s.io/klog/v2"

	"github.com/archangelproject/metadreams/pkg/metadreams"
)

func main() {
	root := newRootCmd()

	err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(metadreams.Version),
		fang.WithNotifySignal(os.Interrupt),
	)
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
