package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/archangelproject/metadreams/pkg/config"
	"github.com/archangelproject/metadreams/pkg/metadreams"
	"github.com/archangelproject/metadreams/pkg/pngmeta"
)

type options struct {
	file       string
	ckpt       string
	reader     string
	configPath string

	dreams    bool
	recursive bool
	output    bool
	verbose   bool
	yes       bool
	watch     bool
}

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "metadreams",
		Short: "Catalog the metadata embedded in PNG images",
		Long: `metadreams reads the text metadata of PNG images, including the sd-metadata
block written by stable diffusion front ends, and stores it in metadata.xml.

Given a single image it prints the metadata instead. With --dreams it also
writes the stored prompts to prompts.sdp, one per line.`,
		Example: `  # Show the metadata of one image
  metadreams -f out/000001.png

  # Catalog a folder tree and extract its prompts
  metadreams -f out -r -d -o -c sd-v1-5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.file, "file", "f", "", "PNG file to show, or folder to catalog into metadata.xml")
	f.BoolVarP(&o.dreams, "dreams", "d", false, "also write the prompts stored in metadata.xml to prompts.sdp")
	f.BoolVarP(&o.recursive, "recursive", "r", false, "include the subfolders of the folder")
	f.BoolVarP(&o.output, "output", "o", false, "append -o <folder> to each prompt so images are generated next to their source")
	f.StringVarP(&o.ckpt, "ckpt", "c", "", "checkpoint model to record in each sd-metadata block")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	f.BoolVarP(&o.yes, "yes", "y", false, "overwrite an existing metadata.xml without asking")
	f.StringVar(&o.reader, "reader", "", "metadata reader: png or exiftool")
	f.StringVar(&o.configPath, "config", "", "settings file (default ~/.config/metadreams/config.toml)")
	f.BoolVarP(&o.watch, "watch", "w", false, "rebuild the catalog when images in the folder change")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// settings merges the settings file with the flags that were set explicitly.
func settings(cmd *cobra.Command, o *options) (*config.Config, error) {
	cfg, path, exists, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("ckpt") {
		cfg.Ckpt = o.ckpt
	}
	if f.Changed("reader") {
		cfg.Reader = o.reader
	}
	if f.Changed("recursive") {
		cfg.Recursive = o.recursive
	}
	if f.Changed("output") {
		cfg.Output = o.output
	}
	if f.Changed("verbose") {
		cfg.Verbose = o.verbose
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setupLogging(cfg.Verbose)
	klog.V(1).Infof("Verbose mode enabled")
	if exists {
		klog.V(1).Infof("loaded settings from %s", path)
	}
	return cfg, nil
}

// setupLogging applies the verbosity setting to klog.
func setupLogging(verbose bool) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	v := "0"
	if verbose {
		v = "1"
	}
	_ = fs.Set("v", v)
}

func newReader(name string) (pngmeta.Reader, func(), error) {
	if name != config.ReaderExiftool {
		return pngmeta.ChunkReader{}, func() {}, nil
	}

	r, err := pngmeta.NewExifReader()
	if err != nil {
		return nil, nil, err
	}
	return r, func() {
		if err := r.Close(); err != nil {
			klog.Errorf("Failed to close exiftool: %v", err)
		}
	}, nil
}

func run(cmd *cobra.Command, o *options) error {
	cfg, err := settings(cmd, o)
	if err != nil {
		return err
	}

	r, closeReader, err := newReader(cfg.Reader)
	if err != nil {
		return err
	}
	defer closeReader()

	st, err := os.Stat(o.file)
	if err != nil {
		klog.Warningf("The file %s is not a file or a folder", o.file)
		if o.dreams {
			return fmt.Errorf("dreams: %w", err)
		}
		return nil
	}

	if !st.IsDir() {
		if o.dreams || o.watch {
			return errors.New("--dreams and --watch need a folder")
		}
		return showFile(cmd.OutOrStdout(), r, o.file)
	}

	c := cfg.Catalog(o.file)
	confirm := newConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr(), o.yes)

	klog.V(1).Infof("Selected Folder generation. Recursive: %v", c.Recursive)
	if _, err := metadreams.Generate(c, r, confirm); err != nil {
		return fmt.Errorf("error creating the XML information in folder %s: %w", o.file, err)
	}

	if o.dreams {
		klog.V(1).Infof("Selected: Prompts file generation. Recursive: %v", c.Recursive)
		if _, err := metadreams.WritePrompts(c, r); err != nil {
			return fmt.Errorf("error processing the dreams in the folder %s: %w", o.file, err)
		}
	}

	if o.watch {
		return watch(cmd.Context(), c, r, o.dreams)
	}
	return nil
}
