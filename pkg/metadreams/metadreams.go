// Package metadreams catalogs the generation metadata embedded in PNG images.
package metadreams

import (
	"path/filepath"
)

// Version is the release reported in generated catalogs.
const Version = "v.1.0"

const (
	// DefaultMetadataFile is the catalog written into each processed folder.
	DefaultMetadataFile = "metadata.xml"
	// DefaultPromptsFile is the prompt batch file written next to the catalog.
	DefaultPromptsFile = "prompts.sdp"
)

// element and field names used in the catalog
const (
	keyMetadata   = "metadata"
	keySoftware   = "software"
	keyFolder     = "folder"
	keyFolderName = "name"
	keyFolderPath = "path"
	keyImage      = "image"
	keyFilename   = "filename"
	keyImagePath  = "path"
	keySize       = "size"
	keySDMetadata = "sd-metadata"
	keyCkpt       = "ckpt"
	keyDream      = "dream"
)

// Config holds configuration for a catalog run.
type Config struct {
	// Root is the folder to catalog.
	Root string

	Recursive bool
	// Output appends " -o <dir>" to each extracted prompt.
	Output bool
	// Ckpt is injected into every sd-metadata block when set.
	Ckpt string
	// Backup keeps a copy of a catalog before it is overwritten.
	Backup bool

	MetadataFile string
	PromptsFile  string
}

// Software is the value of the catalog's software attribute.
func Software() string {
	return "MetaDreams " + Version
}

// MetadataPath returns where the catalog for c.Root lives.
func (c *Config) MetadataPath() string {
	name := c.MetadataFile
	if name == "" {
		name = DefaultMetadataFile
	}
	return filepath.Join(c.Root, name)
}

// PromptsPath returns where the prompt batch file for c.Root lives.
func (c *Config) PromptsPath() string {
	name := c.PromptsFile
	if name == "" {
		name = DefaultPromptsFile
	}
	return filepath.Join(c.Root, name)
}
