// Package config loads metadreams settings.
//
// Settings come from a TOML file, then from METADREAMS_* environment
// variables (which a .env file may supply), and finally from command line
// flags applied by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/archangelproject/metadreams/pkg/metadreams"
)

// Metadata readers.
const (
	ReaderPNG      = "png"
	ReaderExiftool = "exiftool"
)

// Config holds user settings.
type Config struct {
	Ckpt      string `toml:"ckpt"`
	Recursive bool   `toml:"recursive"`
	Output    bool   `toml:"output"`
	Backup    bool   `toml:"backup"`
	Verbose   bool   `toml:"verbose"`
	Reader    string `toml:"reader"`

	MetadataFile string `toml:"metadata_file"`
	PromptsFile  string `toml:"prompts_file"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Reader:       ReaderPNG,
		MetadataFile: metadreams.DefaultMetadataFile,
		PromptsFile:  metadreams.DefaultPromptsFile,
	}
}

// DefaultPath is where settings are looked up when no path is given.
func DefaultPath() (string, error) {
	return expandPath("~/.config/metadreams/config.toml")
}

// Load reads the settings file at path, or the first of the default
// locations that exists. It returns the config, the resolved path, and
// whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		f, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		d := toml.NewDecoder(f)
		d.DisallowUnknownFields()
		if err := d.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// applyEnv overrides settings from the environment.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("METADREAMS_CKPT"); ok {
		c.Ckpt = v
	}
	if v, ok := os.LookupEnv("METADREAMS_READER"); ok {
		c.Reader = v
	}
}

func (c *Config) normalize() {
	c.Ckpt = strings.TrimSpace(c.Ckpt)
	c.Reader = strings.ToLower(strings.TrimSpace(c.Reader))
	if c.Reader == "" {
		c.Reader = ReaderPNG
	}
	c.MetadataFile = strings.TrimSpace(c.MetadataFile)
	c.PromptsFile = strings.TrimSpace(c.PromptsFile)
}

// Catalog returns the run configuration for root.
func (c *Config) Catalog(root string) *metadreams.Config {
	return &metadreams.Config{
		Root:         root,
		Recursive:    c.Recursive,
		Output:       c.Output,
		Ckpt:         c.Ckpt,
		Backup:       c.Backup,
		MetadataFile: c.MetadataFile,
		PromptsFile:  c.PromptsFile,
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	switch c.Reader {
	case ReaderPNG, ReaderExiftool:
	default:
		return fmt.Errorf("reader: unsupported value %q", c.Reader)
	}

	for name, v := range map[string]string{"metadata_file": c.MetadataFile, "prompts_file": c.PromptsFile} {
		if v == "" {
			return fmt.Errorf("%s: must not be empty", name)
		}
		if filepath.Base(v) != v {
			return fmt.Errorf("%s: %q must be a file name, not a path", name, v)
		}
	}
	if c.MetadataFile == c.PromptsFile {
		return fmt.Errorf("metadata_file and prompts_file must differ")
	}
	return nil
}

func resolvePath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("metadreams.toml")
	if err != nil {
		return "", false, err
	}

	for _, p := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true, nil
		}
	}
	return defaultPath, false, nil
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("home dir: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
