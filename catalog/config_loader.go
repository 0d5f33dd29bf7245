package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format selects the decoder for a catalog file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath picks a format from the file extension. Unknown extensions
// fall back to YAML, which also reads JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// ParseConfig decodes and validates a catalog.
func ParseConfig(data []byte, format Format) (Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode toml catalog: %w", err)
		}
	case FormatYAML, FormatJSON, "":
		// yaml handles JSON too, so a single decoder is enough
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode catalog: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported catalog format %q", format)
	}
	return cfg, cfg.Validate()
}

// LoadConfig reads a catalog file from disk.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cfg, err := ParseConfig(data, FormatFromPath(path))
	if err != nil {
		return cfg, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigFS reads a catalog from fsys.
func LoadConfigFS(fsys fs.FS, path string) (Config, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return Config{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseConfig(data, FormatFromPath(path))
}

// MarshalConfig renders a catalog as YAML.
func MarshalConfig(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
