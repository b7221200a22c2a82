package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format identifies the structured-data syntax of a config or prompt file.
type Format string

const (
	FormatTOML Format = "TOML"
	FormatYAML Format = "YAML"
)

// FormatOf picks the decoder from the file extension. Anything that is not
// .yaml or .yml is treated as TOML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Keys is the set of top-level keys present in a decoded document.
type Keys map[string]struct{}

// Has reports whether key was present at the top level.
func (k Keys) Has(key string) bool {
	_, ok := k[key]
	return ok
}

// DecodeFile reads path and decodes it into v without touching its contents.
// It returns the top-level keys the document defines along with the raw tree.
func DecodeFile(path string, v any) (Keys, map[string]any, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, nil, err
	}
	return decode(path, data, v)
}

func readFile(path string) ([]byte, error) {
	abs := absPath(path)
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: file at '%s' does not exist", ErrNotFound, abs)
		}
		return nil, fmt.Errorf("read '%s': %w", abs, err)
	}
	return data, nil
}

func decode(path string, data []byte, v any) (Keys, map[string]any, error) {
	format := FormatOf(path)
	raw := map[string]any{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, nil, malformed(path, format, err)
		}
		if err := yaml.Unmarshal(data, v); err != nil {
			return nil, nil, malformed(path, format, err)
		}
	default:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, nil, malformed(path, format, err)
		}
		if _, err := toml.Decode(string(data), v); err != nil {
			return nil, nil, malformed(path, format, err)
		}
	}

	keys := make(Keys, len(raw))
	for k := range raw {
		keys[k] = struct{}{}
	}
	return keys, raw, nil
}

func malformed(path string, format Format, err error) error {
	return fmt.Errorf("%w: '%s' does not have a valid %s structure: %v", ErrMalformed, absPath(path), format, err)
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(abs)
}
