package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for config files whose extension is not
// .json, .toml, .yaml, or .yml.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// ReadFile decodes the file at path into v, choosing the format by
// extension. TOML and YAML documents are normalized through JSON so that
// config types only carry json tags.
func ReadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return Decode(filepath.Ext(path), data, v)
}

// Decode parses data in the format named by ext into v.
func Decode(ext string, data []byte, v any) error {
	var doc map[string]any

	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		return nil
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to normalize config file: %w", err)
	}
	if err := json.Unmarshal(normalized, v); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}
