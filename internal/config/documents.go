package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ParserFor picks the koanf parser matching the file extension.
func ParserFor(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml", ".tml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unsupported file extension %s", ext)
	}
}

// IsSupportedDocument reports whether ParserFor understands path.
func IsSupportedDocument(path string) bool {
	_, err := ParserFor(path)
	return err == nil
}

// LoadDocument parses a single yaml, json or toml file into a fresh koanf
// instance.
func LoadDocument(path string) (*koanf.Koanf, error) {
	if err := ensureFileExists(path); err != nil {
		return nil, err
	}
	parser, err := ParserFor(path)
	if err != nil {
		return nil, err
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("config: load file %s: %w", path, err)
	}
	return k, nil
}

func ensureFileExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: file %s not found", path)
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	return nil
}
