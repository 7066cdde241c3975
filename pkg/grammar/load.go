package grammar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/knotview/pkg/errors"
)

// Format is a grammar file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported grammar file extension %q (want .json, .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// Read decodes a grammar from r and validates it. Read does not close r.
func Read(r io.Reader, format Format) (*Grammar, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read grammar: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes and validates a grammar document.
func Parse(data []byte, format Format) (*Grammar, error) {
	var g Grammar
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(bytes.NewReader(data)).Decode(&g)
	case FormatYAML:
		err = yaml.Unmarshal(data, &g)
	case FormatTOML:
		err = toml.Unmarshal(data, &g)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported grammar format %q", format)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGrammar, err, "decode %s grammar", format)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Load reads the grammar file at path, choosing the decoder by extension.
func Load(path string) (*Grammar, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "grammar %s", path)
		}
		return nil, fmt.Errorf("open grammar: %w", err)
	}
	defer f.Close()

	g, err := Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Encode renders the grammar as indented JSON, the form stores keep.
func (g *Grammar) Encode() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}
