package loaders

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const BindingsExtension = ".bindings.toml"

type BindingEntry struct {
	Key      string `toml:"key"`
	Variable string `toml:"variable"`
	Type     string `toml:"type"`
}

/**
 * @brief Contents of a shader binding descriptor. Shader defaults to the
 * file name without extension. Unknown shader names register a custom
 * shader.
 */
type BindingsFile struct {
	Shader     string         `toml:"shader"`
	Batchable  bool           `toml:"batchable"`
	Textures   []BindingEntry `toml:"textures"`
	Uniforms   []BindingEntry `toml:"uniforms"`
	Attributes []BindingEntry `toml:"attributes"`
}

type BindingsLoader struct{}

func (bl *BindingsLoader) Load(path string) (interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bf BindingsFile
	dec := toml.NewDecoder(bufio.NewReader(f))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&bf); err != nil {
		return nil, fmt.Errorf("failed to decode bindings %s: %w", path, err)
	}
	if bf.Shader == "" {
		bf.Shader = strings.TrimSuffix(filepath.Base(path), BindingsExtension)
	}
	for _, group := range [][]BindingEntry{bf.Textures, bf.Uniforms, bf.Attributes} {
		for _, e := range group {
			if e.Key == "" || e.Variable == "" {
				return nil, fmt.Errorf("bindings %s: every entry needs a key and a variable", path)
			}
		}
	}
	return &bf, nil
}
