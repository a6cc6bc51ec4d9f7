// Package config reads the TOML file describing a batch of symbol queries.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
)

type Query struct {
	Binary  string   `toml:"binary"`
	Symbols []string `toml:"symbols"`
}

type File struct {
	Queries []Query `toml:"queries"`
}

// Load decodes and validates the batch file at path. Unknown keys are
// rejected so that typos do not silently drop queries.
func Load(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Validate reports every problem in the file at once. An empty symbol name is
// a valid query.
func (f *File) Validate() error {
	var result *multierror.Error
	if len(f.Queries) == 0 {
		result = multierror.Append(result, errors.New("no queries"))
	}
	for i, q := range f.Queries {
		if q.Binary == "" {
			result = multierror.Append(result, fmt.Errorf("query %d: binary is empty", i))
		}
		if len(q.Symbols) == 0 {
			result = multierror.Append(result, fmt.Errorf("query %d: no symbols", i))
		}
	}
	return result.ErrorOrNil()
}
