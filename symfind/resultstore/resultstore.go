// Package resultstore keeps the outcomes of batch queries in a JSON file that
// accumulates across runs.
package resultstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/chains-project/elfleash/symfind/resolver"
)

type Record struct {
	Outcome string `json:"outcome"`
	Address string `json:"address,omitempty"`
}

type Entry struct {
	Symbols map[string]Record `json:"symbols"`
}

// Store maps binary paths to the recorded outcome of each queried symbol.
type Store struct {
	Binaries map[string]*Entry `json:"binaries"`
}

func New() *Store {
	return &Store{Binaries: make(map[string]*Entry)}
}

func NewRecord(res resolver.Result) Record {
	r := Record{Outcome: res.Outcome.String()}
	if res.Outcome == resolver.SymbolGlobalDefined {
		r.Address = fmt.Sprintf("0x%x", res.Address)
	}
	return r
}

// Add records res as the latest outcome of symbol in binary.
func (s *Store) Add(binary, symbol string, res resolver.Result) {
	if s.Binaries == nil {
		s.Binaries = make(map[string]*Entry)
	}
	entry, ok := s.Binaries[binary]
	if !ok {
		entry = &Entry{Symbols: make(map[string]Record)}
		s.Binaries[binary] = entry
	}
	entry.Symbols[symbol] = NewRecord(res)
}

// Lookup returns the recorded outcome of symbol in binary.
func (s *Store) Lookup(binary, symbol string) (resolver.Outcome, bool) {
	entry, ok := s.Binaries[binary]
	if !ok {
		return 0, false
	}
	rec, ok := entry.Symbols[symbol]
	if !ok {
		return 0, false
	}
	o, err := resolver.ParseOutcome(rec.Outcome)
	if err != nil {
		return 0, false
	}
	return o, true
}

func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := New()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if s.Binaries == nil {
		s.Binaries = make(map[string]*Entry)
	}
	return s, nil
}

// Write merges s into the store already at path, if any, and writes the
// result back. Records in s replace recorded outcomes of the same symbol.
func Write(path string, s *Store) error {
	existing, err := readOrCreate(path)
	if err != nil {
		return err
	}
	existing.merge(s)

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, filePermissions)
}

func readOrCreate(path string) (*Store, error) {
	s, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	return s, err
}

func (s *Store) merge(other *Store) {
	for binary, entry := range other.Binaries {
		for symbol, rec := range entry.Symbols {
			e, ok := s.Binaries[binary]
			if !ok {
				e = &Entry{Symbols: make(map[string]Record)}
				s.Binaries[binary] = e
			}
			if e.Symbols == nil {
				e.Symbols = make(map[string]Record)
			}
			e.Symbols[symbol] = rec
		}
	}
}
