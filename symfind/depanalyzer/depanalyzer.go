// Package depanalyzer attributes Go symbols to the modules listed in a go.mod
// manifest.
package depanalyzer

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

type Modules struct {
	// Main is the path of the module the manifest declares. It may be empty.
	Main     string
	packages []string
}

func LoadManifest(modManifest string) (*Modules, error) {
	content, err := os.ReadFile(modManifest)
	if err != nil {
		return nil, err
	}

	f, err := modfile.Parse(modManifest, content, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", modManifest, err)
	}

	m := &Modules{packages: make([]string, 0, len(f.Require)+1)}
	if f.Module != nil {
		m.Main = f.Module.Mod.Path
		m.packages = append(m.packages, m.Main)
	}
	for _, req := range f.Require {
		m.packages = append(m.packages, req.Mod.Path)
	}
	return m, nil
}

// Paths returns the known module paths in manifest order.
func (m *Modules) Paths() []string {
	return append([]string(nil), m.packages...)
}

// PackageOf returns the module that owns symbol and the rest of the symbol
// after the module path. The longest matching module path wins, and a module
// only matches when its path is followed by '.' or '/' in the symbol.
func (m *Modules) PackageOf(symbol string) (string, string, bool) {
	best := ""
	for _, pkgName := range m.packages {
		if len(pkgName) <= len(best) || !strings.HasPrefix(symbol, pkgName) {
			continue
		}
		rest := symbol[len(pkgName):]
		if strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, "/") {
			best = pkgName
		}
	}
	if best == "" {
		return "", "", false
	}
	return best, symbol[len(best)+1:], true
}

// Attribute groups symbols by owning module. Symbols owned by no known module
// are dropped. Each group is sorted.
func (m *Modules) Attribute(symbols []string) map[string][]string {
	byModule := make(map[string][]string)
	for _, sym := range symbols {
		module, _, ok := m.PackageOf(sym)
		if !ok {
			continue
		}
		byModule[module] = append(byModule[module], sym)
	}
	for _, syms := range byModule {
		sort.Strings(syms)
	}
	return byModule
}
