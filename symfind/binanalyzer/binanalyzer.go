// Package binanalyzer maps addresses back to the symbols of an executable.
package binanalyzer

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chains-project/elfleash/symfind/elfparser"
	"github.com/chains-project/elfleash/symfind/metrics"
)

type SymbolInfo struct {
	Name     string
	Start    uint64
	End      uint64
	Global   bool
	Function bool
}

// Analyzer caches the symbol ranges of every binary it has loaded, keyed by
// the digest of the file contents. A file that changes on disk gets a new
// digest and is parsed again.
type Analyzer struct {
	logger  log.Logger
	metrics *metrics.Metrics
	cache   *lru.Cache[uint64, []SymbolInfo]
}

func NewAnalyzer(logger log.Logger, size int, m *metrics.Metrics) (*Analyzer, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	cache, err := lru.New[uint64, []SymbolInfo](size)
	if err != nil {
		return nil, fmt.Errorf("lru create %w", err)
	}
	return &Analyzer{logger: logger, metrics: m, cache: cache}, nil
}

// Load returns the defined, non-zero symbols of the executable at path,
// sorted by start address.
func (a *Analyzer) Load(path string) ([]SymbolInfo, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key := xxhash.Sum64(content)
	if symbols, ok := a.cache.Get(key); ok {
		a.observe(true)
		return symbols, nil
	}
	a.observe(false)

	symbols, err := loadSymbols(content)
	if err != nil {
		return nil, fmt.Errorf("loading symbols of %s: %w", path, err)
	}
	level.Debug(a.logger).Log("msg", "cached binary symbols", "binary", path, "symbols", len(symbols))
	a.cache.Add(key, symbols)
	return symbols, nil
}

func loadSymbols(content []byte) ([]SymbolInfo, error) {
	f, err := elfparser.NewFile(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	all, err := f.Symbols()
	if err != nil {
		return nil, err
	}

	symbols := make([]SymbolInfo, 0, len(all))
	for _, sym := range all {
		if sym.Value == 0 || !sym.Defined() {
			continue
		}
		symbols = append(symbols, SymbolInfo{
			Name:     sym.Name,
			Start:    sym.Value,
			End:      sym.Value + sym.Size,
			Global:   sym.Binding() == elfparser.STB_GLOBAL,
			Function: sym.Type() == elfparser.STT_FUNC,
		})
	}
	sort.SliceStable(symbols, func(i, j int) bool {
		return symbols[i].Start < symbols[j].Start
	})
	return symbols, nil
}

// Resolve returns the name of the symbol whose range holds address, or the
// address in hex when none does.
func (a *Analyzer) Resolve(path string, address uint64) (string, error) {
	symbols, err := a.Load(path)
	if err != nil {
		return "", err
	}
	return resolve(symbols, address), nil
}

func resolve(symbols []SymbolInfo, address uint64) string {
	for _, sym := range symbols {
		if sym.Start > address {
			break
		}
		if address < sym.End {
			return sym.Name
		}
	}
	return fmt.Sprintf("0x%x", address)
}

// ResolveStackTrace resolves every address of a stack trace, innermost first.
func (a *Analyzer) ResolveStackTrace(path string, stackTrace []uint64) ([]string, error) {
	symbols, err := a.Load(path)
	if err != nil {
		return nil, err
	}
	resolved := make([]string, 0, len(stackTrace))
	for _, addr := range stackTrace {
		resolved = append(resolved, resolve(symbols, addr))
	}
	return resolved, nil
}

func (a *Analyzer) observe(hit bool) {
	if a.metrics == nil {
		return
	}
	if hit {
		a.metrics.SymbolCacheHit.Inc()
	} else {
		a.metrics.SymbolCacheMiss.Inc()
	}
}
