// Package resolver answers whether a named symbol exists in an ELF executable,
// whether it is global, and where it will be loaded.
//
// Every query opens and parses the file afresh; nothing is cached between
// queries, so a failed query cannot affect the next one.
package resolver

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/chains-project/elfleash/symfind/elfparser"
	"github.com/chains-project/elfleash/symfind/metrics"
)

// ErrOpenFailure is returned when the binary cannot be opened for reading.
// It takes precedence over every other outcome.
var ErrOpenFailure = errors.New("cannot open binary")

type Resolver struct {
	logger  log.Logger
	metrics *metrics.Metrics
}

// New returns a Resolver. Both arguments may be nil.
func New(logger log.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Resolver{logger: logger, metrics: m}
}

// FindSymbol resolves symbol in the executable at path with a throwaway Resolver.
func FindSymbol(symbol, path string) (Result, error) {
	return New(nil, nil).FindSymbol(symbol, path)
}

// FindSymbol resolves symbol in the executable at path.
//
// Files that cannot be opened fail with ErrOpenFailure. Files that are not
// 64-bit little endian ELF executables yield FileNotAnExecutable before any
// section is parsed. Files whose declared layout does not fit the file fail
// with elfparser.ErrCorruptFile.
func (r *Resolver) FindSymbol(symbol, path string) (Result, error) {
	logger := log.With(r.logger, "binary", path, "symbol", symbol)

	res, err := r.findSymbol(logger, symbol, path)
	if err != nil {
		level.Warn(logger).Log("msg", "symbol lookup failed", "err", err)
		r.observeFailure(err)
		return Result{}, err
	}
	level.Debug(logger).Log("msg", "symbol classified", "outcome", res.Outcome)
	if r.metrics != nil {
		r.metrics.Resolutions.WithLabelValues(res.Outcome.String()).Inc()
	}
	return res, nil
}

func (r *Resolver) findSymbol(logger log.Logger, symbol, path string) (Result, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrOpenFailure, err)
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrOpenFailure, err)
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s is a directory", ErrOpenFailure, path)
	}

	f, err := elfparser.NewFile(fh, info.Size())
	if errors.Is(err, elfparser.ErrNotELF) || errors.Is(err, elfparser.ErrUnsupported) {
		level.Debug(logger).Log("msg", "rejecting file", "reason", err)
		return Result{Outcome: FileNotAnExecutable}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if !f.IsExecutable() {
		level.Debug(logger).Log("msg", "rejecting file", "type", f.Type)
		return Result{Outcome: FileNotAnExecutable}, nil
	}

	tables, err := f.LoadSymbolTables()
	if errors.Is(err, elfparser.ErrNoSymbols) {
		level.Debug(logger).Log("msg", "no symbol table", "reason", err)
		return Result{Outcome: SymbolNotFound}, nil
	}
	if err != nil {
		return Result{}, err
	}
	level.Debug(logger).Log("msg", "loaded symbol table", "section", tables.Symbols.Section.Index, "entries", tables.Symbols.Len())

	res, entry, err := matchSymbol(symbol, tables)
	if err != nil {
		return Result{}, err
	}
	if res.Outcome != SymbolNotFound {
		level.Debug(logger).Log("msg", "matched entry", "index", entry.Index, "binding", entry.Binding(), "shndx", entry.SectionIndex)
	}
	return res, nil
}

func (r *Resolver) observeFailure(err error) {
	if r.metrics == nil {
		return
	}
	reason := "other"
	switch {
	case errors.Is(err, ErrOpenFailure):
		reason = "open"
	case errors.Is(err, elfparser.ErrCorruptFile):
		reason = "corrupt"
	}
	r.metrics.Failures.WithLabelValues(reason).Inc()
}
