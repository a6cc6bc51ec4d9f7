package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/chains-project/elfleash/symfind/elfparser"
	"github.com/chains-project/elfleash/symfind/resolver"
)

var outcomeColors = map[resolver.Outcome]*color.Color{
	resolver.SymbolGlobalDefined:   color.New(color.FgGreen),
	resolver.SymbolGlobalUndefined: color.New(color.FgCyan),
	resolver.SymbolLocalOnly:       color.New(color.FgYellow),
	resolver.SymbolNotFound:        color.New(color.FgMagenta),
	resolver.FileNotAnExecutable:   color.New(color.FgRed),
}

func newLogger(w io.Writer, lvl string) (log.Logger, error) {
	var allow level.Option
	switch lvl {
	case "debug":
		allow = level.AllowDebug()
	case "info":
		allow = level.AllowInfo()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	default:
		return nil, fmt.Errorf("invalid log level %q", lvl)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, allow)
	return log.With(logger, "ts", log.TimestampFormat(time.Now, "15:04:05")), nil
}

// report prints the answer to one query and returns the exit code for it.
// A binary that cannot be opened is reported like one that is not an
// executable.
func (a *App) report(symbol, path string, res resolver.Result, err error) int {
	switch {
	case err == nil:
	case errors.Is(err, resolver.ErrOpenFailure):
		res = resolver.Result{Outcome: resolver.FileNotAnExecutable}
	case errors.Is(err, elfparser.ErrCorruptFile):
		color.New(color.FgRed, color.Bold).Fprintf(a.stdout, "%s is corrupt: %v\n", path, err)
		return 1
	default:
		color.New(color.FgRed, color.Bold).Fprintf(a.stdout, "%s: %v\n", path, err)
		return 1
	}

	c, ok := outcomeColors[res.Outcome]
	if !ok {
		c = color.New(color.FgWhite)
	}
	c.Fprintln(a.stdout, res.Message(symbol, path))
	return 0
}

func parseAddress(s string) (uint64, error) {
	addr, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}
