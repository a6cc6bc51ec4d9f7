package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chains-project/elfleash/symfind/binanalyzer"
	"github.com/chains-project/elfleash/symfind/config"
	"github.com/chains-project/elfleash/symfind/depanalyzer"
	"github.com/chains-project/elfleash/symfind/metrics"
	"github.com/chains-project/elfleash/symfind/resolver"
	"github.com/chains-project/elfleash/symfind/resultstore"
)

const symbolCacheSize = 16

type RuntimeConfig struct {
	Mode           string
	Symbol         string
	SymbolGiven    bool
	BinaryPath     string
	Address        string
	ModuleManifest string
	ConfigPath     string
	OutPath        string
	MetricsFile    string
	LogLevel       string
}

type App struct {
	stdout   io.Writer
	logger   log.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	resolver *resolver.Resolver
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	config, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	logger, err := newLogger(stderr, config.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	app := &App{
		stdout:   stdout,
		logger:   logger,
		registry: reg,
		metrics:  m,
		resolver: resolver.New(logger, m),
	}

	modes := map[string]func(*App, RuntimeConfig) int{
		"find":  (*App).runFindMode,
		"batch": (*App).runBatchMode,
		"addr":  (*App).runAddrMode,
		"deps":  (*App).runDepsMode,
	}

	fn, exists := modes[config.Mode]
	if !exists {
		level.Error(logger).Log("msg", fmt.Sprintf("Invalid mode: %s. Use 'find', 'batch', 'addr' or 'deps'", config.Mode))
		return 2
	}
	return fn(app, config)
}

func parseFlags(args []string, stderr io.Writer) (RuntimeConfig, error) {
	var config RuntimeConfig
	fs := flag.NewFlagSet("symfind", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&config.Mode, "mode", "find", "Execution mode: 'find', 'batch', 'addr' or 'deps'")
	fs.StringVar(&config.Symbol, "symbol", "", "Name of the symbol to look up")
	fs.StringVar(&config.BinaryPath, "binary", "", "Path to the ELF executable")
	fs.StringVar(&config.Address, "addr", "", "Address to resolve in addr mode, e.g. 0x401136")
	fs.StringVar(&config.ModuleManifest, "manifest", "", "Path to the go.mod manifest file")
	fs.StringVar(&config.ConfigPath, "config", "", "Path to the TOML batch query file")
	fs.StringVar(&config.OutPath, "out", resultstore.DefaultFile, "Path of the JSON results store written in batch mode")
	fs.StringVar(&config.MetricsFile, "metrics-file", "", "Write metrics in Prometheus text format to this file")
	fs.StringVar(&config.LogLevel, "log.level", "info", "Log level: 'debug', 'info', 'warn' or 'error'")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: symfind [flags] <symbol> <binary>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return config, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "symbol" {
			config.SymbolGiven = true
		}
	})

	// positional form of find mode: symfind <symbol> <binary>
	if fs.NArg() > 0 {
		if config.Mode != "find" || fs.NArg() != 2 || config.SymbolGiven || config.BinaryPath != "" {
			fs.Usage()
			return config, errors.New("unexpected arguments")
		}
		config.Symbol, config.BinaryPath = fs.Arg(0), fs.Arg(1)
		config.SymbolGiven = true
	}
	return config, nil
}

func (a *App) runFindMode(args RuntimeConfig) int {
	// the empty string is a valid symbol name
	if !args.SymbolGiven || args.BinaryPath == "" {
		level.Error(a.logger).Log("msg", "Both a symbol and a binary are required")
		return 2
	}
	res, err := a.resolver.FindSymbol(args.Symbol, args.BinaryPath)
	return a.report(args.Symbol, args.BinaryPath, res, err)
}

func (a *App) runBatchMode(args RuntimeConfig) int {
	if args.ConfigPath == "" {
		level.Error(a.logger).Log("msg", "-config is required in batch mode")
		return 2
	}
	queries, err := config.Load(args.ConfigPath)
	if err != nil {
		level.Error(a.logger).Log("msg", "loading batch file", "err", err)
		return 1
	}

	exitCode := 0
	store := resultstore.New()
	for _, q := range queries.Queries {
		for _, symbol := range q.Symbols {
			res, err := a.resolver.FindSymbol(symbol, q.Binary)
			if code := a.report(symbol, q.Binary, res, err); code != 0 {
				exitCode = code
				continue
			}
			if errors.Is(err, resolver.ErrOpenFailure) {
				res = resolver.Result{Outcome: resolver.FileNotAnExecutable}
			}
			store.Add(q.Binary, symbol, res)
		}
	}

	if err := resultstore.Write(args.OutPath, store); err != nil {
		level.Error(a.logger).Log("msg", "writing results store", "path", args.OutPath, "err", err)
		return 1
	}
	level.Info(a.logger).Log("msg", "Batch mode completed.", "queries", len(queries.Queries), "out", args.OutPath)

	if args.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(args.MetricsFile, a.registry); err != nil {
			level.Error(a.logger).Log("msg", "writing metrics", "path", args.MetricsFile, "err", err)
			return 1
		}
	}
	return exitCode
}

func (a *App) runAddrMode(args RuntimeConfig) int {
	if args.BinaryPath == "" || args.Address == "" {
		level.Error(a.logger).Log("msg", "Both -binary and -addr flags are required")
		return 2
	}
	addr, err := parseAddress(args.Address)
	if err != nil {
		level.Error(a.logger).Log("msg", "parsing address", "err", err)
		return 2
	}

	analyzer, err := binanalyzer.NewAnalyzer(a.logger, symbolCacheSize, a.metrics)
	if err != nil {
		level.Error(a.logger).Log("msg", "creating analyzer", "err", err)
		return 1
	}
	name, err := analyzer.Resolve(args.BinaryPath, addr)
	if err != nil {
		level.Error(a.logger).Log("msg", "Populating symbol cache", "binary", args.BinaryPath, "err", err)
		return 1
	}
	fmt.Fprintln(a.stdout, name)
	return 0
}

func (a *App) runDepsMode(args RuntimeConfig) int {
	if args.BinaryPath == "" || args.ModuleManifest == "" {
		level.Error(a.logger).Log("msg", "Both -binary and -manifest flags are required")
		return 2
	}

	modules, err := depanalyzer.LoadManifest(args.ModuleManifest)
	if err != nil {
		level.Error(a.logger).Log("msg", "Loading module cache", "err", err)
		return 1
	}
	analyzer, err := binanalyzer.NewAnalyzer(a.logger, symbolCacheSize, a.metrics)
	if err != nil {
		level.Error(a.logger).Log("msg", "creating analyzer", "err", err)
		return 1
	}
	symbols, err := analyzer.Load(args.BinaryPath)
	if err != nil {
		level.Error(a.logger).Log("msg", "Populating symbol cache", "binary", args.BinaryPath, "err", err)
		return 1
	}

	var functions []string
	for _, sym := range symbols {
		if sym.Global && sym.Function {
			functions = append(functions, sym.Name)
		}
	}
	byModule := modules.Attribute(functions)

	names := make([]string, 0, len(byModule))
	for module := range byModule {
		names = append(names, module)
	}
	sort.Strings(names)
	for _, module := range names {
		fmt.Fprintf(a.stdout, "%s: %d symbols\n", module, len(byModule[module]))
	}
	return 0
}
