package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"smiactl/internal/api"
	"smiactl/internal/config"
	"smiactl/internal/stream"
	"smiactl/internal/theme"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	debugMode     = flag.Bool("d", false, "Enable debug mode")
	logFile       = flag.String("log-file", "", "Log file path (logs disabled by default)")
	configPath    = flag.String("config", config.DefaultPath, "Config file path")
	themePath     = flag.String("theme", "theme.json", "Theme file path")
	scriptPath    = flag.String("script", "", "Run a .smia script and exit")
	checkOnly     = flag.Bool("check", false, "Validate the script and print canonical commands without executing them")
	version       = flag.Bool("version", false, "Print version and exit")
	exampleConfig = flag.Bool("example-config", false, "Print an example config.json and exit")
	configSchema  = flag.Bool("config-schema", false, "Print the JSON schema of config.json and exit")
)

func main() {
	flag.Parse()

	switch {
	case *version:
		fmt.Println(Version)
		return
	case *exampleConfig:
		fmt.Println(config.ExampleConfigJSON())
		return
	case *configSchema:
		fmt.Println(config.SchemaJSON())
		return
	}

	logger, closer, err := initLogger(*debugMode, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	logger.Info().Str("version", Version).Msg("smiactl starting")

	code := run(logger)
	if closer != nil {
		_ = closer.Close()
	}
	os.Exit(code)
}

func initLogger(debug bool, logFilePath string) (zerolog.Logger, io.Closer, error) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// No logging to console by default
	var output io.Writer = io.Discard
	var closer io.Closer
	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		closer = file
	}

	return zerolog.New(output).With().Timestamp().Logger(), closer, nil
}

// batchSource reports whether the console runs non-interactively and where
// the script comes from ("" means stdin).
func batchSource(args []string, script string, stdinIsTerminal bool) (string, bool) {
	if script != "" {
		return script, true
	}
	if len(args) > 0 && args[0] == "-" {
		return "", true
	}
	if !stdinIsTerminal {
		return "", true
	}
	return "", false
}

func run(logger zerolog.Logger) int {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load config")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	for _, w := range cfg.Validate() {
		logger.Warn().Str("field", w.Field).Msg(w.Message)
		fmt.Fprintf(os.Stderr, "config: %s\n", w.Message)
	}

	themes, err := theme.NewManager(*themePath)
	if err != nil {
		logger.Warn().Err(err).Msg("Falling back to the default theme")
		themes = theme.NewManagerWithTheme(theme.DefaultTheme())
	}

	source, batch := batchSource(flag.Args(), *scriptPath, term.IsTerminal(int(os.Stdin.Fd())))
	if *checkOnly {
		printer := themes.Printer(os.Stdout)
		a := newApp(cfg, nil, nil, printer, logger)
		return checkBatch(a, source, os.Stdin)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *stream.Metrics
	if cfg.MetricsAddr != "" {
		reg := newMetricsRegistry()
		metrics, err = stream.NewMetrics(reg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to register stream metrics")
			return 2
		}
		srv, err := startMetricsServer(cfg.MetricsAddr, reg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		defer srv.Close()
	}

	client := api.NewClient(cfg.APIURL, cfg.RequestTimeout(), logger.With().Str("component", "api").Logger())

	if batch {
		printer := themes.Printer(os.Stdout)
		logs := newStreamClient(cfg, metrics, printer, logger)
		defer logs.Close()
		a := newApp(cfg, client, logs, printer, logger)
		if cfg.AutoConnect && cfg.ShowStream {
			logs.Connect()
		}
		return runBatch(ctx, a, source, os.Stdin)
	}

	// The interactive console handles Ctrl-C itself.
	stop()
	return runInteractive(cfg, client, themes, metrics, logger)
}

// newStreamClient creates the log stream client, echoing entries through
// printer when show_stream is set.
func newStreamClient(cfg *config.Config, metrics *stream.Metrics, printer *theme.Printer, logger zerolog.Logger) *stream.Client {
	opts := stream.Options{
		URL:                  cfg.WSURL,
		MaxLogs:              cfg.MaxLogs,
		ReconnectInterval:    cfg.ReconnectInterval(),
		MaxReconnectAttempts: cfg.ReconnectAttempts(),
		Logger:               logger.With().Str("component", "stream").Logger(),
		Metrics:              metrics,
	}
	if cfg.ShowStream {
		opts.OnEntry = printer.Entry
	}
	return stream.NewClient(opts)
}
