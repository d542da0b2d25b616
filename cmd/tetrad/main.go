// Command tetrad records frame captures into compressed CSV logs and
// reports frame timing while it does so.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OCAP2/tetrad/internal/config"
	"github.com/OCAP2/tetrad/internal/dispatcher"
	"github.com/OCAP2/tetrad/internal/host"
	"github.com/OCAP2/tetrad/internal/logging"
	intOtel "github.com/OCAP2/tetrad/internal/otel"
	"github.com/OCAP2/tetrad/internal/session"
	"github.com/OCAP2/tetrad/internal/storage"
)

// Set at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const ExtensionName = "tetrad"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, ExtensionName+":", err)
		cancel()
		os.Exit(1)
	}
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(ExtensionName, pflag.ContinueOnError)
	fs.String("config-dir", ".", "directory holding "+config.FileName)
	fs.String("capture", "", "capture file to replay as host calls")
	fs.Bool("realtime", false, "space replayed frames by their model time")
	fs.String("dump", "", "print a recorded .csv.zst stream as CSV and exit")
	fs.Bool("version", false, "print the version and exit")
	return fs
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet()
	fs.SetOutput(stdout)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := viper.BindPFlags(fs); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	if viper.GetBool("version") {
		fmt.Fprintf(stdout, "%s %s (%s)\n", ExtensionName, Version, BuildDate)
		return nil
	}
	if path := viper.GetString("dump"); path != "" {
		return dump(path, stdout)
	}
	capturePath := viper.GetString("capture")
	if capturePath == "" {
		return errors.New("--capture is required")
	}

	cfgErr := config.Load(viper.GetString("config-dir"))
	if cfgErr != nil && !config.IsNotFound(cfgErr) {
		return cfgErr
	}
	cfg := config.GetSessionConfig()
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}

	started := time.Now()
	root := storage.LogRoot(cfg.WriteDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logPath := logging.LogFilePath(root, ExtensionName, started)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	console := logging.NewConsole(stdout)

	provider, metricsFile, err := setupOTel(root, started, logFile)
	if err != nil {
		console.Error("Failed to initialize OTel provider", "error", err)
		provider, _ = intOtel.New(intOtel.Config{})
	}
	if metricsFile != nil {
		defer metricsFile.Close()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	c, err := host.OpenCapture(capturePath)
	if err != nil {
		return err
	}
	defer c.Close()

	diagLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		diagLevel = zerolog.InfoLevel
	}
	diag := zerolog.New(logFile).Level(diagLevel).With().Timestamp().Logger()

	a := newApp(cfg, c, session.Dependencies{
		Console: console,
		Diag:    diag,
	})
	slogManager := logging.NewSlogManager()
	slogManager.SetContextProvider(a.contextAttrs)
	slogManager.Setup(logFile, level, provider.LoggerProvider())
	logger := slogManager.Logger()
	a.logger = logger
	a.deps.Logger = logger

	if cfgErr != nil {
		logger.Warn("No config file found, using defaults", "dir", viper.GetString("config-dir"))
	}
	logger.Info("Starting replay", "version", Version, "capture", capturePath, "log", logPath)

	d, err := dispatcher.New(console)
	if err != nil {
		return err
	}
	a.register(d)

	err = replay(ctx, d, c, viper.GetBool("realtime"))
	if ferr := slogManager.Flush(context.Background()); ferr != nil {
		logger.Warn("Failed to flush OTel logs", "error", ferr)
	}
	return err
}

// setupOTel returns an inert provider when OTel is disabled.
func setupOTel(root string, started time.Time, logFile io.Writer) (*intOtel.Provider, *os.File, error) {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		p, err := intOtel.New(intOtel.Config{})
		return p, nil, err
	}

	metricsPath := filepath.Join(root, fmt.Sprintf("%s.%s.metrics.json", ExtensionName, started.Format("20060102_150405")))
	metricsFile, err := os.Create(metricsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("creating metrics file: %w", err)
	}

	p, err := intOtel.New(intOtel.Config{
		Enabled:      true,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logFile,
		MetricWriter: metricsFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		metricsFile.Close()
		return nil, nil, err
	}
	return p, metricsFile, nil
}
