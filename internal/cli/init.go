// Package cli provides the initialization steps of the mnyxls command.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"mnyxls/internal/config"
	"mnyxls/internal/log"

	"github.com/joho/godotenv"
)

// Overrides are command line values that replace configured ones. Empty
// fields leave the configuration alone.
type Overrides struct {
	DataDir    string
	XLSFile    string
	DBFile     string
	ImportFrom string
	ImportTo   string
	Reports    []string
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as the file is optional.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger. The -v count wins over
// MNYXLS_LOG_LEVEL; MNYXLS_LOG_FORMAT=json selects JSON output.
func SetupLogger(w io.Writer, verbosity int, level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = w
	cfg.Level = log.ParseLevel(level, cfg.Level)
	if verbosity > 0 {
		cfg.Level = log.LevelFromVerbosity(verbosity)
	}
	if format == "json" {
		cfg.Format = "json"
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads the configuration, applies the command line
// overrides and validates the result. Paths given on the command line are
// relative to the working directory, not to data_dir.
func LoadAndValidateConfig(path string, o Overrides) (*config.Config, error) {
	reports := make([]string, len(o.Reports))
	for i, r := range o.Reports {
		reports[i] = absolute(r)
	}
	cfg, err := config.Load(path, func(c *config.Config) {
		if o.DataDir != "" {
			c.DataDir = absolute(o.DataDir)
		}
		if o.XLSFile != "" {
			c.XLSFile = absolute(o.XLSFile)
		}
		if o.DBFile != "" {
			c.DBFile = absolute(o.DBFile)
		}
		if o.ImportFrom != "" {
			c.ImportDateFrom = o.ImportFrom
		}
		if o.ImportTo != "" {
			c.ImportDateTo = o.ImportTo
		}
		if len(reports) > 0 {
			c.Reports = reports
		}
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func absolute(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Warn("Interrupted, abandoning run", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
