// Command mnyxls reconciles Microsoft Money CSV reports and writes the
// configured workbook views.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"mnyxls/internal/backend"
	"mnyxls/internal/cli"
	"mnyxls/internal/log"
	"mnyxls/internal/notify"
	"mnyxls/internal/services"
)

const amqpDialAttempts = 3

// verbosity counts -v flags.
type verbosity int

func (v *verbosity) String() string   { return fmt.Sprint(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }

func (v *verbosity) Set(s string) error {
	switch s {
	case "true":
		*v++
	case "false":
	default:
		return fmt.Errorf("invalid verbosity %q", s)
	}
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file for local development
	cli.LoadEnvFile()

	var (
		v          verbosity
		overrides  cli.Overrides
		configPath = flag.String("config", "", "YAML configuration file")
		noXLS      = flag.Bool("no-xls", false, "do not write the workbook file")
		noDB       = flag.Bool("no-db", false, "do not write the SQLite database")
	)
	flag.StringVar(&overrides.DataDir, "data-dir", "", "directory holding the reports and outputs")
	flag.StringVar(&overrides.XLSFile, "xls", "", "workbook output file (.xlsx)")
	flag.StringVar(&overrides.DBFile, "db", "", "SQLite output file")
	flag.StringVar(&overrides.ImportFrom, "import-from", "", "ignore transactions before this date (YYYY-MM-DD)")
	flag.StringVar(&overrides.ImportTo, "import-to", "", "ignore transactions after this date (YYYY-MM-DD)")
	flag.Var(&v, "v", "increase verbosity (repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: mnyxls [flags] [report files...]\n")
		flag.PrintDefaults()
	}
	flag.CommandLine.Parse(expandVerbosity(os.Args[1:]))
	overrides.Reports = flag.Args()

	logger := cli.SetupLogger(os.Stderr, int(v), os.Getenv("MNYXLS_LOG_LEVEL"), os.Getenv("MNYXLS_LOG_FORMAT"))
	logger.Debug("Starting mnyxls", log.FieldOperation, log.OpStartup)

	cfg, err := cli.LoadAndValidateConfig(*configPath, overrides)
	if err != nil {
		logger.Error("Failed to load configuration", log.FieldError, err)
		return services.ExitCode(err)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendConfig, err := backend.FromAppConfig(cfg, *noXLS, *noDB)
	if err != nil {
		logger.Error("Invalid output configuration", log.FieldError, err)
		return services.ExitCode(err)
	}
	sinks, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize outputs", log.FieldError, err)
		return services.ExitCode(err)
	}

	var publisher services.RunPublisher
	if cfg.AMQP.URL != "" {
		p, err := notify.Dial(ctx, cfg.AMQP, amqpDialAttempts, logger)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker, continuing without notifications", log.FieldError, err)
		} else {
			defer p.Close()
			publisher = p
		}
	}

	summary, err := services.NewImportService(cfg, sinks, publisher, logger).Run(ctx)
	if err != nil {
		logger.Error("Import failed", log.FieldRunID, summary.RunID, log.FieldError, err)
		return services.ExitCode(err)
	}
	return 0
}

// expandVerbosity rewrites -vv and -vvv into repeated -v flags.
func expandVerbosity(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if a == "--" {
			return append(out, args[i:]...)
		}
		trimmed := strings.TrimLeft(a, "-")
		if len(a)-len(trimmed) >= 1 && len(trimmed) > 1 && strings.Trim(trimmed, "v") == "" {
			for range trimmed {
				out = append(out, "-v")
			}
			continue
		}
		out = append(out, a)
	}
	return out
}
