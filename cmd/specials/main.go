package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/app"
	"github.com/ternarybob/specials/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Global flags, parsed before the command name
	configFiles  configPaths
	storageType  = flag.String("storage", "", "Storage backend: badger, sqlite or postgres (overrides config)")
	logLevel     = flag.String("log-level", "", "Log level (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

// command is one CLI subcommand
type command struct {
	name  string
	usage string
	run   func(ctx context.Context, application *app.App, args []string) error
}

var commands = []command{
	{"serve", "Run the cron scheduler until interrupted", runServe},
	{"run", "Run a job or source now: run [-store slug] <job|source|both>", runJob},
	{"import", "Import a file: import -file path [-kind specials|everyday] [-format csv|json|yaml]", runImport},
	{"expire", "Delete specials that ended before today", runExpire},
	{"backfill", "Fill missing brand and size: backfill [-dry-run]", runBackfill},
	{"status", "Print scheduler, last runs and catalogue summary", runStatus},
	{"seed", "Insert configured stores that are missing", runSeed},
	{"sources", "List discoverable catalogues of a store: sources -store slug", runSources},
	{"version", "Print version information", nil},
}

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
	flag.Usage = usage
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: specials [flags] <command> [args]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-11s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Parse()
	common.LoadVersionFromFile()

	if *showVersion || *showVersionV || flag.Arg(0) == "version" {
		fmt.Printf("Specials version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	cmd, ok := lookup(flag.Arg(0))
	if !ok {
		usage()
		os.Exit(2)
	}

	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("specials.toml"); err == nil {
			configFiles = append(configFiles, "specials.toml")
		} else if _, err := os.Stat("deployments/local/specials.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/specials.toml")
		}
	}

	// defaults -> files -> env -> CLI
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, *storageType, *logLevel)
	if err := config.Validate(); err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	if cmd.name == "serve" {
		common.PrintBanner(common.GetVersion())
	}

	logger.Debug().
		Strs("config_files", configFiles).
		Str("storage_type", config.Storage.Type).
		Str("log_level", config.Logging.Level).
		Str("command", cmd.name).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	runErr := cmd.run(ctx, application, flag.Args()[1:])

	if err := application.Close(); err != nil {
		logger.Warn().Err(err).Msg("Shutdown incomplete")
	}

	if runErr != nil {
		logger.Error().Err(runErr).Str("command", cmd.name).Msg("Command failed")
		os.Exit(1)
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name && c.run != nil {
			return c, true
		}
	}
	return command{}, false
}

// printJSON writes v to stdout as indented JSON
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
