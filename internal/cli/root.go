// Package cli implements the flightfinder CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rcliao/flightfinder/internal/config"
	"github.com/rcliao/flightfinder/internal/store"
	"github.com/spf13/cobra"
)

var (
	dbPath     string
	formatFlag string
	configPath string
	logLevel   string

	cfg config.Config
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "flightfinder",
	Short: "Find the cheapest flights across nearby airports",
	Long: "Searches many origin airports, booking shapes and dates at once, including hidden-city\n" +
		"(skiplagged) fares, and ranks what it finds. Results are cached in SQLite.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loaded, err := config.Load(configPath)
		if err != nil {
			exitErr("load config", err)
		}
		cfg = loaded
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		slog.SetDefault(newLogger(cfg.LogLevel))
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $FLIGHTFINDER_DB or ~/.local/share/flightfinder/flights.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: json or text")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $FLIGHTFINDER_CONFIG or ~/.config/flightfinder/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $FLIGHTFINDER_LOG_LEVEL or info)")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return cfg.DatabasePath
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

func jsonOutput() bool {
	return strings.EqualFold(formatFlag, "json")
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
