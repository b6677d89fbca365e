// Package main is the entry point for the scholarcrawl CLI, which drives
// the crawl and clean stages and serves the trigger/query HTTP API.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-scholar/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "scholarcrawl",
	Short: "Scrape and normalize research-paper titles",
	Long: `scholarcrawl collects research-paper titles from paginated search
results and normalizes them into a cleaned text corpus for topic analysis.

Each pipeline stage is a subcommand: crawl fetches and de-duplicates titles,
clean tokenizes and lemmatizes them, serve runs the HTTP trigger API, and
convert rewrites a corpus CSV as JSON.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger, level := newLogger(verbose)
		slog.SetDefault(logger)
		slog.SetLogLoggerLevel(level.Level())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// loadConfigFile reads the optional config file named by --config.
func loadConfigFile() (*config.File, error) {
	return config.Load(configPath)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
