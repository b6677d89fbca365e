package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-scholar/cleaner"
	"github.com/aluiziolira/go-scrape-scholar/config"
	"github.com/aluiziolira/go-scrape-scholar/models"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Normalize a raw corpus into a cleaned corpus file",
	RunE:  runClean,
}

func init() {
	defaults := config.DefaultCleanConfig()

	cleanCmd.Flags().String("input", defaults.InputFile, "input corpus path")
	cleanCmd.Flags().String("output", "", "output path (default: <input>_cleaned<ext>)")
	cleanCmd.Flags().String("language", defaults.Language, "language for stopwords and lemmatization")
	cleanCmd.Flags().Bool("keep-numbers", false, "keep pure digit tokens")
	cleanCmd.Flags().Int("parallel", defaults.Parallelism, "normalization workers")

	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultCleanConfig()

	file, err := loadConfigFile()
	if err != nil {
		return err
	}
	file.ApplyClean(cfg)

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputFile, _ = flags.GetString("input")
	}
	if flags.Changed("output") {
		cfg.OutputFile, _ = flags.GetString("output")
	}
	if flags.Changed("language") {
		cfg.Language, _ = flags.GetString("language")
	}
	if keep, _ := flags.GetBool("keep-numbers"); keep {
		cfg.DropNumbers = false
	}
	if flags.Changed("parallel") {
		cfg.Parallelism, _ = flags.GetInt("parallel")
	}

	c, err := cleaner.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting clean",
		slog.String("input", cfg.InputFile),
		slog.String("output", cfg.ResolvedOutput()),
		slog.String("language", cfg.Language),
	)

	result, err := c.Run(ctx)
	if err != nil {
		return err
	}
	printCleanSummary(result, cfg.ResolvedOutput())
	return nil
}

func printCleanSummary(result *models.CleanResult, output string) {
	if result == nil {
		return
	}
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Clean complete")
	fmt.Printf("  Records:       %d\n", len(result.Records))
	fmt.Printf("  Empty records: %d\n", result.EmptyCount)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Printf("  Output file:   %s\n", output)
	fmt.Println(separator)
}
