package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-scholar/pipeline"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Rewrite a corpus CSV as a JSON array",
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().String("csv", "", "path to the corpus CSV (required)")
	convertCmd.Flags().String("json", "", "output JSON path (default: <csv>.json)")
	convertCmd.MarkFlagRequired("csv")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	csvPath, _ := cmd.Flags().GetString("csv")
	jsonPath, _ := cmd.Flags().GetString("json")
	if jsonPath == "" {
		jsonPath = strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".json"
	}

	count, err := pipeline.ConvertCSVToJSON(csvPath, jsonPath)
	if err != nil {
		return err
	}
	fmt.Printf("Converted %q to %q with %d records.\n", csvPath, jsonPath, count)
	return nil
}
