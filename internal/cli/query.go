package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"webrag/internal/usecase"
)

var (
	queryText     string
	queryTopK     int
	queryMinScore float64
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve passages matching a query",
	Long: `Search the index and print the best-matching passages with their
source URLs and similarity scores.

Examples:
  webrag query -q "harbor dredging schedule"
  webrag query -q "ferry timetable" --top-k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "query text (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().Float64Var(&queryMinScore, "min-score", 0, "override the minimum score threshold")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "emit JSON instead of text")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	minScore := usecase.ConfiguredMinScore()
	if cmd.Flags().Changed("min-score") {
		minScore = queryMinScore
	}

	svc, err := openService()
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	results, err := svc.Retrieve(context.Background(), queryText, queryTopK, minScore)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. [%.4f] %s\n", i+1, r.Score, r.SourceURL)
		fmt.Printf("   %s\n\n", r.Text)
	}
	return nil
}
