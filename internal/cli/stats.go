package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "emit JSON instead of text")
}

func runStats(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	stats, err := svc.Stats()
	if err != nil {
		return fmt.Errorf("failed to gather stats: %w", err)
	}

	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Documents:      %d\n", stats.Documents)
	fmt.Printf("Chunks:         %d\n", stats.Chunks)
	fmt.Printf("Index entries:  %d\n", stats.IndexEntries)
	fmt.Printf("Cached vectors: %d\n", stats.CachedVectors)
	fmt.Printf("Embedding:      %s (%d dims)\n", stats.Model, stats.EmbeddingDim)
	return nil
}
