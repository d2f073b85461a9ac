package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	askQuery string
	askTopK  int
	askJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from indexed content",
	Long: `Retrieve relevant passages, assemble them into a context, and ask the
configured generation model for an answer grounded on that context.

Examples:
  webrag ask -q "how does the harbor stay navigable?"
  webrag ask -q "when do ferry timetables change?" --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuery, "query", "q", "", "question to answer (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "emit the full answer payload as JSON")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	answer, err := svc.Ask(context.Background(), askQuery, askTopK)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	fmt.Println(answer.Text)
	if len(answer.Results) > 0 {
		fmt.Println("\nSources:")
		for _, r := range answer.Results {
			fmt.Printf("  [%.4f] %s\n", r.Score, r.SourceURL)
		}
	}
	return nil
}
