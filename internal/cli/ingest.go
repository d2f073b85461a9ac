package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"webrag/internal/adapter/source"
	"webrag/internal/domain"
	"webrag/internal/port"
)

var (
	ingestReplace  bool
	ingestIncludes []string
	ingestExcludes []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Ingest documents into the index",
	Long: `Ingest documents from a JSONL dump or a directory of text files.

A .jsonl file is read as one document per line:
  {"url": "https://...", "text": "...", "metadata": {"title": "..."}}

A directory is walked for text files (*.txt, *.md, *.html by default),
each becoming a document with a file:// source URL.

Examples:
  webrag ingest crawl.jsonl
  webrag ingest ./notes --include '**/*.md'
  webrag ingest crawl.jsonl --replace   # supersede earlier versions`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "remove earlier documents from the same source URL")
	ingestCmd.Flags().StringSliceVar(&ingestIncludes, "include", nil, "glob patterns for directory ingestion")
	ingestCmd.Flags().StringSliceVar(&ingestExcludes, "exclude", nil, "glob patterns to skip during directory ingestion")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	var src port.DocumentSource
	var file *os.File
	switch {
	case info.IsDir():
		src, err = source.NewDirectorySource(path, ingestIncludes, ingestExcludes)
		if err != nil {
			return fmt.Errorf("failed to scan directory: %w", err)
		}
	case strings.HasSuffix(path, ".jsonl"):
		file, err = os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer file.Close()
		src = source.NewJSONLSource(file)
	default:
		return fmt.Errorf("unsupported input: %s (expected a directory or .jsonl file)", path)
	}

	svc, err := openService()
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	docs, chunks, err := svc.IngestAll(context.Background(), src, ingestReplace, func(doc domain.Document, _ int) {
		bar.Add(1)
	})
	bar.Finish()
	if err != nil {
		return fmt.Errorf("ingestion failed after %d documents: %w", docs, err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Documents: %d\n", docs)
	fmt.Printf("  Chunks:    %d\n", chunks)
	return nil
}
