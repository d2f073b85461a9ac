package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"webrag/config"
	"webrag/internal/adapter/embedding"
	"webrag/internal/adapter/generation"
	"webrag/internal/logging"
	"webrag/internal/service"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "webrag",
	Short: "Index web content and answer questions over it",
	Long: `webrag ingests fetched web documents, chunks and embeds them into a
local vector index, and answers queries with source-attributed context.

Example usage:
  webrag ingest docs.jsonl           # Ingest a JSONL document dump
  webrag query -q "harbor dredging"  # Retrieve matching passages
  webrag ask -q "how does the harbor stay navigable?"`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		// Best effort; a missing .env file is fine.
		godotenv.Load()

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./webrag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "data directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// openService builds the full stack from the loaded config. The caller
// must Close it to persist the index snapshot.
func openService() (*service.Service, error) {
	embedder, err := embedding.FromConfig(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	generator, err := generation.FromConfig(cfg.Generation)
	if err != nil {
		return nil, err
	}
	return service.New(rootDir, cfg, embedder, generator, logging.New(cfg.Logging))
}
