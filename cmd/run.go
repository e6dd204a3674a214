package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/backlogsmith/backlogsmith/internal/archive"
	"github.com/backlogsmith/backlogsmith/internal/config"
	"github.com/backlogsmith/backlogsmith/internal/display"
	"github.com/backlogsmith/backlogsmith/internal/llm"
	"github.com/backlogsmith/backlogsmith/internal/pipeline"
	"github.com/backlogsmith/backlogsmith/internal/prompts"
)

// Run command flags
var (
	pushFlag    bool
	verboseFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run <product vision>",
	Short: "Run the decomposition pipeline",
	Long: `Run the full decomposition pipeline over a product vision.

The pipeline generates epics, then per epic features, per feature user
stories, and per story tasks and test cases. Features, stories, and tasks
pass a scored quality gate with bounded improve-or-replace retries; items
that cannot clear the gate are dropped, never padded with filler.

The result is written to .backlogsmith/backlog.json. A previous backlog is
archived first.

Examples:
  backlogsmith run "a meal-planning app for busy families"
  backlogsmith run "an internal expense tracker" --push`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&pushFlag, "push", false, "Push the generated backlog to Azure DevOps")
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show per-candidate drop and retry detail")
	rootCmd.AddCommand(runCmd)
}

// buildProvider constructs the configured LLM backend.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return llm.New(llm.Options{Kind: llm.ProviderOllama, Model: cfg.Model, BaseURL: cfg.OllamaURL})
	case "grok":
		return llm.New(llm.Options{Kind: llm.ProviderGrok, Model: cfg.Model, APIKey: cfg.APIKey, BaseURL: cfg.APIURL})
	default:
		return llm.New(llm.Options{Kind: llm.ProviderOpenAI, Model: cfg.Model, APIKey: cfg.APIKey, BaseURL: cfg.APIURL})
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	vision := strings.TrimSpace(strings.Join(args, " "))
	if vision == "" {
		return fmt.Errorf("product vision must not be empty")
	}

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	if cfg.Provider != "ollama" && cfg.APIKey == "" {
		return fmt.Errorf("no API key found for provider %s (set it in .env)", cfg.Provider)
	}
	if cfg.ProjectName == "" {
		cfg.ProjectName = vision
		if len(cfg.ProjectName) > 60 {
			cfg.ProjectName = cfg.ProjectName[:60]
		}
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	registry, err := prompts.NewRegistry(filepath.Join(config.Dir, config.PromptsDir))
	if err != nil {
		return err
	}

	d := display.New(os.Stdout)
	var agentLog io.Writer
	if verboseFlag {
		agentLog = os.Stderr
	}

	runID := archive.NewRunID()
	if _, err := archive.Previous(".", runID, os.Stdout); err != nil {
		return err
	}

	d.ShowRunHeader(cfg.ProjectName, cfg.Provider, cfg.Model)

	sup := pipeline.New(cfg, provider, registry, d, agentLog)
	backlog, err := sup.Run(cmd.Context(), runID, vision)
	if err != nil {
		d.ShowError(err.Error())
		return err
	}

	path, err := pipeline.Save(".", backlog)
	if err != nil {
		return err
	}
	d.ShowSummary(path)

	if pushFlag {
		return pushBacklog(cmd, cfg, backlog)
	}
	return nil
}
