package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/backlogsmith/backlogsmith/internal/config"
	"github.com/backlogsmith/backlogsmith/internal/prompts"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Long: `Show the current backlogsmith configuration.

Displays settings from .backlogsmith/config.yaml if present,
otherwise shows the built-in defaults. Secrets are never shown.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	configPath := filepath.Join(config.Dir, config.ConfigFile)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Println("No .backlogsmith/config.yaml found (using defaults)")
		fmt.Println()
		fmt.Println("Run 'backlogsmith init' to create a configuration file.")
		fmt.Println()
		fmt.Println("Default settings:")
		fmt.Println(config.DefaultYAML)
		return nil
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	fmt.Println("Current configuration (.backlogsmith/config.yaml):")
	fmt.Println()
	fmt.Println(string(content))

	// Show which secrets are present without printing them.
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	if cfg.Provider != "ollama" {
		state := "not set"
		if cfg.APIKey != "" {
			state = "set"
		}
		fmt.Printf("API key for %s: %s\n", cfg.Provider, state)
	}
	if cfg.ADOToken != "" {
		fmt.Println("Azure DevOps PAT: set")
	}

	// List the prompt templates in effect, overrides included.
	registry, err := prompts.NewRegistry(filepath.Join(config.Dir, config.PromptsDir))
	if err != nil {
		return err
	}
	fmt.Printf("Prompt templates: %s\n", strings.Join(registry.Names(), ", "))
	return nil
}
