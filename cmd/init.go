package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/backlogsmith/backlogsmith/internal/config"
	"github.com/backlogsmith/backlogsmith/internal/prompts"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .backlogsmith/ directory",
	Long: `Initialize the .backlogsmith/ directory in the current project.

Creates:
  .backlogsmith/
    config.yaml    # Provider, limits, quality gate, per-agent settings
    prompts/       # Editable prompt templates (override the built-ins)
    archive/       # Archived previous runs
  .env.example     # API key placeholders

After init, set your API key in .env and run 'backlogsmith run'.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

const envExample = `# Copy to .env and fill in the secrets for your provider.
OPENAI_API_KEY=
GROK_API_KEY=
OLLAMA_BASE_URL=http://localhost:11434
AZURE_DEVOPS_PAT=
`

func runInit(cmd *cobra.Command, args []string) error {
	return initProject(".", cmd.OutOrStdout())
}

// initProject scaffolds the configuration directory inside dir.
func initProject(dir string, out io.Writer) error {
	if _, err := os.Stat(filepath.Join(dir, config.Dir)); err == nil {
		return fmt.Errorf("%s/ already exists", config.Dir)
	}

	promptsDir := filepath.Join(dir, config.Dir, config.PromptsDir)
	archiveDir := filepath.Join(dir, config.Dir, config.ArchiveDir)
	for _, d := range []string{promptsDir, archiveDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create directories: %w", err)
		}
	}

	configPath := filepath.Join(dir, config.Dir, config.ConfigFile)
	if err := os.WriteFile(configPath, []byte(config.DefaultYAML), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.ConfigFile, err)
	}

	templates, err := prompts.Embedded()
	if err != nil {
		return err
	}
	for filename, content := range templates {
		path := filepath.Join(promptsDir, filename)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", filename, err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, config.EnvExample), []byte(envExample), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.EnvExample, err)
	}

	gitkeepPath := filepath.Join(archiveDir, ".gitkeep")
	if err := os.WriteFile(gitkeepPath, []byte(""), 0644); err != nil {
		return fmt.Errorf("failed to write .gitkeep: %w", err)
	}

	fmt.Fprintln(out, "Initialized .backlogsmith/")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Created:")
	fmt.Fprintln(out, "  .backlogsmith/config.yaml  - Provider, limits, and quality settings")
	fmt.Fprintln(out, "  .backlogsmith/prompts/     - Editable prompt templates")
	fmt.Fprintln(out, "  .backlogsmith/archive/     - Archived previous runs")
	fmt.Fprintln(out, "  .env.example               - API key placeholders")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Copy .env.example to .env and set your API key")
	fmt.Fprintln(out, "  2. Run: backlogsmith run \"your product vision\"")

	return nil
}
