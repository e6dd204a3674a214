package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/backlogsmith/backlogsmith/internal/ado"
	"github.com/backlogsmith/backlogsmith/internal/config"
	"github.com/backlogsmith/backlogsmith/internal/pipeline"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push an existing backlog to Azure DevOps",
	Long: `Push .backlogsmith/backlog.json to Azure DevOps as work items.

Creates the Epic > Feature > User Story > Task / Test Case hierarchy with
parent links. Requires azure_devops settings in config.yaml and an
AZURE_DEVOPS_PAT in the environment.`,
	RunE: runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	backlog, err := pipeline.Load(".")
	if err != nil {
		return fmt.Errorf("no backlog to push (run 'backlogsmith run' first): %w", err)
	}
	return pushBacklog(cmd, cfg, backlog)
}

func pushBacklog(cmd *cobra.Command, cfg *config.Config, backlog *pipeline.Backlog) error {
	if cfg.ADO.Organization == "" || cfg.ADO.Project == "" {
		return fmt.Errorf("azure_devops organization and project must be set in config.yaml")
	}
	if cfg.ADOToken == "" {
		return fmt.Errorf("AZURE_DEVOPS_PAT not set")
	}

	client := ado.NewClient(cfg.ADO.Organization, cfg.ADO.Project, cfg.ADO.AreaPath, cfg.ADOToken)
	fmt.Printf("Pushing to dev.azure.com/%s/%s...\n", cfg.ADO.Organization, cfg.ADO.Project)

	res, err := client.PushBacklog(cmd.Context(), backlog, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("Push complete: %d created, %d failed\n", res.Created, res.Failed)
	return nil
}
