package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backlogsmith",
	Short: "backlogsmith - Generate an agile backlog from a product vision",
	Long: `backlogsmith decomposes a product vision into a full agile backlog
(epics, features, user stories, tasks, and test cases) using an LLM, with a
quality gate on every generated item.

Workflow:
  backlogsmith init                       Initialize .backlogsmith/
  backlogsmith run "product vision"       Generate the backlog
  backlogsmith push                       Push backlog.json to Azure DevOps

Commands:
  init        Initialize .backlogsmith/ directory
  run         Run the decomposition pipeline
  push        Push an existing backlog to Azure DevOps
  config      Show current configuration
  version     Show version info

Quick Start:
  1. backlogsmith init
  2. edit .backlogsmith/config.yaml and .env
  3. backlogsmith run "a meal-planning app for busy families"`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
