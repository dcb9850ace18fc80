package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agentpm/agentpm/internal/adapter"
	"github.com/agentpm/agentpm/internal/config"
	"github.com/agentpm/agentpm/internal/installer"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed plugins",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	paths, err := config.ResolvePaths(projectDir)
	if err != nil {
		return err
	}
	cfg, err := config.LoadProjectConfig(paths.ConfigPath())
	if err != nil {
		return err
	}

	orch, err := installer.New(paths, cfg, adapter.NewClaudeAdapter(), installer.Options{})
	if err != nil {
		return err
	}

	installed := orch.Installed()
	if len(installed) == 0 {
		fmt.Println("No plugins installed.")
		return nil
	}

	names := make([]string, 0, len(installed))
	for name := range installed {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if version := installed[name]; version != "" {
			fmt.Printf("%s %s\n", name, version)
		} else {
			fmt.Println(name)
		}
	}
	return nil
}
