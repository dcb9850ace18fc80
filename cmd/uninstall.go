package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentpm/agentpm/internal/adapter"
	"github.com/agentpm/agentpm/internal/config"
	"github.com/agentpm/agentpm/internal/installer"
)

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <plugin>...",
	Aliases: []string{"rm", "remove"},
	Short:   "Remove installed plugins",
	Long: `Remove every file the manifest store attributes to the named
plugins, prune emptied directories, and drop their lock entries. Files not
installed by apm are never touched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUninstall,
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, args []string) error {
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

	for _, name := range args {
		if err := orch.Uninstall(name); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", name)
	}
	return nil
}
