package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

// projectDir is the target project directory, settable with -C
var projectDir = "."

var rootCmd = &cobra.Command{
	Use:   "apm",
	Short: "Agent plugin manager",
	Long: `apm installs versioned plugin packages (skills, commands, agents,
rules, prompts, MCP server descriptors) into a project directory, adapting
package content to the host platform's file layout. Installed files are
tracked in a managed-file manifest and versions are pinned in apm.lock.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "directory", "C", ".", "Target project directory")
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}
