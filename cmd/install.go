package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/agentpm/agentpm/internal/adapter"
	"github.com/agentpm/agentpm/internal/config"
	"github.com/agentpm/agentpm/internal/installer"
	"github.com/agentpm/agentpm/internal/picker"
)

var (
	installForce       bool
	installNoLock      bool
	installInteractive bool
)

var installCmd = &cobra.Command{
	Use:     "install [plugin[@version]...]",
	Aliases: []string{"i"},
	Short:   "Install plugins into the project",
	Long: `Install plugins declared in apm.toml, or a subset named on the
command line. Versions resolve against apm.lock first; an explicit
different version overrides the lock.

Examples:
  apm install                    # install everything in apm.toml
  apm install reviewer           # just one plugin, locked version
  apm install reviewer@1.3.0     # explicit version, overrides the lock
  apm install --interactive      # pick plugins from a list`,
	Args: cobra.MinimumNArgs(0),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "Overwrite unmanaged files instead of failing on conflicts")
	installCmd.Flags().BoolVar(&installNoLock, "no-lock", false, "Ignore apm.lock and do not update it")
	installCmd.Flags().BoolVarP(&installInteractive, "interactive", "i", false, "Interactive plugin selection")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	paths, err := config.ResolvePaths(projectDir)
	if err != nil {
		return err
	}
	cfg, err := config.LoadProjectConfig(paths.ConfigPath())
	if err != nil {
		return err
	}

	requests, err := selectRequests(cfg, args)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		fmt.Println("Nothing to install. Declare plugins in apm.toml or name them on the command line.")
		return nil
	}

	orch, err := installer.New(paths, cfg, adapter.NewClaudeAdapter(), installer.Options{
		UseLock:    !installNoLock,
		UpdateLock: !installNoLock,
		Force:      installForce,
	})
	if err != nil {
		return err
	}

	summary, err := orch.Install(context.Background(), requests)
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		return err
	}
	if failed := summary.Failed(); failed > 0 {
		return fmt.Errorf("%d plugin(s) failed to install", failed)
	}
	return nil
}

// selectRequests builds the install batch from arguments, the interactive
// picker, or the whole apm.toml plugin table.
func selectRequests(cfg *config.ProjectConfig, args []string) ([]installer.Request, error) {
	if len(args) > 0 {
		var requests []installer.Request
		for _, arg := range args {
			name, version := splitNameVersion(arg)
			spec := cfg.Plugins[name]
			if version != "" {
				spec.Version = version
			}
			requests = append(requests, installer.Request{
				Name: name,
				Spec: installer.PluginSpec{Version: spec.Version, Source: spec.Source, Registry: spec.Registry},
			})
		}
		return requests, nil
	}

	names := make([]string, 0, len(cfg.Plugins))
	for name := range cfg.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)

	if installInteractive {
		items := make([]picker.Item, 0, len(names))
		for _, name := range names {
			label := name
			if v := cfg.Plugins[name].Version; v != "" {
				label = name + " (" + v + ")"
			}
			items = append(items, picker.Item{ID: name, Label: label, Selected: true})
		}
		selected, err := picker.RunMulti("Select plugins to install", items)
		if err != nil {
			return nil, err
		}
		names = selected
	}

	var requests []installer.Request
	for _, name := range names {
		spec := cfg.Plugins[name]
		requests = append(requests, installer.Request{
			Name: name,
			Spec: installer.PluginSpec{Version: spec.Version, Source: spec.Source, Registry: spec.Registry},
		})
	}
	return requests, nil
}

func splitNameVersion(arg string) (name, version string) {
	if i := strings.LastIndex(arg, "@"); i > 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}

func printSummary(summary *installer.InstallSummary) {
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	for _, r := range summary.Results {
		if r.Success {
			fmt.Printf("%s %s\n", okStyle.Render("✓"), r.Message)
		} else {
			fmt.Printf("%s %s: %s\n", failStyle.Render("✗"), r.Plugin, r.Message)
		}
		for _, w := range r.Warnings {
			fmt.Printf("  %s %s\n", warnStyle.Render("!"), w)
		}
	}
	for _, w := range summary.EnvWarnings {
		fmt.Printf("%s %s\n", warnStyle.Render("!"), w)
	}
	fmt.Printf("\n%d installed, %d failed\n", summary.Succeeded(), summary.Failed())
}
