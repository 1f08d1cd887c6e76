// jxrun roots
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/coffeelibs/jxrun/internal/msg"
	"github.com/coffeelibs/jxrun/internal/project"
	"github.com/spf13/cobra"
)

// loadModel loads the project model of the project in the current directory
func loadModel() *project.Model {
	buildDir := flagBuildDir
	if buildDir == "" {
		buildDir = "build"
	}
	buildDir, err := filepath.Abs(buildDir)
	if err != nil {
		msg.Fatal("%v", err)
	}

	m, err := project.Load(buildDir, "")
	if err != nil {
		msg.Fatal("failed to load project model: %v", err)
	}
	return m
}

func absOrFatal(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		msg.Fatal("%v", err)
	}
	return abs
}

func doRootsList(cmd *cobra.Command) {
	m := loadModel()
	roots := m.Roots()
	if len(roots) == 0 {
		msg.Warn("no source roots registered in %s", m.Path())
		return
	}
	for _, root := range roots {
		fmt.Fprintln(cmd.OutOrStdout(), root)
	}
}

func doRootsAdd(dir string) {
	m := loadModel()
	dir = absOrFatal(dir)

	if m.HasSourceRoot(dir) {
		msg.Warn("source root %s is already registered", dir)
		return
	}
	if err := m.AddSourceRoot(dir); err != nil {
		msg.Fatal("failed to save project model: %v", err)
	}
	msg.Info("added source root %s", dir)
}

func doRootsRemove(dir string) {
	m := loadModel()
	dir = absOrFatal(dir)

	if !m.RemoveSourceRoot(dir) {
		msg.Warn("source root %s not found", dir)
		return
	}
	if err := m.Save(); err != nil {
		msg.Fatal("failed to save project model: %v", err)
	}
	msg.Info("removed source root %s", dir)
}

var rootsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered source roots",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		doRootsList(cmd)
	},
}

var rootsAddCmd = &cobra.Command{
	Use:   "add <dir>",
	Short: "Register a directory as a source root",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doRootsAdd(args[0])
	},
}

var rootsRemoveCmd = &cobra.Command{
	Use:   "remove <dir>",
	Short: "Unregister a source root",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doRootsRemove(args[0])
	},
}

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "Manage the source roots of the project in the current directory",
}

func init() {
	// jxrun roots subcommand
	rootsCmd.AddCommand(rootsListCmd)
	rootsCmd.AddCommand(rootsAddCmd)
	rootsCmd.AddCommand(rootsRemoveCmd)
	rootCmd.AddCommand(rootsCmd)
}
