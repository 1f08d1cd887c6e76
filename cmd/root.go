// jxrun [path], jxrun sources [path]
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/coffeelibs/jxrun/internal/jextract"
	"github.com/coffeelibs/jxrun/internal/msg"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	flagBuildDir   string
	flagExecutable string
	flagExecutions []string
	flagJobs       int
	flagVerbose    bool
	flagColor      EnumValue = NewEnumValue("auto", map[string]string{
		"auto":   "Colorize when writing to a terminal (default)",
		"always": "Always colorize output",
		"never":  "Never colorize output",
	})
)

func targetDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func newGenerator(args []string) *jextract.Generator {
	g, err := jextract.NewGeneratorInDirectory(targetDir(args), jextract.Options{
		BuildDir:   flagBuildDir,
		Executable: flagExecutable,
		Executions: flagExecutions,
		Jobs:       flagJobs,
	})
	if err != nil {
		msg.Fatal("%v", err)
	}
	return g
}

func doSources(cmd *cobra.Command, args []string) {
	g := newGenerator(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := g.Generate(ctx)
	stop()
	if err != nil {
		msg.Fatal("%v", err)
	}
	msg.Debug("source roots registered in %s", g.Model().Path())
}

var rootCmd = &cobra.Command{
	Use:   "jxrun [project path]",
	Short: "Generate Java bindings for C headers with jextract",
	Long:  `Runs every jextract execution configured in Jextract.toml and registers the generated sources.`,
	Args:  cobra.MaximumNArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch flagColor.Value() {
		case "always":
			color.NoColor = false
		case "never":
			color.NoColor = true
		}
		msg.SetVerbose(flagVerbose)
	},
	Run: doSources,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources [project path]",
	Short: "Generate sources",
	Long:  `Generate sources. If no project path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doSources,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBuildDir, "build-dir", "", `Build directory (default "<project>/build")`)
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print debug messages")
	rootCmd.PersistentFlags().Var(&flagColor, "color", "When to colorize output, one of "+flagColor.HelpString())
	rootCmd.RegisterFlagCompletionFunc("color", flagColor.CompletionFunc())

	addSourcesFlags(rootCmd)

	// jxrun sources subcommand
	rootCmd.AddCommand(sourcesCmd)
	addSourcesFlags(sourcesCmd)
}

func addSourcesFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&flagExecutions, "execution", "e", nil, "Only run the named execution (repeatable)")
	cmd.Flags().IntVarP(&flagJobs, "jobs", "j", 1, "Number of executions to run in parallel")
	cmd.Flags().StringVar(&flagExecutable, "executable", "", "Path to jextract, overrides the configured executable")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
