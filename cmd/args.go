// jxrun args [path]
package cmd

import (
	"fmt"
	"strings"

	"github.com/coffeelibs/jxrun/internal/msg"
	"github.com/spf13/cobra"
)

// shellQuote quotes arg for a POSIX shell if it needs it
func shellQuote(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\n\"'\\$`*?[]{}()<>|&;#~") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func doArgs(cmd *cobra.Command, args []string) {
	g := newGenerator(args)
	invocations, err := g.Invocations()
	if err != nil {
		msg.Fatal("%v", err)
	}
	for _, argv := range invocations {
		quoted := make([]string, len(argv))
		for i, arg := range argv {
			quoted[i] = shellQuote(arg)
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(quoted, " "))
	}
}

var argsCmd = &cobra.Command{
	Use:   "args [project path]",
	Short: "Print the jextract command lines without running them",
	Args:  cobra.MaximumNArgs(1),
	Run:   doArgs,
}

func init() {
	// jxrun args subcommand
	rootCmd.AddCommand(argsCmd)
	argsCmd.Flags().StringSliceVarP(&flagExecutions, "execution", "e", nil, "Only print the named execution (repeatable)")
	argsCmd.Flags().StringVar(&flagExecutable, "executable", "", "Path to jextract, overrides the configured executable")
}
