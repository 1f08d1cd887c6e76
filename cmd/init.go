// jxrun init [name], jxrun new [path]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/coffeelibs/jxrun/internal/jextract"
	"github.com/coffeelibs/jxrun/internal/msg"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "jxrun"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

// packageName turns a project name into a Java package name
func packageName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '-', r == '_', r == '.', r == ' ':
			sb.WriteByte('_')
		}
	}
	pkg := sb.String()
	if pkg == "" || (pkg[0] >= '0' && pkg[0] <= '9') {
		pkg = "_" + pkg
	}
	return "org.example." + pkg
}

// tomlKey quotes name unless it is a valid bare key
func tomlKey(name string) string {
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return strconv.Quote(name)
		}
	}
	return name
}

// initIn initializes a project in an existing specified directory
func initIn(dir, name string) {
	// Jextract.toml
	writefile(`[project]
name = "`+name+`"

[jextract.`+tomlKey(name)+`]
header-file = "include/`+name+`.h"
target-package = "`+packageName(name)+`"
header-search-paths = ["include"]
include-functions = ["hello_world"]

[jextract.`+tomlKey(name)+`.'target_os == "windows"']
libraries = ["`+name+`.dll"]

[jextract.`+tomlKey(name)+`.'target_os != "windows"']
libraries = ["lib`+name+`.so"]
`, dir, jextract.ConfigFilename)

	mkdir(dir, "include")

	// include/<name>.h
	guard := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name)) + "_H"
	writefile(`#ifndef `+guard+`
#define `+guard+`

#ifdef __cplusplus
extern "C" {
#endif

void hello_world(void);

#ifdef __cplusplus
} // extern "C"
#endif

#endif
`, dir, "include", name+".h")

	// .gitignore
	writefile(`build/
`, dir, ".gitignore")

	programName := getProgramName()
	fmt.Printf("You can now do %s to generate sources, or %s to see the jextract command line.\n", color.HiCyanString(programName+" "+dir), color.HiCyanString(programName+" args "+dir))
}

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new project in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0])
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new project in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]))
	},
}

func init() {
	// jxrun init subcommand
	rootCmd.AddCommand(initCmd)

	// jxrun new subcommand
	rootCmd.AddCommand(newCmd)
}
