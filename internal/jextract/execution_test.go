package jextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionArgsMinimal(t *testing.T) {
	e := &Execution{
		Executable:      "/opt/jextract/bin/jextract",
		OutputDirectory: "/p/build/generated-sources/jextract",
		TargetPackage:   "org.example.zstd",
		HeaderFile:      "zstd.h",
	}

	assert.Equal(t, []string{
		"/opt/jextract/bin/jextract",
		"--output", "/p/build/generated-sources/jextract",
		"--target-package", "org.example.zstd",
		"--source", "zstd.h",
	}, e.Args())
}

func TestExecutionArgsOrder(t *testing.T) {
	e := &Execution{
		Executable:        "jextract",
		HeaderClassName:   "Zstd",
		OutputDirectory:   "out",
		TargetPackage:     "pkg",
		Libraries:         []string{"libzstd.so", "libz.so"},
		HeaderSearchPaths: []string{"include"},
		Defines:           []string{"ZSTD_STATIC_LINKING_ONLY", "NDEBUG=1"},
		IncludeFunctions:  []string{"ZSTD_compress", "ZSTD_decompress"},
		IncludeConstants:  []string{"ZSTD_CLEVEL_DEFAULT"},
		IncludeStructs:    []string{"ZSTD_inBuffer_s"},
		IncludeTypedefs:   []string{"ZSTD_inBuffer"},
		IncludeUnions:     []string{"u"},
		IncludeVars:       []string{"v"},
		HeaderFile:        "zstd.h",
	}

	assert.Equal(t, []string{
		"jextract",
		"--header-class-name", "Zstd",
		"--output", "out",
		"--target-package", "pkg",
		"--library", "libzstd.so",
		"--library", "libz.so",
		"-I", "include",
		"-D", "ZSTD_STATIC_LINKING_ONLY",
		"-D", "NDEBUG=1",
		"--include-function", "ZSTD_compress",
		"--include-function", "ZSTD_decompress",
		"--include-constant", "ZSTD_CLEVEL_DEFAULT",
		"--include-struct", "ZSTD_inBuffer_s",
		"--include-typedef", "ZSTD_inBuffer",
		"--include-union", "u",
		"--include-var", "v",
		"--source", "zstd.h",
	}, e.Args())
}

func TestExecutionArgsHeaderLast(t *testing.T) {
	e := &Execution{Executable: "jextract", HeaderFile: "a.h", Defines: []string{"X"}}

	args := e.Args()

	assert.Equal(t, "jextract", args[0])
	assert.Equal(t, []string{"--source", "a.h"}, args[len(args)-2:])
	assert.NotContains(t, args, "--header-class-name")
}
