package jextract

// Execution is one invocation of jextract, as configured by a
// [jextract.<name>] section. Field order is the order flags are emitted in.
type Execution struct {
	Name string `toml:"-"`

	Executable      string `toml:"executable"`
	HeaderClassName string `toml:"header-class-name"`
	OutputDirectory string `toml:"output-directory"`
	TargetPackage   string `toml:"target-package"`

	Libraries         []string `toml:"libraries"`
	HeaderSearchPaths []string `toml:"header-search-paths"`
	Defines           []string `toml:"defines"`
	IncludeFunctions  []string `toml:"include-functions"`
	IncludeConstants  []string `toml:"include-constants"`
	IncludeStructs    []string `toml:"include-structs"`
	IncludeTypedefs   []string `toml:"include-typedefs"`
	IncludeUnions     []string `toml:"include-unions"`
	IncludeVars       []string `toml:"include-vars"`

	HeaderFile       string `toml:"header-file"`
	WorkingDirectory string `toml:"working-directory"`
}

// Args returns the full command line, executable first.
func (e *Execution) Args() []string {
	repeated := []struct {
		flag   string
		values []string
	}{
		{"--library", e.Libraries},
		{"-I", e.HeaderSearchPaths},
		{"-D", e.Defines},
		{"--include-function", e.IncludeFunctions},
		{"--include-constant", e.IncludeConstants},
		{"--include-struct", e.IncludeStructs},
		{"--include-typedef", e.IncludeTypedefs},
		{"--include-union", e.IncludeUnions},
		{"--include-var", e.IncludeVars},
	}

	args := []string{e.Executable}
	if e.HeaderClassName != "" {
		args = append(args, "--header-class-name", e.HeaderClassName)
	}
	args = append(args, "--output", e.OutputDirectory)
	args = append(args, "--target-package", e.TargetPackage)
	for _, r := range repeated {
		for _, v := range r.values {
			args = append(args, r.flag, v)
		}
	}
	return append(args, "--source", e.HeaderFile)
}
