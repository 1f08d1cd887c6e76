package jextract

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

const (
	ConfigFilename = "Jextract.toml"
	DepsDirname    = "_deps"
)

type Config struct {
	Project      ProjectSection    `toml:"project"`
	Dependencies map[string]string `toml:"dependencies"`
	// sorted by name
	Executions []*Execution `toml:"-"`
}

// ProjectSection defines the [project] section
type ProjectSection struct {
	Name    string `toml:"name"`
	Charset string `toml:"charset"`
	Prepare string `toml:"prepare"`
}

// Encoding resolves the charset jextract's output is decoded with.
func (p ProjectSection) Encoding() (encoding.Encoding, error) {
	if p.Charset == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(p.Charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", p.Charset, err)
	}
	return enc, nil
}

func (c *Config) Execution(name string) (*Execution, bool) {
	for _, e := range c.Executions {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// mergeStructs merges the fields of the src struct into the dst struct
func mergeStructs(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dst must be a pointer to a struct")
	}

	dstElem := dstVal.Elem()
	srcVal := reflect.ValueOf(src)

	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}

	if srcVal.Kind() != reflect.Struct {
		return fmt.Errorf("src must be a struct or a pointer to a struct")
	}

	if dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same struct type")
	}

	for i := range srcVal.NumField() {
		srcField := srcVal.Field(i)
		dstField := dstElem.Field(i)

		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}

	return nil
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalSection is a helper to parse sections without conditional logic
func unmarshalSection(rawCfg map[string]any, name string, dst any) error {
	if data, ok := rawCfg[name]; ok {
		if err := toml.Unmarshal([]byte(mustMarshal(data)), dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}
	return nil
}

// unmarshalExecution parses one [jextract.<name>] table. Subtables are
// conditions: they are merged in when their key evaluates to true.
func unmarshalExecution(name string, table map[string]any, env ConfigEnv) (*Execution, error) {
	section := "jextract." + name
	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range table {
		if subMap, ok := val.(map[string]any); ok {
			conditionalFields[key] = subMap
		} else {
			baseFields[key] = val
		}
	}

	e := &Execution{Name: name}
	if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), e); err != nil {
		return nil, fmt.Errorf("failed to parse [%s] section: %w", section, err)
	}

	// sorted, so that overlapping conditions merge the same way every time
	conditions := make([]string, 0, len(conditionalFields))
	for expression := range conditionalFields {
		conditions = append(conditions, expression)
	}
	slices.Sort(conditions)

	for _, expression := range conditions {
		program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("failed to compile condition for [%s.%q]: %w", section, expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("failed to run condition for [%s.%q]: %w", section, expression, err)
		}

		// merge sections if the result is true
		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection Execution
		if err := toml.Unmarshal([]byte(mustMarshal(conditionalFields[expression])), &condSection); err != nil {
			return nil, fmt.Errorf("failed to parse conditional section [%s.%q]: %w", section, expression, err)
		}
		if err := mergeStructs(e, condSection); err != nil {
			return nil, fmt.Errorf("failed to merge conditional section [%s.%q]: %w", section, expression, err)
		}
	}

	return e, nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env ConfigEnv) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		fullMatchStart := matchIndexes[0]
		fullMatchEnd := matchIndexes[1]
		expressionStart := matchIndexes[2]
		expressionEnd := matchIndexes[3]

		builder.WriteString(s[lastIndex:fullMatchStart])

		expression := strings.TrimSpace(s[expressionStart:expressionEnd])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		fmt.Fprintf(&builder, "%v", result)
		lastIndex = fullMatchEnd
	}

	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates expressions in strings
func processExpressions(data any, env ConfigEnv) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	var rawConfig map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawConfig); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	cfg := new(Config)
	if env.deps == nil {
		env.deps = make(map[string]string)
	}

	// dependencies come first, expressions elsewhere may call Dep()
	if err := unmarshalSection(rawConfig, "dependencies", &cfg.Dependencies); err != nil {
		return nil, err
	}
	for name, source := range cfg.Dependencies {
		dir, _, err := depLocation(source, name, env.ProjectDir, env.DepsDir)
		if err != nil {
			return nil, fmt.Errorf("dependency %q: %w", name, err)
		}
		env.deps[name] = dir
	}

	processedConfig, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	rawConfig = processedConfig.(map[string]any)

	if err := unmarshalSection(rawConfig, "project", &cfg.Project); err != nil {
		return nil, err
	}

	if data, ok := rawConfig["jextract"]; ok {
		executions, ok := data.(map[string]any)
		if !ok {
			return nil, errors.New("invalid [jextract] section format: expected a table")
		}
		for name, val := range executions {
			table, ok := val.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid [jextract.%s] section format: expected a table", name)
			}
			e, err := unmarshalExecution(name, table, env)
			if err != nil {
				return nil, err
			}
			cfg.Executions = append(cfg.Executions, e)
		}
	}
	if len(cfg.Executions) == 0 {
		return nil, errors.New("no [jextract.<name>] section found")
	}
	slices.SortFunc(cfg.Executions, func(a, b *Execution) int { return strings.Compare(a.Name, b.Name) })

	for _, e := range cfg.Executions {
		if err := cfg.resolve(e, env); err != nil {
			return nil, fmt.Errorf("[jextract.%s]: %w", e.Name, err)
		}
	}

	return cfg, nil
}

// ParseConfigFromFile parses and validates a config file from a filepath
func ParseConfigFromFile(path string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseConfig(bufio.NewReader(f), env)
}

// resolve validates e and fills in defaults and globs
func (c *Config) resolve(e *Execution, env ConfigEnv) error {
	if e.HeaderFile == "" {
		return errors.New("header-file is required")
	}
	if e.TargetPackage == "" {
		return errors.New("target-package is required")
	}

	if e.Executable == "" {
		e.Executable = findExecutable()
	}

	if e.OutputDirectory == "" {
		e.OutputDirectory = filepath.Join(env.BuildDir, "generated-sources", "jextract")
		if len(c.Executions) > 1 {
			e.OutputDirectory = filepath.Join(e.OutputDirectory, e.Name)
		}
	}
	e.OutputDirectory = env.abs(e.OutputDirectory)

	if e.WorkingDirectory == "" {
		e.WorkingDirectory = env.ProjectDir
	}
	e.WorkingDirectory = env.abs(e.WorkingDirectory)

	var err error
	if e.HeaderSearchPaths, err = expandGlobs(e.WorkingDirectory, e.HeaderSearchPaths, true); err != nil {
		return fmt.Errorf("header-search-paths: %w", err)
	}
	if e.Libraries, err = expandGlobs(e.WorkingDirectory, e.Libraries, false); err != nil {
		return fmt.Errorf("libraries: %w", err)
	}
	return nil
}

// expandGlobs replaces every pattern with the paths it matches under dir.
// Entries without glob syntax are kept as written.
func expandGlobs(dir string, patterns []string, dirsOnly bool) ([]string, error) {
	var opts []doublestar.GlobOption
	if !dirsOnly {
		opts = append(opts, doublestar.WithFilesOnly())
	}

	expanded := make([]string, 0, len(patterns))
	fsys := os.DirFS(dir)
	for _, pat := range patterns {
		if filepath.IsAbs(pat) || !strings.ContainsAny(pat, "*?[{") {
			expanded = append(expanded, pat)
			continue
		}
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pat), opts...)
		if err != nil {
			return nil, fmt.Errorf("while globbing %s: %w", pat, err)
		}
		slices.Sort(matches)
		for _, match := range matches {
			path := filepath.Join(dir, filepath.FromSlash(match))
			if dirsOnly {
				if stat, err := os.Stat(path); err != nil || !stat.IsDir() {
					continue
				}
			}
			expanded = append(expanded, path)
		}
	}
	return expanded, nil
}

//
// expr-lang helpers
//

// RunPrepareScript evaluates project.prepare, which must return true.
func (cfg Config) RunPrepareScript(env ConfigEnv) error {
	if cfg.Project.Prepare == "" {
		return nil
	}

	program, err := expr.Compile(cfg.Project.Prepare, expr.Env(env))
	if err != nil {
		return fmt.Errorf("failed to compile prepare script for project %q: %w", cfg.Project.Name, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("failed to run prepare script for project %q: %w", cfg.Project.Name, err)
	}

	if result, ok := result.(bool); !ok || !result {
		return fmt.Errorf("prepare script for project %q returned false\n%s", cfg.Project.Name, cfg.Project.Prepare)
	}

	return nil
}

type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	ProjectDir string            `expr:"project_dir"`
	BuildDir   string            `expr:"build_dir"`
	DepsDir    string            `expr:"deps_dir"`
	// dependency name -> directory it resolves to
	deps map[string]string
}

func NewConfigEnv(projectDir, buildDir string) ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		ProjectDir: projectDir,
		BuildDir:   buildDir,
		DepsDir:    filepath.Join(buildDir, DepsDirname),
		deps:       make(map[string]string),
	}
}

func (env ConfigEnv) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(env.ProjectDir, path)
}

// inProject resolves path against the project directory and rejects paths
// that leave it
func (env ConfigEnv) inProject(path string) (string, error) {
	fullPath := env.abs(path)
	rel, err := filepath.Rel(env.ProjectDir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside of project directory %q", path, env.ProjectDir)
	}
	return fullPath, nil
}

// Dep returns the directory dependency name resolves to.
func (env ConfigEnv) Dep(name string) (string, error) {
	dir, ok := env.deps[name]
	if !ok {
		return "", fmt.Errorf("unknown dependency %q", name)
	}
	return filepath.ToSlash(dir), nil
}

// Patch applies a diff-match-patch patch to a file in the project. It reports
// whether any hunk applied.
func (env ConfigEnv) Patch(path, patchText string) (bool, error) {
	fullPath, err := env.inProject(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return false, err
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		return false, err
	}
	patchedText, results := dmp.PatchApply(patches, string(data))
	if !slices.Contains(results, true) {
		return false, nil // nothing was applied, nothing to write
	}

	if err := os.WriteFile(fullPath, []byte(patchedText), 0644); err != nil {
		return false, err
	}
	return true, nil
}

func (env ConfigEnv) ReadFile(path string) (string, error) {
	fullPath, err := env.inProject(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
