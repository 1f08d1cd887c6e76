package jextract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coffeelibs/jxrun/internal/msg"
	"github.com/coffeelibs/jxrun/internal/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoExecutions = `
[project]
name = "natives"

[jextract.zlib]
header-file = "zlib.h"
target-package = "org.example.zlib"

[jextract.zstd]
header-file = "zstd.h"
target-package = "org.example.zstd"
`

func writeProject(t *testing.T, config string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFilename), []byte(config), 0644))
	return dir
}

type logs struct {
	mu       sync.Mutex
	byName   map[string]*recordLog
	prefixed map[string]bool
}

func recordLogs(g *Generator) *logs {
	l := &logs{byName: map[string]*recordLog{}, prefixed: map[string]bool{}}
	g.NewLog = func(e *Execution, prefixed bool) Log {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.byName[e.Name] = &recordLog{}
		l.prefixed[e.Name] = prefixed
		return l.byName[e.Name]
	}
	return l
}

func TestGeneratorGenerate(t *testing.T) {
	dir := writeProject(t, twoExecutions)
	g, err := NewGeneratorInDirectory(dir, Options{Executable: "jextract-test", Jobs: 2})
	require.NoError(t, err)
	launcher := outputs("generated\n", "", nil)
	g.Launcher = launcher
	l := recordLogs(g)

	require.NoError(t, g.Generate(context.Background()))

	out := filepath.Join(dir, "build", "generated-sources", "jextract")
	zlib, zstd := filepath.Join(out, "zlib"), filepath.Join(out, "zstd")
	assert.ElementsMatch(t, []string{zlib, zstd}, g.Model().Roots())
	assert.Equal(t, map[string]bool{"zlib": true, "zstd": true}, l.prefixed)
	assert.Contains(t, l.byName["zstd"].info, "generated")
	for _, argv := range launcher.argv {
		assert.Equal(t, "jextract-test", argv[0])
	}

	// saved where other tools look for it
	m, err := project.ParseModelInPath(filepath.Join(dir, "build"))
	require.NoError(t, err)
	assert.Equal(t, "natives", m.Name)
	assert.ElementsMatch(t, []string{zlib, zstd}, m.SourceRoots)
}

func TestGeneratorGenerateSelected(t *testing.T) {
	dir := writeProject(t, twoExecutions)
	buildDir := filepath.Join(t.TempDir(), "out")
	g, err := NewGeneratorInDirectory(dir, Options{BuildDir: buildDir, Executions: []string{"zstd"}})
	require.NoError(t, err)
	launcher := outputs("", "", nil)
	g.Launcher = launcher
	l := recordLogs(g)

	require.NoError(t, g.Generate(context.Background()))

	require.Len(t, launcher.argv, 1)
	assert.Equal(t, "zstd.h", launcher.argv[0][len(launcher.argv[0])-1])
	assert.Equal(t, map[string]bool{"zstd": false}, l.prefixed)
	assert.Equal(t, []string{filepath.Join(buildDir, "generated-sources", "jextract", "zstd")}, g.Model().Roots())
	assert.FileExists(t, filepath.Join(buildDir, project.ModelFilename))
}

func TestGeneratorGenerateFailure(t *testing.T) {
	dir := writeProject(t, twoExecutions)
	g, err := NewGeneratorInDirectory(dir, Options{Executable: "jextract-test"})
	require.NoError(t, err)
	g.Launcher = &fakeLauncher{procs: func(argv []string) *fakeProcess {
		p := &fakeProcess{stdout: strings.NewReader(""), stderr: strings.NewReader("")}
		if argv[len(argv)-1] == "zlib.h" {
			p.stderr = strings.NewReader("zlib.h:1:10: fatal error: 'zconf.h' file not found\n")
			p.waitErr = exitStatus(1)
		}
		return p
	}}
	l := recordLogs(g)

	err = g.Generate(context.Background())

	require.ErrorIs(t, err, ErrFailure)
	var exitErr ExitCodeError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, err.Error(), `execution "zlib"`)
	assert.Equal(t, []string{"zlib.h:1:10: fatal error: 'zconf.h' file not found"}, l.byName["zlib"].warns)
	assert.NotContains(t, g.Model().Roots(), filepath.Join(dir, "build", "generated-sources", "jextract", "zlib"))
}

func TestGeneratorGenerateInterrupted(t *testing.T) {
	dir := writeProject(t, twoExecutions)
	g, err := NewGeneratorInDirectory(dir, Options{Executable: "jextract-test"})
	require.NoError(t, err)
	launcher := outputs("", "", nil)
	g.Launcher = launcher
	recordLogs(g)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = g.Generate(ctx)

	require.ErrorIs(t, err, ErrInterrupted)
	assert.Empty(t, launcher.argv)
	assert.Empty(t, g.Model().Roots())
}

func TestGeneratorUnknownExecution(t *testing.T) {
	dir := writeProject(t, twoExecutions)
	g, err := NewGeneratorInDirectory(dir, Options{Executions: []string{"zstd", "lz4"}})
	require.NoError(t, err)
	g.Launcher = &fakeLauncher{err: errors.New("must not launch")}

	err = g.Generate(context.Background())
	assert.EqualError(t, err, `unknown execution "lz4", known executions: zlib, zstd`)

	_, err = g.Invocations()
	assert.Error(t, err)
}

func TestGeneratorInvocations(t *testing.T) {
	dir := writeProject(t, twoExecutions)
	g, err := NewGeneratorInDirectory(dir, Options{Executable: "/opt/jextract/bin/jextract", Executions: []string{"zstd", "zlib", "zstd"}})
	require.NoError(t, err)

	invocations, err := g.Invocations()
	require.NoError(t, err)

	require.Len(t, invocations, 2)
	zlib, _ := g.Config().Execution("zlib")
	assert.Equal(t, zlib.Args(), invocations[0])
	assert.Equal(t, "/opt/jextract/bin/jextract", invocations[1][0])
	assert.Equal(t, []string{"--source", "zstd.h"}, invocations[1][len(invocations[1])-2:])
	assert.NoDirExists(t, filepath.Join(dir, "build"))
}

func TestGeneratorMissingConfig(t *testing.T) {
	_, err := NewGeneratorInDirectory(t.TempDir(), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGeneratorLocalDependency(t *testing.T) {
	config := `
[dependencies]
vendored = "third_party/vendored"

[jextract.v]
header-file = "{{Dep('vendored')}}/v.h"
target-package = "org.example.v"
`
	dir := writeProject(t, config)
	g, err := NewGeneratorInDirectory(dir, Options{Executable: "jextract-test"})
	require.NoError(t, err)
	launcher := outputs("", "", nil)
	g.Launcher = launcher
	recordLogs(g)

	err = g.Generate(context.Background())
	require.ErrorContains(t, err, "failed to resolve dependencies")
	assert.Empty(t, launcher.argv)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "third_party", "vendored"), 0755))
	require.NoError(t, g.Generate(context.Background()))
	require.Len(t, launcher.argv, 1)
	assert.Equal(t, filepath.ToSlash(filepath.Join(dir, "third_party", "vendored"))+"/v.h", launcher.argv[0][len(launcher.argv[0])-1])
}

func TestGeneratorPrepareScript(t *testing.T) {
	config := `
[project]
name = "p"
prepare = 'ReadFile("v.h") contains "ready"'

[jextract.v]
header-file = "v.h"
target-package = "org.example.v"
`
	dir := writeProject(t, config)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v.h"), []byte("// not yet\n"), 0644))
	g, err := NewGeneratorInDirectory(dir, Options{Executable: "jextract-test"})
	require.NoError(t, err)
	launcher := outputs("", "", nil)
	g.Launcher = launcher
	recordLogs(g)

	err = g.Generate(context.Background())
	require.ErrorContains(t, err, "returned false")
	assert.Empty(t, launcher.argv)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "v.h"), []byte("// ready\n"), 0644))
	require.NoError(t, g.Generate(context.Background()))
	assert.Len(t, launcher.argv, 1)
}

func TestNewMsgLog(t *testing.T) {
	e := &Execution{Name: "zstd"}
	assert.Equal(t, &msg.Logger{Prefix: "[zstd] "}, newMsgLog(e, true))
	assert.Equal(t, &msg.Logger{}, newMsgLog(e, false))
}

func TestRunJobsLimit(t *testing.T) {
	var running, peak atomic.Int32
	jobs := []int{1, 2, 3, 4, 5, 6}
	var mu sync.Mutex
	var done []int

	err := runJobs(context.Background(), jobs, func(ctx context.Context, job int) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		mu.Lock()
		done = append(done, job)
		mu.Unlock()
		return nil
	}, 2)

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	slices.Sort(done)
	assert.Equal(t, jobs, done)
}

func TestRunJobsFirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32

	err := runJobs(context.Background(), []int{1, 2, 3}, func(ctx context.Context, job int) error {
		calls.Add(1)
		if job == 1 {
			return boom
		}
		return nil
	}, 1)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeneratorInvocationsWithoutExecutable(t *testing.T) {
	t.Setenv("JEXTRACT", "")
	t.Setenv("JEXTRACT_HOME", "")
	t.Setenv("PATH", t.TempDir())
	dir := writeProject(t, twoExecutions)
	g, err := NewGeneratorInDirectory(dir, Options{})
	require.NoError(t, err)

	_, err = g.Invocations()

	require.ErrorIs(t, err, errNoExecutable)
	assert.Contains(t, err.Error(), `execution "zlib"`)
}
