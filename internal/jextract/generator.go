package jextract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/coffeelibs/jxrun/internal/msg"
	"github.com/coffeelibs/jxrun/internal/project"
	"golang.org/x/sync/errgroup"
)

// Options tune a Generator. The zero value runs every execution, one at a time.
type Options struct {
	// BuildDir overrides <project>/build
	BuildDir string
	// Executable overrides the executable of every execution
	Executable string
	// Executions limits the run to the named executions
	Executions []string
	Jobs       int
}

// Generator runs the executions of one project.
type Generator struct {
	cfg     *Config
	basedir string
	env     ConfigEnv
	opts    Options
	model   *project.Model

	// Launcher starts jextract; tests replace it
	Launcher Launcher
	// NewLog returns the logger for an execution
	NewLog func(e *Execution, prefixed bool) Log
}

func NewGeneratorInDirectory(path string, opts Options) (*Generator, error) {
	var err error
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	buildDir := opts.BuildDir
	if buildDir == "" {
		buildDir = filepath.Join(path, "build")
	} else if buildDir, err = filepath.Abs(buildDir); err != nil {
		return nil, err
	}

	env := NewConfigEnv(path, buildDir)
	cfg, err := ParseConfigFromFile(filepath.Join(path, ConfigFilename), env)
	if err != nil {
		return nil, err
	}
	if opts.Executable != "" {
		for _, e := range cfg.Executions {
			e.Executable = opts.Executable
		}
	}

	model, err := project.Load(buildDir, cfg.Project.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load project model: %w", err)
	}

	return &Generator{
		cfg:      cfg,
		basedir:  path,
		env:      env,
		opts:     opts,
		model:    model,
		Launcher: ExecLauncher{},
		NewLog:   newMsgLog,
	}, nil
}

func newMsgLog(e *Execution, prefixed bool) Log {
	if prefixed {
		return &msg.Logger{Prefix: "[" + e.Name + "] "}
	}
	return &msg.Logger{}
}

func (g *Generator) Config() *Config { return g.cfg }

func (g *Generator) Model() *project.Model { return g.model }

// selected returns the executions to run, in name order
func (g *Generator) selected() ([]*Execution, error) {
	if len(g.opts.Executions) == 0 {
		return g.cfg.Executions, nil
	}

	var executions []*Execution
	for _, name := range g.opts.Executions {
		e, ok := g.cfg.Execution(name)
		if !ok {
			known := make([]string, len(g.cfg.Executions))
			for i, e := range g.cfg.Executions {
				known[i] = e.Name
			}
			return nil, fmt.Errorf("unknown execution %q, known executions: %s", name, strings.Join(known, ", "))
		}
		if !slices.Contains(executions, e) {
			executions = append(executions, e)
		}
	}
	slices.SortFunc(executions, func(a, b *Execution) int { return strings.Compare(a.Name, b.Name) })
	return executions, nil
}

// Invocations returns the command line of every selected execution without
// running anything.
func (g *Generator) Invocations() ([][]string, error) {
	executions, err := g.selected()
	if err != nil {
		return nil, err
	}
	invocations := make([][]string, len(executions))
	for i, e := range executions {
		if e.Executable == "" {
			return nil, fmt.Errorf("execution %q: %w", e.Name, errNoExecutable)
		}
		invocations[i] = e.Args()
	}
	return invocations, nil
}

// resolveDependencies clones every remote dependency that isn't in the deps
// directory yet
func (g *Generator) resolveDependencies() error {
	names := make([]string, 0, len(g.cfg.Dependencies))
	for name := range g.cfg.Dependencies {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		source := g.cfg.Dependencies[name]
		dir, remote, err := depLocation(source, name, g.basedir, g.env.DepsDir)
		if err != nil {
			return fmt.Errorf("dependency %q: %w", name, err)
		}
		if !remote {
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("dependency %q: %w", name, err)
			}
			continue
		}

		if stat, err := os.Stat(dir); err == nil && stat.IsDir() {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		msg.Info("fetching dependency %s from %s", name, source)
		if err := cloneGitRepo(cloneURL(source), dir, &msg.IndentWriter{Indent: "    ", W: os.Stdout}); err != nil {
			// leave no half-cloned directory behind, it would be taken as fetched
			os.RemoveAll(dir)
			return fmt.Errorf("failed to fetch dependency %q: %w", name, err)
		}
	}
	return nil
}

// Generate fetches dependencies, runs the prepare script and then every
// selected execution. The first failing execution cancels the others.
func (g *Generator) Generate(ctx context.Context) error {
	executions, err := g.selected()
	if err != nil {
		return err
	}

	if err := g.resolveDependencies(); err != nil {
		return fmt.Errorf("failed to resolve dependencies: %w", err)
	}
	if err := g.cfg.RunPrepareScript(g.env); err != nil {
		return err
	}

	enc, err := g.cfg.Project.Encoding()
	if err != nil {
		return err
	}

	prefixed := len(executions) > 1
	return runJobs(ctx, executions, func(ctx context.Context, e *Execution) error {
		d := NewDriver(g.Launcher, g.NewLog(e, prefixed), g.model)
		d.Encoding = enc
		if err := d.Run(ctx, e); err != nil {
			if prefixed {
				return fmt.Errorf("execution %q: %w", e.Name, err)
			}
			return err
		}
		return nil
	}, g.opts.Jobs)
}

// runJobs runs jobs in parallel, at most limit at a time
func runJobs[T any](ctx context.Context, jobs []T, jobfunc func(ctx context.Context, job T) error, limit int) error {
	if len(jobs) == 0 {
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(limit, 1))

	for _, job := range jobs {
		eg.Go(func() error {
			// a job that failed already cancelled the rest
			if ctx.Err() != nil {
				return interrupted(ctx)
			}
			return jobfunc(ctx, job)
		})
	}

	return eg.Wait()
}
