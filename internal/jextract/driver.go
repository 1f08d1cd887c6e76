package jextract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/coffeelibs/jxrun/internal/logwriter"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"
)

// Log receives jextract's output one line at a time.
type Log interface {
	Debug(line string)
	Info(line string)
	Warn(line string)
}

// SourceRoots is the build model generated directories are registered in.
type SourceRoots interface {
	AddSourceRoot(dir string) error
}

// Process is a started jextract process. Both streams must be read to EOF
// before Wait is called.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() error
}

// Launcher starts argv[0] with the remaining arguments in dir.
type Launcher interface {
	Launch(ctx context.Context, argv []string, dir string) (Process, error)
}

// ExecLauncher launches real processes. Cancelling ctx kills the process.
type ExecLauncher struct{}

type execProcess struct {
	cmd            *exec.Cmd
	stdout, stderr io.Reader
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }
func (p *execProcess) Wait() error       { return p.cmd.Wait() }

func (ExecLauncher) Launch(ctx context.Context, argv []string, dir string) (Process, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errNoExecutable
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// Driver runs a single Execution: stdout is logged at info level, stderr at
// warn level, and the output directory is registered once jextract succeeds.
type Driver struct {
	Launcher Launcher
	Log      Log
	Roots    SourceRoots
	// Encoding of jextract's output, nil means UTF-8
	Encoding encoding.Encoding
}

func NewDriver(launcher Launcher, log Log, roots SourceRoots) *Driver {
	return &Driver{Launcher: launcher, Log: log, Roots: roots}
}

// Run invokes jextract for e and blocks until it has exited. Every error it
// returns wraps ErrFailure.
func (d *Driver) Run(ctx context.Context, e *Execution) error {
	d.Log.Debug("Create dir " + e.OutputDirectory)
	if err := os.MkdirAll(e.OutputDirectory, 0755); err != nil {
		return fmt.Errorf("%w: failed to create dir %s: %w", ErrFailure, e.OutputDirectory, err)
	}

	args := e.Args()
	d.Log.Info("Running " + strings.Join(args, " "))

	proc, err := d.Launcher.Launch(ctx, args, e.WorkingDirectory)
	if err != nil {
		if ctx.Err() != nil {
			return interrupted(ctx)
		}
		return fmt.Errorf("%w: invoking jextract: %w", ErrFailure, err)
	}

	var eg errgroup.Group
	eg.Go(func() error { return d.drain(proc.Stdout(), d.Log.Info) })
	eg.Go(func() error { return d.drain(proc.Stderr(), d.Log.Warn) })
	drainErr := eg.Wait()
	waitErr := proc.Wait()

	if ctx.Err() != nil {
		return interrupted(ctx)
	}
	if drainErr != nil {
		return fmt.Errorf("%w: reading jextract output: %w", ErrFailure, drainErr)
	}
	if waitErr != nil {
		var exitErr interface{ ExitCode() int }
		if errors.As(waitErr, &exitErr) {
			return fmt.Errorf("%w: %w", ErrFailure, ExitCodeError{Code: exitErr.ExitCode()})
		}
		return fmt.Errorf("%w: invoking jextract: %w", ErrFailure, waitErr)
	}

	if err := d.Roots.AddSourceRoot(e.OutputDirectory); err != nil {
		return fmt.Errorf("%w: registering source root: %w", ErrFailure, err)
	}
	return nil
}

func (d *Driver) drain(r io.Reader, fn logwriter.LineFunc) error {
	w := logwriter.New(fn, d.Encoding)
	defer w.Close()
	_, err := io.Copy(w, r)
	return err
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %w: %w", ErrFailure, ErrInterrupted, context.Cause(ctx))
}
