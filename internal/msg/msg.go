package msg

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	mu      sync.Mutex
	out     io.Writer = color.Output
	verbose bool
)

// SetOutput redirects all messages to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetVerbose enables debug messages.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// emit writes one whole line, so concurrent callers never interleave
func emit(level string, format string, a ...any) {
	line := level + ": " + fmt.Sprintf(format, a...) + "\n"
	mu.Lock()
	defer mu.Unlock()
	io.WriteString(out, line)
}

func Debug(format string, a ...any) {
	mu.Lock()
	v := verbose
	mu.Unlock()
	if v {
		emit(color.HiBlackString("debug"), format, a...)
	}
}

func Error(format string, a ...any) {
	emit(color.HiRedString("error"), format, a...)
}

func Warn(format string, a ...any) {
	emit(color.YellowString("warn"), format, a...)
}

func Fatal(format string, a ...any) {
	emit(color.RedString("fatal"), format, a...)
	os.Exit(1)
}

func Info(format string, a ...any) {
	emit(color.HiGreenString("info"), format, a...)
}

// Logger exposes the levels as line sinks, optionally tagging every line with
// a prefix such as "[zstd] ".
type Logger struct {
	Prefix string
}

func (l *Logger) Debug(line string) { Debug("%s%s", l.Prefix, line) }
func (l *Logger) Info(line string)  { Info("%s%s", l.Prefix, line) }
func (l *Logger) Warn(line string)  { Warn("%s%s", l.Prefix, line) }

// IndentWriter prefixes every line written through it with Indent. It is used
// for progress output of git operations, which rewrites lines with '\r'.
type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	buf := make([]byte, 0, len(p)+len(w.Indent))
	for _, c := range p {
		if !w.didIndent {
			buf = append(buf, w.Indent...)
			w.didIndent = true
		}
		buf = append(buf, c)
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	if _, err := w.W.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}
