package jextract

import (
	"errors"
	"fmt"
)

var (
	// ErrFailure is wrapped by every error that fails a generation step.
	ErrFailure = errors.New("jextract failed")
	// ErrInterrupted marks a step whose context was cancelled while jextract ran.
	ErrInterrupted = errors.New("interrupted while waiting for jextract")

	errNoExecutable = errors.New("no jextract executable found (set `executable`, $JEXTRACT or $JEXTRACT_HOME, or add jextract to PATH)")
)

// ExitCodeError carries the exit code of a jextract process that did not
// exit with 0.
type ExitCodeError struct {
	Code int
}

func (e ExitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}
