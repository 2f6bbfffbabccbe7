// Package errorutil provides the error primitives shared across the
// module: constant sentinel errors and a helper to attach detail to
// them.
package errorutil

//go:generate errtrace -w .

import (
	"errors"
	"fmt"
)

// Error is a sentinel error declared as a string constant, so packages
// can export comparable errors without init-time allocation.
type Error string

func (e Error) Error() string { return string(e) }

// Errorf builds an [Error] from a format string.
func Errorf(format string, args ...any) error {
	return Error(fmt.Sprintf(format, args...)) //errtrace:skip
}

// NewWrapperError attaches optional detail to a sentinel. Called with
// no arguments it returns the sentinel itself. An error argument is
// wrapped under the sentinel, unless it already carries it. A string
// argument becomes the detail text, formatted with any remaining
// arguments.
func NewWrapperError(sentinel error, args ...any) error {
	if len(args) == 0 {
		return sentinel //errtrace:skip
	}

	if err, ok := args[0].(error); ok {
		if errors.Is(err, sentinel) {
			return err //errtrace:skip
		}
		return fmt.Errorf("%w: %w", sentinel, err) //errtrace:skip
	}

	msg, ok := args[0].(string)
	if !ok {
		return sentinel //errtrace:skip
	}
	if len(args) > 1 {
		msg = fmt.Sprintf(msg, args[1:]...)
	}
	return fmt.Errorf("%w: %s", sentinel, msg) //errtrace:skip
}
