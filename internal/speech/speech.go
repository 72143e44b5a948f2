// Package speech runs one-shot speech recognition sessions.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

var (
	execCommander = newExecCommander
	lookPath      = exec.LookPath
)

var ErrUnsupported = errors.New("speech recognition is not supported")

type ErrorCode string

const (
	NoSpeech     ErrorCode = "no-speech"
	AudioCapture ErrorCode = "audio-capture"
	NotAllowed   ErrorCode = "not-allowed"
	Other        ErrorCode = "other"
)

// Error is a recognition failure categorized by Code.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("speech recognition failed: %s", e.Code)
	}
	return fmt.Sprintf("speech recognition failed: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Recognizer interface {
	Available() bool
	// Recognize listens once and returns the final transcript.
	Recognize(ctx context.Context) (string, error)
}

// CommandRecognizer delegates recognition to an external speech-to-text
// command that prints the transcript on stdout. Exit codes 2, 3 and 4 report
// no speech, no audio capture device and denied microphone access.
type CommandRecognizer struct {
	path string
	args []string
}

func NewCommandRecognizer(commandLine string) *CommandRecognizer {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return &CommandRecognizer{}
	}
	return &CommandRecognizer{path: fields[0], args: fields[1:]}
}

func (r *CommandRecognizer) Available() bool {
	if r.path == "" {
		return false
	}
	_, err := lookPath(r.path)
	return err == nil
}

func (r *CommandRecognizer) Recognize(ctx context.Context) (string, error) {
	if !r.Available() {
		return "", ErrUnsupported
	}

	cmd := execCommander(ctx, r.path, r.args...)
	out, err := cmd.Output()
	slog.Debug("speech command finished", "command", strings.Join(cmd.GetArgs(), " "), "error", err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var exitErr interface{ ExitCode() int }
		if errors.As(err, &exitErr) {
			return "", &Error{Code: codeForExit(exitErr.ExitCode()), Err: err}
		}
		return "", &Error{Code: Other, Err: err}
	}

	transcript := strings.TrimSpace(string(out))
	if transcript == "" {
		return "", &Error{Code: NoSpeech}
	}
	return transcript, nil
}

func codeForExit(code int) ErrorCode {
	switch code {
	case 2:
		return NoSpeech
	case 3:
		return AudioCapture
	case 4:
		return NotAllowed
	default:
		return Other
	}
}

// CodeOf returns the category of a recognition error, Other when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var speechErr *Error
	if errors.As(err, &speechErr) {
		return speechErr.Code
	}
	return Other
}
