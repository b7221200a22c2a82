package runner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/url"

	"github.com/minhyannv/prompt-tester/pkg/output"
	"github.com/openai/openai-go"
)

var (
	// ErrInterrupted is returned when the run was cancelled by the user.
	ErrInterrupted = errors.New("execution interrupted")
	// ErrEmptyCompletion is returned when the backend answers without choices.
	ErrEmptyCompletion = errors.New("empty completion choices")
	// ErrProvider wraps every error surfaced by a chat completion call,
	// including responses the client could not decode.
	ErrProvider = errors.New("provider request failed")
)

// IsRecoverable reports whether err belongs to a failure class that only
// affects the current execution: provider and transport errors, malformed
// responses and output writes. Anything else aborts the run.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}

	var (
		apiErr    *openai.Error
		netErr    net.Error
		urlErr    *url.Error
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &apiErr),
		errors.As(err, &netErr),
		errors.As(err, &urlErr),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		return true
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, ErrProvider),
		errors.Is(err, ErrEmptyCompletion),
		errors.Is(err, output.ErrWrite),
		errors.Is(err, output.ErrInvalidName):
		return true
	}
	return false
}

// isInterrupt reports whether err stems from cancelling ctx.
func isInterrupt(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.Canceled) {
		return true
	}
	return errors.Is(err, context.Canceled)
}
