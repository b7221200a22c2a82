package runner

import (
	"io"
	"time"

	loggerpkg "github.com/minhyannv/prompt-tester/pkg/logger"
	"github.com/minhyannv/prompt-tester/pkg/output"
)

// Option configures optional runtime dependencies for Runner.
type Option func(*runnerDeps)

type runnerDeps struct {
	logger loggerpkg.Logger
	stdout io.Writer
	saver  output.Saver
	now    func() time.Time
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(d *runnerDeps) {
		d.logger = l
	}
}

// WithStdout sets where responses are printed.
func WithStdout(w io.Writer) Option {
	return func(d *runnerDeps) {
		d.stdout = w
	}
}

// WithSaver enables persistence of results.
func WithSaver(s output.Saver) Option {
	return func(d *runnerDeps) {
		d.saver = s
	}
}

// WithClock replaces time.Now, for elapsed-time reporting.
func WithClock(now func() time.Time) Option {
	return func(d *runnerDeps) {
		d.now = now
	}
}
