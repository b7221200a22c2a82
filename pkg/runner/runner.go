// Package runner drives the configured executions against their backends.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minhyannv/prompt-tester/pkg/clients"
	"github.com/minhyannv/prompt-tester/pkg/config"
	loggerpkg "github.com/minhyannv/prompt-tester/pkg/logger"
	"github.com/minhyannv/prompt-tester/pkg/output"
	"github.com/minhyannv/prompt-tester/pkg/prompt"
	"github.com/openai/openai-go"
)

// OutputMode selects how responses reach the terminal.
type OutputMode int

const (
	// OutputDisplay prints each full response once it arrives.
	OutputDisplay OutputMode = iota
	// OutputStream prints fragments as they arrive.
	OutputStream
	// OutputSilent prints nothing.
	OutputSilent
)

// Options are the per-run generation settings shared by every execution.
type Options struct {
	Seed         int64
	MaxTokens    int64
	Output       OutputMode
	HideThinking bool
}

// Runner executes the configured entries one after another.
type Runner struct {
	cfg      config.Config
	clients  *clients.Registry
	messages []openai.ChatCompletionMessageParamUnion
	opts     Options

	logger loggerpkg.Logger
	stdout io.Writer
	saver  output.Saver
	now    func() time.Time
}

// target is an execution entry with its model and preset resolved.
type target struct {
	name      string
	modelID   string
	client    *openai.Client
	genOpts   config.GenOpts
	genOptsID string
}

// New validates its inputs and returns a Runner ready to Run.
func New(cfg config.Config, registry *clients.Registry, messages []prompt.Message, opts Options, deps ...Option) (*Runner, error) {
	d := runnerDeps{
		logger: loggerpkg.NopLogger{},
		stdout: io.Discard,
		saver:  output.Saver{Dir: output.DefaultDir, Mode: output.ModeNone},
		now:    time.Now,
	}
	for _, opt := range deps {
		if opt != nil {
			opt(&d)
		}
	}
	d.logger = loggerpkg.OrNop(d.logger)

	if registry == nil {
		return nil, errors.New("runner: client registry is required")
	}
	params, err := toOpenAIMessages(messages)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}

	return &Runner{
		cfg:      cfg,
		clients:  registry,
		messages: params,
		opts:     opts,

		logger: d.logger,
		stdout: d.stdout,
		saver:  d.saver,
		now:    d.now,
	}, nil
}

// Run executes every entry in file order. Entries that cannot be resolved
// and executions that fail recoverably are logged and skipped. A cancelled
// ctx stops the run with ErrInterrupted.
func (r *Runner) Run(ctx context.Context) error {
	for i, exec := range r.cfg.Executions {
		if ctx.Err() != nil {
			return ErrInterrupted
		}

		t, ok := r.resolve(exec)
		if !ok {
			continue
		}

		err := r.execute(ctx, t)
		switch {
		case err == nil:
		case isInterrupt(ctx, err):
			return ErrInterrupted
		case IsRecoverable(err):
			_, _ = fmt.Fprintln(r.stdout)
			r.logger.Debug("execution failed", map[string]any{
				"index":    i,
				"model":    exec.Model,
				"gen_opts": exec.GenOpts,
				"type":     fmt.Sprintf("%T", err),
				"error":    fmt.Sprintf("%+v", err),
			})
			r.logger.Error("An error occurred while generating the response. Skipping to next config.", map[string]any{
				"model": t.name,
				"error": err.Error(),
			})
		default:
			return fmt.Errorf("runner: execution %d (%s): %w", i, exec.Model, err)
		}
	}
	return nil
}

// resolve looks up the model, its server client and the optional preset.
func (r *Runner) resolve(exec config.Execution) (target, bool) {
	model, ok := r.cfg.Models[exec.Model]
	if !ok {
		r.logger.Error(fmt.Sprintf("Model '%s' does not exist! Skipping...", exec.Model), nil)
		return target{}, false
	}

	client, ok := r.clients.Get(model.Server)
	if !ok {
		r.logger.Error(fmt.Sprintf("Server '%s' for model '%s' does not exist! Skipping...", model.Server, exec.Model), nil)
		return target{}, false
	}

	t := target{
		name:    model.FriendlyName,
		modelID: model.ModelID,
		client:  client,
	}
	if exec.GenOpts != "" {
		if opts, ok := r.cfg.GenOpts[exec.GenOpts]; ok {
			t.genOpts = opts
			t.genOptsID = exec.GenOpts
		} else {
			r.logger.Error(fmt.Sprintf("Generation options '%s' does not exist! Using default options...", exec.GenOpts), nil)
		}
	}
	return t, true
}

func toOpenAIMessages(messages []prompt.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	if len(messages) == 0 {
		return nil, prompt.ErrEmptyPrompt
	}

	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case prompt.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case prompt.RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		default:
			return nil, fmt.Errorf("invalid message role at index %d: %q", i, msg.Role)
		}
	}
	return out, nil
}
