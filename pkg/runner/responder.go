package runner

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/minhyannv/prompt-tester/pkg/thinking"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// execute runs one resolved entry and persists its result when saving is enabled.
func (r *Runner) execute(ctx context.Context, t target) error {
	r.logger.Info(fmt.Sprintf("Starting generation for %s.", t.name), nil)
	r.logger.Debug("request", map[string]any{
		"model":      t.modelID,
		"gen_opts":   t.genOptsID,
		"seed":       r.opts.Seed,
		"max_tokens": r.opts.MaxTokens,
	})

	start := r.now()
	text, err := r.respond(ctx, t)
	if err != nil {
		return err
	}

	elapsed := r.now().Sub(start)
	r.logger.Info(fmt.Sprintf("Generation took %.2f seconds (%.2f minutes).", elapsed.Seconds(), elapsed.Minutes()), nil)

	if !r.saver.Enabled() {
		return nil
	}
	path, err := r.saver.Save(t.name, text)
	if err != nil {
		return err
	}
	r.logger.Info("Output saved to "+path, nil)
	return nil
}

// respond issues the request in the configured output mode and returns the
// full response text, thinking region included.
func (r *Runner) respond(ctx context.Context, t target) (string, error) {
	params := r.newChatParams(t)
	reqOpts := t.requestOptions()

	if r.opts.Output == OutputSilent {
		return r.complete(ctx, t, params, reqOpts)
	}

	style := lipgloss.NewRenderer(r.stdout).NewStyle().Bold(true)
	_, _ = fmt.Fprintf(r.stdout, "%s\n\n", style.Render("Response for config: "+t.name))

	var (
		text string
		err  error
	)
	if r.opts.Output == OutputStream {
		text, err = r.stream(ctx, t, params, reqOpts)
	} else {
		text, err = r.display(ctx, t, params, reqOpts)
	}
	if err != nil {
		return text, err
	}
	_, _ = fmt.Fprintln(r.stdout)
	return text, nil
}

// complete performs one non-streaming request.
func (r *Runner) complete(ctx context.Context, t target, params openai.ChatCompletionNewParams, opts []option.RequestOption) (string, error) {
	completion, err := t.client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return completion.Choices[0].Message.Content, nil
}

// display prints a full response, without its thinking region when asked to.
func (r *Runner) display(ctx context.Context, t target, params openai.ChatCompletionNewParams, opts []option.RequestOption) (string, error) {
	text, err := r.complete(ctx, t, params, opts)
	if err != nil {
		return "", err
	}

	shown := text
	if r.opts.HideThinking {
		shown = thinking.Strip(text)
	}
	_, _ = fmt.Fprintln(r.stdout, shown)
	return text, nil
}

// stream prints fragments as they arrive and returns the accumulated text.
func (r *Runner) stream(ctx context.Context, t target, params openai.ChatCompletionNewParams, opts []option.RequestOption) (string, error) {
	s := t.client.Chat.Completions.NewStreaming(ctx, params, opts...)
	defer s.Close()

	out := newStreamRenderer(r.stdout, r.opts.HideThinking, r.now)
	for s.Next() {
		chunk := s.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		out.write(chunk.Choices[0].Delta.Content)
	}
	out.finish()

	if err := s.Err(); err != nil {
		return out.text(), fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return out.text(), nil
}

func (r *Runner) newChatParams(t target) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(t.modelID),
		Messages:            r.messages,
		Seed:                openai.Int(r.opts.Seed),
		MaxCompletionTokens: openai.Int(r.opts.MaxTokens),
	}
}

// requestOptions merges the generation-option preset into the request body.
func (t target) requestOptions() []option.RequestOption {
	if len(t.genOpts) == 0 {
		return nil
	}

	keys := make([]string, 0, len(t.genOpts))
	for k := range t.genOpts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	opts := make([]option.RequestOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, option.WithJSONSet(k, t.genOpts[k]))
	}
	return opts
}
