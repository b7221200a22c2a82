package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minhyannv/prompt-tester/pkg/clients"
	"github.com/minhyannv/prompt-tester/pkg/config"
	"github.com/minhyannv/prompt-tester/pkg/output"
	"github.com/minhyannv/prompt-tester/pkg/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an OpenAI-compatible endpoint that answers with canned
// fragments per model id, as JSON or as server-sent events.
type fakeBackend struct {
	t *testing.T

	mu       sync.Mutex
	requests []map[string]any
	replies  map[string][]string
	failures map[string]int
	raw      map[string]rawReply
}

// rawReply is a 200 response served as-is, bypassing the OpenAI shapes.
type rawReply struct {
	contentType string
	body        string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()

	b := &fakeBackend{t: t, replies: map[string][]string{}, failures: map[string]int{}, raw: map[string]rawReply{}}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		b.t.Errorf("read body: %v", err)
		return
	}
	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		b.t.Errorf("decode body: %v", err)
		return
	}

	b.mu.Lock()
	b.requests = append(b.requests, req)
	model, _ := req["model"].(string)
	fragments := b.replies[model]
	status := b.failures[model]
	raw, hasRaw := b.raw[model]
	b.mu.Unlock()

	if hasRaw {
		w.Header().Set("Content-Type", raw.contentType)
		_, _ = fmt.Fprint(w, raw.body)
		return
	}

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"error":{"message":"backend failure","type":"server_error"}}`)
		return
	}

	if stream, _ := req["stream"].(bool); stream {
		w.Header().Set("Content-Type", "text/event-stream")
		for i, fragment := range fragments {
			chunk := map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"created": 1,
				"model":   model,
				"choices": []map[string]any{{
					"index":         0,
					"delta":         map[string]any{"role": "assistant", "content": fragment},
					"finish_reason": nil,
				}},
			}
			if i == len(fragments)-1 {
				chunk["choices"].([]map[string]any)[0]["finish_reason"] = "stop"
			}
			data, _ := json.Marshal(chunk)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   model,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": strings.Join(fragments, "")},
		}},
	})
}

func (b *fakeBackend) models() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.requests))
	for _, req := range b.requests {
		m, _ := req["model"].(string)
		out = append(out, m)
	}
	return out
}

func (b *fakeBackend) request(i int) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[i]
}

// captureLogger records log lines by level.
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureLogger) add(level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, level+" "+msg)
}

func (c *captureLogger) Debug(msg string, _ any)    { c.add("DEBUG", msg) }
func (c *captureLogger) Info(msg string, _ any)     { c.add("INFO", msg) }
func (c *captureLogger) Warn(msg string, _ any)     { c.add("WARN", msg) }
func (c *captureLogger) Error(msg string, _ any)    { c.add("ERROR", msg) }
func (c *captureLogger) Critical(msg string, _ any) { c.add("CRIT", msg) }

func (c *captureLogger) contains(level, substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range c.lines {
		if strings.HasPrefix(line, level+" ") && strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func testConfig(baseURL string, executions ...config.Execution) config.Config {
	return config.Normalize(config.Config{
		Servers: map[string]config.Server{"local": {BaseURL: baseURL + "/v1/", Key: "test-key"}},
		Models: map[string]config.Model{
			"alpha": {Server: "local", ModelID: "alpha-model", FriendlyName: "Alpha"},
			"beta":  {Server: "local", ModelID: "beta-model", FriendlyName: "Beta"},
			"ghost": {Server: "nowhere", ModelID: "ghost-model", FriendlyName: "Ghost"},
		},
		GenOpts: map[string]config.GenOpts{
			"creative": {"temperature": 1.1, "top_k": 40},
		},
		Executions: executions,
	})
}

var testMessages = []prompt.Message{
	{Segment: prompt.SegmentSystem, Role: prompt.RoleSystem, Content: "be brief"},
	{Segment: prompt.SegmentUser, Role: prompt.RoleUser, Content: "hello"},
}

func newTestRunner(t *testing.T, cfg config.Config, opts Options, deps ...Option) *Runner {
	t.Helper()

	r, err := New(cfg, clients.New(cfg.Servers), testMessages, opts, deps...)
	require.NoError(t, err)
	return r
}

func TestRunSkipsUnknownModel(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.replies["alpha-model"] = []string{"A"}
	backend.replies["beta-model"] = []string{"B"}

	cfg := testConfig(srv.URL,
		config.Execution{Model: "alpha"},
		config.Execution{Model: "missing"},
		config.Execution{Model: "ghost"},
		config.Execution{Model: "beta"},
	)
	log := &captureLogger{}
	r := newTestRunner(t, cfg, Options{Seed: 3333, MaxTokens: 512, Output: OutputSilent}, WithLogger(log))

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []string{"alpha-model", "beta-model"}, backend.models())
	assert.True(t, log.contains("ERROR", "Model 'missing' does not exist"))
	assert.True(t, log.contains("ERROR", "Server 'nowhere'"))
}

func TestRunSendsRequestFields(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.replies["alpha-model"] = []string{"ok"}

	cfg := testConfig(srv.URL, config.Execution{Model: "alpha", GenOpts: "creative"})
	r := newTestRunner(t, cfg, Options{Seed: 3333, MaxTokens: 512, Output: OutputSilent})

	require.NoError(t, r.Run(context.Background()))

	req := backend.request(0)
	assert.Equal(t, "alpha-model", req["model"])
	assert.EqualValues(t, 3333, req["seed"])
	assert.EqualValues(t, 512, req["max_completion_tokens"])
	assert.EqualValues(t, 1.1, req["temperature"])
	assert.EqualValues(t, 40, req["top_k"])

	msgs, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	first, _ := msgs[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
}

func TestRunUnknownGenOptsFallsBack(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.replies["alpha-model"] = []string{"ok"}

	cfg := testConfig(srv.URL, config.Execution{Model: "alpha", GenOpts: "nope"})
	log := &captureLogger{}
	r := newTestRunner(t, cfg, Options{Output: OutputSilent}, WithLogger(log))

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []string{"alpha-model"}, backend.models())
	assert.NotContains(t, backend.request(0), "temperature")
	assert.True(t, log.contains("ERROR", "Generation options 'nope' does not exist"))
}

func TestRunContinuesAfterBackendFailure(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.failures["alpha-model"] = http.StatusInternalServerError
	backend.replies["beta-model"] = []string{"fine"}

	cfg := testConfig(srv.URL, config.Execution{Model: "alpha"}, config.Execution{Model: "beta"})
	log := &captureLogger{}
	var stdout bytes.Buffer
	r := newTestRunner(t, cfg, Options{Output: OutputDisplay}, WithLogger(log), WithStdout(&stdout))

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []string{"alpha-model", "beta-model"}, backend.models())
	assert.True(t, log.contains("DEBUG", "execution failed"))
	assert.True(t, log.contains("ERROR", "Skipping to next config"))
	assert.Contains(t, stdout.String(), "fine")
}

func TestRunInterrupted(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.replies["alpha-model"] = []string{"A"}

	cfg := testConfig(srv.URL, config.Execution{Model: "alpha"}, config.Execution{Model: "beta"})
	r := newTestRunner(t, cfg, Options{Output: OutputSilent})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Empty(t, backend.models())
}

func TestRunStreamHidesThinking(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.replies["alpha-model"] = []string{"<think>", "inner", "</think>", "after"}

	dir := t.TempDir()
	cfg := testConfig(srv.URL, config.Execution{Model: "alpha"})
	var stdout bytes.Buffer
	r := newTestRunner(t, cfg,
		Options{Output: OutputStream, HideThinking: true},
		WithStdout(&stdout),
		WithSaver(output.Saver{Dir: dir, Mode: output.ModeAll}),
	)

	require.NoError(t, r.Run(context.Background()))

	printed := stdout.String()
	assert.Contains(t, printed, "Response for config: Alpha")
	assert.Contains(t, printed, "after")
	assert.Contains(t, printed, "Thinking")
	assert.Contains(t, printed, "Thought for")
	assert.NotContains(t, printed, "inner")

	saved, err := os.ReadFile(filepath.Join(dir, "Alpha.md"))
	require.NoError(t, err)
	assert.Equal(t, "<think>inner</think>after", string(saved))
}

func TestRunStreamVerbatim(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.replies["alpha-model"] = []string{"<think>", "x", "</think>", "y"}

	cfg := testConfig(srv.URL, config.Execution{Model: "alpha"})
	var stdout bytes.Buffer
	r := newTestRunner(t, cfg, Options{Output: OutputStream}, WithStdout(&stdout))

	require.NoError(t, r.Run(context.Background()))

	assert.Contains(t, stdout.String(), "<think>x</think>y")
	assert.NotContains(t, stdout.String(), "Thinking")
}

func TestRunContinuesAfterMalformedResponse(t *testing.T) {
	tests := []struct {
		name  string
		reply rawReply
	}{
		{name: "html page", reply: rawReply{contentType: "text/html", body: "<html><body>502 Bad Gateway</body></html>"}},
		{name: "empty body", reply: rawReply{contentType: "application/json", body: ""}},
		{name: "truncated json", reply: rawReply{contentType: "application/json", body: `{"id":"chatcmpl-1","choices":[`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, srv := newFakeBackend(t)
			backend.raw["alpha-model"] = tt.reply
			backend.replies["beta-model"] = []string{"still here"}

			cfg := testConfig(srv.URL, config.Execution{Model: "alpha"}, config.Execution{Model: "beta"})
			log := &captureLogger{}
			var stdout bytes.Buffer
			r := newTestRunner(t, cfg, Options{Output: OutputDisplay}, WithLogger(log), WithStdout(&stdout))

			require.NoError(t, r.Run(context.Background()))

			assert.Equal(t, []string{"alpha-model", "beta-model"}, backend.models())
			assert.True(t, log.contains("ERROR", "Skipping to next config"))
			assert.Contains(t, stdout.String(), "still here")
		})
	}
}

func TestRunDisplayUserOnlySave(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.replies["alpha-model"] = []string{"<think>\nX\n</think>Y"}

	dir := t.TempDir()
	cfg := testConfig(srv.URL, config.Execution{Model: "alpha"})
	var stdout bytes.Buffer
	log := &captureLogger{}
	r := newTestRunner(t, cfg,
		Options{Output: OutputDisplay, HideThinking: true},
		WithStdout(&stdout),
		WithLogger(log),
		WithSaver(output.Saver{Dir: dir, Mode: output.ModeUserOnly}),
	)

	require.NoError(t, r.Run(context.Background()))

	assert.Contains(t, stdout.String(), "Y")
	assert.NotContains(t, stdout.String(), "X")

	saved, err := os.ReadFile(filepath.Join(dir, "Alpha.md"))
	require.NoError(t, err)
	assert.Equal(t, "Y", string(saved))
	assert.True(t, log.contains("INFO", "Output saved to"))
}

func TestRunSaveAllTwiceOverwrites(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.replies["alpha-model"] = []string{"first answer"}

	dir := t.TempDir()
	cfg := testConfig(srv.URL, config.Execution{Model: "alpha"})
	saver := WithSaver(output.Saver{Dir: dir, Mode: output.ModeAll})

	require.NoError(t, newTestRunner(t, cfg, Options{Output: OutputSilent}, saver).Run(context.Background()))

	backend.mu.Lock()
	backend.replies["alpha-model"] = []string{"second"}
	backend.mu.Unlock()
	require.NoError(t, newTestRunner(t, cfg, Options{Output: OutputSilent}, saver).Run(context.Background()))

	saved, err := os.ReadFile(filepath.Join(dir, "Alpha.md"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(saved))
}

func TestRunLogsElapsedTime(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.replies["alpha-model"] = []string{"ok"}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 90 * time.Second)
	}

	cfg := testConfig(srv.URL, config.Execution{Model: "alpha"})
	log := &captureLogger{}
	r := newTestRunner(t, cfg, Options{Output: OutputSilent}, WithLogger(log), WithClock(clock))

	require.NoError(t, r.Run(context.Background()))

	assert.True(t, log.contains("INFO", "Starting generation for Alpha."))
	assert.True(t, log.contains("INFO", "Generation took 90.00 seconds (1.50 minutes)."))
}

func TestNewRejectsEmptyPrompt(t *testing.T) {
	cfg := testConfig("http://localhost")
	_, err := New(cfg, clients.New(cfg.Servers), nil, Options{})
	require.ErrorIs(t, err, prompt.ErrEmptyPrompt)

	_, err = New(cfg, nil, testMessages, Options{})
	require.Error(t, err)
}

func TestIsRecoverable(t *testing.T) {
	assert.False(t, IsRecoverable(nil))
	assert.False(t, IsRecoverable(errors.New("programming error")))
	assert.True(t, IsRecoverable(fmt.Errorf("wrapped: %w", ErrEmptyCompletion)))
	assert.True(t, IsRecoverable(context.DeadlineExceeded))
	assert.True(t, IsRecoverable(io.ErrUnexpectedEOF))
	assert.True(t, IsRecoverable(fmt.Errorf("save: %w", output.ErrWrite)))
	assert.True(t, IsRecoverable(fmt.Errorf("%w: %w", ErrProvider, errors.New("error parsing response json: EOF"))))
}
