// Package clients builds one OpenAI-compatible API client per configured server.
package clients

import (
	"sort"

	"github.com/minhyannv/prompt-tester/pkg/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Registry maps server ids to reusable clients. It is read-only once built.
type Registry struct {
	clients map[string]*openai.Client
}

// New creates a client for every server. Extra options are applied to each
// client after the server's own base URL and key.
func New(servers map[string]config.Server, extra ...option.RequestOption) *Registry {
	r := &Registry{clients: make(map[string]*openai.Client, len(servers))}
	for id, server := range servers {
		r.clients[id] = newOpenAIClient(server, extra...)
	}
	return r
}

func newOpenAIClient(server config.Server, extra ...option.RequestOption) *openai.Client {
	opts := []option.RequestOption{
		// Failures are reported per execution, never retried.
		option.WithMaxRetries(0),
	}
	if server.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(server.BaseURL))
	}
	if server.Key != "" {
		opts = append(opts, option.WithAPIKey(server.Key))
	}
	opts = append(opts, extra...)

	client := openai.NewClient(opts...)
	return &client
}

// Get returns the client for a server id.
func (r *Registry) Get(id string) (*openai.Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// IDs lists the registered server ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
