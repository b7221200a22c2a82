package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrNotFound is returned when a config or prompt file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrMalformed is returned when a file is not valid TOML or YAML.
	ErrMalformed = errors.New("malformed file")
	// ErrMissingSection is returned when a required top-level section is absent.
	ErrMissingSection = errors.New("missing required section")
)

// RequiredSections lists the top-level keys every config must define.
var RequiredSections = []string{"servers", "models", "executions"}

// Server is an OpenAI-compatible endpoint.
type Server struct {
	BaseURL string `toml:"base_url" yaml:"base_url"`
	Key     string `toml:"key" yaml:"key"` //nolint:gosec // configuration field, not a hardcoded secret
}

// Model binds a backend model identifier to a server.
type Model struct {
	Server       string `toml:"server" yaml:"server"`
	ModelID      string `toml:"model_id" yaml:"model_id"`
	FriendlyName string `toml:"friendly_name" yaml:"friendly_name"`
}

// GenOpts is a generation-option preset merged verbatim into the request body.
type GenOpts map[string]any

// Execution is one (model, optional preset) pair to run against the prompt.
type Execution struct {
	Model   string `toml:"model" yaml:"model"`
	GenOpts string `toml:"gen_opts" yaml:"gen_opts"`
}

// Config holds the servers, models, presets and executions of one run.
type Config struct {
	Servers    map[string]Server  `toml:"servers" yaml:"servers"`
	Models     map[string]Model   `toml:"models" yaml:"models"`
	GenOpts    map[string]GenOpts `toml:"gen_opts" yaml:"gen_opts"`
	Executions []Execution        `toml:"executions" yaml:"executions"`
	// Prompt is the default prompt file, used when no prompt flag is given.
	Prompt string `toml:"prompt" yaml:"prompt"`

	raw map[string]any
}

// Raw returns the undecoded document, for diagnostics.
func (c Config) Raw() map[string]any {
	return c.raw
}

// Load reads the config at path. Environment references such as ${VAR} are
// expanded before decoding so keys can live outside the file.
func Load(path string) (Config, error) {
	data, err := readFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	keys, raw, err := decode(path, []byte(expanded), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	var missing []string
	for _, section := range RequiredSections {
		if !keys.Has(section) {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: %w: %s (define at least one server, one model and an execution list)",
			ErrMissingSection, strings.Join(missing, ", "))
	}

	cfg.raw = raw
	return Normalize(cfg), nil
}

// Normalize trims identifiers and fills in display names.
func Normalize(cfg Config) Config {
	cfg.Prompt = strings.TrimSpace(cfg.Prompt)

	servers := make(map[string]Server, len(cfg.Servers))
	for id, s := range cfg.Servers {
		s.BaseURL = strings.TrimSpace(s.BaseURL)
		s.Key = strings.TrimSpace(s.Key)
		servers[id] = s
	}
	cfg.Servers = servers

	models := make(map[string]Model, len(cfg.Models))
	for id, m := range cfg.Models {
		m.Server = strings.TrimSpace(m.Server)
		m.ModelID = strings.TrimSpace(m.ModelID)
		m.FriendlyName = strings.TrimSpace(m.FriendlyName)
		if m.FriendlyName == "" {
			m.FriendlyName = id
		}
		models[id] = m
	}
	cfg.Models = models

	executions := make([]Execution, 0, len(cfg.Executions))
	for _, e := range cfg.Executions {
		e.Model = strings.TrimSpace(e.Model)
		e.GenOpts = strings.TrimSpace(e.GenOpts)
		executions = append(executions, e)
	}
	cfg.Executions = executions

	if cfg.GenOpts == nil {
		cfg.GenOpts = map[string]GenOpts{}
	}
	return cfg
}
