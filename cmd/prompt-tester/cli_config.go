package main

import (
	"github.com/minhyannv/prompt-tester/pkg/output"
	"github.com/minhyannv/prompt-tester/pkg/runner"
	"github.com/spf13/pflag"
)

// cliConfig is the parsed command line.
type cliConfig struct {
	ConfigPath   string
	PromptPath   string
	Debug        bool
	Seed         int64
	MaxTokens    int64
	Stream       bool
	Silent       bool
	Save         saveModeFlag
	HideThinking bool
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		ConfigPath: "config.toml",
		Seed:       3333,
		MaxTokens:  512,
		Save:       saveModeFlag(output.ModeNone),
	}
}

// bindFlags registers every flag on fs, using cfg's values as defaults.
func bindFlags(fs *pflag.FlagSet, cfg *cliConfig) {
	fs.StringVarP(&cfg.ConfigPath, "config", "c", cfg.ConfigPath, "a path to the location of the application's config file")
	fs.StringVarP(&cfg.PromptPath, "prompt", "p", cfg.PromptPath, "a path to a TOML or YAML file containing a prompt to run (default: the config's prompt)")
	fs.BoolVarP(&cfg.Debug, "debug", "d", cfg.Debug, "include debug messages in log")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "the seed to use when generating the output")
	fs.Int64Var(&cfg.MaxTokens, "max-tokens", cfg.MaxTokens, "the maximum number of tokens to generate")
	fs.BoolVarP(&cfg.Stream, "stream", "s", cfg.Stream, "stream the response from the server in real time")
	fs.BoolVar(&cfg.Silent, "silent", cfg.Silent, "suppress model output")
	fs.Var(&cfg.Save, "save", "save part or all of the output to a file\n"+
		"  none      - do not save any output\n"+
		"  all       - save all outputs\n"+
		"  user-only - save only the user-facing output, ignoring thinking tokens")
	fs.Lookup("save").NoOptDefVal = string(output.ModeAll)
	fs.BoolVarP(&cfg.HideThinking, "hide-thinking", "t", cfg.HideThinking, "hide the thinking tokens for the model")
}

// runnerOptions maps output flags onto runner settings.
func (c cliConfig) runnerOptions() runner.Options {
	mode := runner.OutputDisplay
	switch {
	case c.Silent:
		mode = runner.OutputSilent
	case c.Stream:
		mode = runner.OutputStream
	}
	return runner.Options{
		Seed:         c.Seed,
		MaxTokens:    c.MaxTokens,
		Output:       mode,
		HideThinking: c.HideThinking,
	}
}

// saveModeFlag is a pflag.Value restricted to the output modes.
type saveModeFlag output.Mode

func (f *saveModeFlag) String() string {
	if f == nil || *f == "" {
		return string(output.ModeNone)
	}
	return string(*f)
}

func (f *saveModeFlag) Set(value string) error {
	m, err := output.ParseMode(value)
	if err != nil {
		return err
	}
	*f = saveModeFlag(m)
	return nil
}

func (f *saveModeFlag) Type() string {
	return "mode"
}

func (f saveModeFlag) mode() output.Mode {
	return output.Mode(f)
}

// normalizeSaveArgs joins "--save <mode>" into "--save=<mode>". pflag only
// binds an optional value written with "=", so a bare mode would otherwise
// be taken as a positional argument.
func normalizeSaveArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		if arg == "--save" && i+1 < len(args) {
			if _, err := output.ParseMode(args[i+1]); err == nil {
				out = append(out, "--save="+args[i+1])
				i++
				continue
			}
		}
		out = append(out, arg)
	}
	return out
}
