package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/minhyannv/prompt-tester/pkg/clients"
	"github.com/minhyannv/prompt-tester/pkg/config"
	loggerpkg "github.com/minhyannv/prompt-tester/pkg/logger"
	"github.com/minhyannv/prompt-tester/pkg/output"
	"github.com/minhyannv/prompt-tester/pkg/prompt"
	"github.com/minhyannv/prompt-tester/pkg/runner"
)

// runTester loads the config and prompt, then drives every execution.
func runTester(ctx context.Context, cli cliConfig, stdout, stderr io.Writer) int {
	_ = godotenv.Load()

	log := loggerpkg.New(stderr, loggerpkg.Options{Debug: cli.Debug, Timestamps: cli.Debug})

	log.Info("Loading config", map[string]any{"path": cli.ConfigPath})
	cfg, err := config.Load(cli.ConfigPath)
	if err != nil {
		log.Critical(err.Error(), nil)
		return exitFatal
	}
	log.Debug("Raw config", cfg.Raw())

	log.Info("Initializing clients", nil)
	registry := clients.New(cfg.Servers)
	log.Debug("Clients ready", registry.IDs())

	promptPath, err := prompt.Resolve(cli.PromptPath, cfg.Prompt)
	if err != nil {
		log.Critical(err.Error(), nil)
		return exitFatal
	}
	messages, err := prompt.Load(promptPath, log)
	if err != nil {
		log.Critical(err.Error(), nil)
		return exitFatal
	}

	r, err := runner.New(cfg, registry, messages, cli.runnerOptions(),
		runner.WithLogger(log),
		runner.WithStdout(stdout),
		runner.WithSaver(output.Saver{Dir: output.DefaultDir, Mode: cli.Save.mode()}),
	)
	if err != nil {
		log.Critical(err.Error(), nil)
		return exitFatal
	}

	err = r.Run(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, runner.ErrInterrupted):
		_, _ = fmt.Fprintln(stdout)
		log.Info("Keyboard interrupt detected. Cancelling execution.", nil)
		return exitOK
	default:
		log.Error("Run aborted by an unexpected error.", map[string]any{"error": err.Error()})
		return exitFailure
	}
}
