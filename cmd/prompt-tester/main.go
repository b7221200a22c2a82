// Package main runs a prompt against every configured model and renders or saves the responses.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	// exitFatal reports configuration and prompt errors.
	exitFatal = -1
)

// main is the program entry point.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute parses args and runs the tester, returning the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	code := exitOK
	cli := defaultCLIConfig()

	cmd := &cobra.Command{
		Use:   "prompt-tester",
		Short: "Dynamic Prompt Tester Tool",
		Long:  "Automated prompt testing with support for any OpenAI-compatible backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code = runTester(cmd.Context(), cli, stdout, stderr)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	bindFlags(cmd.Flags(), &cli)
	cmd.MarkFlagsMutuallyExclusive("stream", "silent")
	cmd.SetArgs(normalizeSaveArgs(args))

	if err := cmd.ExecuteContext(ctx); err != nil {
		return exitUsage
	}
	return code
}
