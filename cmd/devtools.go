package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// exitCodeError carries a subprocess exit status out to main
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download module dependencies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGo(cmd.Context(), "mod", "download")
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the test suite",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGo(cmd.Context(), "test", "./...")
	},
}

// runGo runs the go tool with stdio attached; a non-zero exit becomes this process's exit code
func runGo(ctx context.Context, args ...string) error {
	log.Debugf("Running go %v", args)

	c := exec.CommandContext(ctx, "go", args...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	err := c.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &exitCodeError{code: exitErr.ExitCode()}
	}
	if err != nil {
		return fmt.Errorf("failed to run go: %w", err)
	}
	return nil
}
