// Package system provides the external-process execution boundary for the
// provisioning pipeline. Every stage goes through a Runner so tests can
// substitute a recording fake for apt, systemctl, docker, and friends.
package system

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Options adjust how a single command is executed.
type Options struct {
	Dir    string   // working directory (empty for inherited)
	Env    []string // extra KEY=value entries appended to the process env
	Stream bool     // mirror stdout/stderr to the operator while capturing
}

// Runner executes external commands. Implementations must block until the
// process exits; the pipeline has no mid-stage cancellation beyond ctx.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
	RunWith(ctx context.Context, opts Options, name string, args ...string) (string, error)
}

// ExecRunner runs commands via os/exec. Failures carry the full command
// line, the exit status, and trimmed stderr so the operator can retry by
// hand.
type ExecRunner struct {
	// Stdout receives mirrored output when Options.Stream is set.
	// Defaults to os.Stdout.
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	return r.RunWith(ctx, Options{}, name, args...)
}

func (r ExecRunner) RunWith(ctx context.Context, opts Options, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	if opts.Stream {
		outW := r.Stdout
		if outW == nil {
			outW = os.Stdout
		}
		errW := r.Stderr
		if errW == nil {
			errW = os.Stderr
		}
		cmd.Stdout = io.MultiWriter(&stdout, outW)
		cmd.Stderr = io.MultiWriter(&stderr, errW)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		fullCmd := CommandLine(name, args...)
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return "", fmt.Errorf("command %s failed: %w: %s", fullCmd, err, errMsg)
		}
		return "", fmt.Errorf("command %s failed: %w", fullCmd, err)
	}
	return stdout.String(), nil
}

// CommandLine renders a command and its arguments the way an operator would
// type them, for diagnostics and retry hints.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	for _, part := range append([]string{name}, args...) {
		if strings.ContainsAny(part, " \t'\"") {
			parts = append(parts, fmt.Sprintf("%q", part))
			continue
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

// HasExecutable reports whether name resolves on PATH. Used for
// detect-then-skip probes before mutating package sources.
func HasExecutable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
