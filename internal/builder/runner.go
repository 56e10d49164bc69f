package builder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command is an external program invocation.
type Command struct {
	Dir  string
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandRunner abstracts running external tools so steps can be exercised
// without a TeX installation.
type CommandRunner interface {
	// LookPath reports whether name can be run.
	LookPath(name string) error
	// Run executes cmd and returns its standard output.
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) LookPath(name string) error {
	_, err := exec.LookPath(name)
	return err
}

func (ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	// #nosec G204 - command names come from CLI flags or unsafe custom steps
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// LaTeX engines report problems on stdout, everything else on stderr.
		output := strings.TrimSpace(stderr.String())
		if output == "" {
			output = lastLines(stdout.String(), 20)
		}
		if output != "" {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, output)
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
