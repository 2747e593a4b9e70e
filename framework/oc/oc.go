// Package oc wraps the OpenShift command line client for diagnostics that
// are easier to take with the CLI than through the API.
package oc

import (
	"context"
	"fmt"
	"strings"
)

// DefaultBinary is the CLI invoked when none is configured
const DefaultBinary = "oc"

// Runner executes whitespace separated commands
type Runner interface {
	Run(ctx context.Context, command string, consume func(line string)) error
	RunToTempFile(ctx context.Context, command string) (string, error)
}

// CLI runs oc against one namespace
type CLI struct {
	runner     Runner
	binary     string
	namespace  string
	kubeconfig string
}

// Option configures a CLI
type Option func(*CLI)

// WithBinary overrides the oc binary, e.g. kubectl
func WithBinary(binary string) Option {
	return func(c *CLI) {
		c.binary = binary
	}
}

// WithKubeconfig passes --kubeconfig to every invocation
func WithKubeconfig(path string) Option {
	return func(c *CLI) {
		c.kubeconfig = path
	}
}

// New creates a CLI bound to namespace
func New(runner Runner, namespace string, opts ...Option) *CLI {
	c := &CLI{runner: runner, binary: DefaultBinary, namespace: namespace}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CLI) command(args ...string) string {
	parts := []string{c.binary}
	if c.kubeconfig != "" {
		parts = append(parts, "--kubeconfig", c.kubeconfig)
	}
	if c.namespace != "" {
		parts = append(parts, "-n", c.namespace)
	}
	return strings.Join(append(parts, args...), " ")
}

// Output runs oc with args and returns its output lines
func (c *CLI) Output(ctx context.Context, args ...string) ([]string, error) {
	var lines []string
	err := c.runner.Run(ctx, c.command(args...), func(line string) {
		lines = append(lines, line)
	})
	return lines, err
}

// Version returns the first line of oc version --client
func (c *CLI) Version(ctx context.Context) (string, error) {
	lines, err := c.Output(ctx, "version", "--client")
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("%s version printed nothing", c.binary)
	}
	return strings.TrimSpace(lines[0]), nil
}

// GetYAML writes the YAML of one resource to a temporary file and returns its path
func (c *CLI) GetYAML(ctx context.Context, kind, name string) (string, error) {
	return c.runner.RunToTempFile(ctx, c.command("get", kind, name, "-o", "yaml"))
}

// DumpAll writes every workload, route and event of the namespace to a
// temporary YAML file and returns its path.
func (c *CLI) DumpAll(ctx context.Context) (string, error) {
	return c.runner.RunToTempFile(ctx, c.command("get", "all,routes,events", "-o", "yaml"))
}
