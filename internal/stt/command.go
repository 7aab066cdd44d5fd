package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

func parseCommand(command string) ([]string, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse stt command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("stt command is empty")
	}
	return args, nil
}

// run executes argv plus extra and returns stdout. A missing binary maps to ErrUnavailable.
func run(ctx context.Context, argv []string, extra ...string) ([]byte, error) {
	args := append(append([]string{}, argv[1:]...), extra...)
	command := exec.CommandContext(ctx, argv[0], args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q not found in PATH", ErrUnavailable, argv[0])
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("stt command failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("stt command failed: %w", err)
	}
	return stdout.Bytes(), nil
}
