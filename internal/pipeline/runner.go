package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner abstracts command execution for testability.
type Runner interface {
	Run(ctx context.Context, commands []Command) error
}

type commandRunner struct{}

// Run executes a command chain, wiring stdout of each process into stdin
// of the next. Stderr is captured per process and surfaced on failure.
func (commandRunner) Run(ctx context.Context, commands []Command) error {
	if len(commands) == 0 {
		return errors.New("empty command chain")
	}

	cmds := make([]*exec.Cmd, len(commands))
	stderrs := make([]bytes.Buffer, len(commands))
	for i, command := range commands {
		cmd := exec.CommandContext(ctx, command.Binary, command.Args...)
		cmd.Stderr = &stderrs[i]
		cmds[i] = cmd
	}

	for i := 1; i < len(cmds); i++ {
		pipe, err := cmds[i-1].StdoutPipe()
		if err != nil {
			return fmt.Errorf("connect %s to %s: %w", commands[i-1].Binary, commands[i].Binary, err)
		}
		cmds[i].Stdin = pipe
	}

	for i, cmd := range cmds {
		if err := cmd.Start(); err != nil {
			// Close the read ends the unstarted commands would have
			// consumed so the started producers hit a broken pipe, then
			// reap them; otherwise they linger unwaited.
			for j := i; j < len(cmds); j++ {
				if rc, ok := cmds[j].Stdin.(io.ReadCloser); ok && rc != nil {
					_ = rc.Close()
				}
			}
			for j := i - 1; j >= 0; j-- {
				_ = cmds[j].Wait()
			}
			return commandError(commands[i], err, stderrs[i].Bytes())
		}
	}

	// Wait in reverse so downstream consumers drain their pipes before
	// upstream producers are reaped.
	var firstErr error
	for i := len(cmds) - 1; i >= 0; i-- {
		if err := cmds[i].Wait(); err != nil && firstErr == nil {
			firstErr = commandError(commands[i], err, stderrs[i].Bytes())
		}
	}
	return firstErr
}

func commandError(command Command, err error, stderr []byte) error {
	detail := strings.TrimSpace(string(stderr))
	if detail == "" {
		return fmt.Errorf("%s: %w", command.Binary, err)
	}
	if len(detail) > 2048 {
		detail = detail[len(detail)-2048:]
	}
	return fmt.Errorf("%s: %w: %s", command.Binary, err, detail)
}
