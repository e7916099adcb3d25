package main

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Editor opens a local copy for editing without waiting for it to close
type Editor interface {
	Open(path string) error
}

// commandEditor starts a configured program with the file as last argument.
// The command may carry its own arguments, e.g. "code --wait".
type commandEditor struct {
	command string
	log     zerolog.Logger
}

func newCommandEditor(command string, log zerolog.Logger) *commandEditor {
	return &commandEditor{
		command: command,
		log:     log.With().Str("component", "editor").Logger(),
	}
}

func (e *commandEditor) Open(path string) error {
	fields := strings.Fields(e.command)
	if len(fields) == 0 {
		return errors.New("no editor configured")
	}

	cmd := exec.Command(fields[0], append(fields[1:], path)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start editor %s: %w", fields[0], err)
	}

	e.log.Debug().Str("path", path).Int("pid", cmd.Process.Pid).Msg("Editor started")
	go func() {
		if err := cmd.Wait(); err != nil {
			e.log.Debug().Err(err).Str("path", path).Msg("Editor exited with error")
		}
	}()
	return nil
}
