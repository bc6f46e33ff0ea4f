package channels

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Platform builds the OS commands behind the process based channels.
// DefaultPlatform returns the one for the running OS; tests and other
// targets can supply their own.
type Platform interface {
	// SpoolCommand submits file to the print queue of printer.
	SpoolCommand(ctx context.Context, printer, file string) *exec.Cmd
	// CopyCommand copies file byte for byte to a port or device.
	CopyCommand(ctx context.Context, port, file string) *exec.Cmd
}

// commandWaitDelay bounds how long a killed command may hold its pipes.
const commandWaitDelay = 2 * time.Second

// writeJobFile stores data in a temporary file for command based channels.
// The caller removes the file.
func writeJobFile(data []byte) (string, error) {
	f, err := os.CreateTemp("", "ticket-*.prn")
	if err != nil {
		return "", fmt.Errorf("create job file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write job file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close job file: %w", err)
	}
	return f.Name(), nil
}

// runCommand runs cmd and turns its outcome into a channel error. A non
// zero exit is a rejection carrying the command output.
func runCommand(ctx context.Context, channel string, cmd *exec.Cmd) error {
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = commandWaitDelay

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Kind: classifyKind(ctxErr), Channel: channel, Detail: cmd.Path, Err: ctxErr}
	}
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail := strings.TrimSpace(output.String())
		if detail == "" {
			detail = exitErr.String()
		}
		return rejected(channel, fmt.Sprintf("%s: %s", cmd.Path, detail))
	}
	return fail(channel, "run "+cmd.Path, err)
}
