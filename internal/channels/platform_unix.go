//go:build !windows

package channels

import (
	"context"
	"os/exec"
)

type unixPlatform struct{}

// DefaultPlatform submits through CUPS (lp) and copies with cp, which
// writes straight into device nodes such as /dev/usb/lp0.
func DefaultPlatform() Platform { return unixPlatform{} }

func (unixPlatform) SpoolCommand(ctx context.Context, printer, file string) *exec.Cmd {
	return exec.CommandContext(ctx, "lp", "-d", printer, "-o", "raw", file)
}

func (unixPlatform) CopyCommand(ctx context.Context, port, file string) *exec.Cmd {
	return exec.CommandContext(ctx, "cp", file, port)
}
