//go:build windows

package channels

import (
	"context"
	"os/exec"
)

type windowsPlatform struct{}

// DefaultPlatform submits with print.exe and copies in binary mode to a
// port (USB001, LPT1) or a shared printer (\\localhost\POS80).
func DefaultPlatform() Platform { return windowsPlatform{} }

func (windowsPlatform) SpoolCommand(ctx context.Context, printer, file string) *exec.Cmd {
	return exec.CommandContext(ctx, "print", "/D:"+printer, file)
}

func (windowsPlatform) CopyCommand(ctx context.Context, port, file string) *exec.Cmd {
	return exec.CommandContext(ctx, "cmd", "/C", "copy", "/B", file, port)
}
