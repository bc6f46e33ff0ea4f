package channels

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

// DefaultRawPort is the JetDirect port of network thermal printers.
const DefaultRawPort = 9100

// RawPort writes the job straight to the printer. A target of the form
// tcp://host:port or host:port is a socket write; anything else is a local
// port or device copied through the Platform.
type RawPort struct {
	link
	port     string
	platform Platform
	// settle gives network printers time to drain before the socket closes.
	settle time.Duration
}

func NewRawPort(name, port string, platform Platform, timeout time.Duration) *RawPort {
	if platform == nil {
		platform = DefaultPlatform()
	}
	return &RawPort{
		link:     link{name: name, timeout: timeout},
		port:     port,
		platform: platform,
		settle:   500 * time.Millisecond,
	}
}

func (r *RawPort) Kind() model.ChannelKind { return model.ChannelRawPort }
func (r *RawPort) Input() Input            { return InputPayload }

func (r *RawPort) Send(ctx context.Context, job Job) error {
	data := job.Payload.Bytes()
	if addr, ok := tcpAddress(r.port); ok {
		return r.sendTCP(ctx, addr, data)
	}

	path, err := writeJobFile(data)
	if err != nil {
		return fail(r.name, "", err)
	}
	defer os.Remove(path)
	return runCommand(ctx, r.name, r.platform.CopyCommand(ctx, r.port, path))
}

func (r *RawPort) sendTCP(ctx context.Context, addr string, data []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fail(r.name, "connect "+addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	n, err := conn.Write(data)
	if err != nil {
		return fail(r.name, fmt.Sprintf("write %s (%d of %d bytes)", addr, n, len(data)), err)
	}

	if r.settle > 0 {
		select {
		case <-time.After(r.settle):
		case <-ctx.Done():
		}
	}
	return nil
}

// tcpAddress reports whether port names a network printer.
func tcpAddress(port string) (string, bool) {
	if rest, ok := strings.CutPrefix(port, "tcp://"); ok {
		if _, _, err := net.SplitHostPort(rest); err != nil {
			return net.JoinHostPort(rest, strconv.Itoa(DefaultRawPort)), true
		}
		return rest, true
	}
	host, p, err := net.SplitHostPort(port)
	if err != nil || host == "" {
		return "", false
	}
	if _, err := strconv.Atoi(p); err != nil {
		return "", false
	}
	return port, true
}
