package channels

import (
	"context"
	"os"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

// Spooler hands the job to the OS print queue. Success only means the
// queue accepted the job: paper-out, offline printers and driver faults
// happen after acceptance and are not seen here.
type Spooler struct {
	link
	printer  string
	platform Platform
}

func NewSpooler(name, printer string, platform Platform, timeout time.Duration) *Spooler {
	if platform == nil {
		platform = DefaultPlatform()
	}
	return &Spooler{link: link{name: name, timeout: timeout}, printer: printer, platform: platform}
}

func (s *Spooler) Kind() model.ChannelKind { return model.ChannelSpooler }
func (s *Spooler) Input() Input            { return InputPayload }

func (s *Spooler) Send(ctx context.Context, job Job) error {
	path, err := writeJobFile(job.Payload.Bytes())
	if err != nil {
		return fail(s.name, "", err)
	}
	defer os.Remove(path)

	return runCommand(ctx, s.name, s.platform.SpoolCommand(ctx, s.printer, path))
}
