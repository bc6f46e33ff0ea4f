package channels

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

// NATS publishes the order on a subject watched by a remote kitchen agent.
// The job counts as delivered once the server has acknowledged the flush.
type NATS struct {
	link
	url     string
	subject string
}

func NewNATS(name, url, subject string, timeout time.Duration) *NATS {
	return &NATS{link: link{name: name, timeout: timeout}, url: url, subject: subject}
}

func (n *NATS) Kind() model.ChannelKind { return model.ChannelNATS }
func (n *NATS) Input() Input            { return InputOrder }

func (n *NATS) Send(ctx context.Context, job Job) error {
	body, err := json.Marshal(model.NewWebhookBody(job.Order, job.CreatedAt))
	if err != nil {
		return rejected(n.name, "marshal order: "+err.Error())
	}

	opts := []nats.Option{nats.Name("perfect-menu-tickets"), nats.NoReconnect()}
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			opts = append(opts, nats.Timeout(d))
		}
	}
	conn, err := nats.Connect(n.url, opts...)
	if err != nil {
		return fail(n.name, "connect "+n.url, err)
	}
	defer conn.Close()

	if err := conn.Publish(n.subject, body); err != nil {
		return fail(n.name, "publish "+n.subject, err)
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return fail(n.name, "flush "+n.subject, err)
	}
	return nil
}
