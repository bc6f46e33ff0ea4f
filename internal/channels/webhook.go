package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

// Webhook hands the order to a remote automation endpoint. Nothing is
// printed locally; any 2xx status counts as accepted.
type Webhook struct {
	link
	url     string
	headers map[string]string
	client  *http.Client
}

func NewWebhook(name, url string, headers map[string]string, client *http.Client, timeout time.Duration) *Webhook {
	if client == nil {
		client = &http.Client{}
	}
	return &Webhook{link: link{name: name, timeout: timeout}, url: url, headers: headers, client: client}
}

func (w *Webhook) Kind() model.ChannelKind { return model.ChannelWebhook }
func (w *Webhook) Input() Input            { return InputOrder }

func (w *Webhook) Send(ctx context.Context, job Job) error {
	body, err := json.Marshal(model.NewWebhookBody(job.Order, job.CreatedAt))
	if err != nil {
		return rejected(w.name, "marshal order: "+err.Error())
	}

	respBody, status, err := postJSON(ctx, w.client, w.url, w.headers, body)
	if err != nil {
		return fail(w.name, "POST "+w.url, err)
	}
	if status < 200 || status > 299 {
		return rejected(w.name, fmt.Sprintf("HTTP %d: %s", status, snippet(respBody)))
	}
	return nil
}
