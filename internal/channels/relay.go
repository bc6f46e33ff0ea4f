package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

// maxResponseBytes caps how much of a relay or webhook reply is read.
const maxResponseBytes = 1 << 20

// relayAck is the acknowledgement a print agent answers with.
type relayAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Relay forwards the order to a secondary print agent that renders and
// prints on its own. The agent may print a banner before its JSON answer,
// so the first balanced JSON object of the body is taken as the reply.
type Relay struct {
	link
	url     string
	headers map[string]string
	client  *http.Client
}

func NewRelay(name, url string, headers map[string]string, client *http.Client, timeout time.Duration) *Relay {
	if timeout <= 0 || timeout > model.MaxRelayTimeout {
		timeout = model.MaxRelayTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Relay{link: link{name: name, timeout: timeout}, url: url, headers: headers, client: client}
}

func (r *Relay) Kind() model.ChannelKind { return model.ChannelRelay }
func (r *Relay) Input() Input            { return InputOrder }

func (r *Relay) Send(ctx context.Context, job Job) error {
	body, err := json.Marshal(job.Order.Request())
	if err != nil {
		return rejected(r.name, "marshal order: "+err.Error())
	}

	respBody, status, err := postJSON(ctx, r.client, r.url, r.headers, body)
	if err != nil {
		return fail(r.name, "POST "+r.url, err)
	}
	if status >= 400 {
		return rejected(r.name, fmt.Sprintf("HTTP %d: %s", status, snippet(respBody)))
	}

	obj, ok := firstJSONObject(respBody)
	if !ok {
		return &Error{Kind: KindResponseParse, Channel: r.name, Detail: "no JSON object in reply: " + snippet(respBody)}
	}
	var ack relayAck
	if err := json.Unmarshal(obj, &ack); err != nil {
		return &Error{Kind: KindResponseParse, Channel: r.name, Detail: "decode reply", Err: err}
	}
	if !ack.Success {
		msg := ack.Message
		if msg == "" {
			msg = ack.Error
		}
		if msg == "" {
			msg = "agent reported failure"
		}
		return rejected(r.name, msg)
	}
	return nil
}

// postJSON sends body and returns the (size capped) response body and
// status code.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if id := model.DispatchIDFrom(ctx); id != "" {
		req.Header.Set("X-Dispatch-Id", id)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}

// maxJSONCandidates bounds how many '{' positions firstJSONObject tries, so
// the scan stays linear in the size of the reply.
const maxJSONCandidates = 16

// firstJSONObject returns the first balanced {...} span of data that is
// valid JSON. Braces inside JSON strings are ignored while matching.
func firstJSONObject(data []byte) ([]byte, bool) {
	start := bytes.IndexByte(data, '{')
	for tries := 0; start >= 0 && tries < maxJSONCandidates; tries++ {
		if end, ok := matchBrace(data, start); ok && json.Valid(data[start:end]) {
			return data[start:end], true
		}
		next := bytes.IndexByte(data[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// matchBrace returns the index just past the brace closing data[start].
func matchBrace(data []byte, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(data); i++ {
		c := data[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
