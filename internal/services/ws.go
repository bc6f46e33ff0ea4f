package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

// --- WebSocket Agent Logic ---

// DefaultReconnectDelay is the pause between two connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// Printer is what the agent needs from the ticket service.
type Printer interface {
	PrintTicket(ctx context.Context, req model.PrintRequest) (model.PrintResponse, error)
}

// Agent keeps a WebSocket connection to the cloud dashboard and prints the
// orders pushed through it.
type Agent struct {
	cfg     model.AgentConfig
	printer Printer
	dialer  *websocket.Dialer
	logger  *slog.Logger
	// Retry is the delay before reconnecting.
	Retry time.Duration
}

func NewAgent(cfg model.AgentConfig, printer Printer, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Agent{
		cfg:     cfg,
		printer: printer,
		dialer:  websocket.DefaultDialer,
		logger:  logger.With("component", "agent"),
		Retry:   DefaultReconnectDelay,
	}
}

// Run connects, serves the session and reconnects after a fixed delay until
// ctx is done. It returns ctx.Err().
func (a *Agent) Run(ctx context.Context) error {
	header := http.Header{}
	header.Add("X-Api-Key", a.cfg.APIKey)

	for {
		a.logger.Info("connecting", "url", a.cfg.URL)
		conn, _, err := a.dialer.DialContext(ctx, a.cfg.URL, header)
		if err != nil {
			a.logger.Warn("connection failed", "error", err, "retry", a.Retry)
		} else {
			a.logger.Info("connected")
			err = a.serve(ctx, conn)
			conn.Close()
			if err != nil && ctx.Err() == nil {
				a.logger.Warn("disconnected", "error", err, "retry", a.Retry)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.Retry):
		}
	}
}

// serve registers the agent and handles messages until the connection
// drops, the server unregisters us or ctx is done.
func (a *Agent) serve(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(model.WSMessage{Type: model.MessageTypeRegister, AgentKey: a.cfg.AgentKey}); err != nil {
		return fmt.Errorf("send register: %w", err)
	}

	for {
		var msg model.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch msg.Type {
		case model.MessageTypeRegistered:
			a.logger.Info("registered with server")

		case model.MessageTypePing:
			if err := conn.WriteJSON(model.WSMessage{Type: model.MessageTypePong, AgentKey: a.cfg.AgentKey}); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}

		case model.MessageTypeNewOrder:
			reply := a.handlePrintJob(ctx, msg.Order)
			if err := conn.WriteJSON(reply); err != nil {
				return fmt.Errorf("send %s: %w", reply.Type, err)
			}

		case model.MessageTypeUnregister:
			a.logger.Info("server requested unregister")
			return nil

		default:
			a.logger.Warn("unknown message type", "type", msg.Type)
		}
	}
}

func (a *Agent) handlePrintJob(ctx context.Context, raw json.RawMessage) model.WSMessage {
	failed := func(id string, err string) model.WSMessage {
		return model.WSMessage{Type: model.MessageTypePrintFailed, AgentKey: a.cfg.AgentKey, DispatchID: id, Error: err}
	}

	var req model.PrintRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		a.logger.Warn("bad print order", "error", err)
		return failed("", fmt.Sprintf("decode order: %v", err))
	}

	resp, err := a.printer.PrintTicket(ctx, req)
	if err != nil {
		a.logger.Warn("print order rejected", "error", err)
		return failed("", err.Error())
	}
	if !resp.Success {
		return failed(resp.DispatchID, resp.Message)
	}
	a.logger.Info("print order done", "dispatch_id", resp.DispatchID, "channel", resp.Method)
	return model.WSMessage{
		Type:       model.MessageTypePrinted,
		AgentKey:   a.cfg.AgentKey,
		DispatchID: resp.DispatchID,
		Method:     resp.Method,
	}
}

// --- API Registration ---

// RegisterAgent announces this station to the cloud API and returns the
// agent key it was assigned.
func RegisterAgent(ctx context.Context, client *http.Client, cfg model.AgentConfig) (string, error) {
	if cfg.APIURL == "" {
		return "", errors.New("agent.apiUrl is not configured")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	body, err := json.Marshal(struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}{Name: cfg.Name, Kind: "ticket"})
	if err != nil {
		return "", err
	}

	apiURL := strings.TrimRight(cfg.APIURL, "/") + "/api/printers"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", cfg.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Data struct {
			AgentKey string `json:"agent_key"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode registration: %w", err)
	}
	if out.Data.AgentKey == "" {
		return "", errors.New("no agent_key found in response")
	}
	return out.Data.AgentKey, nil
}
