package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/escpos"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

func testJob(t *testing.T) Job {
	t.Helper()
	item, err := model.NewLineItem(2, "Hamburguesa", decimal.RequireFromString("8.00"))
	if err != nil {
		t.Fatal(err)
	}
	order, err := model.NewOrder([]model.LineItem{item}, "5", "Lucia", "Casa Pepe")
	if err != nil {
		t.Fatal(err)
	}
	return Job{
		ID:        uuid.New(),
		Order:     order,
		Payload:   escpos.NewPayload([]byte("\x1b@hello\n")),
		CreatedAt: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}
}

// closedAddr returns an address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func wantKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error %v is not a *channels.Error", err)
	}
	if cerr.Kind != kind {
		t.Fatalf("kind = %s, want %s (%v)", cerr.Kind, kind, err)
	}
}

func TestRawPortTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		b, _ := io.ReadAll(conn)
		received <- b
	}()

	job := testJob(t)
	r := NewRawPort("raw", "tcp://"+ln.Addr().String(), nil, time.Second)
	r.settle = 0
	if err := r.Send(context.Background(), job); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(job.Payload.Bytes()) {
			t.Errorf("printer received %q, want %q", got, job.Payload.Bytes())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("printer received nothing")
	}
}

func TestRawPortTCPRefused(t *testing.T) {
	r := NewRawPort("raw", closedAddr(t), nil, time.Second)
	err := r.Send(context.Background(), testJob(t))
	wantKind(t, err, KindUnavailable)
}

func TestTCPAddress(t *testing.T) {
	tests := []struct {
		port   string
		want   string
		wantOK bool
	}{
		{"tcp://192.168.1.50:9100", "192.168.1.50:9100", true},
		{"tcp://192.168.1.50", "192.168.1.50:9100", true},
		{"printer.local:9100", "printer.local:9100", true},
		{"/dev/usb/lp0", "", false},
		{"USB001", "", false},
		{`\\localhost\POS80`, "", false},
		{"LPT1:", "", false},
	}
	for _, tt := range tests {
		got, ok := tcpAddress(tt.port)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("tcpAddress(%q) = %q, %v; want %q, %v", tt.port, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRelay(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		delay    time.Duration
		wantKind ErrorKind
	}{
		{name: "cleanJSON", status: 200, body: `{"success":true,"message":"printed"}`},
		{name: "bannerPrefix", status: 200, body: "Print agent v2 {ready}\n" + `{"success":true,"message":"ok"}` + "\n"},
		{name: "agentFailure", status: 200, body: `{"success":false,"message":"printer offline"}`, wantKind: KindRejected},
		{name: "noJSON", status: 200, body: "OK printed", wantKind: KindResponseParse},
		{name: "badShape", status: 200, body: `{"success":"maybe"}`, wantKind: KindResponseParse},
		{name: "serverError", status: 500, body: "boom", wantKind: KindRejected},
		{name: "slowAgent", status: 200, body: `{"success":true}`, delay: 500 * time.Millisecond, wantKind: KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.PrintRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("decode relay body: %v", err)
				}
				if tt.delay > 0 {
					select {
					case <-time.After(tt.delay):
					case <-r.Context().Done():
					}
				}
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			relay := NewRelay("relay", srv.URL, map[string]string{"X-Api-Key": "k"}, srv.Client(), time.Second)
			err := relay.Send(ctx, testJob(t))
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("Send() error = %v", err)
				}
				if string(got.TableNumber) != "5" || len(got.Items) != 1 || got.Items[0].ProductName != "Hamburguesa" {
					t.Errorf("relay received %+v", got)
				}
				return
			}
			wantKind(t, err, tt.wantKind)
		})
	}
}

func TestRelayUnavailable(t *testing.T) {
	relay := NewRelay("relay", "http://"+closedAddr(t)+"/print", nil, nil, time.Second)
	err := relay.Send(context.Background(), testJob(t))
	wantKind(t, err, KindUnavailable)
}

func TestRelayTimeoutIsBounded(t *testing.T) {
	if got := NewRelay("relay", "http://x", nil, nil, time.Minute).Timeout(); got != model.MaxRelayTimeout {
		t.Errorf("Timeout() = %s, want %s", got, model.MaxRelayTimeout)
	}
	if got := NewRelay("relay", "http://x", nil, nil, 0).Timeout(); got != model.MaxRelayTimeout {
		t.Errorf("Timeout() = %s, want %s", got, model.MaxRelayTimeout)
	}
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{`banner text {"a":{"b":2}} trailer`, `{"a":{"b":2}}`, true},
		{`{"msg":"brace } inside"}`, `{"msg":"brace } inside"}`, true},
		{`{"msg":"quote \" and }"}`, `{"msg":"quote \" and }"}`, true},
		{`{not json} {"ok":true}`, `{"ok":true}`, true},
		{`{"a":1`, "", false},
		{`no braces here`, "", false},
		{`{x} {y} {"ok":true}`, `{"ok":true}`, true},
	}
	for _, tt := range tests {
		got, ok := firstJSONObject([]byte(tt.in))
		if string(got) != tt.want || ok != tt.wantOK {
			t.Errorf("firstJSONObject(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFirstJSONObjectUnbalancedReply(t *testing.T) {
	for _, body := range [][]byte{
		bytes.Repeat([]byte("{"), maxResponseBytes),
		append(bytes.Repeat([]byte("{"), maxResponseBytes/2), bytes.Repeat([]byte("x}"), maxResponseBytes/4)...),
	} {
		start := time.Now()
		if _, ok := firstJSONObject(body); ok {
			t.Error("found an object in an unbalanced reply")
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("scanning %d bytes took %s", len(body), elapsed)
		}
	}
}

func TestWebhook(t *testing.T) {
	var body model.WebhookBody
	var auth, dispatchID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		dispatchID = r.Header.Get("X-Dispatch-Id")
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	job := testJob(t)
	hook := NewWebhook("hook", srv.URL, map[string]string{"Authorization": "Bearer t"}, srv.Client(), time.Second)
	ctx := model.WithDispatchID(context.Background(), job.ID.String())
	if err := hook.Send(ctx, job); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if auth != "Bearer t" {
		t.Errorf("Authorization = %q", auth)
	}
	if dispatchID != job.ID.String() {
		t.Errorf("X-Dispatch-Id = %q, want %s", dispatchID, job.ID)
	}
	if body.Total != "16.00" || body.RestaurantName != "Casa Pepe" || body.CustomerName != "Lucia" {
		t.Errorf("webhook body = %+v", body)
	}
	if !body.Timestamp.Equal(job.CreatedAt) {
		t.Errorf("timestamp = %s, want %s", body.Timestamp, job.CreatedAt)
	}
}

func TestWebhookRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown workflow", http.StatusNotFound)
	}))
	defer srv.Close()

	hook := NewWebhook("hook", srv.URL, nil, srv.Client(), time.Second)
	wantKind(t, hook.Send(context.Background(), testJob(t)), KindRejected)
}

func TestNATSUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n := NewNATS("kitchen", "nats://"+closedAddr(t), "tickets.print", time.Second)
	wantKind(t, n.Send(ctx, testJob(t)), KindUnavailable)
}

func TestBuild(t *testing.T) {
	cfgs := []model.ChannelConfig{
		{Name: "relay", Kind: model.ChannelRelay, URL: "http://127.0.0.1:5001/print"},
		{Name: "spooler", Kind: model.ChannelSpooler, Printer: "POS-80"},
		{Name: "raw", Kind: model.ChannelRawPort, Port: "tcp://10.0.0.2:9100"},
		{Name: "hook", Kind: model.ChannelWebhook, URL: "https://hooks.example.com/print"},
		{Name: "kitchen", Kind: model.ChannelNATS, URL: "nats://127.0.0.1:4222", Subject: "tickets"},
	}
	drivers, err := Build(cfgs, nil, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(drivers) != len(cfgs) {
		t.Fatalf("Build() returned %d drivers, want %d", len(drivers), len(cfgs))
	}
	for i, d := range drivers {
		if d.Name() != cfgs[i].Name || d.Kind() != cfgs[i].Kind {
			t.Errorf("driver %d = %s/%s, want %s/%s", i, d.Name(), d.Kind(), cfgs[i].Name, cfgs[i].Kind)
		}
	}
	if drivers[0].Input() != InputOrder || drivers[1].Input() != InputPayload {
		t.Error("unexpected driver inputs")
	}

	if _, err := Build([]model.ChannelConfig{{Name: "x", Kind: model.ChannelSpooler}}, nil, nil); err == nil {
		t.Error("Build() accepted a spooler without printer")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{context.DeadlineExceeded, KindTimeout},
		{fmt.Errorf("dial: %w", context.Canceled), KindUnavailable},
		{fmt.Errorf("dial: %w", &net.DNSError{Err: "no such host", Name: "printer"}), KindUnavailable},
		{errors.New("printer said no"), KindRejected},
		{&Error{Kind: KindResponseParse}, KindResponseParse},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
