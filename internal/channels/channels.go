// Package channels holds the delivery mechanisms a ticket can be sent
// through. Each driver performs one kind of I/O and reports failures as a
// *Error; it never panics outward.
package channels

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/escpos"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

// Input tells the router what a driver consumes.
type Input int

const (
	// InputPayload drivers send the encoded ESC/POS bytes.
	InputPayload Input = iota
	// InputOrder drivers forward the order data and render remotely.
	InputOrder
)

func (i Input) String() string {
	if i == InputOrder {
		return "order"
	}
	return "payload"
}

// Job is what a driver is asked to deliver. Payload is only set for
// InputPayload drivers.
type Job struct {
	ID        uuid.UUID
	Order     model.Order
	Payload   escpos.Payload
	CreatedAt time.Time
}

type Driver interface {
	Name() string
	Kind() model.ChannelKind
	Input() Input
	Send(ctx context.Context, job Job) error
}

// ErrorKind classifies a failed attempt.
type ErrorKind string

const (
	KindUnavailable   ErrorKind = "unavailable"
	KindTimeout       ErrorKind = "timeout"
	KindRejected      ErrorKind = "rejected"
	KindResponseParse ErrorKind = "response_parse"
)

// Error is the failure of one channel attempt.
type Error struct {
	Kind    ErrorKind
	Channel string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("channel %s: %s", e.Channel, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, classifying errors that did not come
// from a driver.
func KindOf(err error) ErrorKind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return classifyKind(err)
}

// fail wraps err as a channel error of the kind it belongs to.
func fail(channel, detail string, err error) *Error {
	return &Error{Kind: classifyKind(err), Channel: channel, Detail: detail, Err: err}
}

func rejected(channel, detail string) *Error {
	return &Error{Kind: KindRejected, Channel: channel, Detail: detail}
}

func classifyKind(err error) ErrorKind {
	var netErr net.Error
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, nats.ErrTimeout):
		return KindTimeout
	case errors.Is(err, context.Canceled),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, exec.ErrNotFound),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, nats.ErrNoServers),
		errors.As(err, &dnsErr):
		return KindUnavailable
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	}
	return KindRejected
}

// link carries the settings every driver shares.
type link struct {
	name    string
	timeout time.Duration
}

func (l link) Name() string { return l.name }

// Timeout is the attempt budget of the channel; zero defers to the router.
func (l link) Timeout() time.Duration { return l.timeout }
