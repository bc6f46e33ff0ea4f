// Package dispatch walks a chain of channels until one of them accepts the
// ticket.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/channels"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/escpos"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/layout"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

// DefaultTimeout bounds an attempt when neither the channel nor the router
// configuration sets one.
const DefaultTimeout = 15 * time.Second

// Attempt records one driver invocation.
type Attempt struct {
	Channel   string
	Kind      model.ChannelKind
	Success   bool
	ErrorKind channels.ErrorKind
	Err       error
	Elapsed   time.Duration
}

// Result is the outcome of one dispatch. Once a channel succeeds no other
// channel is tried, so a successful Result always ends with that attempt.
type Result struct {
	ID       uuid.UUID
	Attempts []Attempt
	Success  bool
	// Channel is the name of the channel that accepted the job.
	Channel string
	// Err is set when the caller's context ended the chain early.
	Err error
}

type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
	Now     func() time.Time
}

type Router struct {
	engine  layout.Engine
	encoder escpos.Encoder
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewRouter(engine layout.Engine, encoder escpos.Encoder, opts Options) *Router {
	r := &Router{
		engine:  engine,
		encoder: encoder,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// timeouter is implemented by drivers with their own attempt budget.
type timeouter interface {
	Timeout() time.Duration
}

// Dispatch tries the channels of chain in order and stops at the first one
// that accepts the job. Channels are never retried; every call is a new
// dispatch with its own ID, even for identical orders.
func (r *Router) Dispatch(ctx context.Context, order model.Order, chain []channels.Driver) Result {
	res := Result{ID: uuid.New()}
	ctx = model.WithDispatchID(ctx, res.ID.String())
	log := r.logger.With("dispatch_id", res.ID.String())

	job := channels.Job{ID: res.ID, Order: order, CreatedAt: r.now()}
	var (
		encoded   bool
		encodeErr error
	)

	for _, driver := range chain {
		if err := ctx.Err(); err != nil {
			res.Err = err
			log.Warn("dispatch abandoned", "error", err, "attempts", len(res.Attempts))
			return res
		}

		if driver.Input() == channels.InputPayload && !encoded {
			job.Payload, encodeErr = r.payload(order)
			encoded = true
		}

		var attempt Attempt
		if driver.Input() == channels.InputPayload && encodeErr != nil {
			attempt = Attempt{
				Channel:   driver.Name(),
				Kind:      driver.Kind(),
				ErrorKind: channels.KindRejected,
				Err:       encodeErr,
			}
		} else {
			attempt = r.attempt(ctx, driver, job)
		}
		res.Attempts = append(res.Attempts, attempt)

		if attempt.Success {
			res.Success = true
			res.Channel = attempt.Channel
			log.Info("ticket dispatched", "channel", attempt.Channel, "kind", attempt.Kind, "elapsed", attempt.Elapsed)
			return res
		}
		log.Warn("channel failed", "channel", attempt.Channel, "kind", attempt.Kind,
			"error_kind", attempt.ErrorKind, "elapsed", attempt.Elapsed, "error", attempt.Err)
	}

	if len(chain) == 0 {
		log.Error("no channels configured")
	} else {
		log.Error("all channels failed", "attempts", len(res.Attempts))
	}
	return res
}

func (r *Router) payload(order model.Order) (escpos.Payload, error) {
	ticket, err := r.engine.Render(order)
	if err != nil {
		return escpos.Payload{}, fmt.Errorf("render ticket: %w", err)
	}
	p, err := r.encoder.Encode(ticket)
	if err != nil {
		return escpos.Payload{}, fmt.Errorf("encode ticket: %w", err)
	}
	return p, nil
}

// attempt runs one driver under its timeout. Panics are turned into a
// rejected attempt.
func (r *Router) attempt(ctx context.Context, driver channels.Driver, job channels.Job) (a Attempt) {
	a = Attempt{Channel: driver.Name(), Kind: driver.Kind()}

	timeout := r.timeout
	if t, ok := driver.(timeouter); ok && t.Timeout() > 0 {
		timeout = t.Timeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		a.Elapsed = time.Since(start)
		if p := recover(); p != nil {
			a.Success = false
			a.ErrorKind = channels.KindRejected
			a.Err = &channels.Error{Kind: channels.KindRejected, Channel: a.Channel, Detail: fmt.Sprintf("driver panic: %v", p)}
		}
	}()

	err := driver.Send(ctx, job)
	if err == nil {
		a.Success = true
		return a
	}
	a.Err = err
	a.ErrorKind = channels.KindOf(err)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		a.ErrorKind = channels.KindTimeout
	}
	return a
}
