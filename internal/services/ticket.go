package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/channels"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/dispatch"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/layout"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

// TicketService is the entry point used by the dashboard and the cloud
// agent. It keeps no state between calls.
type TicketService struct {
	router            *dispatch.Router
	chain             []channels.Driver
	engine            layout.Engine
	defaultRestaurant string
	logger            *slog.Logger
}

func NewTicketService(router *dispatch.Router, chain []channels.Driver, engine layout.Engine, defaultRestaurant string, logger *slog.Logger) *TicketService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TicketService{
		router:            router,
		chain:             chain,
		engine:            engine,
		defaultRestaurant: defaultRestaurant,
		logger:            logger,
	}
}

// Channels returns the configured dispatch chain in priority order.
func (s *TicketService) Channels() []channels.Driver {
	return append([]channels.Driver(nil), s.chain...)
}

// PrintTicket validates req and dispatches it over the chain. A
// *model.ValidationError is returned, and nothing is sent, when the request
// is malformed. Channel failures are reported in the response, not as an
// error.
func (s *TicketService) PrintTicket(ctx context.Context, req model.PrintRequest) (model.PrintResponse, error) {
	order, err := s.order(req)
	if err != nil {
		s.logger.Info("print request rejected", "error", err)
		return model.PrintResponse{}, err
	}

	res := s.router.Dispatch(ctx, order, s.chain)
	return toResponse(order, res), nil
}

// Preview renders req without sending it anywhere.
func (s *TicketService) Preview(req model.PrintRequest) (layout.Ticket, error) {
	order, err := s.order(req)
	if err != nil {
		return layout.Ticket{}, err
	}
	return s.engine.Render(order)
}

func (s *TicketService) order(req model.PrintRequest) (model.Order, error) {
	if req.RestaurantName == "" {
		req.RestaurantName = s.defaultRestaurant
	}
	return req.Order()
}

func toResponse(order model.Order, res dispatch.Result) model.PrintResponse {
	resp := model.PrintResponse{
		Success:    res.Success,
		Method:     res.Channel,
		DispatchID: res.ID.String(),
		Summary: &model.Summary{
			ItemCount: order.ItemCount(),
			Total:     order.Total().StringFixed(2),
		},
		Attempts: make([]model.AttemptReport, 0, len(res.Attempts)),
	}
	for _, a := range res.Attempts {
		report := model.AttemptReport{
			Channel:   a.Channel,
			Kind:      string(a.Kind),
			Success:   a.Success,
			ElapsedMS: a.Elapsed.Milliseconds(),
		}
		if a.Err != nil {
			report.ErrorKind = string(a.ErrorKind)
			report.Error = a.Err.Error()
		}
		resp.Attempts = append(resp.Attempts, report)
	}

	switch {
	case res.Success:
		resp.Message = fmt.Sprintf("ticket sent via %s", res.Channel)
	case res.Err != nil:
		resp.Message = fmt.Sprintf("print aborted: %v", res.Err)
	case len(res.Attempts) == 0:
		resp.Message = "no print channels configured"
	default:
		resp.Message = fmt.Sprintf("all %d print channels failed", len(res.Attempts))
	}
	return resp
}
