// Package api exposes the ticket service over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/escpos"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/layout"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/services"
)

// maxBodyBytes caps a print request body.
const maxBodyBytes = 1 << 20

// Imager renders a ticket as a PNG image.
type Imager interface {
	PNG(ctx context.Context, ticket layout.Ticket) ([]byte, error)
}

type Handler struct {
	svc     *services.TicketService
	encoder escpos.Encoder
	imager  Imager
	logger  *slog.Logger
	version string
}

// NewHandler wires the HTTP boundary. imager may be nil, in which case PNG
// previews answer 503.
func NewHandler(svc *services.TicketService, encoder escpos.Encoder, imager Imager, version string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, encoder: encoder, imager: imager, logger: logger, version: version}
}

// NewRouter returns the complete HTTP handler with middleware.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/print-ticket", h.PrintTicket)
		r.Post("/tickets/preview", h.PreviewTicket)
		r.Get("/channels", h.ListChannels)
		r.Get("/health", h.Health)
	})
}

type errorResponse struct {
	Success  bool                 `json:"success"`
	Message  string               `json:"message"`
	Problems []model.FieldProblem `json:"problems,omitempty"`
}

func (h *Handler) PrintTicket(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.PrintTicket(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

// PreviewTicket renders the ticket without printing it. The format query
// parameter selects text (default), escpos, png or raster.
func (h *Handler) PreviewTicket(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	ticket, err := h.svc.Preview(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, ticket.Text())

	case "escpos":
		payload, err := h.encoder.Encode(ticket)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(payload.Bytes())

	case "png":
		if h.imager == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "image previews are not available on this station"})
			return
		}
		data, err := h.imager.PNG(r.Context(), ticket)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(data)

	case "raster":
		// Image-mode printers get the PNG as a GS v 0 raster job.
		if h.imager == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "image previews are not available on this station"})
			return
		}
		data, err := h.imager.PNG(r.Context(), ticket)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			h.writeError(w, r, fmt.Errorf("decode preview image: %w", err))
			return
		}
		payload, err := h.encoder.EncodeImage(img, escpos.DefaultRasterDots)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(payload.Bytes())

	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: fmt.Sprintf("unknown format %q", format)})
	}
}

type channelInfo struct {
	Name  string            `json:"name"`
	Kind  model.ChannelKind `json:"kind"`
	Input string            `json:"input"`
}

func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	chain := h.svc.Channels()
	out := make([]channelInfo, 0, len(chain))
	for _, d := range chain {
		out = append(out, channelInfo{Name: d.Name(), Kind: d.Kind(), Input: d.Input().String()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  h.version,
		"channels": len(h.svc.Channels()),
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (model.PrintRequest, bool) {
	var req model.PrintRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: fmt.Sprintf("invalid JSON body: %v", err)})
		return req, false
	}
	return req, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: verr.Error(), Problems: verr.Problems})
		return
	}
	h.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"elapsed", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
