// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/namewhisk/internal/availability"
	"github.com/ManuGH/namewhisk/internal/bus"
	"github.com/ManuGH/namewhisk/internal/candidates"
	"github.com/ManuGH/namewhisk/internal/log"
	"github.com/ManuGH/namewhisk/internal/metrics"
	"github.com/ManuGH/namewhisk/internal/telemetry"
)

// Publisher is the slice of bus.Conn the request handler needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos bus.QoS) error
}

// RequestHandler turns one REQUEST payload into exactly one RESPONSE
// publication. It reports whether the request succeeded and never fails
// the session.
type RequestHandler interface {
	Handle(ctx context.Context, pub Publisher, topic string, payload []byte) bool
}

// Handler is the production RequestHandler.
type Handler struct {
	generator   candidates.Generator
	suggester   candidates.Suggester
	sanitizer   *candidates.Sanitizer
	checker     availability.Checker
	concurrency int
	tracer      trace.Tracer
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithCheckConcurrency bounds the availability fan-out of one request.
// Zero or less means unbounded.
func WithCheckConcurrency(n int) HandlerOption {
	return func(h *Handler) { h.concurrency = n }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) HandlerOption {
	return func(h *Handler) { h.tracer = t }
}

// NewHandler wires the candidate sources and the availability checker.
// suggester may be nil, in which case only whimsical requests succeed.
func NewHandler(gen candidates.Generator, sug candidates.Suggester, san *candidates.Sanitizer, checker availability.Checker, opts ...HandlerOption) *Handler {
	if san == nil {
		san, _ = candidates.NewSanitizer("")
	}
	h := &Handler{
		generator: gen,
		suggester: sug,
		sanitizer: san,
		checker:   checker,
		tracer:    telemetry.Tracer(telemetry.InstrumentationName + "/session"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var errSuggestDisabled = errors.New("suggestion lookups are disabled")

func (h *Handler) Handle(ctx context.Context, pub Publisher, topic string, payload []byte) bool {
	start := time.Now()
	ctx, span := h.tracer.Start(ctx, "session.request",
		trace.WithAttributes(telemetry.SessionAttributes(log.SessionIDFromContext(ctx), "")...))
	defer span.End()
	logger := log.WithComponentFromContext(ctx, "handler")

	req, err := parseRequest(payload)
	mode := modeLabel(req.Mode)
	if err == nil {
		span.SetAttributes(telemetry.RequestAttributes(req.Mode, req.TLD, req.Limit, req.Offset)...)
		var found []availability.Result
		found, err = h.resolve(ctx, span, req)
		if err == nil {
			body, _ := json.Marshal(Response{Value: found})
			if err = pub.Publish(ctx, topic, body, bus.AtLeastOnce); err != nil {
				err = fmt.Errorf("publish response: %w", err)
			} else {
				logger.Debug().
					Str(log.FieldEvent, "session.response").
					Str(log.FieldMode, mode).
					Int(log.FieldAvailable, len(found)).
					Msg("response published")
			}
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		logger.Warn().Err(err).
			Str(log.FieldEvent, "session.request_failed").
			Str(log.FieldMode, mode).
			Msg("request failed")

		body, _ := json.Marshal(ErrorResponse{Error: err.Error()})
		if perr := pub.Publish(ctx, topic, body, bus.AtLeastOnce); perr != nil {
			logger.Error().Err(perr).
				Str(log.FieldEvent, "session.error_publish_failed").
				Str(log.FieldTopic, topic).
				Msg("failed to publish error response")
		}
	}

	metrics.RecordRequest(mode, err == nil, time.Since(start))
	return err == nil
}

func (h *Handler) resolve(ctx context.Context, span trace.Span, req Request) ([]availability.Result, error) {
	names, err := h.candidates(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.ObserveCandidates(modeLabel(req.Mode), len(names))

	results, err := availability.CheckAll(ctx, h.checker, names, req.TLD, h.concurrency)
	if err != nil {
		return nil, err
	}
	found := availability.FilterAvailable(results)
	span.SetAttributes(telemetry.ResultAttributes(len(names), len(found))...)
	return found, nil
}

func (h *Handler) candidates(ctx context.Context, req Request) ([]string, error) {
	if req.Mode == ModeWhimsical {
		return h.generator.Generate(ctx, candidates.Query{Name: req.Name, Limit: req.Limit, Offset: req.Offset})
	}
	if h.suggester == nil {
		return nil, errSuggestDisabled
	}
	raw, err := h.suggester.Suggest(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return h.sanitizer.Sanitize(raw), nil
}

func parseRequest(payload []byte) (Request, error) {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&req); err != nil {
		return Request{Mode: ModeWhimsical}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Mode == "" {
		req.Mode = ModeWhimsical
	}
	if strings.TrimSpace(req.Name) == "" {
		return req, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	return req, nil
}

// modeLabel bounds the metrics label to the two behaviours.
func modeLabel(mode string) string {
	if mode == "" || mode == ModeWhimsical {
		return ModeWhimsical
	}
	return "suggest"
}

var _ RequestHandler = (*Handler)(nil)
