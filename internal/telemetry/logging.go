package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds a JSON logger that stamps every record with the active trace and span ids.
func NewLogger(w io.Writer, level slog.Level, attrs ...slog.Attr) *slog.Logger {
	var handler slog.Handler = &traceHandler{
		baseHandler: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}),
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}
	return slog.New(handler)
}

// ParseLevel maps LOG_LEVEL values onto slog levels.
func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}

type traceHandler struct {
	baseHandler slog.Handler
	groups      []string
	attrs       []slog.Attr
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.baseHandler.Enabled(ctx, level)
}

// Handle applies trace attributes before replaying groups so trace_id and span_id
// always land at the root of the record.
func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := h.baseHandler

	var traceAttrs []slog.Attr
	traceID, spanID := CorrelationIDs(ctx)
	if traceID != "" {
		traceAttrs = append(traceAttrs, slog.String("trace_id", traceID))
	}
	if spanID != "" {
		traceAttrs = append(traceAttrs, slog.String("span_id", spanID))
	}
	if len(traceAttrs) > 0 {
		handler = handler.WithAttrs(traceAttrs)
	}

	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}

	for _, group := range h.groups {
		handler = handler.WithGroup(group)
	}

	return handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{
		baseHandler: h.baseHandler,
		groups:      h.groups,
		attrs:       append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &traceHandler{
		baseHandler: h.baseHandler,
		groups:      append(append([]string{}, h.groups...), name),
		attrs:       h.attrs,
	}
}
