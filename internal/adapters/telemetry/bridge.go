package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/kiln/internal/core/ports"
)

// LogBridge is an sdktrace.SpanProcessor that reports finished target spans
// as debug log lines.
type LogBridge struct {
	log ports.Logger
}

var _ sdktrace.SpanProcessor = (*LogBridge)(nil)

// NewLogBridge returns a LogBridge writing to log.
func NewLogBridge(log ports.Logger) *LogBridge {
	return &LogBridge{log: log}
}

// OnStart does nothing; the reporters announce starts.
func (b *LogBridge) OnStart(_ context.Context, _ sdktrace.ReadWriteSpan) {}

// OnEnd logs the span name, its duration and its outcome attribute.
func (b *LogBridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if !s.SpanContext().IsValid() {
		return
	}

	outcome := "unknown"
	for _, kv := range s.Attributes() {
		if kv.Key == "kiln.outcome" {
			outcome = kv.Value.AsString()
		}
	}

	msg := fmt.Sprintf("span %s: %s in %s", s.Name(), outcome, s.EndTime().Sub(s.StartTime()).Round(time.Millisecond))
	if st := s.Status(); st.Code == codes.Error && st.Description != "" {
		msg += " (" + st.Description + ")"
	}
	b.log.Debug(msg)
}

// ForceFlush does nothing.
func (b *LogBridge) ForceFlush(_ context.Context) error { return nil }

// Shutdown does nothing.
func (b *LogBridge) Shutdown(_ context.Context) error { return nil }
