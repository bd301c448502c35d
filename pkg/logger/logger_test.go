package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	l, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, "upgrade-events", l.ServiceName())
}

func TestWithContext_RequestAndActor(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := FromCore(core, "test")

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, ActorIDKey, "user-9")
	ctx = context.WithValue(ctx, TraceIDKey, "trace-abc")

	l.InfoContext(ctx, "order created", OrderID(12), EventID(3))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "user-9", fields["actor_id"])
	assert.Equal(t, "trace-abc", fields["trace_id"])
	assert.Equal(t, int64(12), fields["order_id"])
	assert.Equal(t, int64(3), fields["event_id"])
	assert.Equal(t, "test", fields["service"])
}

func TestWithContext_PrefersSpanContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := FromCore(core, "test")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = context.WithValue(ctx, TraceIDKey, "ignored")

	l.WithContext(ctx).Info("scan")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, traceID.String(), fields["trace_id"])
	assert.Equal(t, spanID.String(), fields["span_id"])
}

func TestWithContext_Empty(t *testing.T) {
	l := NewNop()
	assert.Same(t, l, l.WithContext(context.Background()))
}

func TestNamedAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromCore(core, "test").Named("checkin").WithFields(zap.String("direction", "check_in"))

	l.Debug("scanned")

	entry := logs.All()[0]
	assert.Equal(t, "checkin", entry.LoggerName)
	assert.Equal(t, "check_in", entry.ContextMap()["direction"])
}

func TestSetGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetGlobal(FromCore(core, "global"))

	Info("hello")
	Warn("careful")

	assert.Equal(t, 2, logs.Len())
}
