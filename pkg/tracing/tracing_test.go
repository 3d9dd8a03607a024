package tracing

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestInit_EmptyEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "clipdeck"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInjectExtract_CarriesSpanContext(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, err := Init(context.Background(), Config{})
	require.NoError(t, err)

	ctx, span := Start(context.Background(), "publish")
	headers := http.Header{}
	Inject(ctx, propagation.HeaderCarrier(headers))
	span.End()

	assert.NotEmpty(t, headers.Get("traceparent"))

	remote := trace.SpanContextFromContext(Extract(context.Background(), propagation.HeaderCarrier(headers)))
	assert.True(t, remote.IsRemote())
	assert.Equal(t, span.SpanContext().TraceID(), remote.TraceID())

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "publish", recorder.Ended()[0].Name())
}
