package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/KilimcininKorOglu/ldapc/internal/ldap"
	"github.com/KilimcininKorOglu/ldapc/internal/ldaptest"
)

func recordSpans(t *testing.T) (*tracetest.SpanRecorder, Option) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, WithTracer(tp.Tracer("test"))
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestSpanPerOperation(t *testing.T) {
	sr, opt := recordSpans(t)
	srv, conn := newTestConn(t, opt)
	srv.Handle(ldap.ApplicationSearchRequest, replySearchDoneAfter(0))

	_, err := conn.Search(searchRequest()).Execute(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(sr.Ended()) == 1 }, time.Second, 5*time.Millisecond)
	span := sr.Ended()[0]
	assert.Equal(t, "ldap.SearchRequest", span.Name())
	attrs := spanAttrs(span)
	assert.Equal(t, "SearchRequest", attrs["ldap.operation"].AsString())
	assert.Equal(t, int64(1), attrs["ldap.message_id"].AsInt64())
	assert.Equal(t, "success", attrs["ldap.result_code"].AsString())
	assert.Equal(t, conn.ID(), attrs["ldap.conn_id"].AsString())
	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestSpanRecordsFailure(t *testing.T) {
	sr, opt := recordSpans(t)
	srv, conn := newTestConn(t, opt)
	srv.Handle(ldap.ApplicationSearchRequest, func(r *ldaptest.Request) {})

	h := conn.Search(searchRequest())
	h.SetTimeout(20 * time.Millisecond)
	_, err := h.Execute(context.Background())
	require.ErrorIs(t, err, ErrTimeout)

	require.Eventually(t, func() bool { return len(sr.Ended()) == 1 }, time.Second, 5*time.Millisecond)
	span := sr.Ended()[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "timeout", span.Status().Description)
	require.NotEmpty(t, span.Events())
	assert.Equal(t, "exception", span.Events()[0].Name)
}
