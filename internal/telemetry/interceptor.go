package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mattjoyce/cmdgate/internal/command"
)

const instrumentationName = "github.com/mattjoyce/cmdgate/internal/telemetry"

// Interceptor records one span per invocation. The span starts when the
// executor is about to run and ends when the invocation resolves; invocations
// that never reach the executor get a span covering only their resolution.
type Interceptor struct {
	tracer trace.Tracer
	spans  sync.Map // invocation id -> trace.Span
}

// NewInterceptor traces with tp, or the global provider when tp is nil.
func NewInterceptor(tp trace.TracerProvider) *Interceptor {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Interceptor{tracer: tp.Tracer(instrumentationName)}
}

func (i *Interceptor) OnPreCommand(executorType string, n *command.Node, c *command.Context) {
	i.spans.Store(c.InvocationID(), i.start(executorType, n, c))
}

func (i *Interceptor) OnPostCommand(executorType string, n *command.Node, c *command.Context, r command.Result) {
	var span trace.Span
	if v, ok := i.spans.LoadAndDelete(c.InvocationID()); ok {
		span = v.(trace.Span)
	} else {
		span = i.start(executorType, n, c)
	}

	span.SetAttributes(attribute.String("cmdgate.outcome", r.Outcome().String()))
	if r.IsFail() {
		if err := r.Err(); err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, r.Message())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (i *Interceptor) start(executorType string, n *command.Node, c *command.Context) trace.Span {
	_, span := i.tracer.Start(c.Ctx(), "command "+n.Key(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cmdgate.invocation_id", c.InvocationID()),
			attribute.String("cmdgate.command", n.Key()),
			attribute.String("cmdgate.executor", executorType),
			attribute.String("cmdgate.actor", c.Actor().Name()),
			attribute.String("cmdgate.actor_kind", c.Actor().Kind().String()),
		),
	)
	return span
}
