package nakama

import (
	"context"
	"database/sql"

	"dragonsea/internal/telemetry"

	"github.com/heroiclabs/nakama-common/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// traced runs an RPC inside a server span named after its id.
func traced(id string, fn rpcFunc) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		ctx, span := telemetry.Tracer().Start(ctx, "rpc "+id,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("rpc.method", id),
				attribute.String("dragonsea.user_id", callerID(ctx)),
			),
		)
		defer span.End()

		out, err := fn(ctx, logger, db, nk, payload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	}
}
