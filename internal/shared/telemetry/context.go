package telemetry

import "context"

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID tags ctx so work started by a request, including scheduled
// ingestion steps, logs under the same request_id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Fields returns a copy of fields with request_id added when ctx carries one.
// The copy has room for extra capacity entries so callers can add an error.
func Fields(ctx context.Context, fields map[string]any, capacity int) map[string]any {
	out := make(map[string]any, len(fields)+capacity+1)
	for k, v := range fields {
		out[k] = v
	}
	if id := RequestIDFromContext(ctx); id != "" {
		out["request_id"] = id
	}
	return out
}
