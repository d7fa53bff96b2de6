// Package reqctx carries per-request correlation data through context.Context
// so that logging never depends on shared mutable state.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

type RequestData struct {
	RequestID string
	UserID    string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// NewRequestID returns a fresh random correlation id.
func NewRequestID() string {
	return uuid.NewString()
}

// LogFields returns the request's correlation fields as zap-style key/value
// pairs, or nil when the context carries none.
func LogFields(ctx context.Context) []interface{} {
	rd := GetRequestData(ctx)
	if rd == nil {
		return nil
	}
	fields := make([]interface{}, 0, 4)
	if rd.RequestID != "" {
		fields = append(fields, "request_id", rd.RequestID)
	}
	if rd.UserID != "" {
		fields = append(fields, "user_id", rd.UserID)
	}
	return fields
}
