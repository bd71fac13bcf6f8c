// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
// Tests inject them directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithRequestID(ctx, "req-1")
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey    struct{}
	requestTimeKey  struct{}
	operatorIDKey   struct{}
	deviceSerialKey struct{}
)

// RequestID retrieves the correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// OperatorID retrieves the authenticated operator from the context.
// Empty when the request came from a device rather than an operator.
func OperatorID(ctx context.Context) string {
	if op, ok := ctx.Value(operatorIDKey{}).(string); ok {
		return op
	}
	return ""
}

// WithOperatorID injects an operator identity into the context.
func WithOperatorID(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorIDKey{}, operatorID)
}

// DeviceSerial retrieves the calling device serial from the context.
func DeviceSerial(ctx context.Context) string {
	if serial, ok := ctx.Value(deviceSerialKey{}).(string); ok {
		return serial
	}
	return ""
}

// WithDeviceSerial injects a device serial into the context.
func WithDeviceSerial(ctx context.Context, serial string) context.Context {
	return context.WithValue(ctx, deviceSerialKey{}, serial)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests and for workers that need one consistent time across a batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
