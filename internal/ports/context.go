package ports

import "context"

// Caller is the identity the transport layer resolved for a request. The
// services only forward it to the access gate; they never interpret it.
type Caller struct {
	Subject      string
	Capabilities []string
}

type contextKey string

const callerContextKey contextKey = "caller"

// WithCaller stores the resolved caller in the request context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext retrieves the caller, or an anonymous zero value when
// the request never passed the gate middleware.
func CallerFromContext(ctx context.Context) Caller {
	caller, ok := ctx.Value(callerContextKey).(Caller)
	if !ok {
		return Caller{}
	}
	return caller
}
