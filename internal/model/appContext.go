package model

import "context"

type contextKey string

const (
	ContextDispatchID contextKey = "dispatchID"
)

// WithDispatchID tags ctx with the identifier of the dispatch in flight.
func WithDispatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextDispatchID, id)
}

// DispatchIDFrom returns the dispatch identifier stored in ctx, if any.
func DispatchIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ContextDispatchID).(string)
	return id
}
