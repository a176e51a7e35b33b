package domain

import "context"

type actionKey struct{}

// WithAction returns a context carrying the name of the action being executed.
func WithAction(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, actionKey{}, name)
}

// ActionFromContext returns the action name stored by WithAction, or "".
func ActionFromContext(ctx context.Context) string {
	name, _ := ctx.Value(actionKey{}).(string)
	return name
}
