package store

import (
	"context"

	"github.com/aretw0/statekit/pkg/domain"
)

// ActionName returns the name of the action whose critical section produced ctx.
// Subscribers use it to tell which action emitted a delta.
func ActionName(ctx context.Context) string {
	return domain.ActionFromContext(ctx)
}

type criticalKey struct{}

// critical is the chain of stores whose critical section a context is running in.
type critical struct {
	owner  any
	parent *critical
}

func holds(ctx context.Context, owner any) bool {
	c, _ := ctx.Value(criticalKey{}).(*critical)
	for ; c != nil; c = c.parent {
		if c.owner == owner {
			return true
		}
	}
	return false
}

func enter(ctx context.Context, owner any) context.Context {
	parent, _ := ctx.Value(criticalKey{}).(*critical)
	return context.WithValue(ctx, criticalKey{}, &critical{owner: owner, parent: parent})
}
