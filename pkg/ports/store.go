package ports

import (
	"context"

	"github.com/aretw0/statekit/pkg/domain"
)

// ActionStore is the type-erased view of a store. *store.Store[S] implements it for any S.
type ActionStore interface {
	Actions() []string
	Lookup(name string, available ...string) domain.Lookup
	Dispatch(ctx context.Context, name string, payload any, available ...string) error
	Encode(ctx context.Context) ([]byte, error)
	Subscribe(fn domain.Subscriber) func()
}
