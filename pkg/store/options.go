package store

import (
	"log/slog"

	"github.com/aretw0/statekit/pkg/domain"
)

type options struct {
	logger    *slog.Logger
	hooks     []domain.LifecycleHooks
	validator func(any) error
}

// Option configures a Store.
type Option func(*options)

// WithLogger configures the logger used for action and subscriber diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLifecycleHooks adds observability hooks. It can be passed several times; all hooks fire.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hooks)
	}
}

// WithValidator registers a check run by New against the initial state.
func WithValidator(fn func(any) error) Option {
	return func(o *options) {
		o.validator = fn
	}
}
