package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/statekit/pkg/domain"
)

// LogHooks returns lifecycle hooks that write one structured entry per event.
// Completed actions are logged at Info, everything else at Debug.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActionStart: func(ctx context.Context, e *domain.ActionEvent) {
			logger.DebugContext(ctx, "action_start", "action", e.Action, "async", e.Async, "handoff", e.Handoff)
		},
		OnActionEnd: func(ctx context.Context, e *domain.ActionEvent) {
			attrs := []any{
				"action", e.Action,
				"scope", []string(e.Scope),
				"changes", e.Changes,
				"duration", e.Duration,
			}
			if e.Err != nil {
				logger.InfoContext(ctx, "action_end", append(attrs, "error", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "action_end", attrs...)
		},
		OnNotify: func(ctx context.Context, e *domain.NotifyEvent) {
			logger.DebugContext(ctx, "notify",
				"action", e.Action,
				"subscribers", e.Subscribers,
				"failed", e.Failed,
				"changes", e.Changes,
			)
		},
	}
}
