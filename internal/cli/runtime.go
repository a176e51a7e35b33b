package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/statekit/internal/config"
	"github.com/aretw0/statekit/pkg/adapters/memory"
	"github.com/aretw0/statekit/pkg/adapters/redis"
	"github.com/aretw0/statekit/pkg/docstore"
	"github.com/aretw0/statekit/pkg/journal"
	"github.com/aretw0/statekit/pkg/observability"
	"github.com/aretw0/statekit/pkg/ports"
	"github.com/aretw0/statekit/pkg/store"
)

// Runtime is a document store wired with the journal and metrics from a config.
type Runtime struct {
	Store    *store.Store[docstore.Document]
	Journal  ports.Journal
	Registry *prometheus.Registry

	closers []func() error
}

// BuildOptions tune Build.
type BuildOptions struct {
	// Restore starts from the journal's latest snapshot plus the records after it
	// instead of the configured state file, when the journal has any.
	Restore bool
}

// Build creates the runtime described by cfg.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts BuildOptions) (*Runtime, error) {
	rt := &Runtime{}

	j, closeJournal, err := OpenJournal(cfg.Journal)
	if err != nil {
		return nil, err
	}
	rt.Journal = j
	rt.closers = append(rt.closers, closeJournal)

	doc, err := config.LoadDocument(cfg.State)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if opts.Restore && j != nil {
		if doc, err = restore(ctx, j, doc, logger); err != nil {
			rt.Close()
			return nil, err
		}
	}

	storeOpts := []store.Option{
		store.WithLogger(logger),
		store.WithLifecycleHooks(observability.LogHooks(logger)),
	}
	if cfg.Metrics {
		rt.Registry = prometheus.NewRegistry()
		rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		storeOpts = append(storeOpts, store.WithLifecycleHooks(observability.NewMetrics(rt.Registry).Hooks()))
	}

	rt.Store, err = docstore.New(doc, storeOpts...)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if j != nil {
		detach, err := journal.Attach(ctx, rt.Store, j,
			journal.WithSnapshotEvery(cfg.Journal.SnapshotEvery),
			journal.WithLogger(logger),
		)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() error {
			detach()
			return nil
		})
	}
	return rt, nil
}

// MetricsHandler serves the runtime registry, or nil when metrics are disabled.
func (rt *Runtime) MetricsHandler() http.Handler {
	if rt.Registry == nil {
		return nil
	}
	return promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{})
}

// Close detaches the journal and releases its connection.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func restore(ctx context.Context, j ports.Journal, doc docstore.Document, logger *slog.Logger) (docstore.Document, error) {
	snap, records, err := journal.Restore(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("failed to restore from journal: %w", err)
	}
	if len(snap.State) > 0 {
		doc = docstore.Document{}
		if err := json.Unmarshal(snap.State, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %d: %w", snap.Seq, err)
		}
	}
	for _, rec := range records {
		if err := docstore.Apply(doc, rec.Changes); err != nil {
			return nil, fmt.Errorf("failed to replay record %d: %w", rec.Seq, err)
		}
	}
	logger.Info("State restored from journal", "snapshot", snap.Seq, "records", len(records))
	return doc, nil
}

// OpenJournal opens the configured backend wrapped with its middleware.
// It returns a nil journal when no backend is configured.
func OpenJournal(cfg config.JournalConfig) (ports.Journal, func() error, error) {
	noop := func() error { return nil }

	var (
		base    ports.Journal
		closeFn = noop
	)
	switch cfg.Backend {
	case config.BackendNone:
		return nil, noop, nil
	case config.BackendMemory:
		base = memory.NewJournal()
	case config.BackendRedis:
		var opts []redis.Option
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		r := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		base, closeFn = r, r.Close
	default:
		return nil, noop, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}

	var mws []journal.Middleware
	if len(cfg.Redact) > 0 {
		redact, err := journal.NewRedactMiddleware(cfg.Redact)
		if err != nil {
			closeFn()
			return nil, noop, err
		}
		mws = append(mws, redact)
	}
	if cfg.Encryption != nil {
		active, fallback, err := cfg.Encryption.Keys()
		if err != nil {
			closeFn()
			return nil, noop, err
		}
		mws = append(mws, journal.NewEncryptionMiddleware(journal.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return journal.Chain(base, mws...), closeFn, nil
}
