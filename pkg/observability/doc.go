/*
Package observability turns store lifecycle events into metrics and logs.

Both Metrics and LogHooks return a domain.LifecycleHooks value, so they plug into
any store through store.WithLifecycleHooks and can be combined freely:

	m := observability.NewMetrics(prometheus.DefaultRegisterer)
	s, err := store.New(state,
		store.WithLifecycleHooks(m.Hooks()),
		store.WithLifecycleHooks(observability.LogHooks(logger)),
	)

Hooks run inside the store's critical section, so they only record and return.
*/
package observability
