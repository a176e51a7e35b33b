/*
Package statekit is a mutation-based, change-detecting state store for applications
composed of autonomous agents.

Callers mutate state in place through named actions. Each action declares the subtrees
it touched (a Scope); the store snapshots the state before the action, diffs only the
declared subtrees afterwards and hands the resulting Delta to subscribers, all under a
single store-wide lock. Actions split into an asynchronous read phase and a synchronous
write handoff get the same guarantees without holding the lock while they wait.

# Packages

  - pkg/store: the Store, actions, async actions and dynamic dispatch.
  - pkg/diff: snapshot cloning and the scoped diff engine.
  - pkg/path: dot path parsing and resolution.
  - pkg/subscription: ordered, failure-isolated subscriber fan-out.
  - pkg/domain: shared types (Scope, Path, Change, Delta), errors and lifecycle events.
  - pkg/agents, pkg/fanout, pkg/docstore: ready-made state models built on the store.
  - pkg/journal, pkg/adapters: persistence of deltas and the HTTP and MCP surfaces.
  - pkg/observability: prometheus metrics and structured logs from lifecycle hooks.

# Usage

	type Profile struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}

	s := store.MustNew(&Profile{Name: "ada"})
	rename := store.DefineAction(s, "rename", func(p *Profile, name string) (domain.Scope, error) {
		p.Name = name
		return domain.ScopeOf("name"), nil
	})

	unsubscribe := s.Subscribe(func(ctx context.Context, d domain.Delta) error {
		log.Println(d.Paths()) // [name]
		return nil
	})
	defer unsubscribe()

	if err := rename(ctx, "grace"); err != nil {
		log.Fatal(err)
	}

The statekit command serves a document store over HTTP or MCP and diffs documents
from the command line.
*/
package statekit
