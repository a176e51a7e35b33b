package statekit_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aretw0/statekit/pkg/diff"
	"github.com/aretw0/statekit/pkg/docstore"
	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/store"
)

type Profile struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Example shows a synchronous action whose scoped delta reaches a subscriber.
func Example() {
	s := store.MustNew(&Profile{Name: "ada"})
	rename := store.DefineAction(s, "rename", func(p *Profile, name string) (domain.Scope, error) {
		p.Name = name
		return domain.ScopeOf("name"), nil
	})

	s.Subscribe(func(ctx context.Context, d domain.Delta) error {
		for _, c := range d {
			fmt.Printf("%s %s: %v -> %v (by %s)\n", c.Kind, c.Path, c.OldValue, c.NewValue, store.ActionName(ctx))
		}
		return nil
	})

	if err := rename(context.Background(), "grace"); err != nil {
		log.Fatal(err)
	}
	// Output:
	// changed name: ada -> grace (by rename)
}

// Example_async splits an action into a lock-free read phase and a handoff.
func Example_async() {
	s := store.MustNew(&Profile{Name: "grace"})
	score := store.DefineAsyncAction(s, "score",
		func(ctx context.Context, r store.Reader[*Profile], bonus int) (int, error) {
			var name string
			if err := r.Read(ctx, func(p *Profile) error {
				name = p.Name
				return nil
			}); err != nil {
				return 0, err
			}
			if name == "" {
				return 0, errors.New("anonymous profile")
			}
			return len(name)*10 + bonus, nil
		},
		func(p *Profile, v int) (domain.Scope, error) {
			p.Score = v
			return domain.ScopeOf("score"), nil
		},
		nil,
	)

	if err := score(context.Background(), 2); err != nil {
		log.Fatal(err)
	}
	fmt.Println(s.Get().Score)
	// Output:
	// 52
}

// Example_dispatch invokes actions by name with decoded JSON payloads.
func Example_dispatch() {
	s, err := docstore.New(nil)
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	err = s.Dispatch(ctx, "set", map[string]any{"path": "agents.planner.should_act", "value": true})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(s.Actions())

	err = s.Dispatch(ctx, "delete", map[string]any{"path": "agents"}, "set")
	fmt.Println(errors.Is(err, domain.ErrUnavailableAction))

	data, _ := s.Encode(ctx)
	fmt.Println(string(data))
	// Output:
	// [append delete merge set]
	// true
	// {"agents":{"planner":{"should_act":true}}}
}

// Example_diff compares two documents outside of a store.
func Example_diff() {
	before := map[string]any{"a": 1, "b": map[string]any{"c": 2}}
	after := map[string]any{"a": 1, "b": map[string]any{"c": 5}}

	delta, err := diff.Diff(before, after, domain.FullDiff)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(delta.Paths())
	// Output:
	// [b.c]
}
