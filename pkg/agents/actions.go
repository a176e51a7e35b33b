package agents

import (
	"context"
	"fmt"

	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/store"
)

const (
	ActionUpdateShouldAct = "update_should_act"
	ActionRecordHistory   = "record_history"
)

// ShouldActPayload sets an agent's should_act flag.
type ShouldActPayload struct {
	Agent     string `json:"agent_name"`
	ShouldAct bool   `json:"should_act"`
}

// HistoryPayload appends messages to an agent's history.
type HistoryPayload struct {
	Agent    string    `json:"agent_name"`
	Messages []Message `json:"messages"`
}

// Actions are the bound built-in agent actions.
type Actions struct {
	UpdateShouldAct store.Action[ShouldActPayload]
	RecordHistory   store.Action[HistoryPayload]
}

// Register defines the built-in agent actions on s. field is the path of the agent map
// inside the state and prefixes the scopes the actions report. Agent names are used as
// path segments; stores that accept arbitrary names should install Validate.
func Register[S Holder](s *store.Store[S], field string) Actions {
	scope := func(agent, leaf string) domain.Scope {
		return domain.ScopeOf(field + "." + agent + "." + leaf)
	}

	return Actions{
		UpdateShouldAct: store.DefineAction(s, ActionUpdateShouldAct, func(state S, p ShouldActPayload) (domain.Scope, error) {
			a, err := find(state, p.Agent)
			if err != nil {
				return nil, err
			}
			a.ShouldAct = p.ShouldAct
			return scope(p.Agent, "should_act"), nil
		}),
		RecordHistory: store.DefineAction(s, ActionRecordHistory, func(state S, p HistoryPayload) (domain.Scope, error) {
			a, err := find(state, p.Agent)
			if err != nil {
				return nil, err
			}
			if len(p.Messages) == 0 {
				return domain.NoOp, nil
			}
			a.History = append(a.History, p.Messages...)
			return scope(p.Agent, "history"), nil
		}),
	}
}

func find(h Holder, name string) (*State, error) {
	a, ok := h.AgentStates()[name]
	if !ok || a == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	return a, nil
}

// Dispatch invokes action on behalf of agent, restricted to the tools the agent was granted.
// An agent without tools cannot invoke anything.
func Dispatch[S Holder](ctx context.Context, s *store.Store[S], agent, action string, payload any) error {
	var granted []string
	err := s.Read(ctx, func(state S) error {
		a, err := find(state, agent)
		if err != nil {
			return err
		}
		granted = a.ToolNames()
		return nil
	})
	if err != nil {
		return err
	}
	if len(granted) == 0 {
		return fmt.Errorf("%w: %q for agent %q", domain.ErrUnavailableAction, action, agent)
	}
	return s.Dispatch(ctx, action, payload, granted...)
}
