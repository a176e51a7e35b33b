// Package agents provides the per-agent state records a multi-agent application keeps
// inside its store, plus the built-in actions orchestration uses to drive them.
package agents

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrUnknownAgent is returned when an action targets an agent that is not in the state.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrNameMismatch is returned by Validate when a map key differs from the record name.
	ErrNameMismatch = errors.New("agent key does not match agent name")
	// ErrNilAgent is returned by Validate for nil records.
	ErrNilAgent = errors.New("nil agent state")
	// ErrInvalidName is returned by Validate for keys that cannot be used as a path segment.
	ErrInvalidName = errors.New("agent name must be non-empty and free of dots")
)

// Message is one entry of an agent's conversation history.
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Tool describes an action granted to an agent. Parameters holds the payload JSON schema.
type Tool struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// State is the record kept for one agent. Name must match the key it is stored under.
type State struct {
	Name      string    `json:"agent_name" yaml:"agent_name"`
	Active    bool      `json:"active" yaml:"active"`
	ShouldAct bool      `json:"should_act" yaml:"should_act"`
	History   []Message `json:"history" yaml:"history"`
	Tools     []Tool    `json:"tools" yaml:"tools"`
}

// New returns an empty record for name.
func New(name string, tools ...Tool) *State {
	return &State{Name: name, Tools: tools}
}

// HasTool reports whether the agent was granted the named tool.
func (s *State) HasTool(name string) bool {
	return slices.ContainsFunc(s.Tools, func(t Tool) bool { return t.Name == name })
}

// ToolNames lists the granted tool names in grant order.
func (s *State) ToolNames() []string {
	names := make([]string, len(s.Tools))
	for i, t := range s.Tools {
		names[i] = t.Name
	}
	return names
}

// Holder is implemented by application states that carry agent records.
type Holder interface {
	AgentStates() map[string]*State
}

// Validate checks that every agent record is non-nil and stored under its own name.
// Names become path segments in action scopes, so they must be non-empty and free of dots.
// It accepts a Holder or a bare map[string]*State, and ignores anything else,
// so it can be passed directly to store.WithValidator.
func Validate(state any) error {
	var agents map[string]*State
	switch v := state.(type) {
	case Holder:
		agents = v.AgentStates()
	case map[string]*State:
		agents = v
	default:
		return nil
	}

	for key, a := range agents {
		if key == "" || strings.Contains(key, ".") {
			return fmt.Errorf("agent %q: %w", key, ErrInvalidName)
		}
		if a == nil {
			return fmt.Errorf("agent %q: %w", key, ErrNilAgent)
		}
		if a.Name != key {
			return fmt.Errorf("agent %q (named %q): %w", key, a.Name, ErrNameMismatch)
		}
	}
	return nil
}
