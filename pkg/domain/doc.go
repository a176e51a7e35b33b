/*
Package domain contains the core types shared by every statekit component.

It defines the vocabulary of the change-detection protocol: which parts of the state an action
claims to have touched, what actually changed, and the errors and lifecycle events produced while
running an action. This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - Scope: The set of dot paths an action declares as possibly changed ("." means everything).
  - Path: A parsed, segment-wise address inside the state graph.
  - Change / Delta: Leaf-level differences between two snapshots, with absolute paths.
  - Lookup: The tagged result of resolving an action by name for dynamic dispatch.
  - LifecycleHooks: Observability callbacks fired around action execution.
*/
package domain
