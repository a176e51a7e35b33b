/*
Package ports defines the driven ports (interfaces) of statekit.

These interfaces decouple the store from the adapters that persist or expose it,
so journals and transports can be swapped without touching the core.

# Key Interfaces

  - Journal: append-only log of deltas plus the latest state snapshot (memory, Redis).
  - ActionStore: the non-generic view of a store used by the HTTP, MCP and CLI surfaces.
*/
package ports
