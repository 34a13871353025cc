// Package core defines the shared conversation primitives used across
// AgentSea: role-based messages, tool call requests and their correlated
// results, the per-conversation AgentContext, the streaming event protocol
// emitted by the engine, and the transport-level error type.
//
// Types in this package are deliberately free of provider or transport
// specifics so that model adapters, the tool registries and the engine can
// exchange data without per-vendor branching.
package core
