// Package runtime implements the component runtime for an event-sourced
// CQRS framework: the in-process dispatch and lifecycle engine shared by
// aggregates, sagas, process managers, projectors and upcasters.
//
// The runtime never opens a socket, never persists anything, and never
// schedules a retry. It is a pure translator from typed envelopes and books
// to typed envelopes and books; everything durable or networked lives in a
// coordinator outside this package, or in the thin transport shell under
// angzarr-runtime/transport.
package runtime
