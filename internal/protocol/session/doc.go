// Package session runs one peer connection from transport events to worker queues.
//
// Ownership boundary:
//   - the receiver state machine (handshake gate, reassembly)
//   - per-peer receiver goroutines and their effects
//   - routing of reassembled messages to worker queues
//   - the table of handshaked peers
//   - reconnect backoff primitives
//
// Machine.Step is pure. Receiver owns all I/O and is the only goroutine that
// touches a session's state.
package session
