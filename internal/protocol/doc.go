// Package protocol owns the peer message kinds and their byte codecs.
//
// Ownership boundary:
// - per-kind ids, accepted payload ranges, encode/decode
// - TLV (header + payload) framing of whole messages
// - typed decode errors carrying type and length for structured logs
//
// Header primitives live in protocol/frame, version negotiation in protocol/version
// and the per-connection receiver in protocol/session.
package protocol
