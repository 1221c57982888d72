// Package worker holds the consumers behind the session router and the
// periodic workers that speak to handshaked peers.
package worker
