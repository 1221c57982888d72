package worker

// Sender writes raw bytes to a peer without waiting for delivery.
type Sender interface {
	Send(peer string, b []byte) error
}

// PeerLister returns the ids of peers that completed a handshake.
type PeerLister interface {
	IDs() []string
}
