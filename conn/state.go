package conn

// State is where a connection sits in its lifecycle. Transitions only
// move forward except for the Ready/Busy pair, which oscillates with
// the pending-request count.
type State int

const (
	// Disconnected is the initial state; no transport is attached yet.
	Disconnected State = iota

	// Handshaking means the connection-setup commands have been issued
	// and not all of their replies have arrived.
	Handshaking

	// Ready means the handshake succeeded and no requests are in flight.
	Ready

	// Busy means at least one submitted request is awaiting its reply.
	Busy

	// Closing means Close was called while requests were outstanding;
	// they are being failed.
	Closing

	// Closed is terminal: the connection was shut down deliberately.
	Closed

	// Faulted is terminal: a protocol error, handshake failure or
	// transport error made the connection unusable. A faulted
	// connection must be discarded, never reused.
	Faulted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Handshaking:
		return "handshaking"
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Usable reports whether the connection can still carry traffic.
func (s State) Usable() bool {
	switch s {
	case Handshaking, Ready, Busy:
		return true
	default:
		return false
	}
}
