package pool

// This package manages a bounded set of connections and hands out
// exclusive leases on them. It knows nothing about sockets: a factory
// callback supplied by the owner creates connections (dialing and
// driving the handshake however it likes), and the pool only tracks
// which of them are idle, leased or dead.
//
// The policy, in order:
//
//   - an idle Ready connection is leased immediately
//   - below the Max ceiling, a new connection is created for the caller
//   - otherwise the caller waits, FIFO, until a lease comes back
//
// A released connection is handed directly to the longest-waiting
// acquirer inside the pool's critical section. Signalling a waiter and
// letting it re-scan would open a race where a fresh acquirer steals
// the connection and the waiter goes back to sleep; handing the
// connection over removes that class of bug entirely.
//
// Connections released in a Faulted or Closed state are destroyed, not
// recycled, and the pool re-fills towards Min in the background. Idle
// connections beyond Min are evicted once they sit unused past the
// configured threshold.
