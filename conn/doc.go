package conn

// This package owns the lifecycle of one logical Redis connection,
// sans-IO: handshake, steady-state request/reply pairing, and the
// error and closed states. It consumes the protocol package's codec
// and never touches a socket itself.
//
// The flow is strictly byte-in/byte-out:
//
//   ```
//     c := conn.New(info)
//     burst, _ := c.Connected()   // -> handshake bytes for the transport
//     ...write burst, feed reads to c.Receive until c.State() == Ready...
//
//     pending, buf, _ := c.Submit(cmd)  // -> command bytes for the transport
//     ...write buf, feed reads to c.Receive...
//     reply, err := pending.Result()
//   ```
//
// Several commands may be submitted before any reply arrives
// (pipelining); replies always resolve the oldest pending request
// first, which is the ordering guarantee Redis itself provides.
//
// A Conn is not safe for concurrent use. It is designed to be owned by
// exactly one caller at a time; the pool package enforces that
// structurally by never leasing a connection twice.
