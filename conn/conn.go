package conn

import (
	"errors"
	"fmt"

	"github.com/luma/respio/protocol"
)

var (
	// ErrClosed fails requests that were still pending when the
	// connection closed, and any submission attempted afterwards.
	ErrClosed = errors.New("respio: connection closed")

	// ErrHandshake marks a connection whose setup commands were
	// rejected by the server. The connection is Faulted and must be
	// discarded; the protocol version is never silently downgraded.
	ErrHandshake = errors.New("respio: handshake failed")

	// ErrNotReady is returned by Submit when the connection is not in
	// a state that can carry commands.
	ErrNotReady = errors.New("respio: connection is not ready")

	// ErrUnsolicitedPush marks a push frame arriving on a connection
	// with no subscriptions. The continuous-push protocols (PUB/SUB,
	// MONITOR) are deliberately unimplemented here, so an out-of-band
	// frame means the request/reply pairing can no longer be trusted.
	ErrUnsolicitedPush = errors.New("respio: unsolicited push reply")
)

// ClientInfo configures the handshake of a connection. It is read-only
// input; nothing mutates it after construction.
type ClientInfo struct {
	// Protocol is the desired protocol version. RESP3 is negotiated
	// with a HELLO command during handshake; RESP2 needs none.
	// The zero value means RESP2.
	Protocol protocol.Version

	// Username and Password authenticate the connection when Password
	// is non-empty. An empty Username authenticates against the
	// "default" user.
	Username string
	Password string

	// Name, when set, is registered server-side via CLIENT SETNAME so
	// the connection shows up identifiably in CLIENT LIST.
	Name string

	// DB selects a logical database when non-zero.
	DB int
}

// Conn is the protocol state machine for one logical connection. See
// the package documentation for the byte-in/byte-out flow.
type Conn struct {
	info    ClientInfo
	state   State
	version protocol.Version

	dec     *protocol.Decoder
	pending []*Pending
	seq     uint64

	// handshakeLeft counts handshake-phase requests still unresolved;
	// the connection turns Ready when it hits zero.
	handshakeLeft int
}

// New builds a connection state machine in the Disconnected state. No
// bytes flow until the owning caller signals Connected.
func New(info ClientInfo) *Conn {
	version := info.Protocol
	if !version.Valid() {
		version = protocol.RESP2
	}
	info.Protocol = version

	return &Conn{
		info:    info,
		state:   Disconnected,
		version: protocol.RESP2,
		dec:     protocol.NewDecoder(version),
	}
}

// SetLimits replaces the decoder's safety limits. Must be called
// before Connected.
func (c *Conn) SetLimits(limits protocol.Limits) {
	c.dec.SetLimits(limits)
}

func (c *Conn) State() State {
	return c.state
}

func (c *Conn) Info() ClientInfo {
	return c.info
}

// Version is the negotiated protocol version. It is RESP2 until a
// HELLO reply confirms RESP3, and fixed once the connection is Ready.
func (c *Conn) Version() protocol.Version {
	return c.version
}

// PendingCount returns the number of requests awaiting replies,
// handshake steps included.
func (c *Conn) PendingCount() int {
	return len(c.pending)
}

// Connected signals that the underlying transport is open. It returns
// the handshake bytes to write: protocol negotiation, authentication,
// client naming and database selection, in that order, each queued as
// an ordinary pending request. A configuration needing no handshake
// returns nil and the connection is Ready immediately.
func (c *Conn) Connected() ([]byte, error) {
	if c.state != Disconnected {
		return nil, fmt.Errorf("%w: Connected in state %s", ErrNotReady, c.state)
	}

	cmds := c.handshakeCommands()
	if len(cmds) == 0 {
		c.state = Ready
		return nil, nil
	}

	for _, cmd := range cmds {
		c.seq++
		c.pending = append(c.pending, newPending(c.seq, cmd, true))
	}
	c.handshakeLeft = len(cmds)
	c.state = Handshaking

	return protocol.EncodePipeline(cmds...), nil
}

func (c *Conn) handshakeCommands() []protocol.Command {
	info := c.info
	var cmds []protocol.Command

	if info.Protocol == protocol.RESP3 {
		args := [][]byte{[]byte("HELLO"), []byte("3")}
		if info.Password != "" {
			user := info.Username
			if user == "" {
				user = "default"
			}
			args = append(args, []byte("AUTH"), []byte(user), []byte(info.Password))
		}
		if info.Name != "" {
			args = append(args, []byte("SETNAME"), []byte(info.Name))
		}
		cmds = append(cmds, protocol.NewCommandBytes(args...))
	} else {
		if info.Password != "" {
			if info.Username != "" {
				cmds = append(cmds, protocol.NewCommandStrings("AUTH", info.Username, info.Password))
			} else {
				cmds = append(cmds, protocol.NewCommandStrings("AUTH", info.Password))
			}
		}
		if info.Name != "" {
			cmds = append(cmds, protocol.NewCommandStrings("CLIENT", "SETNAME", info.Name))
		}
	}

	if info.DB != 0 {
		cmd, _ := protocol.NewCommand("SELECT", info.DB)
		cmds = append(cmds, cmd)
	}

	return cmds
}

// Submit queues a command and returns its completion slot together
// with the encoded bytes the caller must hand to the transport.
// Submitting is legal while Ready or Busy; pipelining several commands
// before reading any reply is the intended use.
func (c *Conn) Submit(cmd protocol.Command) (*Pending, []byte, error) {
	if c.state != Ready && c.state != Busy {
		return nil, nil, fmt.Errorf("%w: Submit in state %s", ErrNotReady, c.state)
	}

	c.seq++
	p := newPending(c.seq, cmd, false)
	c.pending = append(c.pending, p)
	c.state = Busy

	return p, protocol.EncodeCommand(cmd), nil
}

// Receive feeds bytes read from the transport into the decoder and
// resolves pending requests with the replies they contain, oldest
// first. Chunking is arbitrary: a call may complete zero, one or many
// requests.
//
// A protocol error, an unsolicited push or a reply with no pending
// request faults the connection: every outstanding request fails with
// the same error and the connection must be discarded.
func (c *Conn) Receive(data []byte) error {
	if !c.state.Usable() {
		return fmt.Errorf("%w: Receive in state %s", ErrClosed, c.state)
	}

	c.dec.Feed(data)

	for {
		reply, ok, err := c.dec.Next()
		if err != nil {
			c.abort(err)
			return err
		}
		if !ok {
			return nil
		}

		if reply.Type == protocol.TypePush {
			err := ErrUnsolicitedPush
			c.abort(err)
			return err
		}

		if len(c.pending) == 0 {
			err := fmt.Errorf("%w: reply with no pending request", protocol.ErrProtocol)
			c.abort(err)
			return err
		}

		p := c.pending[0]
		c.pending = c.pending[1:]

		if p.handshake {
			if err := c.finishHandshakeStep(p, reply); err != nil {
				return err
			}
			continue
		}

		p.resolve(reply)
		if len(c.pending) == 0 && c.state == Busy {
			c.state = Ready
		}
	}
}

// finishHandshakeStep resolves one handshake-phase request. Any error
// reply here is fatal: the connection faults rather than limping along
// half-configured or silently downgraded.
func (c *Conn) finishHandshakeStep(p *Pending, reply protocol.Reply) error {
	if serverErr := reply.ErrorOrNil(); serverErr != nil {
		err := fmt.Errorf("%w: %s: %v", ErrHandshake, p.cmd.Name(), serverErr)
		p.fail(err)
		c.abort(err)
		return err
	}

	if p.cmd.Name() == "HELLO" {
		// An affirmative HELLO reply is a map of server properties
		// (RESP2-framed servers would answer with a flat array, but
		// any server that accepts HELLO 3 answers in RESP3).
		if reply.Type != protocol.TypeMap && reply.Type != protocol.TypeArray {
			err := fmt.Errorf("%w: unexpected HELLO reply shape %s", ErrHandshake, reply.Type)
			p.fail(err)
			c.abort(err)
			return err
		}
		c.version = protocol.RESP3
	}

	p.resolve(reply)
	c.handshakeLeft--
	if c.handshakeLeft == 0 && c.state == Handshaking {
		c.state = Ready
	}
	return nil
}

// Close shuts the connection down deliberately. Requests still
// outstanding fail with ErrClosed rather than hanging forever.
func (c *Conn) Close() {
	if c.state == Closed || c.state == Faulted {
		return
	}
	c.state = Closing
	c.failPending(ErrClosed)
	c.state = Closed
}

// Fault marks the connection unusable after an external failure, such
// as a transport read/write error, failing all outstanding requests.
// The pool destroys faulted connections instead of recycling them.
func (c *Conn) Fault(err error) {
	if c.state == Closed || c.state == Faulted {
		return
	}
	if err == nil {
		err = ErrClosed
	}
	c.abort(err)
}

func (c *Conn) abort(err error) {
	c.failPending(err)
	c.state = Faulted
}

func (c *Conn) failPending(err error) {
	for _, p := range c.pending {
		p.fail(err)
	}
	c.pending = nil
}
