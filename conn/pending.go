package conn

import (
	"context"

	"github.com/luma/respio/protocol"
)

// Pending is a single in-flight command awaiting its reply. The
// submitting caller holds it as the completion slot: once the
// connection receives the matching reply (or fails), Done is closed
// and Result returns.
type Pending struct {
	seq       uint64
	cmd       protocol.Command
	handshake bool

	reply protocol.Reply
	err   error
	done  chan struct{}
}

func newPending(seq uint64, cmd protocol.Command, handshake bool) *Pending {
	return &Pending{
		seq:       seq,
		cmd:       cmd,
		handshake: handshake,
		done:      make(chan struct{}),
	}
}

// Seq is the connection-scoped monotonic sequence number. Requests on
// one connection resolve strictly in Seq order.
func (p *Pending) Seq() uint64 {
	return p.seq
}

// Command returns the command this request carries.
func (p *Pending) Command() protocol.Command {
	return p.cmd
}

// Done is closed when the request has resolved, successfully or not.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Ready reports whether the request has resolved.
func (p *Pending) Ready() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result returns the reply, or the connection-level error that failed
// the request. A server error reply is not an error here: it comes
// back as a Reply of TypeError, because the connection itself is still
// healthy. Result must only be called after Done.
//
// An error return is always one of ErrClosed, ErrHandshake or a
// wrapped protocol/transport failure.
func (p *Pending) Result() (protocol.Reply, error) {
	return p.reply, p.err
}

// Wait blocks until the request resolves or the context ends.
//
// Note that a context cancellation does not (and cannot) recall bytes
// already handed to the transport: the caller must either keep
// draining the connection or discard it entirely, otherwise subsequent
// replies would pair with the wrong requests.
func (p *Pending) Wait(ctx context.Context) (protocol.Reply, error) {
	select {
	case <-p.done:
		return p.reply, p.err
	case <-ctx.Done():
		return protocol.Reply{}, ctx.Err()
	}
}

func (p *Pending) resolve(reply protocol.Reply) {
	p.reply = reply
	close(p.done)
}

func (p *Pending) fail(err error) {
	p.err = err
	close(p.done)
}
