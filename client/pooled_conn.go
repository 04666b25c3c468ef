package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/luma/respio/conn"
	"github.com/luma/respio/protocol"
)

// PooledConn binds a protocol state machine to a transport and pumps
// bytes between them. Exactly one goroutine uses it at a time; the pool
// lease enforces that.
type PooledConn struct {
	sm  *conn.Conn
	tr  transportConn
	buf []byte
	log *zap.Logger
}

// transportConn is the slice of transport.Transport the client needs,
// restated locally so tests can substitute an in-memory pipe.
type transportConn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// deadlineReader mirrors transport.DeadlineReader.
type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// dialConn establishes a connection, drives the handshake to
// completion and returns a Ready PooledConn.
func dialConn(ctx context.Context, opts Options, dial dialFunc) (*PooledConn, error) {
	tr, err := dial(ctx)
	if err != nil {
		return nil, err
	}

	sm := conn.New(conn.ClientInfo{
		Protocol: opts.Protocol,
		Username: opts.Username,
		Password: opts.Password,
		Name:     opts.ClientName,
		DB:       opts.DB,
	})
	if opts.Limits != nil {
		sm.SetLimits(*opts.Limits)
	}

	pc := &PooledConn{
		sm:  sm,
		tr:  tr,
		buf: make([]byte, opts.ReadBufferSize),
		log: opts.Log,
	}

	burst, err := sm.Connected()
	if err != nil {
		tr.Close()
		return nil, err
	}
	if len(burst) > 0 {
		if _, err := tr.Write(burst); err != nil {
			sm.Fault(err)
			tr.Close()
			return nil, err
		}
		if err := pc.pumpUntil(ctx, func() bool { return sm.State() == conn.Ready }); err != nil {
			tr.Close()
			return nil, err
		}
	}

	pc.log.Debug("Handshake complete",
		zap.Stringer("protocol", sm.Version()))

	return pc, nil
}

// State reports the underlying state machine's state, which is what
// the pool consults to decide whether to recycle the connection.
func (pc *PooledConn) State() conn.State {
	return pc.sm.State()
}

// Close tears down both halves. Pending requests fail with
// conn.ErrClosed.
func (pc *PooledConn) Close() error {
	pc.sm.Close()
	return pc.tr.Close()
}

// Do sends one command and blocks for its reply. Server error replies
// come back as the Reply value, not as the error; the error return is
// reserved for connection-level failures.
func (pc *PooledConn) Do(ctx context.Context, cmd protocol.Command) (protocol.Reply, error) {
	replies, err := pc.DoPipeline(ctx, cmd)
	if err != nil {
		return protocol.Reply{}, err
	}
	return replies[0], nil
}

// DoPipeline sends every command in one write and blocks until all the
// replies are in. Replies are returned in command order. A
// connection-level failure invalidates the whole batch.
func (pc *PooledConn) DoPipeline(ctx context.Context, cmds ...protocol.Command) ([]protocol.Reply, error) {
	if len(cmds) == 0 {
		return nil, nil
	}

	pendings := make([]*conn.Pending, 0, len(cmds))
	var out []byte
	for _, cmd := range cmds {
		p, data, err := pc.sm.Submit(cmd)
		if err != nil {
			return nil, err
		}
		pendings = append(pendings, p)
		out = append(out, data...)
	}

	if _, err := pc.tr.Write(out); err != nil {
		pc.sm.Fault(fmt.Errorf("write failed: %w", err))
		return nil, err
	}

	last := pendings[len(pendings)-1]
	if err := pc.pumpUntil(ctx, last.Ready); err != nil {
		return nil, err
	}

	replies := make([]protocol.Reply, len(pendings))
	for i, p := range pendings {
		reply, err := p.Result()
		if err != nil {
			return nil, err
		}
		replies[i] = reply
	}
	return replies, nil
}

// cancelPollInterval bounds how long a cancelled deadline-less context
// can leave pumpUntil blocked in a read.
const cancelPollInterval = 100 * time.Millisecond

// pumpUntil reads from the transport and feeds the state machine until
// done reports true. On a deadline-carrying context the deadline is
// pushed down to the socket; on a cancellable context without one, a
// short rolling read deadline is used instead so cancellation can
// interrupt a blocked read. In either case cancellation or a read
// failure mid-flight faults the connection, because the reply stream
// position is no longer known. Without a deadline-capable transport,
// cancellation is only observed between reads.
func (pc *PooledConn) pumpUntil(ctx context.Context, done func() bool) error {
	var rolling bool
	if dr, ok := pc.tr.(deadlineReader); ok {
		deadline, has := ctx.Deadline()
		if !has {
			deadline = time.Time{}
			rolling = ctx.Done() != nil
		}
		if !rolling {
			if err := dr.SetReadDeadline(deadline); err != nil {
				pc.log.Warn("Failed to set read deadline", zap.Error(err))
			}
		}
	}

	for !done() {
		if err := ctx.Err(); err != nil {
			pc.sm.Fault(err)
			return err
		}

		if rolling {
			dr := pc.tr.(deadlineReader)
			if err := dr.SetReadDeadline(time.Now().Add(cancelPollInterval)); err != nil {
				pc.log.Warn("Failed to set read deadline", zap.Error(err))
			}
		}

		n, err := pc.tr.Read(pc.buf)
		if n > 0 {
			if rerr := pc.sm.Receive(pc.buf[:n]); rerr != nil {
				return rerr
			}
			continue
		}
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				if cerr := ctx.Err(); cerr != nil {
					err = cerr
				} else if rolling {
					// Poll tick with the context still live; keep
					// waiting for the reply.
					continue
				}
			}
			pc.sm.Fault(fmt.Errorf("read failed: %w", err))
			return err
		}
	}
	return nil
}
