// Package transport provides the blocking socket layer that feeds bytes
// into and out of a protocol state machine. It deliberately knows
// nothing about the wire format: conn.Conn decides what to send and
// what the received bytes mean, transport just moves them.
package transport

import (
	"context"
	"crypto/tls"
	"io"
	"time"

	"go.uber.org/zap"
)

// Transport is a byte pipe to a single server.
//
// Read blocks until at least one byte arrives and returns however much
// the kernel had buffered. Implementations that support deadlines also
// expose SetReadDeadline via the DeadlineReader interface.
type Transport interface {
	io.ReadWriteCloser

	// RemoteAddr describes the peer, for logging.
	RemoteAddr() string
}

// DeadlineReader is implemented by transports whose reads can be
// interrupted. Callers type-assert for it when they need to honour a
// context deadline across a blocking Read.
type DeadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// Options configure Dial.
type Options struct {
	// Addr is the host:port of the server.
	Addr string

	// DialTimeout bounds connection establishment. Zero means no limit
	// beyond the context passed to Dial.
	DialTimeout time.Duration

	// ReadBufferSize is the size of the buffer handed to each Read call
	// by helpers that own their buffer. Defaults to 64 KiB.
	ReadBufferSize int

	// KeepAlive is the TCP keepalive period. Zero keeps the OS default,
	// negative disables keepalive.
	KeepAlive time.Duration

	// TLS, when non-nil, wraps the connection in a TLS client session.
	TLS *tls.Config

	Log *zap.Logger
}

const DefaultReadBufferSize = 64 * 1024

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = DefaultReadBufferSize
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return opts
}

// Dial connects to opts.Addr over TCP, applying NoDelay, keepalive and
// optional TLS.
func Dial(ctx context.Context, opts Options) (Transport, error) {
	return DialTCP(ctx, opts)
}
