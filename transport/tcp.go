package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"go.uber.org/zap"
)

// TCPConn is a Transport over a single TCP connection. Nagle's
// algorithm is disabled so pipelined request bursts go out immediately.
type TCPConn struct {
	conn net.Conn
	log  *zap.Logger
}

// DialTCP establishes the connection described by opts. The context
// and opts.DialTimeout both bound the dial; whichever is tighter wins.
func DialTCP(ctx context.Context, opts Options) (*TCPConn, error) {
	opts = opts.withDefaults()

	dialer := net.Dialer{
		Timeout:   opts.DialTimeout,
		KeepAlive: opts.KeepAlive,
	}

	conn, err := dialer.DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return nil, err
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			opts.Log.Warn("Failed to set TCP_NODELAY", zap.Error(err))
		}
	}

	if opts.TLS != nil {
		tlsConn := tls.Client(conn, opts.TLS)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		conn = tlsConn
	}

	opts.Log.Debug("Connected", zap.String("addr", opts.Addr))

	return &TCPConn{
		conn: conn,
		log:  opts.Log,
	}, nil
}

func (t *TCPConn) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

func (t *TCPConn) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

// SetReadDeadline interrupts an in-flight or future Read at t. A zero
// time clears the deadline.
func (t *TCPConn) SetReadDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

func (t *TCPConn) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *TCPConn) Close() error {
	t.log.Debug("Closing connection", zap.String("addr", t.RemoteAddr()))
	return t.conn.Close()
}
