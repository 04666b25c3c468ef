package client

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/luma/respio/pool"
	"github.com/luma/respio/protocol"
	"github.com/luma/respio/transport"
)

// ErrNil is returned by typed helpers such as Get when the server
// replied with a nil, meaning the key does not exist.
var ErrNil = errors.New("client: nil reply")

// DefaultAddr is used when Options.Addr is empty.
const DefaultAddr = "127.0.0.1:6379"

// Options configure a Client. The zero value connects to DefaultAddr
// over RESP2 with a pool of up to 8 connections.
type Options struct {
	// Addr is the host:port of the server.
	Addr string

	// Protocol selects RESP2 or RESP3. RESP3 requires a server that
	// understands HELLO.
	Protocol protocol.Version

	// Username and Password authenticate the connection. An empty
	// Username with a non-empty Password uses the default user.
	Username string
	Password string

	// ClientName, when set, is registered with the server so the
	// connection shows up named in CLIENT LIST.
	ClientName string

	// DB is the logical database to SELECT after connecting.
	DB int

	// PoolMin connections are kept open even when idle; the pool never
	// grows past PoolMax.
	PoolMin int
	PoolMax int

	// AcquireTimeout bounds how long a call waits for a free
	// connection when the pool is exhausted.
	AcquireTimeout time.Duration

	// IdleTimeout evicts connections idle past this threshold, down to
	// PoolMin. Zero disables eviction.
	IdleTimeout time.Duration

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// TLS, when non-nil, encrypts the connection.
	TLS *tls.Config

	// ReadBufferSize is each connection's read buffer. Defaults to
	// transport.DefaultReadBufferSize.
	ReadBufferSize int

	// Limits override the decoder safety limits.
	Limits *protocol.Limits

	Log *zap.Logger
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.PoolMax < 1 {
		opts.PoolMax = 8
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = transport.DefaultReadBufferSize
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return opts
}

type dialFunc func(ctx context.Context) (transportConn, error)

// Client is a pooled, pipelining Redis client. All methods are safe
// for concurrent use; each call leases one connection for its
// duration.
type Client struct {
	opts Options
	pool *pool.Pool
	log  *zap.Logger
}

// New validates opts and starts the connection pool. Connections are
// dialed lazily unless PoolMin is set.
func New(opts Options) (*Client, error) {
	opts = opts.withDefaults()

	dial := func(ctx context.Context) (transportConn, error) {
		return transport.Dial(ctx, transport.Options{
			Addr:        opts.Addr,
			DialTimeout: opts.DialTimeout,
			TLS:         opts.TLS,
			Log:         opts.Log.Named("transport"),
		})
	}

	return newWithDial(opts, dial)
}

func newWithDial(opts Options, dial dialFunc) (*Client, error) {
	factory := func(ctx context.Context) (pool.Conn, error) {
		return dialConn(ctx, opts, dial)
	}

	p, err := pool.New(factory, pool.Options{
		Min:            opts.PoolMin,
		Max:            opts.PoolMax,
		AcquireTimeout: opts.AcquireTimeout,
		IdleTimeout:    opts.IdleTimeout,
		Log:            opts.Log.Named("pool"),
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		opts: opts,
		pool: p,
		log:  opts.Log,
	}, nil
}

// Do sends one command and returns its reply. Server error replies are
// returned as the Reply value; use Reply.ErrorOrNil to surface them.
// The error return is reserved for connection and pool failures.
func (c *Client) Do(ctx context.Context, cmd protocol.Command) (protocol.Reply, error) {
	lease, err := c.pool.Acquire(ctx)
	if err != nil {
		return protocol.Reply{}, err
	}
	defer lease.Release()

	return lease.Conn().(*PooledConn).Do(ctx, cmd)
}

// Pipeline sends every command in a single write on one connection and
// returns the replies in command order.
func (c *Client) Pipeline(ctx context.Context, cmds ...protocol.Command) ([]protocol.Reply, error) {
	lease, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	return lease.Conn().(*PooledConn).DoPipeline(ctx, cmds...)
}

// Ping round-trips a PING and checks for PONG.
func (c *Client) Ping(ctx context.Context) error {
	reply, err := c.Do(ctx, protocol.NewCommandStrings("PING"))
	if err != nil {
		return err
	}
	if err := reply.ErrorOrNil(); err != nil {
		return err
	}
	text, err := reply.Text()
	if err != nil {
		return err
	}
	if text != "PONG" {
		return errors.New("client: unexpected PING reply " + text)
	}
	return nil
}

// Echo round-trips a message through the server.
func (c *Client) Echo(ctx context.Context, message string) (string, error) {
	reply, err := c.Do(ctx, protocol.NewCommandStrings("ECHO", message))
	if err != nil {
		return "", err
	}
	if err := reply.ErrorOrNil(); err != nil {
		return "", err
	}
	return reply.Text()
}

// Get fetches a key. A missing key returns ErrNil.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := c.Do(ctx, protocol.NewCommandStrings("GET", key))
	if err != nil {
		return nil, err
	}
	if err := reply.ErrorOrNil(); err != nil {
		return nil, err
	}
	if reply.IsNil() {
		return nil, ErrNil
	}
	return reply.Bytes()
}

// Set stores a value under a key.
func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	cmd := protocol.NewCommandBytes([]byte("SET"), []byte(key), value)
	reply, err := c.Do(ctx, cmd)
	if err != nil {
		return err
	}
	if err := reply.ErrorOrNil(); err != nil {
		return err
	}
	if !reply.IsOK() {
		return errors.New("client: unexpected SET reply")
	}
	return nil
}

// Stats exposes pool occupancy, for debug endpoints.
func (c *Client) Stats() pool.Stats {
	return c.pool.Stats()
}

// Close shuts the pool down and closes every connection.
func (c *Client) Close() error {
	return c.pool.Close()
}
