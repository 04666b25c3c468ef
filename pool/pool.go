package pool

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/respio/conn"
)

var (
	// ErrClosed is returned by Acquire after the pool has been shut down.
	ErrClosed = errors.New("pool: closed")

	// ErrExhausted is returned when AcquireTimeout elapses with every
	// connection leased and no capacity left to create another.
	ErrExhausted = errors.New("pool: exhausted")
)

// createTimeout bounds background factory calls made outside any
// caller's context, such as min-fill and fault replacement.
const createTimeout = 30 * time.Second

// Conn is the pool's view of a managed connection. *client.PooledConn
// satisfies it, as does any transport-bound protocol state machine that
// can report whether it is still worth recycling.
type Conn interface {
	State() conn.State
	Close() error
}

// Factory creates a ready-to-use connection. It is invoked both on the
// acquiring caller's goroutine (with that caller's context) and from
// background fill goroutines, so it must be safe for concurrent use.
type Factory func(ctx context.Context) (Conn, error)

// Options configure a Pool. Max must be at least 1 and Min must fit
// under it. Zero AcquireTimeout means wait on the context alone; zero
// IdleTimeout disables idle eviction.
type Options struct {
	Min            int
	Max            int
	AcquireTimeout time.Duration
	IdleTimeout    time.Duration
	Log            *zap.Logger
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Idle     int `json:"idle"`
	Leased   int `json:"leased"`
	Creating int `json:"creating"`
	Waiting  int `json:"waiting"`
	Min      int `json:"min"`
	Max      int `json:"max"`
}

type idleEntry struct {
	conn  Conn
	since time.Time
}

// Pool owns up to Max connections and leases them out one holder at a
// time. All methods are safe for concurrent use.
type Pool struct {
	opts    Options
	factory Factory
	log     *zap.Logger

	mu       sync.Mutex
	idle     []idleEntry
	leased   int
	creating int
	waiters  *list.List // of chan Conn, buffered 1
	closed   bool

	stop chan struct{}
}

// New validates opts, starts the background fill towards Min and, when
// IdleTimeout is set, the eviction loop.
func New(factory Factory, opts Options) (*Pool, error) {
	if factory == nil {
		return nil, errors.New("pool: nil factory")
	}
	if opts.Max < 1 {
		return nil, fmt.Errorf("pool: Max must be at least 1, got %d", opts.Max)
	}
	if opts.Min < 0 || opts.Min > opts.Max {
		return nil, fmt.Errorf("pool: Min must be in [0, Max], got %d", opts.Min)
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	p := &Pool{
		opts:    opts,
		factory: factory,
		log:     opts.Log,
		waiters: list.New(),
		stop:    make(chan struct{}),
	}
	p.fill()
	if opts.IdleTimeout > 0 {
		go p.evictLoop()
	}
	return p, nil
}

// Acquire returns an exclusive lease on a connection. It prefers an
// idle one, creates a new one when under Max, and otherwise queues
// behind earlier acquirers. Waiting ends with ErrExhausted once
// AcquireTimeout elapses, or with ctx.Err() if the context goes first.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	var expired <-chan time.Time
	if p.opts.AcquireTimeout > 0 {
		timer := time.NewTimer(p.opts.AcquireTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	if c := p.popIdleLocked(); c != nil {
		p.leased++
		p.mu.Unlock()
		return &Lease{pool: p, conn: c}, nil
	}

	if p.slotsLocked() < p.opts.Max {
		p.creating++
		p.mu.Unlock()
		return p.acquireFresh(ctx)
	}

	w := make(chan Conn, 1)
	elem := p.waiters.PushBack(w)
	p.mu.Unlock()

	select {
	case c, ok := <-w:
		if !ok {
			return nil, ErrClosed
		}
		return &Lease{pool: p, conn: c}, nil
	case <-ctx.Done():
		return nil, p.abandonWait(elem, w, ctx.Err())
	case <-expired:
		return nil, p.abandonWait(elem, w, ErrExhausted)
	}
}

// acquireFresh runs the factory for a caller that reserved a slot.
func (p *Pool) acquireFresh(ctx context.Context) (*Lease, error) {
	c, err := p.factory(ctx)

	p.mu.Lock()
	p.creating--
	if err != nil {
		p.refillForWaitersLocked()
		p.mu.Unlock()
		return nil, err
	}
	if p.closed {
		p.mu.Unlock()
		c.Close()
		return nil, ErrClosed
	}
	p.leased++
	p.mu.Unlock()
	return &Lease{pool: p, conn: c}, nil
}

// abandonWait removes a waiter that timed out or was cancelled. A
// release may have handed it a connection in the race window; that
// connection is passed onwards rather than lost.
func (p *Pool) abandonWait(elem *list.Element, w chan Conn, cause error) error {
	p.mu.Lock()
	select {
	case c, ok := <-w:
		if ok {
			p.recycleLocked(c)
		}
	default:
		p.waiters.Remove(elem)
	}
	p.mu.Unlock()
	return cause
}

// release takes a connection back from a lease holder.
func (p *Pool) release(c Conn) {
	p.mu.Lock()
	if c.State() != conn.Ready {
		p.leased--
		state := c.State()
		p.refillForWaitersLocked()
		p.mu.Unlock()
		p.log.Debug("destroying connection on release", zap.Stringer("state", state))
		c.Close()
		p.fill()
		return
	}
	if p.closed {
		p.leased--
		p.mu.Unlock()
		c.Close()
		return
	}
	p.recycleLocked(c)
	p.mu.Unlock()
}

// recycleLocked hands a still-leased connection to the oldest waiter,
// or parks it idle. Callers hold p.mu.
func (p *Pool) recycleLocked(c Conn) {
	if e := p.waiters.Front(); e != nil {
		p.waiters.Remove(e)
		e.Value.(chan Conn) <- c
		return
	}
	p.leased--
	p.idle = append(p.idle, idleEntry{conn: c, since: time.Now()})
}

// popIdleLocked returns the most recently parked usable connection,
// closing any that faulted while idle. Callers hold p.mu.
func (p *Pool) popIdleLocked() Conn {
	for len(p.idle) > 0 {
		last := len(p.idle) - 1
		c := p.idle[last].conn
		p.idle = p.idle[:last]
		if c.State() == conn.Ready {
			return c
		}
		c.Close()
	}
	return nil
}

// slotsLocked counts every connection the pool is responsible for,
// including ones still being created. Callers hold p.mu.
func (p *Pool) slotsLocked() int {
	return len(p.idle) + p.leased + p.creating
}

// refillForWaitersLocked starts replacement creations when capacity
// frees up with acquirers still queued. Without it, a connection
// destroyed on release (or a failed reserved-slot creation) would
// leave the front waiter sitting on free capacity until its timeout.
// Callers hold p.mu.
func (p *Pool) refillForWaitersLocked() {
	if p.closed {
		return
	}
	for i := p.waiters.Len(); i > 0 && p.slotsLocked() < p.opts.Max; i-- {
		p.creating++
		go p.createIdle()
	}
}

// fill starts background creations until the pool holds Min connections.
func (p *Pool) fill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	for p.slotsLocked() < p.opts.Min {
		p.creating++
		go p.createIdle()
	}
}

func (p *Pool) createIdle() {
	ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
	defer cancel()
	c, err := p.factory(ctx)

	p.mu.Lock()
	p.creating--
	if err != nil {
		p.mu.Unlock()
		p.log.Warn("failed to fill pool", zap.Error(err))
		return
	}
	if p.closed {
		p.mu.Unlock()
		c.Close()
		return
	}
	if e := p.waiters.Front(); e != nil {
		p.waiters.Remove(e)
		p.leased++
		e.Value.(chan Conn) <- c
		p.mu.Unlock()
		return
	}
	p.idle = append(p.idle, idleEntry{conn: c, since: time.Now()})
	p.mu.Unlock()
}

// evictLoop closes idle connections that sat unused past IdleTimeout,
// never dropping the pool below Min.
func (p *Pool) evictLoop() {
	interval := p.opts.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.evictIdle()
		case <-p.stop:
			return
		}
	}
}

func (p *Pool) evictIdle() {
	now := time.Now()
	var victims []Conn

	p.mu.Lock()
	total := p.slotsLocked()
	kept := p.idle[:0]
	for _, e := range p.idle {
		if total > p.opts.Min && now.Sub(e.since) >= p.opts.IdleTimeout {
			victims = append(victims, e.conn)
			total--
			continue
		}
		kept = append(kept, e)
	}
	p.idle = kept
	p.mu.Unlock()

	for _, c := range victims {
		if err := c.Close(); err != nil {
			p.log.Debug("error closing evicted connection", zap.Error(err))
		}
	}
	if len(victims) > 0 {
		p.log.Debug("evicted idle connections", zap.Int("count", len(victims)))
	}
}

// Stats reports current occupancy. Suitable for a debug endpoint.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Idle:     len(p.idle),
		Leased:   p.leased,
		Creating: p.creating,
		Waiting:  p.waiters.Len(),
		Min:      p.opts.Min,
		Max:      p.opts.Max,
	}
}

// Close shuts the pool down. Waiters are woken with ErrClosed, idle
// connections are closed, and leased connections are closed as their
// leases come back. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		close(e.Value.(chan Conn))
	}
	p.waiters.Init()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	close(p.stop)

	var err error
	for _, e := range idle {
		err = multierr.Append(err, e.conn.Close())
	}
	return err
}

// Lease is an exclusive claim on one connection. Release returns the
// connection to the pool; calling it more than once is harmless.
type Lease struct {
	pool *Pool
	conn Conn

	mu       sync.Mutex
	released bool
}

// Conn returns the leased connection. Using it after Release is a bug.
func (l *Lease) Conn() Conn {
	return l.conn
}

// Release hands the connection back. Connections no longer in a Ready
// state are destroyed instead of recycled.
func (l *Lease) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	l.mu.Unlock()
	l.pool.release(l.conn)
}
