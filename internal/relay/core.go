package relay

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/relayctl/internal/observability"
)

// Dest is one registered destination: a connection identity paired with a
// bounded FIFO outbox. The outbox is drained by the destination's writer
// goroutine so a slow socket never holds the registry lock.
type Dest struct {
	ID   string
	conn net.Conn

	out  chan []byte
	quit chan struct{}

	closeOnce sync.Once
	joined    time.Time
	sent      atomic.Uint64
}

// Conn exposes the underlying socket to the destination's writer loop.
func (d *Dest) Conn() net.Conn {
	return d.conn
}

// Outbox returns the queue the writer loop drains.
func (d *Dest) Outbox() <-chan []byte {
	return d.out
}

// Quit is closed exactly once when the destination is evicted or deregistered.
func (d *Dest) Quit() <-chan struct{} {
	return d.quit
}

func (d *Dest) close() {
	d.closeOnce.Do(func() {
		close(d.quit)
		_ = d.conn.Close()
	})
}

// DestStatus is an admin-surface snapshot of one destination.
type DestStatus struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remote_addr"`
	QueueDepth int       `json:"queue_depth"`
	QueueCap   int       `json:"queue_cap"`
	SentFrames uint64    `json:"sent_frames"`
	JoinedAt   time.Time `json:"joined_at"`
}

// SourceStatus is an admin-surface snapshot of the source slot.
type SourceStatus struct {
	Occupied   bool      `json:"occupied"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	Since      time.Time `json:"since,omitempty"`
}

// Core holds the shared relay state: the at-most-one source slot and the
// live destination registry. All mutations are short critical sections
// behind one mutex; socket writes never happen under it.
type Core struct {
	mu          sync.Mutex
	queueDepth  int
	source      net.Conn
	sourceSince time.Time
	dests       map[string]*Dest
}

func NewCore(queueDepth int) *Core {
	if queueDepth <= 0 {
		queueDepth = DefaultServiceConfig().DestQueueDepth
	}
	return &Core{
		queueDepth: queueDepth,
		dests:      make(map[string]*Dest),
	}
}

// TryBecomeSource occupies the source slot iff it is empty. A refused
// connection must be closed by the caller without reading any bytes.
func (c *Core) TryBecomeSource(conn net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != nil {
		return false
	}
	c.source = conn
	c.sourceSince = time.Now()
	return true
}

// ReleaseSource clears the slot iff still held by conn. Idempotent.
func (c *Core) ReleaseSource(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == conn {
		c.source = nil
		c.sourceSince = time.Time{}
	}
}

// Source reports the current slot occupancy.
func (c *Core) Source() SourceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == nil {
		return SourceStatus{}
	}
	return SourceStatus{
		Occupied:   true,
		RemoteAddr: c.source.RemoteAddr().String(),
		Since:      c.sourceSince,
	}
}

// RegisterDest adds conn to the registry with a fresh bounded outbox.
func (c *Core) RegisterDest(conn net.Conn) *Dest {
	dest := &Dest{
		ID:     uuid.NewString(),
		conn:   conn,
		out:    make(chan []byte, c.queueDepth),
		quit:   make(chan struct{}),
		joined: time.Now(),
	}
	c.mu.Lock()
	c.dests[dest.ID] = dest
	total := len(c.dests)
	c.mu.Unlock()
	observability.SetDestinations(total)
	return dest
}

// DeregisterDest removes dest from the registry and tears down its socket
// and outbox. Idempotent and safe to call concurrently with Broadcast.
func (c *Core) DeregisterDest(dest *Dest) {
	c.mu.Lock()
	_, present := c.dests[dest.ID]
	if present {
		delete(c.dests, dest.ID)
	}
	total := len(c.dests)
	c.mu.Unlock()
	dest.close()
	if present {
		observability.SetDestinations(total)
	}
}

// Broadcast enqueues payload onto every registered destination's outbox
// without blocking. A destination whose queue is already full is too slow
// to keep: it is evicted so delivery to the others never stalls. Returns
// the number of destinations the payload was queued for.
func (c *Core) Broadcast(payload []byte) int {
	c.mu.Lock()
	var evicted []*Dest
	delivered := 0
	for id, dest := range c.dests {
		select {
		case dest.out <- payload:
			delivered++
		default:
			delete(c.dests, id)
			evicted = append(evicted, dest)
		}
	}
	total := len(c.dests)
	c.mu.Unlock()

	for _, dest := range evicted {
		dest.close()
		observability.RecordEviction("slow_consumer")
		log.Warn().
			Str("dest_id", dest.ID).
			Str("remote", dest.conn.RemoteAddr().String()).
			Msg("relay.Broadcast destination evicted: outbox saturated")
	}
	if len(evicted) > 0 {
		observability.SetDestinations(total)
	}
	return delivered
}

// SnapshotDests returns admin-surface copies of the registered destinations.
func (c *Core) SnapshotDests() []DestStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DestStatus, 0, len(c.dests))
	for _, dest := range c.dests {
		out = append(out, DestStatus{
			ID:         dest.ID,
			RemoteAddr: dest.conn.RemoteAddr().String(),
			QueueDepth: len(dest.out),
			QueueCap:   cap(dest.out),
			SentFrames: dest.sent.Load(),
			JoinedAt:   dest.joined,
		})
	}
	return out
}
