// Package realtime fans lifecycle events out to connected operator sessions.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/query-triage/internal/events"
	"github.com/spec-kit/query-triage/internal/observability"
)

// ErrRouterClosed is returned by Register once the router has shut down.
var ErrRouterClosed = errors.New("router closed")

// ErrAlreadyRegistered is returned when a connection registers twice.
var ErrAlreadyRegistered = errors.New("connection already registered")

const defaultSendBuffer = 64

// Connection is one live transport to an operator. Send is only ever called
// from a single goroutine per connection. Close may be called concurrently
// with Send and more than once.
type Connection interface {
	Send(event events.Event) error
	Close() error
}

// Pinger is implemented by connections that support keepalive pings. Ping
// is called from the same goroutine as Send.
type Pinger interface {
	Ping() error
}

// RouterOptions configures a Router.
type RouterOptions struct {
	// SendBuffer bounds events queued per connection. A connection whose
	// queue is full is disconnected.
	SendBuffer int
	// PingInterval spaces keepalive pings on connections that implement
	// Pinger. Zero disables them.
	PingInterval time.Duration
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// Router maps recipients to their live connections and delivers events.
// Create one per process with NewRouter and share it between the gateway and
// the lifecycle service.
type Router struct {
	mu          sync.Mutex
	sessions    map[Connection]*session
	byRecipient map[string]map[*session]struct{}
	closed      bool

	sendBuffer   int
	pingInterval time.Duration
	metrics      *observability.Metrics
	logger       *zap.Logger
	wg           sync.WaitGroup
}

type session struct {
	recipientID string
	conn        Connection
	queue       chan events.Event
	done        chan struct{}
	stopOnce    sync.Once
}

func (s *session) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// NewRouter constructs an empty router.
func NewRouter(opts RouterOptions) *Router {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Router{
		sessions:    make(map[Connection]*session),
		byRecipient: make(map[string]map[*session]struct{}),
		sendBuffer:   opts.SendBuffer,
		pingInterval: opts.PingInterval,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
}

// Register adds conn under recipientID and starts its writer.
func (r *Router) Register(recipientID string, conn Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRouterClosed
	}
	if _, ok := r.sessions[conn]; ok {
		return ErrAlreadyRegistered
	}

	s := &session{
		recipientID: recipientID,
		conn:        conn,
		queue:       make(chan events.Event, r.sendBuffer),
		done:        make(chan struct{}),
	}
	r.sessions[conn] = s
	set, ok := r.byRecipient[recipientID]
	if !ok {
		set = make(map[*session]struct{})
		r.byRecipient[recipientID] = set
	}
	set[s] = struct{}{}

	r.wg.Add(1)
	go r.writeLoop(s)

	r.metrics.SessionOpened()
	r.logger.Debug("session registered", zap.String("recipient_id", recipientID))
	return nil
}

// Deregister removes conn. Unknown or already removed connections are
// ignored.
func (r *Router) Deregister(conn Connection) {
	r.mu.Lock()
	s, ok := r.sessions[conn]
	if ok {
		r.removeLocked(s)
	}
	r.mu.Unlock()
	if ok {
		r.logger.Debug("session deregistered", zap.String("recipient_id", s.recipientID))
	}
}

// Publish queues event for every matching connection without waiting on any
// of them. Broadcast events reach all connections; targeted events reach only
// the recipient's connections.
func (r *Router) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	if event.Broadcast() {
		for _, s := range r.sessions {
			r.enqueueLocked(s, event)
		}
		return nil
	}
	for s := range r.byRecipient[event.RecipientID] {
		r.enqueueLocked(s, event)
	}
	return nil
}

// Relay queues event for every connection except from. It is used for
// session-to-session signals that bypass the event dispatcher.
func (r *Router) Relay(from Connection, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for conn, s := range r.sessions {
		if conn == from {
			continue
		}
		r.enqueueLocked(s, event)
	}
}

// Sessions returns how many connections are registered, optionally for one
// recipient.
func (r *Router) Sessions(recipientID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if recipientID == "" {
		return len(r.sessions)
	}
	return len(r.byRecipient[recipientID])
}

// Close disconnects every session and waits for their writers to exit.
func (r *Router) Close() {
	r.mu.Lock()
	r.closed = true
	for _, s := range r.sessions {
		r.removeLocked(s)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Router) enqueueLocked(s *session, event events.Event) {
	select {
	case s.queue <- event:
	default:
		r.metrics.RecordDrop("overflow")
		r.logger.Warn("session queue full, disconnecting",
			zap.String("recipient_id", s.recipientID),
			zap.String("event_type", string(event.Type)))
		r.removeLocked(s)
	}
}

func (r *Router) removeLocked(s *session) {
	if _, ok := r.sessions[s.conn]; !ok {
		return
	}
	delete(r.sessions, s.conn)
	if set, ok := r.byRecipient[s.recipientID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.byRecipient, s.recipientID)
		}
	}
	s.stop()
	r.metrics.SessionClosed()
}

// writeLoop delivers queued events in order and sends keepalive pings. It owns
// closing the connection.
func (r *Router) writeLoop(s *session) {
	defer r.wg.Done()
	defer func() {
		if err := s.conn.Close(); err != nil {
			r.logger.Debug("session close failed", zap.String("recipient_id", s.recipientID), zap.Error(err))
		}
	}()

	var tick <-chan time.Time
	pinger, ok := s.conn.(Pinger)
	if ok && r.pingInterval > 0 {
		ticker := time.NewTicker(r.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.done:
			return
		default:
		}
		select {
		case <-s.done:
			return
		case <-tick:
			if err := pinger.Ping(); err != nil {
				r.metrics.RecordDrop("ping_error")
				r.logger.Info("session ping failed",
					zap.String("recipient_id", s.recipientID),
					zap.Error(err))
				r.drop(s)
				return
			}
		case event := <-s.queue:
			if err := s.conn.Send(event); err != nil {
				r.metrics.RecordDrop("write_error")
				r.logger.Warn("session write failed",
					zap.String("recipient_id", s.recipientID),
					zap.String("event_type", string(event.Type)),
					zap.Error(err))
				r.drop(s)
				return
			}
			r.metrics.RecordDelivery(string(event.Type))
		}
	}
}

func (r *Router) drop(s *session) {
	r.mu.Lock()
	r.removeLocked(s)
	r.mu.Unlock()
}
