package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/shopping-assistant/internal/protocol"
)

// ErrClosed is returned by Connect once the channel has been closed.
var ErrClosed = errors.New("push channel closed")

const (
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 5 * time.Second
	readLimit           = 1 << 20
)

// ConnState is the lifecycle state of the push channel.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Event is one inbound frame. Data holds the complete raw JSON object.
type Event struct {
	Type string
	Data []byte
}

// Handler receives inbound events.
type Handler func(Event)

type subscription struct {
	handler Handler
	active  atomic.Bool
}

// timer is the part of *time.Timer the reconnect loop needs.
type timer interface {
	Stop() bool
}

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// Channel maintains at most one websocket connection to the backend event
// stream and re-establishes it after every close.
type Channel struct {
	url          string
	logger       *slog.Logger
	dialOpts     *websocket.DialOptions
	dialTimeout  time.Duration
	writeTimeout time.Duration
	onState      func(ConnState)
	afterFunc    func(time.Duration, func()) timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     ConnState
	conn      *websocket.Conn
	waiters   []chan error
	reconnect timer
	schedule  *reconnectSchedule
	closed    bool

	subMu sync.RWMutex
	subs  map[string][]*subscription
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithReconnectPolicy replaces the default fixed 3s reconnect policy.
func WithReconnectPolicy(p ReconnectPolicy) ChannelOption {
	return func(c *Channel) { c.schedule = newReconnectSchedule(p) }
}

// WithChannelLogger sets the channel logger.
func WithChannelLogger(logger *slog.Logger) ChannelOption {
	return func(c *Channel) { c.logger = logger }
}

// WithStateHook registers a callback invoked after every state change with
// the channel's current state.
func WithStateHook(fn func(ConnState)) ChannelOption {
	return func(c *Channel) { c.onState = fn }
}

// WithDialOptions passes options through to websocket.Dial.
func WithDialOptions(opts *websocket.DialOptions) ChannelOption {
	return func(c *Channel) { c.dialOpts = opts }
}

// WithDialTimeout bounds each connection attempt.
func WithDialTimeout(d time.Duration) ChannelOption {
	return func(c *Channel) { c.dialTimeout = d }
}

// NewChannel creates a disconnected channel for the websocket url.
func NewChannel(url string, opts ...ChannelOption) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		url:          url,
		logger:       slog.Default(),
		dialTimeout:  defaultDialTimeout,
		writeTimeout: defaultWriteTimeout,
		afterFunc:    realAfterFunc,
		ctx:          ctx,
		cancel:       cancel,
		schedule:     newReconnectSchedule(DefaultReconnectPolicy()),
		subs:         make(map[string][]*subscription),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// URL returns the websocket endpoint.
func (c *Channel) URL() string {
	return c.url
}

// State returns the current connection state.
func (c *Channel) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the channel currently has an open connection.
func (c *Channel) Connected() bool {
	return c.State() == StateConnected
}

// Connect opens the connection. It returns immediately when already
// connected; concurrent callers share a single dial.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}

	done := make(chan error, 1)
	c.waiters = append(c.waiters, done)
	started := false
	if c.state == StateDisconnected {
		c.stopReconnectLocked()
		c.state = StateConnecting
		c.wg.Add(1)
		started = true
	}
	c.mu.Unlock()

	if started {
		c.emitState()
		go c.dial()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the channel down. No reconnect fires after Close returns.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopReconnectLocked()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	waiters := c.takeWaitersLocked()
	c.mu.Unlock()

	resolve(waiters, ErrClosed)
	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "client closed"); err != nil {
			c.logger.Debug("Push channel close handshake failed", "error", err)
		}
	}
	c.cancel()
	c.wg.Wait()
	c.emitState()
	return nil
}

// Send writes {type, ...data, timestamp} to the backend. It returns false
// without writing when the channel is not connected.
func (c *Channel) Send(eventType string, data map[string]any) bool {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		c.logger.Warn("Push channel not connected, message dropped", "type", eventType)
		return false
	}

	frame := make(map[string]any, len(data)+2)
	for k, v := range data {
		frame[k] = v
	}
	frame["type"] = eventType
	frame["timestamp"] = time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")

	payload, err := json.Marshal(frame)
	if err != nil {
		c.logger.Warn("Failed to encode push message", "type", eventType, "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		c.logger.Warn("Failed to write push message", "type", eventType, "error", err)
		return false
	}
	return true
}

// Subscribe registers h for eventType. protocol.EventWildcard subscribers
// receive every event after the type-specific ones. The returned func
// removes the subscription; it may be called any number of times, including
// from inside a handler.
func (c *Channel) Subscribe(eventType string, h Handler) func() {
	sub := &subscription{handler: h}
	sub.active.Store(true)

	c.subMu.Lock()
	c.subs[eventType] = append(c.subs[eventType], sub)
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			c.subMu.Lock()
			defer c.subMu.Unlock()
			// Build a fresh slice so snapshots held by dispatch stay intact.
			current := c.subs[eventType]
			next := make([]*subscription, 0, len(current))
			for _, s := range current {
				if s != sub {
					next = append(next, s)
				}
			}
			if len(next) == 0 {
				delete(c.subs, eventType)
				return
			}
			c.subs[eventType] = next
		})
	}
}

func (c *Channel) dispatch(data []byte) {
	typ, err := protocol.PeekType(data)
	if err != nil {
		c.logger.Warn("Dropping malformed push message", "error", err, "size", len(data))
		return
	}
	ev := Event{Type: typ, Data: data}

	c.subMu.RLock()
	specific := c.subs[typ]
	var wildcard []*subscription
	if typ != protocol.EventWildcard {
		wildcard = c.subs[protocol.EventWildcard]
	}
	c.subMu.RUnlock()

	for _, s := range specific {
		c.invoke(s, ev)
	}
	for _, s := range wildcard {
		c.invoke(s, ev)
	}
}

func (c *Channel) invoke(s *subscription, ev Event) {
	if !s.active.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Push handler panicked", "type", ev.Type, "panic", fmt.Sprint(r))
		}
	}()
	s.handler(ev)
}

func (c *Channel) dial() {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.dialTimeout)
	conn, _, err := websocket.Dial(ctx, c.url, c.dialOpts)
	cancel()

	c.mu.Lock()
	if err != nil {
		c.state = StateDisconnected
		closed := c.closed
		if !closed {
			c.scheduleReconnectLocked()
		}
		waiters := c.takeWaitersLocked()
		c.mu.Unlock()

		if !closed {
			c.logger.Warn("Push channel connect failed", "url", c.url, "error", err)
		}
		resolve(waiters, fmt.Errorf("connect %s: %w", c.url, err))
		c.emitState()
		return
	}
	if c.closed {
		c.mu.Unlock()
		_ = conn.CloseNow()
		return
	}

	conn.SetReadLimit(readLimit)
	c.conn = conn
	c.state = StateConnected
	c.schedule.reset()
	waiters := c.takeWaitersLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Info("Push channel connected", "url", c.url)
	resolve(waiters, nil)
	c.emitState()
	go c.readLoop(conn)
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Channel) handleClose(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	closed := c.closed
	if !closed {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	if !closed {
		c.logger.Info("Push channel disconnected", "url", c.url, "close_status", websocket.CloseStatus(cause), "error", cause)
	}
	c.emitState()
}

// scheduleReconnectLocked arms a single reconnect attempt. Callers hold c.mu.
func (c *Channel) scheduleReconnectLocked() {
	if c.reconnect != nil {
		return
	}
	delay, ok := c.schedule.next()
	if !ok {
		c.logger.Warn("Push channel giving up on reconnect", "url", c.url, "attempts", c.schedule.attempts)
		return
	}
	c.logger.Debug("Push channel reconnect scheduled", "delay", delay, "attempt", c.schedule.attempts)
	c.reconnect = c.afterFunc(delay, c.reconnectNow)
}

func (c *Channel) reconnectNow() {
	c.mu.Lock()
	c.reconnect = nil
	if c.closed || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.wg.Add(1)
	c.mu.Unlock()

	c.emitState()
	c.dial()
}

func (c *Channel) stopReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

func (c *Channel) takeWaitersLocked() []chan error {
	w := c.waiters
	c.waiters = nil
	return w
}

func (c *Channel) emitState() {
	if c.onState != nil {
		c.onState(c.State())
	}
}

func resolve(waiters []chan error, err error) {
	for _, w := range waiters {
		w <- err
	}
}
