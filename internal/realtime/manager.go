package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/katatrina/gundam-live/internal/apperror"
	"github.com/katatrina/gundam-live/internal/event"
	"github.com/rs/zerolog/log"
)

var ErrManagerClosed = errors.New("realtime manager is closed")

// State of a Manager.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

const (
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	leaveTimeout                = 2 * time.Second
)

// Handler receives decoded events. Delivery is at-least-once, so handlers must tolerate replays.
// Handlers run on the read goroutine and must not call Stop.
type Handler func(event.StreamEvent)

// SubscriptionID identifies a handler registered with On.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

type opKind int

const (
	opJoin opKind = iota
	opLeave
	opConnected
	opDisconnected
	opGiveUp
	opStop
)

type op struct {
	kind   opKind
	group  string
	conn   Conn
	epoch  uint64
	err    error
	result chan error
}

// Manager owns one push connection. Group membership changes, (re)connections and teardown
// are all applied by a single goroutine, so concurrent JoinGroup/LeaveGroup calls never race on
// the same connection. Groups requested while disconnected are remembered and joined on every
// (re)connect.
type Manager struct {
	name             string
	transport        Transport
	clock            clockwork.Clock
	maxAttempts      int
	baseDelay        time.Duration
	maxDelay         time.Duration
	handshakeTimeout time.Duration

	ops      chan op
	loopDone chan struct{}
	states   *event.Fanout[State]
	wg       sync.WaitGroup

	mu            sync.Mutex
	state         State
	conn          Conn
	epoch         uint64
	desired       []string
	joined        map[string]struct{}
	subscriptions map[event.Kind][]subscription
	nextID        SubscriptionID
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
	stopped       bool
}

// ManagerOption cấu hình Manager
type ManagerOption func(*Manager)

// WithClock replaces the clock used for reconnect backoff.
func WithClock(clock clockwork.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithReconnect configures the reconnect policy: at most maxAttempts tries after a failure,
// waiting baseDelay, 2*baseDelay, ... capped at maxDelay between them.
func WithReconnect(maxAttempts int, baseDelay, maxDelay time.Duration) ManagerOption {
	return func(m *Manager) {
		if maxAttempts >= 0 {
			m.maxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			m.baseDelay = baseDelay
		}
		if maxDelay > 0 {
			m.maxDelay = maxDelay
		}
	}
}

// WithHandshakeTimeout bounds each connection attempt.
func WithHandshakeTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.handshakeTimeout = timeout
		}
	}
}

func NewManager(name string, transport Transport, opts ...ManagerOption) *Manager {
	m := &Manager{
		name:             name,
		transport:        transport,
		clock:            clockwork.NewRealClock(),
		maxAttempts:      DefaultMaxReconnectAttempts,
		baseDelay:        DefaultReconnectBaseDelay,
		maxDelay:         DefaultReconnectMaxDelay,
		handshakeTimeout: DefaultHandshakeTimeout,
		ops:              make(chan op),
		loopDone:         make(chan struct{}),
		states:           event.NewFanout[State]("state:" + name),
		state:            StateIdle,
		joined:           make(map[string]struct{}),
		subscriptions:    make(map[event.Kind][]subscription),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start connects to the hub. A failed handshake is logged and returned as a
// *apperror.ConnectionError; the manager keeps retrying in the background and its State tells
// dependents whether to fall back to polling. Calling Start again is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	go m.loop()

	// the owning view going away tears the manager down
	go func() {
		<-m.ctx.Done()
		m.Stop()
	}()

	conn, err := m.dial()
	if err != nil {
		log.Error().Err(err).Str("stream", m.name).Msg("failed to connect to hub")
		m.send(op{kind: opDisconnected, epoch: m.currentEpoch(), err: err})
		return &apperror.ConnectionError{Stream: m.name, Err: err}
	}

	if !m.send(op{kind: opConnected, conn: conn}) {
		conn.Close()
		return ErrManagerClosed
	}
	return nil
}

// Stop leaves every joined group, closes the connection and releases all goroutines.
// It is safe to call repeatedly, concurrently and before Start has returned.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	cancel := m.cancel
	if !started {
		m.setStateLocked(StateClosed)
	}
	m.mu.Unlock()

	if started {
		result := make(chan error, 1)
		if m.send(op{kind: opStop, result: result}) {
			<-result
		}
		cancel()
		<-m.loopDone
		m.wg.Wait()
	}

	m.states.Close()
	log.Info().Str("stream", m.name).Msg("realtime manager stopped")
}

// JoinGroup subscribes the connection to a broadcast group. While not connected the group is
// queued and joined as soon as the connection is (re)established.
func (m *Manager) JoinGroup(ctx context.Context, group string) error {
	return m.membership(ctx, opJoin, group)
}

// LeaveGroup stops receiving a group and forgets it for future reconnects.
func (m *Manager) LeaveGroup(ctx context.Context, group string) error {
	return m.membership(ctx, opLeave, group)
}

// On registers a handler for an event kind.
func (m *Manager) On(kind event.Kind, handler Handler) SubscriptionID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subscriptions[kind] = append(m.subscriptions[kind], subscription{id: id, handler: handler})
	return id
}

// Off removes a handler registered with On. Unknown ids are ignored.
func (m *Manager) Off(id SubscriptionID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for kind, subs := range m.subscriptions {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			m.subscriptions[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SubscribeState streams state changes. The channel is closed when the manager stops.
func (m *Manager) SubscribeState() chan State {
	ch := make(chan State, 8)
	m.states.Register(ch)
	return ch
}

// UnsubscribeState releases a channel returned by SubscribeState.
func (m *Manager) UnsubscribeState(ch chan State) {
	m.states.Unregister(ch)
}

// JoinedGroups returns the groups joined on the live connection, sorted.
func (m *Manager) JoinedGroups() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	groups := make([]string, 0, len(m.joined))
	for group := range m.joined {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups
}

func (m *Manager) membership(ctx context.Context, kind opKind, group string) error {
	if group == "" {
		return fmt.Errorf("group must not be empty")
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if !m.started {
		// nothing to invoke yet: record the intent for the first connect
		if kind == opJoin {
			m.addDesiredLocked(group)
		} else {
			m.removeDesiredLocked(group)
		}
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	result := make(chan error, 1)
	select {
	case m.ops <- op{kind: kind, group: group, result: result}:
	case <-m.loopDone:
		return ErrManagerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop is the only goroutine that touches the connection.
func (m *Manager) loop() {
	defer close(m.loopDone)

	for o := range m.ops {
		switch o.kind {
		case opJoin:
			o.result <- m.handleJoin(o.group)
		case opLeave:
			o.result <- m.handleLeave(o.group)
		case opConnected:
			m.handleConnected(o.conn)
		case opDisconnected:
			m.handleDisconnected(o.epoch, o.err)
		case opGiveUp:
			m.handleGiveUp(o.epoch)
		case opStop:
			m.handleStop()
			o.result <- nil
			return
		}
	}
}

func (m *Manager) handleJoin(group string) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.addDesiredLocked(group)
	conn, connected := m.conn, m.state == StateConnected
	_, already := m.joined[group]
	m.mu.Unlock()

	if !connected || already {
		return nil
	}
	return m.invokeJoin(conn, group)
}

func (m *Manager) handleLeave(group string) error {
	m.mu.Lock()
	m.removeDesiredLocked(group)
	conn := m.conn
	_, joined := m.joined[group]
	delete(m.joined, group)
	m.mu.Unlock()

	if !joined || conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.handshakeTimeout)
	defer cancel()
	if err := conn.Invoke(ctx, event.HubMethodLeaveGroup, group); err != nil {
		return fmt.Errorf("failed to leave group %s: %w", group, err)
	}
	log.Debug().Str("stream", m.name).Str("group", group).Msg("left group")
	return nil
}

func (m *Manager) handleConnected(conn Conn) {
	m.mu.Lock()
	if m.stopped || m.state == StateClosed {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.epoch++
	epoch := m.epoch
	m.conn = conn
	m.joined = make(map[string]struct{})
	desired := append([]string(nil), m.desired...)
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.readLoop(conn, epoch)

	for _, group := range desired {
		if err := m.invokeJoin(conn, group); err != nil {
			log.Warn().Err(err).Str("stream", m.name).Str("group", group).Msg("failed to rejoin group")
		}
	}
}

func (m *Manager) handleDisconnected(epoch uint64, cause error) {
	m.mu.Lock()
	if epoch != m.epoch || m.stopped || m.state == StateClosed || m.state == StateReconnecting {
		m.mu.Unlock()
		return
	}
	conn := m.conn
	m.conn = nil
	m.joined = make(map[string]struct{})
	m.setStateLocked(StateReconnecting)
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if cause != nil {
		log.Warn().Err(cause).Str("stream", m.name).Msg("hub connection lost, reconnecting")
	}

	m.wg.Add(1)
	go m.reconnect(epoch)
}

func (m *Manager) handleGiveUp(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch || m.state != StateReconnecting {
		return
	}
	m.setStateLocked(StateClosed)
	log.Error().
		Str("stream", m.name).
		Int("attempts", m.maxAttempts).
		Msg("giving up reconnecting to hub, falling back to polling")
}

func (m *Manager) handleStop() {
	m.mu.Lock()
	conn := m.conn
	joined := make([]string, 0, len(m.joined))
	for group := range m.joined {
		joined = append(joined, group)
	}
	sort.Strings(joined)
	m.conn = nil
	m.joined = make(map[string]struct{})
	m.epoch++
	m.setStateLocked(StateClosed)
	m.mu.Unlock()

	if conn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	for _, group := range joined {
		if err := conn.Invoke(ctx, event.HubMethodLeaveGroup, group); err != nil {
			log.Debug().Err(err).Str("stream", m.name).Str("group", group).Msg("failed to leave group on stop")
		}
	}
	conn.Close()
}

func (m *Manager) invokeJoin(conn Conn, group string) error {
	ctx, cancel := context.WithTimeout(m.ctx, m.handshakeTimeout)
	defer cancel()

	if err := conn.Invoke(ctx, event.HubMethodJoinGroup, group); err != nil {
		return fmt.Errorf("failed to join group %s: %w", group, err)
	}

	m.mu.Lock()
	if m.conn == conn && m.state == StateConnected {
		m.joined[group] = struct{}{}
	}
	m.mu.Unlock()

	log.Debug().Str("stream", m.name).Str("group", group).Msg("joined group")
	return nil
}

func (m *Manager) readLoop(conn Conn, epoch uint64) {
	defer m.wg.Done()

	for {
		frame, err := conn.Receive()
		if err != nil {
			m.send(op{kind: opDisconnected, epoch: epoch, err: err})
			return
		}
		m.dispatch(epoch, frame)
	}
}

func (m *Manager) dispatch(epoch uint64, frame Frame) {
	evt, err := event.Decode(frame.Target, frame.Payload)
	if err != nil {
		log.Debug().Err(err).Str("stream", m.name).Msg("dropping undecodable frame")
		return
	}

	m.mu.Lock()
	if epoch != m.epoch || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	subs := append([]subscription(nil), m.subscriptions[evt.Kind]...)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.handler(evt)
	}
}

func (m *Manager) reconnect(epoch uint64) {
	defer m.wg.Done()

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		delay := m.backoff(attempt)
		log.Info().
			Str("stream", m.name).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("scheduling hub reconnect")

		select {
		case <-m.ctx.Done():
			return
		case <-m.clock.After(delay):
		}

		conn, err := m.dial()
		if err != nil {
			log.Warn().Err(err).Str("stream", m.name).Int("attempt", attempt).Msg("hub reconnect failed")
			continue
		}
		if !m.send(op{kind: opConnected, conn: conn}) {
			conn.Close()
		}
		return
	}

	m.send(op{kind: opGiveUp, epoch: epoch})
}

func (m *Manager) backoff(attempt int) time.Duration {
	delay := m.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.maxDelay {
			return m.maxDelay
		}
	}
	if delay > m.maxDelay {
		return m.maxDelay
	}
	return delay
}

func (m *Manager) dial() (Conn, error) {
	ctx, cancel := context.WithTimeout(m.ctx, m.handshakeTimeout)
	defer cancel()
	return m.transport.Connect(ctx)
}

// send hands an op to the loop. It reports false once the loop has exited.
func (m *Manager) send(o op) bool {
	select {
	case m.ops <- o:
		return true
	case <-m.loopDone:
		return false
	}
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

func (m *Manager) setStateLocked(state State) {
	if m.state == state {
		return
	}
	log.Info().
		Str("stream", m.name).
		Str("old_state", string(m.state)).
		Str("new_state", string(state)).
		Msg("realtime state changed")
	m.state = state
	m.states.Broadcast(state)
}

func (m *Manager) addDesiredLocked(group string) {
	for _, g := range m.desired {
		if g == group {
			return
		}
	}
	m.desired = append(m.desired, group)
}

func (m *Manager) removeDesiredLocked(group string) {
	for i, g := range m.desired {
		if g == group {
			m.desired = append(m.desired[:i:i], m.desired[i+1:]...)
			return
		}
	}
}
