// Package session owns the lifecycle of one automation connection: a
// single worker goroutine pinned to its OS thread, a warm-up handshake
// that waits for the remote surface to become responsive, and a mailbox
// that serializes every operation onto that thread.
//
// The automation surface is apartment-threaded: every call against it
// must come from the thread that created the connection. The worker locks
// its OS thread before connecting and never hands the store to another
// goroutine; callers submit closures through Do and wait on a reply.
package session

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/dgower/olbridge/internal/bridge"
	"github.com/dgower/olbridge/internal/mapi"
)

// State is the lifecycle state of a session.
type State int32

const (
	// StateUninitialized is the state before Start is called.
	StateUninitialized State = iota

	// StateWarmingUp is the state while the worker probes the surface
	// for responsiveness.
	StateWarmingUp

	// StateReady is the state in which operations are accepted.
	StateReady

	// StateClosed is the terminal state after Close.
	StateClosed
)

// String returns the state's wire name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateWarmingUp:
		return "warming_up"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	// defaultWarmupAttempts is how many responsiveness probes the worker
	// makes before giving up on the surface.
	defaultWarmupAttempts = 5

	// defaultWarmupDelay is the fixed pause between probes. The surface
	// answers calls during its own startup with transient faults, so
	// backing off further buys nothing.
	defaultWarmupDelay = 500 * time.Millisecond

	// defaultCallTimeout bounds how long a caller waits for its reply
	// when its context carries no deadline. The operation itself still
	// runs to completion on the worker; only the wait is bounded, since
	// a call in flight on the automation surface cannot be cancelled.
	defaultCallTimeout = 30 * time.Second

	// defaultMailboxSize is the buffered capacity of the work queue.
	defaultMailboxSize = 16
)

// Connector produces the automation store. It runs on the session's
// locked worker thread, never on the caller's goroutine.
type Connector func() (mapi.Store, error)

// Config holds the session parameters.
type Config struct {
	// Connect produces the store when the worker starts.
	Connect Connector

	// DefaultAccount optionally pins folder resolution to one account.
	DefaultAccount string

	// WarmupAttempts overrides the probe count when positive.
	WarmupAttempts int

	// WarmupDelay overrides the pause between probes when positive.
	WarmupDelay time.Duration

	// CallTimeout overrides the default reply wait bound when positive.
	CallTimeout time.Duration
}

func (c *Config) warmupAttempts() int {
	if c.WarmupAttempts > 0 {
		return c.WarmupAttempts
	}
	return defaultWarmupAttempts
}

func (c *Config) warmupDelay() time.Duration {
	if c.WarmupDelay > 0 {
		return c.WarmupDelay
	}
	return defaultWarmupDelay
}

func (c *Config) callTimeout() time.Duration {
	if c.CallTimeout > 0 {
		return c.CallTimeout
	}
	return defaultCallTimeout
}

// envelope is one queued operation: a closure to run on the worker thread
// and the channel its result is delivered on. The reply channel is
// buffered so the worker never blocks on a caller that gave up waiting.
type envelope struct {
	run   func(*bridge.Bridge) (any, error)
	reply chan fn.Result[any]
}

// Manager owns one automation session.
type Manager struct {
	cfg Config

	state atomic.Int32

	mailbox chan envelope
	quit    chan struct{}
	wg      sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewManager creates a session manager. The session is inert until Start.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:     cfg,
		mailbox: make(chan envelope, defaultMailboxSize),
		quit:    make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Start launches the worker, connects, and blocks until warm-up completes
// or fails. On failure the session transitions to closed and the error is
// returned; a failed session is never half-usable.
func (m *Manager) Start(ctx context.Context) error {
	var startErr error

	m.startOnce.Do(func() {
		ready := make(chan error, 1)

		m.state.Store(int32(StateWarmingUp))

		m.wg.Add(1)
		go m.run(ready)

		select {
		case err := <-ready:
			startErr = err

		case <-ctx.Done():
			startErr = ctx.Err()
			m.Close()
		}
	})

	if startErr != nil {
		m.state.Store(int32(StateClosed))
		return startErr
	}

	if m.State() == StateUninitialized {
		return ErrNotStarted
	}

	return nil
}

// run is the worker loop. It locks its OS thread for its entire life: the
// store it creates is only valid on this thread.
func (m *Manager) run(ready chan<- error) {
	defer m.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	store, err := m.cfg.Connect()
	if err != nil {
		log.Errorf("Connecting to automation surface: %v", err)
		ready <- err
		return
	}

	if err := m.warmup(store); err != nil {
		store.Release()
		ready <- err
		return
	}

	var opts []bridge.Option
	if m.cfg.DefaultAccount != "" {
		opts = append(opts, bridge.WithDefaultAccount(m.cfg.DefaultAccount))
	}
	br := bridge.New(store, opts...)

	m.state.Store(int32(StateReady))
	log.Infof("Session ready")
	ready <- nil

	for {
		select {
		case env := <-m.mailbox:
			m.serve(br, env)

		case <-m.quit:
			m.drain(br)
			m.teardown(store)
			return
		}
	}
}

// warmup probes the surface until it answers a trivial read, with a fixed
// delay between attempts. A freshly launched surface accepts connections
// before it can serve calls, so the first successful probe is what marks
// the session usable.
func (m *Manager) warmup(store mapi.Store) error {
	attempts := m.cfg.warmupAttempts()
	delay := m.cfg.warmupDelay()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := probe(store); err != nil {
			lastErr = err
			log.Debugf("Warm-up probe %d/%d failed: %v", attempt,
				attempts, err)

			if attempt < attempts {
				select {
				case <-time.After(delay):
				case <-m.quit:
					return ErrClosed
				}
			}
			continue
		}

		log.Debugf("Warm-up complete after %d probe(s)", attempt)
		return nil
	}

	log.Errorf("Warm-up failed after %d attempts: %v", attempts, lastErr)

	return ErrWarmupFailed
}

// probe performs the trivial responsiveness read: the inbox item count.
func probe(store mapi.Store) error {
	inbox, err := store.DefaultFolder(mapi.FolderInbox)
	if err != nil {
		return err
	}

	items, err := inbox.Get("Items")
	if err != nil {
		return err
	}

	coll, ok := items.(mapi.Collection)
	if !ok {
		return mapi.ErrNoSuchProperty
	}

	_, err = coll.Count()
	return err
}

// serve runs one envelope on the worker thread.
func (m *Manager) serve(br *bridge.Bridge, env envelope) {
	v, err := env.run(br)
	if err != nil {
		env.reply <- fn.Err[any](err)
		return
	}

	env.reply <- fn.Ok(v)
}

// drain answers every queued envelope with ErrClosed so no caller hangs
// across shutdown.
func (m *Manager) drain(br *bridge.Bridge) {
	for {
		select {
		case env := <-m.mailbox:
			env.reply <- fn.Err[any](ErrClosed)
		default:
			return
		}
	}
}

// teardown releases the store and forces a collection pass so every
// automation reference is dropped before the thread unlocks. Lingering
// references keep the remote process pinned after the session ends.
func (m *Manager) teardown(store mapi.Store) {
	store.Release()
	runtime.GC()
	log.Infof("Session closed")
}

// Close shuts the session down and waits for the worker to finish
// releasing its references. Close is idempotent.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		m.state.Store(int32(StateClosed))
		close(m.quit)
	})

	m.wg.Wait()
}

// Do submits an operation to the session's worker thread and waits for
// its result. The wait is bounded by the context deadline, or by the
// configured call timeout when the context carries none; a timed-out wait
// abandons the reply but the operation still completes on the worker.
func Do[T any](ctx context.Context, m *Manager,
	f func(*bridge.Bridge) (T, error)) (T, error) {

	var zero T

	switch m.State() {
	case StateUninitialized:
		return zero, ErrNotStarted
	case StateWarmingUp:
		return zero, ErrNotReady
	case StateClosed:
		return zero, ErrClosed
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.callTimeout())
		defer cancel()
	}

	env := envelope{
		run: func(br *bridge.Bridge) (any, error) {
			return f(br)
		},
		reply: make(chan fn.Result[any], 1),
	}

	select {
	case m.mailbox <- env:
		// The worker may have exited between the state check and the
		// send, leaving the envelope parked in the buffer past the
		// shutdown drain. Re-check quit so the caller gets a prompt
		// ErrClosed instead of waiting out the full reply timeout.
		select {
		case <-m.quit:
			return zero, ErrClosed
		default:
		}

	case <-m.quit:
		return zero, ErrClosed

	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case res := <-env.reply:
		v, err := res.Unpack()
		if err != nil {
			return zero, err
		}

		out, ok := v.(T)
		if !ok {
			// run always returns f's T; a mismatch means a nil
			// interface from an error path.
			return zero, nil
		}

		return out, nil

	case <-ctx.Done():
		log.Warnf("Abandoning reply wait: %v", ctx.Err())
		return zero, ctx.Err()
	}
}
