package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dgower/olbridge/internal/bridge"
	"github.com/dgower/olbridge/internal/mapi"
	"github.com/dgower/olbridge/internal/simstore"
)

// deafStore accepts the connection but never answers a probe, the way a
// launching automation surface behaves.
type deafStore struct {
	probes atomic.Int32
}

var _ mapi.Store = (*deafStore)(nil)

func (d *deafStore) ItemFromID(string) (mapi.Object, error) {
	return nil, errors.New("not responding")
}

func (d *deafStore) DefaultFolder(mapi.WellKnownFolder) (mapi.Object, error) {
	d.probes.Add(1)
	return nil, errors.New("not responding")
}

func (d *deafStore) Roots() (mapi.Collection, error) {
	return nil, errors.New("not responding")
}

func (d *deafStore) CreateItem(mapi.ItemClass) (mapi.Object, error) {
	return nil, errors.New("not responding")
}

func (d *deafStore) CreateRecipient(string) (mapi.Object, error) {
	return nil, errors.New("not responding")
}

func (d *deafStore) CurrentUserAddress() (string, error) {
	return "", errors.New("not responding")
}

func (d *deafStore) Release() {}

func simConnector() Connector {
	return func() (mapi.Store, error) {
		return simstore.New(simstore.Config{})
	}
}

func TestStartAndDo(t *testing.T) {
	m := NewManager(Config{Connect: simConnector()})

	require.Equal(t, StateUninitialized, m.State())

	// Operations before Start are rejected outright.
	_, err := Do(context.Background(), m,
		func(b *bridge.Bridge) (int, error) { return 0, nil })
	require.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, m.Start(context.Background()))
	require.Equal(t, StateReady, m.State())

	n, err := Do(context.Background(), m,
		func(b *bridge.Bridge) (int, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, n)

	// Operation errors pass through unchanged.
	boom := errors.New("boom")
	_, err = Do(context.Background(), m,
		func(b *bridge.Bridge) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	m.Close()
	require.Equal(t, StateClosed, m.State())

	_, err = Do(context.Background(), m,
		func(b *bridge.Bridge) (int, error) { return 0, nil })
	require.ErrorIs(t, err, ErrClosed)
}

func TestStartIsOneShot(t *testing.T) {
	m := NewManager(Config{Connect: simConnector()})
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	// A second Start is a no-op on a running session.
	require.NoError(t, m.Start(context.Background()))
	require.Equal(t, StateReady, m.State())
}

func TestCloseIsIdempotent(t *testing.T) {
	m := NewManager(Config{Connect: simConnector()})
	require.NoError(t, m.Start(context.Background()))

	m.Close()
	m.Close()
	require.Equal(t, StateClosed, m.State())
}

func TestConnectFailure(t *testing.T) {
	dialErr := errors.New("application not installed")
	m := NewManager(Config{
		Connect: func() (mapi.Store, error) { return nil, dialErr },
	})

	err := m.Start(context.Background())
	require.ErrorIs(t, err, dialErr)
	require.Equal(t, StateClosed, m.State())
}

// TestWarmupFailureAttempts pins the warm-up contract: exactly the
// configured number of probes, then a terminal initialization error.
func TestWarmupFailureAttempts(t *testing.T) {
	store := &deafStore{}
	m := NewManager(Config{
		Connect:        func() (mapi.Store, error) { return store, nil },
		WarmupAttempts: 5,
		WarmupDelay:    time.Millisecond,
	})

	err := m.Start(context.Background())
	require.ErrorIs(t, err, ErrWarmupFailed)
	require.Equal(t, StateClosed, m.State())
	require.EqualValues(t, 5, store.probes.Load())

	_, err = Do(context.Background(), m,
		func(b *bridge.Bridge) (int, error) { return 0, nil })
	require.ErrorIs(t, err, ErrClosed)
}

func TestDoHonorsContext(t *testing.T) {
	m := NewManager(Config{Connect: simConnector()})
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, m,
		func(b *bridge.Bridge) (int, error) { return 1, nil })
	require.ErrorIs(t, err, context.Canceled)
}

// TestDoSerializes checks that operations run one at a time on the worker
// even when submitted concurrently.
func TestDoSerializes(t *testing.T) {
	m := NewManager(Config{Connect: simConnector()})
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	var inFlight, maxSeen atomic.Int32

	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := Do(context.Background(), m,
				func(b *bridge.Bridge) (int, error) {
					n := inFlight.Add(1)
					if n > maxSeen.Load() {
						maxSeen.Store(n)
					}
					time.Sleep(time.Millisecond)
					inFlight.Add(-1)
					return 0, nil
				})
			errCh <- err
		}()
	}

	for i := 0; i < 8; i++ {
		require.NoError(t, <-errCh)
	}

	require.EqualValues(t, 1, maxSeen.Load())
}

// TestDoAfterWorkerGone reproduces the shutdown interleaving in which a
// caller passes the state check just before the worker drains and
// exits: its envelope lands in the buffered mailbox where nothing will
// ever answer it. The caller must get ErrClosed promptly instead of
// waiting out the full reply timeout. Repeated because the doomed send
// races a same-instant quit observation.
func TestDoAfterWorkerGone(t *testing.T) {
	for i := 0; i < 8; i++ {
		m := NewManager(Config{CallTimeout: time.Minute})

		// The worker is already gone: quit closed, mailbox drained,
		// but the caller saw StateReady before the state flipped.
		m.state.Store(int32(StateReady))
		close(m.quit)

		done := make(chan error, 1)
		go func() {
			_, err := Do(context.Background(), m,
				func(*bridge.Bridge) (int, error) { return 0, nil })
			done <- err
		}()

		select {
		case err := <-done:
			require.ErrorIs(t, err, ErrClosed)
		case <-time.After(5 * time.Second):
			t.Fatal("caller stuck waiting on a dead session")
		}
	}
}
