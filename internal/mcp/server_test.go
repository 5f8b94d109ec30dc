package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgower/olbridge/internal/bridge"
	"github.com/dgower/olbridge/internal/mapi"
	"github.com/dgower/olbridge/internal/session"
	"github.com/dgower/olbridge/internal/simstore"
)

// testSession starts a session over a fresh in-memory store.
func testSession(t *testing.T) *session.Manager {
	t.Helper()

	sess := session.NewManager(session.Config{
		Connect: func() (mapi.Store, error) {
			return simstore.New(simstore.Config{})
		},
	})
	require.NoError(t, sess.Start(context.Background()))
	t.Cleanup(sess.Close)

	return sess
}

// TestNewServer verifies that every tool and resource registers without
// panicking; registration is where argument schemas are validated.
func TestNewServer(t *testing.T) {
	server := NewServer(testSession(t))
	require.NotNil(t, server)
}

func TestWrapErr(t *testing.T) {
	require.NoError(t, wrapErr(nil))

	err := wrapErr(bridge.ErrNotFound)
	require.ErrorIs(t, err, bridge.ErrNotFound)
	require.Contains(t, err.Error(), "not_found:")

	err = wrapErr(bridge.ErrFolderNotFound)
	require.Contains(t, err.Error(), "folder_not_found:")
}

func TestResourcePayloads(t *testing.T) {
	sess := testSession(t)

	_, err := session.Do(context.Background(), sess,
		func(b *bridge.Bridge) (any, error) {
			return b.SendEmail(bridge.SendEmailRequest{
				To:      []string{"bob@example.com"},
				Subject: "hello",
				Body:    "hi",
				Draft:   true,
			})
		})
	require.NoError(t, err)

	s := NewServer(sess)

	res, err := s.readTasksActive(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Equal(t, "application/json", res.Contents[0].MIMEType)
	require.NotEmpty(t, res.Contents[0].Text)
}
