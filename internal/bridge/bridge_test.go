package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgower/olbridge/internal/simstore"
)

// newTestBridge builds a bridge over a fresh in-memory store.
func newTestBridge(t *testing.T) (*Bridge, *simstore.Store) {
	t.Helper()

	store, err := simstore.New(simstore.Config{
		UserEmail: "owner@example.com",
		UserName:  "Mailbox Owner",
	})
	require.NoError(t, err)
	t.Cleanup(store.Release)

	return New(store), store
}

// TestFolderResolution covers the logical folder names and the named
// subfolder path.
func TestFolderResolution(t *testing.T) {
	b, store := newTestBridge(t)

	for _, name := range []string{
		"inbox", "Inbox", "calendar", "tasks", "drafts",
		"sent items", "deleted items",
	} {
		folder, err := b.Folder(name)
		require.NoError(t, err, "folder %q", name)
		require.NotNil(t, folder)
	}

	_, err := b.Folder("No Such Folder")
	require.ErrorIs(t, err, ErrFolderNotFound)

	// A custom subfolder resolves by display name.
	_, err = store.CreateFolder("Projects")
	require.NoError(t, err)

	folder, err := b.Folder("Projects")
	require.NoError(t, err)

	name, err := folder.Get("Name")
	require.NoError(t, err)
	require.Equal(t, "Projects", name)
}

func TestItemByIDValidation(t *testing.T) {
	b, _ := newTestBridge(t)

	_, err := b.ItemByID("")
	require.Error(t, err)
	require.Equal(t, KindValidation, Classify(err))
}

func TestListFolders(t *testing.T) {
	b, store := newTestBridge(t)

	_, err := store.CreateFolder("Projects")
	require.NoError(t, err)

	folders, err := b.ListFolders("")
	require.NoError(t, err)

	byName := make(map[string]FolderRecord)
	for _, f := range folders {
		byName[f.Name] = f
	}

	inbox, ok := byName["Inbox"]
	require.True(t, ok)
	require.Equal(t, 1, inbox.Depth)
	require.NotEmpty(t, inbox.EntryID)
	require.Contains(t, inbox.Path, "Inbox")

	_, ok = byName["Projects"]
	require.True(t, ok)

	// Filtering by an unknown account fails folder resolution.
	_, err = b.ListFolders("nobody")
	require.ErrorIs(t, err, ErrFolderNotFound)
}
