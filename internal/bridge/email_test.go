package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dgower/olbridge/internal/simstore"
)

func seedInbox(t *testing.T, store *simstore.Store, n int) []string {
	t.Helper()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)

	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id, err := store.AddEmail(simstore.SeedEmail{
			Subject:     fmt.Sprintf("Message %d", i),
			Body:        fmt.Sprintf("body %d", i),
			SenderName:  "Alice Example",
			SenderEmail: "alice@example.com",
			To:          "owner@example.com",
			Received:    base.Add(time.Duration(i) * time.Hour),
			Unread:      true,
		})
		require.NoError(t, err)
		ids[i] = id
	}

	return ids
}

func TestListEmailsBoundAndOrder(t *testing.T) {
	b, store := newTestBridge(t)
	seedInbox(t, store, 15)

	emails, err := b.ListEmails(10, "")
	require.NoError(t, err)
	require.Len(t, emails, 10)

	// Newest first: the last seeded message leads.
	require.Equal(t, "Message 14", emails[0].Subject)
	for i := 1; i < len(emails); i++ {
		require.True(t,
			emails[i-1].ReceivedTime >= emails[i].ReceivedTime,
			"list not newest-first at index %d", i)
	}

	// A zero limit falls back to the default bound.
	emails, err = b.ListEmails(0, "")
	require.NoError(t, err)
	require.Len(t, emails, 10)
}

func TestListEmailsIdempotent(t *testing.T) {
	b, store := newTestBridge(t)
	seedInbox(t, store, 5)

	first, err := b.ListEmails(10, "")
	require.NoError(t, err)

	second, err := b.ListEmails(10, "")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGetEmailNotFound(t *testing.T) {
	b, _ := newTestBridge(t)

	_, err := b.GetEmail("no-such-entry-id")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, KindNotFound, Classify(err))
}

func TestGetEmailIdempotent(t *testing.T) {
	b, store := newTestBridge(t)
	ids := seedInbox(t, store, 1)

	first, err := b.GetEmail(ids[0])
	require.NoError(t, err)

	second, err := b.GetEmail(ids[0])
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGetEmailRecipients(t *testing.T) {
	b, store := newTestBridge(t)

	// Received mail carries the To line it was addressed with.
	ids := seedInbox(t, store, 1)
	email, err := b.GetEmail(ids[0])
	require.NoError(t, err)
	require.Equal(t, "owner@example.com", email.To)

	// A composed draft reads back all three recipient lines.
	res, err := b.SendEmail(SendEmailRequest{
		To:      []string{"bob@example.com", "carol@example.com"},
		CC:      []string{"dave@example.com"},
		BCC:     []string{"erin@example.com"},
		Subject: "Recipients",
		Body:    "body",
		Draft:   true,
	})
	require.NoError(t, err)

	draft, err := b.GetEmail(res.EntryID)
	require.NoError(t, err)
	require.Equal(t, "bob@example.com; carol@example.com", draft.To)
	require.Equal(t, "dave@example.com", draft.CC)
	require.Equal(t, "erin@example.com", draft.BCC)

	// The list view stays recipient-free; bodies and recipient lines
	// are detail-read fields.
	summaries, err := b.ListEmails(5, "")
	require.NoError(t, err)
	require.NotEmpty(t, summaries)
	require.Empty(t, summaries[0].To)
}

func TestGetEmailHTMLFallback(t *testing.T) {
	b, store := newTestBridge(t)

	id, err := store.AddEmail(simstore.SeedEmail{
		Subject:     "HTML only",
		HTMLBody:    "<html><body><p>Quarterly numbers</p></body></html>",
		SenderEmail: "alice@example.com",
	})
	require.NoError(t, err)

	email, err := b.GetEmail(id)
	require.NoError(t, err)
	require.Contains(t, email.Body, "Quarterly numbers")
}

func TestSendEmailValidation(t *testing.T) {
	b, _ := newTestBridge(t)

	// No recipients on a non-draft.
	_, err := b.SendEmail(SendEmailRequest{Subject: "hi", Body: "hi"})
	require.Error(t, err)
	require.Equal(t, KindValidation, Classify(err))

	// Neither subject nor body.
	_, err = b.SendEmail(SendEmailRequest{To: []string{"a@example.com"}})
	require.Error(t, err)
	require.Equal(t, KindValidation, Classify(err))

	// Missing attachment file.
	_, err = b.SendEmail(SendEmailRequest{
		To:          []string{"a@example.com"},
		Subject:     "hi",
		Attachments: []string{"/no/such/file.txt"},
	})
	require.Error(t, err)
	require.Equal(t, KindValidation, Classify(err))
}

func TestSendDraftRoundTrip(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.SendEmail(SendEmailRequest{
		To:      []string{"bob@example.com"},
		Subject: "Draft subject",
		Body:    "Draft body",
		Draft:   true,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.EntryID)

	email, err := b.GetEmail(res.EntryID)
	require.NoError(t, err)
	require.Equal(t, "Draft subject", email.Subject)
	require.Equal(t, "Draft body", email.Body)
}

// TestSendNewIdentifier pins the identifier instability across the send
// transition: the sent copy lands in Sent Items under a fresh identifier,
// so the operation result carries none.
func TestSendNewIdentifier(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.SendEmail(SendEmailRequest{
		To:      []string{"bob@example.com"},
		Subject: "Outbound",
		Body:    "ship it",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Empty(t, res.EntryID)

	sent, err := b.ListEmails(10, "Sent Items")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Equal(t, "Outbound", sent[0].Subject)
	require.NotEmpty(t, sent[0].EntryID)
}

func TestReplyQuotesOriginal(t *testing.T) {
	b, store := newTestBridge(t)

	id, err := store.AddEmail(simstore.SeedEmail{
		Subject:     "Budget question",
		Body:        "What is the Q3 number?",
		SenderName:  "Alice Example",
		SenderEmail: "alice@example.com",
		To:          "owner@example.com",
		Received:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)

	res, err := b.ReplyEmail(id, "It is 42.", false, true)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.EntryID)

	draft, err := b.GetEmail(res.EntryID)
	require.NoError(t, err)
	require.Contains(t, draft.Subject, "Budget question")
	require.Contains(t, draft.Body, "It is 42.")
	require.Contains(t, draft.Body, "What is the Q3 number?")
	require.Contains(t, draft.Body, "alice@example.com")
}

func TestForwardEmail(t *testing.T) {
	b, store := newTestBridge(t)

	id, err := store.AddEmail(simstore.SeedEmail{
		Subject:     "FYI",
		Body:        "original content",
		SenderEmail: "alice@example.com",
	})
	require.NoError(t, err)

	res, err := b.ForwardEmail(
		id, []string{"carol@example.com"}, "see below", true,
	)
	require.NoError(t, err)
	require.NotEmpty(t, res.EntryID)

	draft, err := b.GetEmail(res.EntryID)
	require.NoError(t, err)
	require.Contains(t, draft.Body, "see below")
	require.Contains(t, draft.Body, "original content")

	// Forwarding without recipients is rejected before any write.
	_, err = b.ForwardEmail(id, nil, "", false)
	require.Equal(t, KindValidation, Classify(err))
}

func TestMarkEmail(t *testing.T) {
	b, store := newTestBridge(t)
	ids := seedInbox(t, store, 1)

	res, err := b.MarkEmail(ids[0], false)
	require.NoError(t, err)
	require.True(t, res.Success)

	email, err := b.GetEmail(ids[0])
	require.NoError(t, err)
	require.False(t, email.Unread)

	_, err = b.MarkEmail(ids[0], true)
	require.NoError(t, err)

	email, err = b.GetEmail(ids[0])
	require.NoError(t, err)
	require.True(t, email.Unread)
}

func TestMoveEmail(t *testing.T) {
	b, store := newTestBridge(t)
	ids := seedInbox(t, store, 1)

	_, err := store.CreateFolder("Archive 2026")
	require.NoError(t, err)

	res, err := b.MoveEmail(ids[0], "Archive 2026")
	require.NoError(t, err)
	require.True(t, res.Success)

	moved, err := b.ListEmails(10, "Archive 2026")
	require.NoError(t, err)
	require.Len(t, moved, 1)

	inbox, err := b.ListEmails(10, "")
	require.NoError(t, err)
	require.Empty(t, inbox)

	// Unknown destination folder surfaces as folder-not-found.
	_, err = b.MoveEmail(ids[0], "Nowhere")
	require.ErrorIs(t, err, ErrFolderNotFound)
}

func TestDeleteEmail(t *testing.T) {
	b, store := newTestBridge(t)
	ids := seedInbox(t, store, 1)

	res, err := b.DeleteEmail(ids[0])
	require.NoError(t, err)
	require.True(t, res.Success)

	inbox, err := b.ListEmails(10, "")
	require.NoError(t, err)
	require.Empty(t, inbox)

	deleted, err := b.ListEmails(10, "Deleted Items")
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	_, err = b.DeleteEmail("missing-id")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSearchEmails(t *testing.T) {
	b, store := newTestBridge(t)

	_, err := store.AddEmail(simstore.SeedEmail{
		Subject:     "Budget review",
		Body:        "numbers attached",
		SenderName:  "Alice Example",
		SenderEmail: "alice@example.com",
		Unread:      true,
		Attachments: map[string][]byte{"q3.xlsx": []byte("data")},
	})
	require.NoError(t, err)

	_, err = store.AddEmail(simstore.SeedEmail{
		Subject:     "Lunch plans",
		Body:        "tacos?",
		SenderName:  "Bob Example",
		SenderEmail: "bob@example.com",
		Unread:      false,
	})
	require.NoError(t, err)

	// Subject substring.
	hits, err := b.SearchEmails(SearchQuery{Subject: "Budget"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "Budget review", hits[0].Subject)

	// Sender matches name or address.
	hits, err = b.SearchEmails(SearchQuery{Sender: "bob@"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "Lunch plans", hits[0].Subject)

	// Unread filter, both polarities.
	unread := true
	hits, err = b.SearchEmails(SearchQuery{Unread: &unread})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.True(t, hits[0].Unread)

	unread = false
	hits, err = b.SearchEmails(SearchQuery{Unread: &unread})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.False(t, hits[0].Unread)

	// Attachment presence.
	hasAttach := true
	hits, err = b.SearchEmails(SearchQuery{HasAttachments: &hasAttach})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.True(t, hits[0].HasAttachments)

	// Combined criteria narrow the result.
	hits, err = b.SearchEmails(SearchQuery{
		Subject: "Budget",
		Sender:  "bob@",
	})
	require.NoError(t, err)
	require.Empty(t, hits)

	// A quote in a term must not break the restriction.
	_, err = b.SearchEmails(SearchQuery{Subject: "o'brien"})
	require.NoError(t, err)
}

func TestDownloadAttachments(t *testing.T) {
	b, store := newTestBridge(t)

	// notes<.txt and notes>.txt sanitize to the same name, and
	// notes_-1.txt squats on the first suffixed form of it.
	id, err := store.AddEmail(simstore.SeedEmail{
		Subject: "With files",
		Attachments: map[string][]byte{
			"report.pdf":        []byte("pdf bytes"),
			`bad<name>:"q".txt`: []byte("sanitize me"),
			"notes<.txt":        []byte("one"),
			"notes>.txt":        []byte("two"),
			"notes_-1.txt":      []byte("three"),
		},
	})
	require.NoError(t, err)

	dir := t.TempDir()
	saved, err := b.DownloadAttachments(id, dir)
	require.NoError(t, err)
	require.Len(t, saved, 5)

	paths := make(map[string]bool)
	for _, att := range saved {
		require.Equal(t, dir, filepath.Dir(att.Path))
		require.NotContains(t, att.FileName, "<")
		require.NotContains(t, att.FileName, ":")

		require.False(t, paths[att.Path],
			"attachment path %s handed out twice", att.Path)
		paths[att.Path] = true

		data, err := os.ReadFile(att.Path)
		require.NoError(t, err)
		require.Equal(t, att.Size, int64(len(data)))
	}

	// No attachments is an empty result, not an error.
	plain, err := store.AddEmail(simstore.SeedEmail{Subject: "plain"})
	require.NoError(t, err)

	saved, err = b.DownloadAttachments(plain, t.TempDir())
	require.NoError(t, err)
	require.Empty(t, saved)
}

func TestUniqueAttachmentNames(t *testing.T) {
	seen := make(map[string]struct{})

	require.Equal(t, "a.txt", uniqueName(seen, "a.txt"))
	require.Equal(t, "a-1.txt", uniqueName(seen, "a.txt"))

	// A literal a-1.txt arriving after the suffixed form must not
	// reuse it.
	require.Equal(t, "a-1-1.txt", uniqueName(seen, "a-1.txt"))

	// The next duplicate of the base name skips past taken suffixes.
	require.Equal(t, "a-2.txt", uniqueName(seen, "a.txt"))

	// Extensionless names suffix the whole name.
	require.Equal(t, "README", uniqueName(seen, "README"))
	require.Equal(t, "README-1", uniqueName(seen, "README"))
}

func TestSeedDemoListable(t *testing.T) {
	b, store := newTestBridge(t)
	require.NoError(t, store.SeedDemo())

	emails, err := b.ListEmails(10, "")
	require.NoError(t, err)
	require.NotEmpty(t, emails)

	events, err := b.ListEvents(7)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	tasks, err := b.ListTasks(true, 50)
	require.NoError(t, err)
	require.NotEmpty(t, tasks)
}
