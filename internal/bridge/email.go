package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgower/olbridge/internal/mapi"
	"github.com/jaytaylor/html2text"
)

const (
	// defaultListLimit bounds list reads when the caller passes no limit.
	defaultListLimit = 10

	// maxListLimit caps any single list read. Large mailboxes make
	// unbounded iteration over the automation boundary pathologically
	// slow.
	maxListLimit = 200
)

// clampLimit normalizes a caller-supplied list bound.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

// emailSummary builds the list-view record for a message. Body fields are
// left empty; list reads never pull bodies across the boundary.
func emailSummary(item mapi.Object) EmailRecord {
	rec := EmailRecord{
		EntryID:        Attr(item, "EntryID", ""),
		Subject:        Attr(item, "Subject", "(no subject)"),
		SenderName:     Attr(item, "SenderName", ""),
		Sender:         resolveSenderAddress(item),
		Unread:         Attr(item, "UnRead", false),
		HasAttachments: hasAttachments(item),
	}

	if t, ok := unpack(OptAttr[time.Time](item, "ReceivedTime")); ok {
		rec.ReceivedTime = formatTimestamp(t)
	}

	return rec
}

// resolveSenderAddress returns the sender's SMTP address. Internal
// directory senders expose an X.500 address behind type "EX"; those are
// resolved through the directory entry to the primary SMTP address, with
// the raw address as fallback.
func resolveSenderAddress(item mapi.Object) string {
	addr := Attr(item, "SenderEmailAddress", "")

	if Attr(item, "SenderEmailType", "") != "EX" {
		return addr
	}

	sender := childObject(item, "Sender")
	if sender == nil {
		return addr
	}
	defer sender.Release()

	exch, err := sender.Call("GetExchangeUser")
	if err != nil {
		return addr
	}

	user, ok := exch.(mapi.Object)
	if !ok || user == nil {
		return addr
	}
	defer user.Release()

	if smtp := Attr(user, "PrimarySmtpAddress", ""); smtp != "" {
		return smtp
	}

	return addr
}

// hasAttachments reports whether the item carries at least one
// attachment. Some store builds miss the Attachments count behind a
// property read, so a failed read means false rather than an error.
func hasAttachments(item mapi.Object) bool {
	atts, err := childCollection(item, "Attachments")
	if err != nil {
		return false
	}

	n, err := atts.Count()
	if err != nil {
		return false
	}

	return n > 0
}

// ListEmails returns the newest messages in the given folder, newest
// first, bounded by limit. An empty folder name means the Inbox.
func (b *Bridge) ListEmails(limit int, folder string) ([]EmailRecord, error) {
	f, err := b.Folder(folder)
	if err != nil {
		return nil, err
	}

	items, err := childCollection(f, "Items")
	if err != nil {
		return nil, automationErr("ListEmails", err)
	}

	if err := items.Sort("[ReceivedTime]", true); err != nil {
		return nil, automationErr("ListEmails", err)
	}

	limit = clampLimit(limit)

	count, err := items.Count()
	if err != nil {
		return nil, automationErr("ListEmails", err)
	}

	records := make([]EmailRecord, 0, limit)
	for i := 1; i <= count && len(records) < limit; i++ {
		item, err := items.Item(i)
		if err != nil {
			log.Debugf("Skipping unreadable item %d in %q: %v", i,
				folder, err)
			continue
		}

		records = append(records, emailSummary(item))
	}

	log.Debugf("Listed %d emails from folder %q", len(records), folder)

	return records, nil
}

// GetEmail returns the full detail view of one message, including its
// body. When the store holds only an HTML body, a plain-text rendering is
// derived from it.
func (b *Bridge) GetEmail(id string) (EmailRecord, error) {
	item, err := b.ItemByID(id)
	if err != nil {
		return EmailRecord{}, err
	}

	rec := emailSummary(item)
	rec.To = Attr(item, "To", "")
	rec.CC = Attr(item, "CC", "")
	rec.BCC = Attr(item, "BCC", "")
	rec.Body = Attr(item, "Body", "")
	rec.HTMLBody = Attr(item, "HTMLBody", "")

	if rec.Body == "" && rec.HTMLBody != "" {
		text, err := html2text.FromString(
			rec.HTMLBody, html2text.Options{TextOnly: true},
		)
		if err == nil {
			rec.Body = text
		}
	}

	return rec, nil
}

// SendEmailRequest describes an outgoing message. HTMLBody, when set,
// takes precedence over Body for the rendered content; Body still
// populates the plain-text part.
type SendEmailRequest struct {
	To          []string
	CC          []string
	BCC         []string
	Subject     string
	Body        string
	HTMLBody    string
	Attachments []string

	// Draft saves the message to the drafts folder instead of sending.
	Draft bool
}

func (r *SendEmailRequest) validate() error {
	if len(r.To) == 0 && !r.Draft {
		return validationErrf("to", "at least one recipient is required")
	}

	if r.Subject == "" && r.Body == "" && r.HTMLBody == "" {
		return validationErrf("subject",
			"message must have a subject or a body")
	}

	for _, path := range r.Attachments {
		if _, err := os.Stat(path); err != nil {
			return validationErrf("attachments",
				"attachment not readable: %s", path)
		}
	}

	return nil
}

// SendEmail composes a new message and either sends it or saves it as a
// draft. A send reports success without an identifier: the sent copy is
// re-filed under a new identifier the automation layer does not hand
// back. A draft save reports the draft's identifier.
func (b *Bridge) SendEmail(req SendEmailRequest) (OperationResult, error) {
	if err := req.validate(); err != nil {
		return OperationResult{}, err
	}

	item, err := b.store.CreateItem(mapi.ItemMail)
	if err != nil {
		return OperationResult{}, automationErr("SendEmail", err)
	}

	set := func(name string, value any) {
		if value == "" {
			return
		}
		if err := item.Set(name, value); err != nil {
			log.Warnf("Setting %s on outgoing mail: %v", name, err)
		}
	}

	set("To", strings.Join(req.To, "; "))
	set("CC", strings.Join(req.CC, "; "))
	set("BCC", strings.Join(req.BCC, "; "))
	set("Subject", req.Subject)

	// HTMLBody last: assigning Body after HTMLBody downgrades the
	// message format on some store builds.
	set("Body", req.Body)
	set("HTMLBody", req.HTMLBody)

	for _, path := range req.Attachments {
		if err := addAttachment(item, path); err != nil {
			return OperationResult{}, automationErr("SendEmail", err)
		}
	}

	if req.Draft {
		if _, err := item.Call("Save"); err != nil {
			return OperationResult{}, automationErr("SendEmail", err)
		}

		id := Attr(item, "EntryID", "")
		log.Infof("Saved draft %q", req.Subject)

		return okResult("draft saved", id), nil
	}

	if _, err := item.Call("Send"); err != nil {
		return OperationResult{}, automationErr("SendEmail", err)
	}

	log.Infof("Sent email %q to %s", req.Subject,
		strings.Join(req.To, "; "))

	return okResult("email sent", ""), nil
}

// addAttachment attaches one local file to an outgoing item.
func addAttachment(item mapi.Object, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	atts, err := childCollection(item, "Attachments")
	if err != nil {
		return err
	}

	_, err = atts.Call("Add", abs)
	return err
}

// ReplyEmail composes a reply (or reply-all) to an existing message,
// prepending body above the quoted original, and sends it or saves it as
// a draft.
func (b *Bridge) ReplyEmail(id, body string, replyAll,
	draft bool) (OperationResult, error) {

	if body == "" {
		return OperationResult{}, validationErrf("body",
			"reply body must not be empty")
	}

	item, err := b.ItemByID(id)
	if err != nil {
		return OperationResult{}, err
	}

	method := "Reply"
	if replyAll {
		method = "ReplyAll"
	}

	raw, err := item.Call(method)
	if err != nil {
		return OperationResult{}, automationErr("ReplyEmail", err)
	}

	reply, ok := raw.(mapi.Object)
	if !ok || reply == nil {
		return OperationResult{}, automationErr("ReplyEmail",
			fmt.Errorf("%s returned no item", method))
	}

	quoted := Attr(reply, "Body", "")
	if err := reply.Set("Body", body+"\n\n"+quoted); err != nil {
		return OperationResult{}, automationErr("ReplyEmail", err)
	}

	if draft {
		if _, err := reply.Call("Save"); err != nil {
			return OperationResult{}, automationErr("ReplyEmail", err)
		}

		return okResult("reply saved as draft",
			Attr(reply, "EntryID", "")), nil
	}

	if _, err := reply.Call("Send"); err != nil {
		return OperationResult{}, automationErr("ReplyEmail", err)
	}

	return okResult("reply sent", ""), nil
}

// ForwardEmail forwards an existing message to new recipients with an
// optional comment above the forwarded content.
func (b *Bridge) ForwardEmail(id string, to []string, comment string,
	draft bool) (OperationResult, error) {

	if len(to) == 0 {
		return OperationResult{}, validationErrf("to",
			"at least one recipient is required")
	}

	item, err := b.ItemByID(id)
	if err != nil {
		return OperationResult{}, err
	}

	raw, err := item.Call("Forward")
	if err != nil {
		return OperationResult{}, automationErr("ForwardEmail", err)
	}

	fwd, ok := raw.(mapi.Object)
	if !ok || fwd == nil {
		return OperationResult{}, automationErr("ForwardEmail",
			fmt.Errorf("Forward returned no item"))
	}

	if err := fwd.Set("To", strings.Join(to, "; ")); err != nil {
		return OperationResult{}, automationErr("ForwardEmail", err)
	}

	if comment != "" {
		quoted := Attr(fwd, "Body", "")
		if err := fwd.Set("Body", comment+"\n\n"+quoted); err != nil {
			return OperationResult{}, automationErr("ForwardEmail", err)
		}
	}

	if draft {
		if _, err := fwd.Call("Save"); err != nil {
			return OperationResult{}, automationErr("ForwardEmail", err)
		}

		return okResult("forward saved as draft",
			Attr(fwd, "EntryID", "")), nil
	}

	if _, err := fwd.Call("Send"); err != nil {
		return OperationResult{}, automationErr("ForwardEmail", err)
	}

	return okResult("email forwarded", ""), nil
}

// MarkEmail sets a message's unread flag.
func (b *Bridge) MarkEmail(id string, unread bool) (OperationResult, error) {
	item, err := b.ItemByID(id)
	if err != nil {
		return OperationResult{}, err
	}

	if err := item.Set("UnRead", unread); err != nil {
		return OperationResult{}, automationErr("MarkEmail", err)
	}

	if _, err := item.Call("Save"); err != nil {
		return OperationResult{}, automationErr("MarkEmail", err)
	}

	state := "read"
	if unread {
		state = "unread"
	}

	return okResult("email marked as "+state, id), nil
}

// MoveEmail moves a message to another folder. The message keeps its
// identifier only if the destination shares a store with the source; the
// moved copy's identifier is reported when the automation layer returns
// one.
func (b *Bridge) MoveEmail(id, folder string) (OperationResult, error) {
	item, err := b.ItemByID(id)
	if err != nil {
		return OperationResult{}, err
	}

	dest, err := b.Folder(folder)
	if err != nil {
		return OperationResult{}, err
	}

	raw, err := item.Call("Move", dest)
	if err != nil {
		return OperationResult{}, automationErr("MoveEmail", err)
	}

	movedID := ""
	if moved, ok := raw.(mapi.Object); ok && moved != nil {
		movedID = Attr(moved, "EntryID", "")
	}

	log.Infof("Moved email to folder %q", folder)

	return okResult("email moved to "+folder, movedID), nil
}

// DeleteEmail deletes a message. The store files it under Deleted Items
// rather than destroying it.
func (b *Bridge) DeleteEmail(id string) (OperationResult, error) {
	item, err := b.ItemByID(id)
	if err != nil {
		return OperationResult{}, err
	}

	if _, err := item.Call("Delete"); err != nil {
		return OperationResult{}, automationErr("DeleteEmail", err)
	}

	return okResult("email deleted", ""), nil
}

// SearchEmails runs a filtered search over one folder. The filter is
// pushed down to the store as a single restriction so only matching items
// cross the boundary.
func (b *Bridge) SearchEmails(q SearchQuery) ([]EmailRecord, error) {
	f, err := b.Folder(q.Folder)
	if err != nil {
		return nil, err
	}

	items, err := childCollection(f, "Items")
	if err != nil {
		return nil, automationErr("SearchEmails", err)
	}

	filter := q.buildFilter()
	if filter != "" {
		items, err = items.Restrict(filter)
		if err != nil {
			return nil, automationErr("SearchEmails", err)
		}
	}

	if err := items.Sort("[ReceivedTime]", true); err != nil {
		return nil, automationErr("SearchEmails", err)
	}

	limit := clampLimit(q.Limit)

	count, err := items.Count()
	if err != nil {
		return nil, automationErr("SearchEmails", err)
	}

	records := make([]EmailRecord, 0, limit)
	for i := 1; i <= count && len(records) < limit; i++ {
		item, err := items.Item(i)
		if err != nil {
			continue
		}

		records = append(records, emailSummary(item))
	}

	log.Debugf("Search matched %d emails (filter=%q)", len(records),
		filter)

	return records, nil
}

// SavedAttachment describes one attachment written to local disk.
type SavedAttachment struct {
	FileName string `json:"file_name"`
	Path     string `json:"path"`
	Size     int64  `json:"size_bytes"`
}

// DownloadAttachments saves every attachment of a message into dir,
// creating it if needed. Attachment display names are sanitized to bare
// file names so a crafted name cannot escape the target directory;
// colliding names get a numeric suffix.
func (b *Bridge) DownloadAttachments(id, dir string) ([]SavedAttachment, error) {
	if dir == "" {
		return nil, validationErrf("dir",
			"target directory must not be empty")
	}

	item, err := b.ItemByID(id)
	if err != nil {
		return nil, err
	}

	atts, err := childCollection(item, "Attachments")
	if err != nil {
		return nil, automationErr("DownloadAttachments", err)
	}

	count, err := atts.Count()
	if err != nil {
		return nil, automationErr("DownloadAttachments", err)
	}

	if count == 0 {
		return []SavedAttachment{}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, automationErr("DownloadAttachments", err)
	}

	saved := make([]SavedAttachment, 0, count)
	seen := make(map[string]struct{})

	for i := 1; i <= count; i++ {
		att, err := atts.Item(i)
		if err != nil {
			continue
		}

		name := sanitizeFileName(Attr(att, "FileName", ""))
		if name == "" {
			name = fmt.Sprintf("attachment-%d", i)
		}
		name = uniqueName(seen, name)

		target := filepath.Join(dir, name)
		if _, err := att.Call("SaveAsFile", target); err != nil {
			return nil, automationErr("DownloadAttachments", err)
		}

		rec := SavedAttachment{FileName: name, Path: target}
		if info, err := os.Stat(target); err == nil {
			rec.Size = info.Size()
		}

		saved = append(saved, rec)
	}

	log.Infof("Saved %d attachments to %s", len(saved), dir)

	return saved, nil
}

// uniqueName reserves a file name not handed out before. Colliding names
// get a numeric stem suffix; the suffixed forms are tracked too, so a
// later attachment literally named like one cannot collide either.
func uniqueName(seen map[string]struct{}, name string) string {
	if _, dup := seen[name]; dup {
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)

		for n := 1; ; n++ {
			cand := fmt.Sprintf("%s-%d%s", base, n, ext)
			if _, dup := seen[cand]; !dup {
				name = cand
				break
			}
		}
	}
	seen[name] = struct{}{}

	return name
}

// sanitizeFileName strips any path components and control characters from
// an attachment display name.
func sanitizeFileName(name string) string {
	// Drop both separator styles; names can come from foreign systems.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	name = strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(`<>:"|?*`, r) {
			return '_'
		}
		return r
	}, name)

	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}

	return name
}
