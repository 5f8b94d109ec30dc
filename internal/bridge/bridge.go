package bridge

import (
	"fmt"
	"strings"

	"github.com/dgower/olbridge/internal/mapi"
)

// Bridge composes the attribute-safe accessor, folder resolver and
// entry-lookup layer into the operation set exposed by the CLI and MCP
// surfaces. It holds no state of its own beyond the store handle and the
// optional default account root; every record it returns is built fresh
// from the live store.
//
// A Bridge is NOT safe for concurrent use. The session manager owns one
// Bridge and serializes every call onto its single worker thread.
type Bridge struct {
	store mapi.Store

	// defaultAccountName is the configured account display name, empty
	// when the store's default root is used.
	defaultAccountName string

	// defaultRoot is the resolved root folder of the default account.
	defaultRoot mapi.Object
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithDefaultAccount pins folder resolution and outgoing mail to the
// account with the given display name or address. Resolution failure at
// construction is tolerated; the store default is used instead.
func WithDefaultAccount(name string) Option {
	return func(b *Bridge) {
		b.defaultAccountName = name
	}
}

// New creates a Bridge over the given store.
func New(store mapi.Store, opts ...Option) *Bridge {
	b := &Bridge{store: store}

	for _, opt := range opts {
		opt(b)
	}

	if b.defaultAccountName != "" {
		if err := b.resolveDefaultAccount(); err != nil {
			log.Warnf("Default account %q not resolved: %v",
				b.defaultAccountName, err)
		}
	}

	return b
}

// Store returns the underlying automation store.
func (b *Bridge) Store() mapi.Store {
	return b.store
}

// resolveDefaultAccount locates the store root whose display name matches
// the configured default account, case-insensitively.
func (b *Bridge) resolveDefaultAccount() error {
	roots, err := b.store.Roots()
	if err != nil {
		return automationErr("resolveDefaultAccount", err)
	}

	count, err := roots.Count()
	if err != nil {
		return automationErr("resolveDefaultAccount", err)
	}

	want := strings.ToLower(strings.TrimSpace(b.defaultAccountName))
	for i := 1; i <= count; i++ {
		root, err := roots.Item(i)
		if err != nil {
			continue
		}

		name := Attr(root, "Name", "")
		if strings.ToLower(strings.TrimSpace(name)) == want {
			b.defaultRoot = root
			return nil
		}
	}

	return fmt.Errorf("%w: account root %q", ErrFolderNotFound,
		b.defaultAccountName)
}

// root returns the folder root used for name-based resolution: the default
// account root when configured, otherwise the store's first root.
func (b *Bridge) root() mapi.Object {
	if b.defaultRoot != nil {
		return b.defaultRoot
	}

	roots, err := b.store.Roots()
	if err != nil {
		return nil
	}

	first, err := roots.Item(1)
	if err != nil {
		return nil
	}

	return first
}

// wellKnownFolders maps canonical logical names to the store's default
// folder identifiers, used as fallback when name-based resolution under
// the account root fails.
var wellKnownFolders = map[string]mapi.WellKnownFolder{
	"inbox":         mapi.FolderInbox,
	"calendar":      mapi.FolderCalendar,
	"tasks":         mapi.FolderTasks,
	"drafts":        mapi.FolderDrafts,
	"sent items":    mapi.FolderSent,
	"deleted items": mapi.FolderDeleted,
}

// Folder resolves a logical folder name to its live folder object.
// Recognized names are Inbox, Calendar, Tasks, Drafts, Sent Items,
// Deleted Items (case-insensitive), plus any subfolder of the account
// root looked up by display name. Returns ErrFolderNotFound when nothing
// matches.
func (b *Bridge) Folder(name string) (mapi.Object, error) {
	if name == "" {
		name = "Inbox"
	}

	// Prefer the configured account's subtree so multi-account stores
	// resolve against the right mailbox.
	if root := b.root(); root != nil {
		if f := findSubFolder(root, name); f != nil {
			return f, nil
		}
	}

	if known, ok := wellKnownFolders[strings.ToLower(name)]; ok {
		f, err := b.store.DefaultFolder(known)
		if err == nil && f != nil {
			return f, nil
		}
	}

	// Last resort: search every mounted root for the display name.
	if roots, err := b.store.Roots(); err == nil {
		count, _ := roots.Count()
		for i := 1; i <= count; i++ {
			root, err := roots.Item(i)
			if err != nil {
				continue
			}
			if f := findSubFolder(root, name); f != nil {
				return f, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrFolderNotFound, name)
}

// findSubFolder scans a folder's children for a case-insensitive display
// name match. Read failures on individual children are skipped.
func findSubFolder(parent mapi.Object, name string) mapi.Object {
	children, err := childCollection(parent, "Folders")
	if err != nil {
		return nil
	}

	count, err := children.Count()
	if err != nil {
		return nil
	}

	want := strings.ToLower(strings.TrimSpace(name))
	for i := 1; i <= count; i++ {
		child, err := children.Item(i)
		if err != nil {
			continue
		}

		got := strings.ToLower(strings.TrimSpace(Attr(child, "Name", "")))
		if got == want {
			return child
		}
	}

	return nil
}

// ItemByID resolves an opaque entry identifier to its live item in O(1)
// via the store's direct lookup, never by scanning a folder. Not-found is
// returned as ErrNotFound, distinguishable from a transport fault.
func (b *Bridge) ItemByID(id string) (mapi.Object, error) {
	if id == "" {
		return nil, validationErrf("id", "identifier must not be empty")
	}

	item, err := b.store.ItemFromID(id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}

		return nil, automationErr("ItemByID", err)
	}

	return item, nil
}

// isNotFound reports whether the backend error is the not-found sentinel.
func isNotFound(err error) bool {
	return err != nil && (err == mapi.ErrNotFound ||
		strings.Contains(err.Error(), mapi.ErrNotFound.Error()))
}

// ListFolders walks every mounted store root (or just the named account)
// and returns the full folder tree, depth-first, with item counts.
func (b *Bridge) ListFolders(account string) ([]FolderRecord, error) {
	roots, err := b.store.Roots()
	if err != nil {
		return nil, automationErr("ListFolders", err)
	}

	count, err := roots.Count()
	if err != nil {
		return nil, automationErr("ListFolders", err)
	}

	var records []FolderRecord
	for i := 1; i <= count; i++ {
		root, err := roots.Item(i)
		if err != nil {
			continue
		}

		rootName := Attr(root, "Name", "")
		if account != "" && !strings.EqualFold(rootName, account) {
			continue
		}

		records = append(
			records, collectFolders(root, nil, rootName, 0)...,
		)
	}

	if account != "" && len(records) == 0 {
		return nil, fmt.Errorf("%w: account %q", ErrFolderNotFound,
			account)
	}

	return records, nil
}

// collectFolders builds the FolderRecord for one folder and recurses into
// its children.
func collectFolders(folder, parent mapi.Object, account string,
	depth int) []FolderRecord {

	rec := FolderRecord{
		Name:    Attr(folder, "Name", ""),
		EntryID: Attr(folder, "EntryID", ""),
		Path:    Attr(folder, "FolderPath", ""),
		Depth:   depth,
		Account: account,
	}

	if parent != nil {
		rec.ParentName = Attr(parent, "Name", "")
		rec.ParentID = Attr(parent, "EntryID", "")
	}

	if items, err := childCollection(folder, "Items"); err == nil {
		if n, err := items.Count(); err == nil {
			rec.ItemCount = n
		}
	}

	records := []FolderRecord{rec}

	children, err := childCollection(folder, "Folders")
	if err != nil {
		return records
	}

	count, err := children.Count()
	if err != nil {
		return records
	}

	for i := 1; i <= count; i++ {
		child, err := children.Item(i)
		if err != nil {
			continue
		}

		records = append(
			records, collectFolders(child, folder, account, depth+1)...,
		)
	}

	return records
}
