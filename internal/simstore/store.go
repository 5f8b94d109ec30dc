// Package simstore is a self-contained groupware store backed by SQLite.
// It speaks the same dynamic object surface as the live automation
// backend, which makes every layer above it testable on any platform: the
// bridge cannot tell the two apart.
//
// The simulation is faithful where the semantics above depend on it:
// entry identifiers are opaque and survive edits, a sent message is
// re-filed under a fresh identifier, deleted items land in the deleted
// items folder, and restrictions are evaluated store-side against the
// same query dialect the live surface accepts.
package simstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dgower/olbridge/internal/mapi"
)

// Config holds the simulated store parameters.
type Config struct {
	// Path is the database file. Empty means in-memory.
	Path string

	// Account is the display name of the mailbox root. Defaults to
	// "Primary Mailbox".
	Account string

	// UserEmail is the session owner's address.
	UserEmail string

	// UserName is the session owner's display name.
	UserName string
}

func (c *Config) account() string {
	if c.Account != "" {
		return c.Account
	}
	return "Primary Mailbox"
}

func (c *Config) userEmail() string {
	if c.UserEmail != "" {
		return c.UserEmail
	}
	return "owner@example.com"
}

func (c *Config) userName() string {
	if c.UserName != "" {
		return c.UserName
	}
	return "Mailbox Owner"
}

// Store is the simulated groupware store. It implements mapi.Store.
type Store struct {
	db  *sql.DB
	cfg Config
}

var _ mapi.Store = (*Store)(nil)

// standardFolders are the well-known folders created under a fresh
// mailbox root.
var standardFolders = []struct {
	name string
	code mapi.WellKnownFolder
}{
	{"Inbox", mapi.FolderInbox},
	{"Drafts", mapi.FolderDrafts},
	{"Sent Items", mapi.FolderSent},
	{"Deleted Items", mapi.FolderDeleted},
	{"Calendar", mapi.FolderCalendar},
	{"Tasks", mapi.FolderTasks},
}

// New opens (or creates) a simulated store.
func New(cfg Config) (*Store, error) {
	db, err := openSQLite(cfg.Path)
	if err != nil {
		return nil, err
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, cfg: cfg}

	if err := s.seedFolders(); err != nil {
		db.Close()
		return nil, err
	}

	// The session owner always resolves against the directory.
	if err := s.AddDirectoryEntry(
		cfg.userEmail(), cfg.userName(), "",
	); err != nil {
		db.Close()
		return nil, err
	}

	log.Debugf("Simulated store open (account=%q, path=%q)",
		cfg.account(), cfg.Path)

	return s, nil
}

// seedFolders creates the mailbox root and its standard folders when the
// database is fresh.
func (s *Store) seedFolders() error {
	account := s.cfg.account()

	var rootID string
	err := s.db.QueryRow(
		`SELECT id FROM folders WHERE parent_id IS NULL AND name = ?`,
		account,
	).Scan(&rootID)

	switch {
	case err == sql.ErrNoRows:
		rootID = uuid.NewString()
		_, err = s.db.Exec(
			`INSERT INTO folders (id, account, parent_id, name, path,
			     well_known)
			 VALUES (?, ?, NULL, ?, ?, NULL)`,
			rootID, account, account, `\\`+account,
		)
		if err != nil {
			return fmt.Errorf("failed to create mailbox root: %w", err)
		}

	case err != nil:
		return fmt.Errorf("failed to look up mailbox root: %w", err)

	default:
		// Existing database; standard folders are already in place.
		return nil
	}

	for _, f := range standardFolders {
		_, err := s.db.Exec(
			`INSERT INTO folders (id, account, parent_id, name, path,
			     well_known)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), account, rootID, f.name,
			`\\`+account+`\`+f.name, int(f.code),
		)
		if err != nil {
			return fmt.Errorf("failed to create folder %q: %w",
				f.name, err)
		}
	}

	return nil
}

// AddDirectoryEntry registers an address in the resolution directory.
// freeBusy is the slot string returned for availability reads; empty
// means all free.
func (s *Store) AddDirectoryEntry(email, name, freeBusy string) error {
	_, err := s.db.Exec(
		`INSERT INTO directory (email, name, free_busy)
		 VALUES (?, ?, ?)
		 ON CONFLICT (email) DO UPDATE
		     SET name = excluded.name, free_busy = excluded.free_busy`,
		email, name, freeBusy,
	)
	return err
}

// CreateFolder adds a named folder under the mailbox root, for tests and
// seeding.
func (s *Store) CreateFolder(name string) (string, error) {
	var rootID string
	err := s.db.QueryRow(
		`SELECT id FROM folders WHERE parent_id IS NULL AND name = ?`,
		s.cfg.account(),
	).Scan(&rootID)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO folders (id, account, parent_id, name, path,
		     well_known)
		 VALUES (?, ?, ?, ?, ?, NULL)`,
		id, s.cfg.account(), rootID, name,
		`\\`+s.cfg.account()+`\`+name,
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

// ItemFromID resolves an entry identifier directly, without touching any
// folder.
func (s *Store) ItemFromID(id string) (mapi.Object, error) {
	item, err := s.loadItem(id)
	if err == sql.ErrNoRows {
		return nil, mapi.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return item, nil
}

// DefaultFolder returns one of the standard folders.
func (s *Store) DefaultFolder(f mapi.WellKnownFolder) (mapi.Object, error) {
	var id string
	err := s.db.QueryRow(
		`SELECT id FROM folders WHERE well_known = ?`, int(f),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no default folder for code %d", int(f))
	}
	if err != nil {
		return nil, err
	}

	return s.loadFolder(id)
}

// Roots returns the collection of mailbox roots.
func (s *Store) Roots() (mapi.Collection, error) {
	return &folderCollection{store: s, parentID: ""}, nil
}

// itemClassNames maps item classes to their message class strings.
var itemClassNames = map[mapi.ItemClass]string{
	mapi.ItemMail:        "IPM.Note",
	mapi.ItemAppointment: "IPM.Appointment",
	mapi.ItemTask:        "IPM.Task",
}

// homeFolder maps item classes to the folder a saved item of that class
// lands in.
var homeFolder = map[mapi.ItemClass]mapi.WellKnownFolder{
	mapi.ItemMail:        mapi.FolderDrafts,
	mapi.ItemAppointment: mapi.FolderCalendar,
	mapi.ItemTask:        mapi.FolderTasks,
}

// CreateItem creates a new, unsaved item of the given class. The item
// gets its identifier now but no row exists until Save.
func (s *Store) CreateItem(class mapi.ItemClass) (mapi.Object, error) {
	className, ok := itemClassNames[class]
	if !ok {
		return nil, fmt.Errorf("unknown item class %d", int(class))
	}

	folder, err := s.DefaultFolder(homeFolder[class])
	if err != nil {
		return nil, err
	}
	folderID, _ := folder.Get("EntryID")

	item := &itemObject{
		store: s,
		rec: itemRecord{
			ID:           uuid.NewString(),
			FolderID:     folderID.(string),
			MessageClass: className,
			SenderName:   s.cfg.userName(),
			SenderEmail:  s.cfg.userEmail(),
			Organizer:    s.cfg.userName(),
			Importance:   sql.NullInt64{Int64: 1, Valid: true},
		},
	}

	return item, nil
}

// CreateRecipient creates an unresolved recipient for the given address.
func (s *Store) CreateRecipient(address string) (mapi.Object, error) {
	return &recipientObject{store: s, address: address}, nil
}

// CurrentUserAddress returns the session owner's address.
func (s *Store) CurrentUserAddress() (string, error) {
	return s.cfg.userEmail(), nil
}

// Release closes the database.
func (s *Store) Release() {
	if err := s.db.Close(); err != nil {
		log.Warnf("Closing store database: %v", err)
	}
}

// loadFolder reads one folder row.
func (s *Store) loadFolder(id string) (*folderObject, error) {
	f := &folderObject{store: s}

	var parent sql.NullString
	var wellKnown sql.NullInt64
	err := s.db.QueryRow(
		`SELECT id, account, parent_id, name, path, well_known
		 FROM folders WHERE id = ?`, id,
	).Scan(&f.id, &f.account, &parent, &f.name, &f.path, &wellKnown)
	if err != nil {
		return nil, err
	}

	f.parentID = parent.String

	return f, nil
}

// nullTime renders an optional timestamp for storage.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
