package simstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgower/olbridge/internal/mapi"
)

// folderObject is the dynamic-object view of one folder. It implements
// mapi.Object.
type folderObject struct {
	store    *Store
	id       string
	account  string
	parentID string
	name     string
	path     string
}

var _ mapi.Object = (*folderObject)(nil)

// Get implements mapi.Object.
func (f *folderObject) Get(name string) (any, error) {
	switch name {
	case "EntryID":
		return f.id, nil
	case "Name":
		return f.name, nil
	case "FolderPath":
		return f.path, nil
	case "Folders":
		return &folderCollection{store: f.store, parentID: f.id}, nil
	case "Items":
		return newItemCollection(f.store, f.id), nil
	default:
		return nil, mapi.ErrNoSuchProperty
	}
}

// Set implements mapi.Object. Folders are read-only through this surface.
func (f *folderObject) Set(name string, value any) error {
	return mapi.ErrNoSuchProperty
}

// Call implements mapi.Object.
func (f *folderObject) Call(name string, args ...any) (any, error) {
	return nil, fmt.Errorf("unknown method %s on folder", name)
}

// Release implements mapi.Object.
func (f *folderObject) Release() {}

// senderObject is the nested sender of a message. Its only use is
// resolving a directory sender to its SMTP address.
type senderObject struct {
	store *Store
	email string
}

var _ mapi.Object = (*senderObject)(nil)

func (s *senderObject) Get(name string) (any, error) {
	switch name {
	case "Address":
		return s.email, nil
	default:
		return nil, mapi.ErrNoSuchProperty
	}
}

func (s *senderObject) Set(name string, value any) error {
	return mapi.ErrNoSuchProperty
}

func (s *senderObject) Call(name string, args ...any) (any, error) {
	switch name {
	case "GetExchangeUser":
		var email, display string
		err := s.store.db.QueryRow(
			`SELECT email, name FROM directory WHERE email = ?`,
			s.email,
		).Scan(&email, &display)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no directory entry for %s", s.email)
		}
		if err != nil {
			return nil, err
		}

		return &exchangeUserObject{email: email, name: display}, nil

	default:
		return nil, fmt.Errorf("unknown method %s on sender", name)
	}
}

func (s *senderObject) Release() {}

// exchangeUserObject is a resolved directory entry.
type exchangeUserObject struct {
	email string
	name  string
}

var _ mapi.Object = (*exchangeUserObject)(nil)

func (u *exchangeUserObject) Get(name string) (any, error) {
	switch name {
	case "PrimarySmtpAddress":
		return u.email, nil
	case "Name":
		return u.name, nil
	default:
		return nil, mapi.ErrNoSuchProperty
	}
}

func (u *exchangeUserObject) Set(name string, value any) error {
	return mapi.ErrNoSuchProperty
}

func (u *exchangeUserObject) Call(name string, args ...any) (any, error) {
	return nil, fmt.Errorf("unknown method %s on exchange user", name)
}

func (u *exchangeUserObject) Release() {}

// recipientObject is an address pending directory resolution, used for
// free/busy reads.
type recipientObject struct {
	store    *Store
	address  string
	resolved bool
}

var _ mapi.Object = (*recipientObject)(nil)

func (r *recipientObject) Get(name string) (any, error) {
	switch name {
	case "Address":
		return r.address, nil
	case "Resolved":
		return r.resolved, nil
	default:
		return nil, mapi.ErrNoSuchProperty
	}
}

func (r *recipientObject) Set(name string, value any) error {
	return mapi.ErrNoSuchProperty
}

func (r *recipientObject) Call(name string, args ...any) (any, error) {
	switch name {
	case "Resolve":
		var n int
		err := r.store.db.QueryRow(
			`SELECT COUNT(*) FROM directory WHERE email = ?`,
			r.address,
		).Scan(&n)
		if err != nil {
			return nil, err
		}

		r.resolved = n > 0
		return r.resolved, nil

	case "FreeBusy":
		if !r.resolved {
			return nil, fmt.Errorf("recipient %s is not resolved",
				r.address)
		}
		if len(args) < 2 {
			return nil, fmt.Errorf("FreeBusy expects a start time " +
				"and slot length")
		}

		start, ok := args[0].(time.Time)
		if !ok {
			return nil, fmt.Errorf("FreeBusy expects a start time, "+
				"got %T", args[0])
		}
		minutes, ok := toInt(args[1])
		if !ok || minutes <= 0 {
			return nil, fmt.Errorf("FreeBusy expects a positive slot "+
				"length, got %v", args[1])
		}

		return r.freeBusy(start, minutes)

	default:
		return nil, fmt.Errorf("unknown method %s on recipient", name)
	}
}

func (r *recipientObject) Release() {}

// freeBusy renders the availability slot string for one month starting at
// start. A canned string from the directory wins; otherwise the slots are
// derived from the calendar when the recipient is the session owner, and
// all-free for everyone else.
func (r *recipientObject) freeBusy(start time.Time,
	minutes int) (string, error) {

	var canned string
	err := r.store.db.QueryRow(
		`SELECT free_busy FROM directory WHERE email = ?`, r.address,
	).Scan(&canned)
	if err != nil {
		return "", err
	}
	if canned != "" {
		return canned, nil
	}

	const days = 30
	slotsPerDay := (24 * 60) / minutes
	total := days * slotsPerDay

	slots := make([]byte, total)
	for i := range slots {
		slots[i] = '0'
	}

	if !strings.EqualFold(r.address, r.store.cfg.userEmail()) {
		return string(slots), nil
	}

	end := start.AddDate(0, 0, days)
	rows, err := r.store.db.Query(
		`SELECT start_time, end_time FROM items
		 WHERE message_class LIKE 'IPM.Appointment%'
		   AND start_time IS NOT NULL AND end_time IS NOT NULL
		   AND start_time < ? AND end_time > ?`,
		end, start,
	)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	slotLen := time.Duration(minutes) * time.Minute
	for rows.Next() {
		var s, e time.Time
		if err := rows.Scan(&s, &e); err != nil {
			return "", err
		}

		first := int(s.Sub(start) / slotLen)
		last := int((e.Sub(start) - 1) / slotLen)
		for i := max(first, 0); i <= last && i < total; i++ {
			// 2 = busy.
			slots[i] = '2'
		}
	}

	return string(slots), rows.Err()
}

// attachmentObject is one stored attachment.
type attachmentObject struct {
	store    *Store
	id       string
	fileName string

	// pending holds the content of an attachment not yet persisted.
	pending []byte
}

var _ mapi.Object = (*attachmentObject)(nil)

func (a *attachmentObject) Get(name string) (any, error) {
	switch name {
	case "FileName", "DisplayName":
		return a.fileName, nil
	default:
		return nil, mapi.ErrNoSuchProperty
	}
}

func (a *attachmentObject) Set(name string, value any) error {
	return mapi.ErrNoSuchProperty
}

func (a *attachmentObject) Call(name string, args ...any) (any, error) {
	switch name {
	case "SaveAsFile":
		if len(args) != 1 {
			return nil, fmt.Errorf("SaveAsFile expects a target path")
		}
		target, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("SaveAsFile expects a path string, "+
				"got %T", args[0])
		}

		content := a.pending
		if content == nil {
			err := a.store.db.QueryRow(
				`SELECT content FROM attachments WHERE id = ?`, a.id,
			).Scan(&content)
			if err != nil {
				return nil, err
			}
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}

		return nil, os.WriteFile(target, content, 0o644)

	default:
		return nil, fmt.Errorf("unknown method %s on attachment", name)
	}
}

func (a *attachmentObject) Release() {}
