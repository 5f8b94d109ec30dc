package simstore

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dgower/olbridge/internal/mapi"
)

// SeedEmail describes a message to place directly into a folder, used by
// tests and demo seeding.
type SeedEmail struct {
	Folder      mapi.WellKnownFolder
	Subject     string
	Body        string
	HTMLBody    string
	SenderName  string
	SenderEmail string
	SenderType  string
	To          string
	Received    time.Time
	Unread      bool

	// Attachments maps file names to contents.
	Attachments map[string][]byte
}

// AddEmail inserts a message and returns its identifier.
func (s *Store) AddEmail(e SeedEmail) (string, error) {
	folder := e.Folder
	if folder == 0 {
		folder = mapi.FolderInbox
	}
	folderID, err := s.folderID(folder)
	if err != nil {
		return "", err
	}

	senderType := e.SenderType
	if senderType == "" {
		senderType = "SMTP"
	}

	rec := itemRecord{
		ID:           uuid.NewString(),
		FolderID:     folderID,
		MessageClass: "IPM.Note",
		Subject:      e.Subject,
		Body:         e.Body,
		HTMLBody:     e.HTMLBody,
		SenderName:   e.SenderName,
		SenderEmail:  e.SenderEmail,
		SenderType:   senderType,
		To:           e.To,
		Received:     nullTime(e.Received),
		Unread:       e.Unread,
	}

	if err := s.saveItem(&rec); err != nil {
		return "", err
	}

	for name, content := range e.Attachments {
		_, err := s.db.Exec(
			`INSERT INTO attachments (id, item_id, file_name, content)
			 VALUES (?, ?, ?, ?)`,
			uuid.NewString(), rec.ID, name, content,
		)
		if err != nil {
			return "", err
		}
	}

	return rec.ID, nil
}

// SeedEvent describes an appointment to place on the calendar.
type SeedEvent struct {
	Subject           string
	Start             time.Time
	End               time.Time
	Location          string
	Organizer         string
	Body              string
	AllDay            bool
	RequiredAttendees string
	OptionalAttendees string
	MeetingStatus     int
	ResponseStatus    int
	ResponseRequested bool

	// RecurType is one of "", "daily", "weekly", "monthly".
	RecurType     string
	RecurInterval int
	RecurUntil    time.Time
}

// AddEvent inserts an appointment and returns its identifier.
func (s *Store) AddEvent(e SeedEvent) (string, error) {
	folderID, err := s.folderID(mapi.FolderCalendar)
	if err != nil {
		return "", err
	}

	rec := itemRecord{
		ID:                uuid.NewString(),
		FolderID:          folderID,
		MessageClass:      "IPM.Appointment",
		Subject:           e.Subject,
		Body:              e.Body,
		Start:             nullTime(e.Start),
		End:               nullTime(e.End),
		Location:          e.Location,
		Organizer:         e.Organizer,
		AllDay:            e.AllDay,
		RequiredAttendees: e.RequiredAttendees,
		OptionalAttendees: e.OptionalAttendees,
		MeetingStatus:     e.MeetingStatus,
		ResponseStatus:    e.ResponseStatus,
		ResponseRequested: e.ResponseRequested,
		RecurType:         e.RecurType,
		RecurInterval:     e.RecurInterval,
		RecurUntil:        nullTime(e.RecurUntil),
	}

	if err := s.saveItem(&rec); err != nil {
		return "", err
	}

	return rec.ID, nil
}

// SeedTask describes a to-do item.
type SeedTask struct {
	Subject         string
	Body            string
	DueDate         time.Time
	Status          int
	Importance      int
	Complete        bool
	PercentComplete int

	// NoStatus and NoImportance leave the fields genuinely absent, the
	// way foreign or malformed items surface.
	NoStatus     bool
	NoImportance bool
}

// AddTask inserts a to-do item and returns its identifier.
func (s *Store) AddTask(t SeedTask) (string, error) {
	folderID, err := s.folderID(mapi.FolderTasks)
	if err != nil {
		return "", err
	}

	rec := itemRecord{
		ID:              uuid.NewString(),
		FolderID:        folderID,
		MessageClass:    "IPM.Task",
		Subject:         t.Subject,
		Body:            t.Body,
		DueDate:         nullTime(t.DueDate),
		Complete:        t.Complete,
		PercentComplete: t.PercentComplete,
	}

	if !t.NoStatus {
		rec.TaskStatus = sql.NullInt64{
			Int64: int64(t.Status), Valid: true,
		}
	}
	if !t.NoImportance {
		rec.Importance = sql.NullInt64{
			Int64: int64(t.Importance), Valid: true,
		}
	}

	if err := s.saveItem(&rec); err != nil {
		return "", err
	}

	return rec.ID, nil
}

// folderID resolves a well-known folder to its identifier.
func (s *Store) folderID(f mapi.WellKnownFolder) (string, error) {
	folder, err := s.DefaultFolder(f)
	if err != nil {
		return "", err
	}

	id, err := folder.Get("EntryID")
	if err != nil {
		return "", err
	}

	return id.(string), nil
}

// SeedDemo populates a fresh store with a small, recognizable data set:
// a handful of inbox messages, a meeting request, a recurring stand-up,
// and a few tasks. It is what the daemon's demo mode serves.
func (s *Store) SeedDemo() error {
	now := time.Now()

	entries := []struct{ email, name string }{
		{"ana@example.com", "Ana Petrova"},
		{"marcus@example.com", "Marcus Webb"},
		{"it-alerts@example.com", "IT Alerts"},
	}
	for _, e := range entries {
		if err := s.AddDirectoryEntry(e.email, e.name, ""); err != nil {
			return err
		}
	}

	emails := []SeedEmail{
		{
			Subject:     "Q3 roadmap review",
			Body:        "Draft attached. Comments by Friday please.",
			SenderName:  "Ana Petrova",
			SenderEmail: "ana@example.com",
			To:          s.cfg.userEmail(),
			Received:    now.Add(-2 * time.Hour),
			Unread:      true,
			Attachments: map[string][]byte{
				"roadmap-q3.txt": []byte("roadmap draft\n"),
			},
		},
		{
			Subject:     "Re: deployment window",
			Body:        "Thursday 22:00 works for us.",
			SenderName:  "Marcus Webb",
			SenderEmail: "marcus@example.com",
			To:          s.cfg.userEmail(),
			Received:    now.Add(-26 * time.Hour),
		},
		{
			Subject:     "Certificate expiry warning",
			HTMLBody:    "<p>The certificate for <b>mail.example.com</b> expires in 14 days.</p>",
			SenderName:  "IT Alerts",
			SenderEmail: "it-alerts@example.com",
			To:          s.cfg.userEmail(),
			Received:    now.Add(-3 * 24 * time.Hour),
			Unread:      true,
		},
	}
	for _, e := range emails {
		if _, err := s.AddEmail(e); err != nil {
			return err
		}
	}

	today := time.Date(
		now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local,
	)

	events := []SeedEvent{
		{
			Subject:       "Daily stand-up",
			Start:         today.Add(9*time.Hour + 30*time.Minute),
			End:           today.Add(9*time.Hour + 45*time.Minute),
			Location:      "Huddle room",
			Organizer:     s.cfg.userName(),
			RecurType:     "daily",
			RecurInterval: 1,
		},
		{
			Subject:           "Architecture review",
			Start:             today.Add(24*time.Hour + 14*time.Hour),
			End:               today.Add(24*time.Hour + 15*time.Hour),
			Location:          "Room 4B",
			Organizer:         "Ana Petrova",
			RequiredAttendees: s.cfg.userName(),
			MeetingStatus:     3,
			ResponseStatus:    5,
			ResponseRequested: true,
		},
	}
	for _, e := range events {
		if _, err := s.AddEvent(e); err != nil {
			return err
		}
	}

	tasks := []SeedTask{
		{
			Subject:    "Rotate the mail certificate",
			DueDate:    today.Add(7*24*time.Hour + 12*time.Hour),
			Status:     1,
			Importance: 2,

			PercentComplete: 25,
		},
		{
			Subject:    "File expense report",
			DueDate:    today.Add(2*24*time.Hour + 12*time.Hour),
			Status:     0,
			Importance: 1,
		},
		{
			Subject:         "Archive old branches",
			Status:          2,
			Importance:      0,
			Complete:        true,
			PercentComplete: 100,
		},
	}
	for _, t := range tasks {
		if _, err := s.AddTask(t); err != nil {
			return err
		}
	}

	log.Infof("Seeded demo data set")

	return nil
}
