package simstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dgower/olbridge/internal/mapi"
)

// itemRecord mirrors one row of the items table.
type itemRecord struct {
	ID           string
	FolderID     string
	MessageClass string

	Subject  string
	Body     string
	HTMLBody string

	SenderName  string
	SenderEmail string
	SenderType  string
	To          string
	CC          string
	BCC         string
	Received    sql.NullTime
	Unread      bool

	Start             sql.NullTime
	End               sql.NullTime
	Location          string
	Organizer         string
	AllDay            bool
	RequiredAttendees string
	OptionalAttendees string
	ResponseStatus    int
	MeetingStatus     int
	ResponseRequested bool

	RecurType     string
	RecurInterval int
	RecurUntil    sql.NullTime

	DueDate         sql.NullTime
	TaskStatus      sql.NullInt64
	Importance      sql.NullInt64
	Complete        bool
	PercentComplete int
}

const itemColumns = `id, folder_id, message_class, subject, body, html_body,
	sender_name, sender_email, sender_type, to_recipients, cc_recipients,
	bcc_recipients, received_time, unread, start_time, end_time, location,
	organizer, all_day, required_attendees, optional_attendees,
	response_status, meeting_status, response_requested, recur_type,
	recur_interval, recur_until, due_date, task_status, importance,
	complete, percent_complete`

// scanItem reads one items row into a record.
func scanItem(row interface{ Scan(dest ...any) error }) (itemRecord, error) {
	var r itemRecord
	err := row.Scan(
		&r.ID, &r.FolderID, &r.MessageClass, &r.Subject, &r.Body,
		&r.HTMLBody, &r.SenderName, &r.SenderEmail, &r.SenderType,
		&r.To, &r.CC, &r.BCC, &r.Received, &r.Unread, &r.Start, &r.End,
		&r.Location, &r.Organizer, &r.AllDay, &r.RequiredAttendees,
		&r.OptionalAttendees, &r.ResponseStatus, &r.MeetingStatus,
		&r.ResponseRequested, &r.RecurType, &r.RecurInterval,
		&r.RecurUntil, &r.DueDate, &r.TaskStatus, &r.Importance,
		&r.Complete, &r.PercentComplete,
	)
	return r, err
}

// loadItem reads one item by identifier.
func (s *Store) loadItem(id string) (*itemObject, error) {
	row := s.db.QueryRow(
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	)

	rec, err := scanItem(row)
	if err != nil {
		return nil, err
	}

	return &itemObject{store: s, rec: rec, persisted: true}, nil
}

// saveItem inserts or replaces one item row.
func (s *Store) saveItem(r *itemRecord) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		         ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FolderID, r.MessageClass, r.Subject, r.Body, r.HTMLBody,
		r.SenderName, r.SenderEmail, r.SenderType, r.To, r.CC, r.BCC,
		r.Received, r.Unread, r.Start, r.End, r.Location, r.Organizer,
		r.AllDay, r.RequiredAttendees, r.OptionalAttendees,
		r.ResponseStatus, r.MeetingStatus, r.ResponseRequested,
		r.RecurType, r.RecurInterval, r.RecurUntil, r.DueDate,
		r.TaskStatus, r.Importance, r.Complete, r.PercentComplete,
	)
	return err
}

// itemObject is the dynamic-object view of one item. It implements
// mapi.Object. An occurrence of a recurring series shares the master's
// row but overrides its start and end.
type itemObject struct {
	store     *Store
	rec       itemRecord
	persisted bool

	// occStart/occEnd override the series master's bounds for one
	// expanded occurrence.
	occStart, occEnd time.Time

	// copyAttachmentsFrom carries the source item whose attachments are
	// cloned when this item is first persisted (forwards).
	copyAttachmentsFrom string

	// pendingAtts are attachments added before the first save.
	pendingAtts []pendingAttachment
}

type pendingAttachment struct {
	fileName string
	content  []byte
}

var _ mapi.Object = (*itemObject)(nil)

// Get implements mapi.Object.
func (o *itemObject) Get(name string) (any, error) {
	switch name {
	case "EntryID":
		// An expanded occurrence is addressed through its master.
		return o.rec.ID, nil
	case "MessageClass":
		return o.rec.MessageClass, nil
	case "Subject":
		return o.rec.Subject, nil
	case "Body":
		return o.rec.Body, nil
	case "HTMLBody":
		return o.rec.HTMLBody, nil

	case "SenderName":
		return o.rec.SenderName, nil
	case "SenderEmailAddress":
		return o.rec.SenderEmail, nil
	case "SenderEmailType":
		return o.rec.SenderType, nil
	case "Sender":
		return &senderObject{store: o.store, email: o.rec.SenderEmail}, nil
	case "To":
		return o.rec.To, nil
	case "CC":
		return o.rec.CC, nil
	case "BCC":
		return o.rec.BCC, nil
	case "ReceivedTime":
		if !o.rec.Received.Valid {
			return nil, mapi.ErrNoSuchProperty
		}
		return o.rec.Received.Time, nil
	case "UnRead":
		return o.rec.Unread, nil
	case "Attachments":
		return &attachmentCollection{store: o.store, item: o}, nil

	case "Start":
		if !o.occStart.IsZero() {
			return o.occStart, nil
		}
		if !o.rec.Start.Valid {
			return nil, mapi.ErrNoSuchProperty
		}
		return o.rec.Start.Time, nil
	case "End":
		if !o.occEnd.IsZero() {
			return o.occEnd, nil
		}
		if !o.rec.End.Valid {
			return nil, mapi.ErrNoSuchProperty
		}
		return o.rec.End.Time, nil
	case "Location":
		return o.rec.Location, nil
	case "Organizer":
		return o.rec.Organizer, nil
	case "AllDayEvent":
		return o.rec.AllDay, nil
	case "RequiredAttendees":
		return o.rec.RequiredAttendees, nil
	case "OptionalAttendees":
		return o.rec.OptionalAttendees, nil
	case "ResponseStatus":
		return o.rec.ResponseStatus, nil
	case "MeetingStatus":
		return o.rec.MeetingStatus, nil
	case "ResponseRequested":
		return o.rec.ResponseRequested, nil
	case "IsRecurring":
		return o.rec.RecurType != "", nil

	case "DueDate":
		if !o.rec.DueDate.Valid {
			// The live surface reports a far-future sentinel instead
			// of absence.
			return time.Date(
				4501, 1, 1, 0, 0, 0, 0, time.Local,
			), nil
		}
		return o.rec.DueDate.Time, nil
	case "Status":
		if !o.rec.TaskStatus.Valid {
			return nil, mapi.ErrNoSuchProperty
		}
		return int(o.rec.TaskStatus.Int64), nil
	case "Importance":
		if !o.rec.Importance.Valid {
			return nil, mapi.ErrNoSuchProperty
		}
		return int(o.rec.Importance.Int64), nil
	case "Complete":
		return o.rec.Complete, nil
	case "PercentComplete":
		return o.rec.PercentComplete, nil

	default:
		return nil, mapi.ErrNoSuchProperty
	}
}

// Set implements mapi.Object. Writes land on the in-memory record and are
// persisted by Save.
func (o *itemObject) Set(name string, value any) error {
	switch name {
	case "Subject":
		return setString(&o.rec.Subject, name, value)
	case "Body":
		return setString(&o.rec.Body, name, value)
	case "HTMLBody":
		return setString(&o.rec.HTMLBody, name, value)
	case "To":
		return setString(&o.rec.To, name, value)
	case "CC":
		return setString(&o.rec.CC, name, value)
	case "BCC":
		return setString(&o.rec.BCC, name, value)
	case "Location":
		return setString(&o.rec.Location, name, value)
	case "RequiredAttendees":
		return setString(&o.rec.RequiredAttendees, name, value)
	case "OptionalAttendees":
		return setString(&o.rec.OptionalAttendees, name, value)

	case "UnRead":
		return setBool(&o.rec.Unread, name, value)
	case "AllDayEvent":
		return setBool(&o.rec.AllDay, name, value)
	case "ResponseRequested":
		return setBool(&o.rec.ResponseRequested, name, value)
	case "Complete":
		if err := setBool(&o.rec.Complete, name, value); err != nil {
			return err
		}
		if o.rec.Complete {
			o.rec.PercentComplete = 100
			o.rec.TaskStatus = sql.NullInt64{Int64: 2, Valid: true}
		} else if o.rec.PercentComplete == 100 {
			o.rec.PercentComplete = 0
			o.rec.TaskStatus = sql.NullInt64{Int64: 0, Valid: true}
		}
		return nil

	case "Start":
		t, ok := value.(time.Time)
		if !ok {
			return typeErr(name, value)
		}
		o.rec.Start = nullTime(t)
		return nil
	case "End":
		t, ok := value.(time.Time)
		if !ok {
			return typeErr(name, value)
		}
		o.rec.End = nullTime(t)
		return nil
	case "DueDate":
		t, ok := value.(time.Time)
		if !ok {
			return typeErr(name, value)
		}
		o.rec.DueDate = nullTime(t)
		return nil

	case "MeetingStatus":
		n, ok := toInt(value)
		if !ok {
			return typeErr(name, value)
		}
		o.rec.MeetingStatus = n
		return nil
	case "ResponseStatus":
		n, ok := toInt(value)
		if !ok {
			return typeErr(name, value)
		}
		o.rec.ResponseStatus = n
		return nil
	case "Status":
		n, ok := toInt(value)
		if !ok || n < 0 || n > 4 {
			return typeErr(name, value)
		}
		o.rec.TaskStatus = sql.NullInt64{Int64: int64(n), Valid: true}
		if n == 2 {
			o.rec.Complete = true
			o.rec.PercentComplete = 100
		}
		return nil
	case "Importance":
		n, ok := toInt(value)
		if !ok || n < 0 || n > 2 {
			return typeErr(name, value)
		}
		o.rec.Importance = sql.NullInt64{Int64: int64(n), Valid: true}
		return nil
	case "PercentComplete":
		n, ok := toInt(value)
		if !ok || n < 0 || n > 100 {
			return typeErr(name, value)
		}
		o.rec.PercentComplete = n
		switch {
		case n == 100:
			o.rec.Complete = true
			o.rec.TaskStatus = sql.NullInt64{Int64: 2, Valid: true}
		case o.rec.Complete:
			o.rec.Complete = false
			o.rec.TaskStatus = sql.NullInt64{Int64: 1, Valid: true}
		}
		return nil

	default:
		return mapi.ErrNoSuchProperty
	}
}

func setString(dst *string, name string, value any) error {
	s, ok := value.(string)
	if !ok {
		return typeErr(name, value)
	}
	*dst = s
	return nil
}

func setBool(dst *bool, name string, value any) error {
	b, ok := value.(bool)
	if !ok {
		return typeErr(name, value)
	}
	*dst = b
	return nil
}

func toInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func typeErr(name string, value any) error {
	return fmt.Errorf("property %s: unsupported value type %T", name, value)
}

// Call implements mapi.Object.
func (o *itemObject) Call(name string, args ...any) (any, error) {
	switch name {
	case "Save":
		return nil, o.save()
	case "Send":
		return nil, o.send()
	case "Delete":
		return nil, o.delete()
	case "Move":
		return o.move(args)
	case "Reply":
		return o.reply(false)
	case "ReplyAll":
		return o.reply(true)
	case "Forward":
		return o.forward()
	case "MarkComplete":
		return nil, o.markComplete()
	case "Respond":
		return o.respond(args)
	default:
		return nil, fmt.Errorf("unknown method %s on %s", name,
			o.rec.MessageClass)
	}
}

// Release implements mapi.Object. Rows need no reference management.
func (o *itemObject) Release() {}

// save persists the record and flushes any pending attachments.
func (o *itemObject) save() error {
	if err := o.store.saveItem(&o.rec); err != nil {
		return err
	}
	o.persisted = true

	if o.copyAttachmentsFrom != "" {
		_, err := o.store.db.Exec(
			`INSERT INTO attachments (id, item_id, file_name, content)
			 SELECT ?, ?, file_name, content FROM attachments
			 WHERE item_id = ?`,
			uuid.NewString(), o.rec.ID, o.copyAttachmentsFrom,
		)
		if err != nil {
			return err
		}
		o.copyAttachmentsFrom = ""
	}

	for _, att := range o.pendingAtts {
		_, err := o.store.db.Exec(
			`INSERT INTO attachments (id, item_id, file_name, content)
			 VALUES (?, ?, ?, ?)`,
			uuid.NewString(), o.rec.ID, att.fileName, att.content,
		)
		if err != nil {
			return err
		}
	}
	o.pendingAtts = nil

	return nil
}

// send delivers the item. A mail item is re-filed into the sent items
// folder under a fresh identifier, matching the live surface where the
// sent copy is a different entry than the composed one. A meeting item
// stays on the calendar with its invitations marked sent.
func (o *itemObject) send() error {
	if strings.HasPrefix(o.rec.MessageClass, "IPM.Appointment") {
		o.rec.MeetingStatus = 1
		return o.save()
	}

	sent, err := o.store.DefaultFolder(mapi.FolderSent)
	if err != nil {
		return err
	}
	sentID, _ := sent.Get("EntryID")

	oldID := o.rec.ID
	if o.persisted {
		if _, err := o.store.db.Exec(
			`DELETE FROM items WHERE id = ?`, oldID,
		); err != nil {
			return err
		}
	}

	o.rec.ID = uuid.NewString()
	o.rec.FolderID = sentID.(string)
	o.rec.Received = nullTime(time.Now())
	o.rec.Unread = false
	o.persisted = false

	if err := o.save(); err != nil {
		return err
	}

	// Re-point any attachments saved under the composed identifier.
	if oldID != o.rec.ID {
		_, err := o.store.db.Exec(
			`UPDATE attachments SET item_id = ? WHERE item_id = ?`,
			o.rec.ID, oldID,
		)
		if err != nil {
			return err
		}
	}

	log.Debugf("Delivered %q to sent items as %s", o.rec.Subject,
		o.rec.ID)

	return nil
}

// delete moves the item to the deleted items folder, or removes it
// outright when it is already there.
func (o *itemObject) delete() error {
	deleted, err := o.store.DefaultFolder(mapi.FolderDeleted)
	if err != nil {
		return err
	}
	deletedID, _ := deleted.Get("EntryID")

	if o.rec.FolderID == deletedID.(string) {
		_, err := o.store.db.Exec(
			`DELETE FROM items WHERE id = ?`, o.rec.ID,
		)
		return err
	}

	o.rec.FolderID = deletedID.(string)
	return o.save()
}

// move re-files the item into the destination folder and returns the
// moved item.
func (o *itemObject) move(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("Move expects a destination folder")
	}

	dest, ok := args[0].(mapi.Object)
	if !ok {
		return nil, fmt.Errorf("Move expects a folder object, got %T",
			args[0])
	}

	destID, err := dest.Get("EntryID")
	if err != nil {
		return nil, err
	}

	o.rec.FolderID = destID.(string)
	if err := o.save(); err != nil {
		return nil, err
	}

	return o, nil
}

// reply builds an unsaved reply item addressed back to the sender,
// carrying the quoted original body.
func (o *itemObject) reply(all bool) (any, error) {
	to := o.rec.SenderEmail
	cc := ""
	if all {
		cc = o.rec.CC
		if o.rec.To != "" {
			to = to + "; " + o.rec.To
		}
	}

	r := &itemObject{
		store: o.store,
		rec: itemRecord{
			ID:           uuid.NewString(),
			FolderID:     o.rec.FolderID,
			MessageClass: "IPM.Note",
			Subject:      withPrefix("RE: ", o.rec.Subject),
			Body:         quoteOriginal(&o.rec),
			SenderName:   o.store.cfg.userName(),
			SenderEmail:  o.store.cfg.userEmail(),
			To:           to,
			CC:           cc,
		},
	}

	if folder, err := o.store.DefaultFolder(mapi.FolderDrafts); err == nil {
		id, _ := folder.Get("EntryID")
		r.rec.FolderID = id.(string)
	}

	return r, nil
}

// forward builds an unsaved forward item carrying the original body and
// attachments.
func (o *itemObject) forward() (any, error) {
	f := &itemObject{
		store: o.store,
		rec: itemRecord{
			ID:           uuid.NewString(),
			MessageClass: "IPM.Note",
			Subject:      withPrefix("FW: ", o.rec.Subject),
			Body:         quoteOriginal(&o.rec),
			SenderName:   o.store.cfg.userName(),
			SenderEmail:  o.store.cfg.userEmail(),
		},
		copyAttachmentsFrom: o.rec.ID,
	}

	if folder, err := o.store.DefaultFolder(mapi.FolderDrafts); err == nil {
		id, _ := folder.Get("EntryID")
		f.rec.FolderID = id.(string)
	}

	return f, nil
}

// markComplete finishes a task.
func (o *itemObject) markComplete() error {
	if !strings.HasPrefix(o.rec.MessageClass, "IPM.Task") {
		return fmt.Errorf("MarkComplete is only valid on tasks")
	}

	o.rec.Complete = true
	o.rec.PercentComplete = 100
	o.rec.TaskStatus = sql.NullInt64{Int64: 2, Valid: true}

	return o.save()
}

// respond records the session owner's answer to a received meeting and
// returns the response message to send.
func (o *itemObject) respond(args []any) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("Respond expects a response code")
	}

	code, ok := toInt(args[0])
	if !ok {
		return nil, fmt.Errorf("Respond expects an integer code, got %T",
			args[0])
	}

	o.rec.ResponseStatus = code
	if err := o.save(); err != nil {
		return nil, err
	}

	verbs := map[int]string{2: "Tentative", 3: "Accepted", 4: "Declined"}

	resp := &itemObject{
		store: o.store,
		rec: itemRecord{
			ID:           uuid.NewString(),
			FolderID:     o.rec.FolderID,
			MessageClass: "IPM.Schedule.Meeting.Resp",
			Subject:      verbs[code] + ": " + o.rec.Subject,
			SenderName:   o.store.cfg.userName(),
			SenderEmail:  o.store.cfg.userEmail(),
			To:           o.rec.Organizer,
		},
	}

	return resp, nil
}

// withPrefix prepends a subject prefix unless it is already present.
func withPrefix(prefix, subject string) string {
	if strings.HasPrefix(strings.ToUpper(subject),
		strings.ToUpper(prefix)) {

		return subject
	}
	return prefix + subject
}

// quoteOriginal renders the forwarded/quoted form of a message body.
func quoteOriginal(r *itemRecord) string {
	var b strings.Builder
	b.WriteString("\n\n-----Original Message-----\n")
	fmt.Fprintf(&b, "From: %s <%s>\n", r.SenderName, r.SenderEmail)
	if r.Received.Valid {
		fmt.Fprintf(&b, "Sent: %s\n",
			r.Received.Time.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "To: %s\n", r.To)
	fmt.Fprintf(&b, "Subject: %s\n\n", r.Subject)
	b.WriteString(r.Body)

	return b.String()
}
