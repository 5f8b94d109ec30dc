package bridge

import "time"

// Time formats used across records and store filters. The wall-clock
// formats match what the groupware surface itself emits and parses.
const (
	// timestampFormat is the wall-clock format for record timestamps.
	timestampFormat = "2006-01-02 15:04:05"

	// dateFormat is the date-only format for due dates and free/busy
	// windows.
	dateFormat = "2006-01-02"
)

// EmailRecord is the structured view of one message. List reads populate
// the summary fields; a detail read additionally carries the bodies.
type EmailRecord struct {
	// EntryID is the opaque, store-issued identifier of the message.
	EntryID string `json:"entry_id"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// Sender is the sender's resolved SMTP address.
	Sender string `json:"sender"`

	// SenderName is the sender's display name.
	SenderName string `json:"sender_name"`

	// ReceivedTime is when the message arrived, empty when unknown.
	ReceivedTime string `json:"received_time,omitempty"`

	// To, CC and BCC are the semicolon-delimited recipient display
	// strings. Only set on detail reads; BCC is empty on received mail.
	To  string `json:"to,omitempty"`
	CC  string `json:"cc,omitempty"`
	BCC string `json:"bcc,omitempty"`

	// Unread reports whether the message is still unread. Populated on
	// both list and detail reads.
	Unread bool `json:"unread"`

	// HasAttachments reports whether the message carries attachments.
	HasAttachments bool `json:"has_attachments"`

	// Body is the plain-text body. Only set on detail reads. When the
	// store holds only an HTML body, this carries its text rendering.
	Body string `json:"body,omitempty"`

	// HTMLBody is the HTML body, only set on detail reads.
	HTMLBody string `json:"html_body,omitempty"`
}

// EventRecord is the structured view of one calendar occurrence, including
// a single instance of a recurring series.
type EventRecord struct {
	EntryID string `json:"entry_id"`
	Subject string `json:"subject"`

	// Start and End are the occurrence bounds, empty when the store
	// failed to produce them.
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`

	Location  string `json:"location"`
	Organizer string `json:"organizer,omitempty"`

	// AllDay classifies the occurrence as an all-day event rather than a
	// timed one.
	AllDay bool `json:"all_day"`

	// RequiredAttendees and OptionalAttendees are semicolon-delimited
	// display strings, flattened from whatever multi-value form the
	// automation layer provides.
	RequiredAttendees string `json:"required_attendees"`
	OptionalAttendees string `json:"optional_attendees"`

	// ResponseStatus is the session owner's response to the meeting:
	// None, Organizer, Tentative, Accepted, Declined, NotResponded or
	// Unknown.
	ResponseStatus string `json:"response_status"`

	// MeetingStatus classifies the item: NonMeeting, Meeting, Received,
	// Canceled or Unknown.
	MeetingStatus string `json:"meeting_status"`

	// ResponseRequested reports whether the organizer asked for a
	// response.
	ResponseRequested bool `json:"response_requested"`

	// Body is the description, only set on detail reads.
	Body string `json:"body,omitempty"`
}

// TaskRecord is the structured view of one to-do item. Status and
// Priority may be genuinely absent on malformed or foreign items, in
// which case they serialize as null.
type TaskRecord struct {
	EntryID string `json:"entry_id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`

	// DueDate is the date-only due date, null when the task has none.
	DueDate *string `json:"due_date"`

	// Status is one of not_started, in_progress, complete, waiting,
	// deferred; null when the store did not expose one.
	Status *string `json:"status"`

	// Priority is one of low, normal, high; null when the store did not
	// expose one.
	Priority *string `json:"priority"`

	// Complete reports whether the task is done.
	Complete bool `json:"complete"`

	// PercentComplete is the completion percentage, 0-100.
	PercentComplete int `json:"percent_complete"`
}

// FolderRecord describes one folder in the store's folder tree.
type FolderRecord struct {
	Name       string `json:"name"`
	EntryID    string `json:"id"`
	ParentName string `json:"parent_name,omitempty"`
	ParentID   string `json:"parent_id,omitempty"`
	ItemCount  int    `json:"number_of_items"`
	Path       string `json:"path"`
	Depth      int    `json:"depth"`

	// Account is the display name of the store root the folder lives
	// under.
	Account string `json:"account"`
}

// FreeBusyRecord is the availability view for one address. When the
// address cannot be resolved against the directory, Resolved is false and
// Error carries the reason; the record is still returned rather than an
// error.
type FreeBusyRecord struct {
	Email     string `json:"email"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`

	// FreeBusy is the store's slot string: one digit per slot, 0=free,
	// 1=tentative, 2=busy, 3=out of office.
	FreeBusy string `json:"free_busy,omitempty"`

	Resolved bool   `json:"resolved"`
	Error    string `json:"error,omitempty"`
}

// OperationResult is the outcome of a mutating call. A send reports
// success without an identifier (the sent copy acquires a new identifier
// in its destination folder); a draft save reports the draft's
// identifier.
type OperationResult struct {
	// Success reports whether the mutation was applied.
	Success bool `json:"success"`

	// Message is a short human-readable description of the outcome.
	Message string `json:"message"`

	// EntryID is the identifier of a created item, when one exists to
	// report.
	EntryID string `json:"entry_id,omitempty"`
}

// okResult builds a successful OperationResult.
func okResult(message, entryID string) OperationResult {
	return OperationResult{
		Success: true,
		Message: message,
		EntryID: entryID,
	}
}

// formatTimestamp renders a store timestamp, returning "" for the zero
// time so the field is omitted rather than rendered as year one.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(timestampFormat)
}
