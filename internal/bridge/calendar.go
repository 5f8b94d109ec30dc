package bridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/dgower/olbridge/internal/mapi"
)

const (
	// defaultWindowDays is the look-ahead window for event listing when
	// the caller passes none.
	defaultWindowDays = 7

	// maxWindowDays caps the event listing window. Recurring series are
	// expanded per-occurrence inside the window, so the window bounds
	// the work directly.
	maxWindowDays = 365

	// maxOccurrenceScan caps how many occurrences one listing will read.
	// The Count of a recurrence-expanded collection is not trustworthy:
	// the live surface can report an overflow sentinel in the billions,
	// so the reported count never bounds the loop on its own.
	maxOccurrenceScan = 10000
)

// responseStatusNames maps the store's meeting response codes to their
// record strings.
var responseStatusNames = map[int]string{
	0: "None",
	1: "Organizer",
	2: "Tentative",
	3: "Accepted",
	4: "Declined",
	5: "NotResponded",
}

// meetingStatusNames maps the store's meeting status codes.
var meetingStatusNames = map[int]string{
	0: "NonMeeting",
	1: "Meeting",
	3: "Received",
	5: "Canceled",
	7: "ReceivedAndCanceled",
}

// respondCodes maps the accepted response verbs to the store's action
// codes.
var respondCodes = map[string]int{
	"accept":    3,
	"decline":   4,
	"tentative": 2,
}

// clockLayouts are the accepted wall-clock input formats, tried in order.
var clockLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

// parseClock parses a caller-supplied local wall-clock string.
func parseClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// eventRecord builds the record for one appointment occurrence.
func eventRecord(item mapi.Object) EventRecord {
	rec := EventRecord{
		EntryID:           Attr(item, "EntryID", ""),
		Subject:           Attr(item, "Subject", "(no subject)"),
		Location:          Attr(item, "Location", ""),
		Organizer:         Attr(item, "Organizer", ""),
		AllDay:            Attr(item, "AllDayEvent", false),
		RequiredAttendees: Attr(item, "RequiredAttendees", ""),
		OptionalAttendees: Attr(item, "OptionalAttendees", ""),
		ResponseRequested: Attr(item, "ResponseRequested", false),
	}

	if t, ok := unpack(OptAttr[time.Time](item, "Start")); ok {
		rec.Start = formatTimestamp(t)
	}
	if t, ok := unpack(OptAttr[time.Time](item, "End")); ok {
		rec.End = formatTimestamp(t)
	}

	rec.ResponseStatus = codeName(
		responseStatusNames, OptAttr[int](item, "ResponseStatus"),
	)
	rec.MeetingStatus = codeName(
		meetingStatusNames, OptAttr[int](item, "MeetingStatus"),
	)

	return rec
}

// codeName renders an optional store code through a name table, falling
// back to "Unknown" for unmapped or unreadable codes.
func codeName(names map[int]string, code fn.Option[int]) string {
	c, ok := unpack(code)
	if !ok {
		return "Unknown"
	}

	name, ok := names[c]
	if !ok {
		return "Unknown"
	}

	return name
}

// calendarOccurrences returns the calendar's occurrence view for the
// given window. The restriction is applied BEFORE any iteration: with
// recurrences included, an unrestricted collection enumerates every
// occurrence of every series ever created, which on a mature calendar
// never terminates in practice. The ascending sort is required by the
// store for the recurrence expansion to honor the window.
func (b *Bridge) calendarOccurrences(start,
	end time.Time) (mapi.Collection, error) {

	cal, err := b.store.DefaultFolder(mapi.FolderCalendar)
	if err != nil {
		return nil, automationErr("calendarOccurrences", err)
	}

	items, err := childCollection(cal, "Items")
	if err != nil {
		return nil, automationErr("calendarOccurrences", err)
	}

	items, err = items.Restrict(appointmentClassFilter)
	if err != nil {
		return nil, automationErr("calendarOccurrences", err)
	}

	if err := items.Sort("[Start]", false); err != nil {
		return nil, automationErr("calendarOccurrences", err)
	}

	if err := items.SetIncludeRecurrences(true); err != nil {
		return nil, automationErr("calendarOccurrences", err)
	}

	items, err = items.Restrict(windowFilter(start, end))
	if err != nil {
		return nil, automationErr("calendarOccurrences", err)
	}

	return items, nil
}

// ListEvents returns every calendar occurrence in the next days days,
// starting from today's midnight, in ascending start order. Recurring
// series contribute one record per occurrence inside the window.
func (b *Bridge) ListEvents(days int) ([]EventRecord, error) {
	if days <= 0 {
		days = defaultWindowDays
	}
	if days > maxWindowDays {
		days = maxWindowDays
	}

	now := time.Now()
	start := time.Date(
		now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local,
	)
	end := start.AddDate(0, 0, days)

	items, err := b.calendarOccurrences(start, end)
	if err != nil {
		return nil, err
	}

	count, err := items.Count()
	if err != nil {
		return nil, automationErr("ListEvents", err)
	}
	if count > maxOccurrenceScan {
		log.Warnf("Occurrence count %d exceeds scan cap, clamping to %d",
			count, maxOccurrenceScan)
		count = maxOccurrenceScan
	}

	records := make([]EventRecord, 0, min(count, 64))
	for i := 1; i <= count; i++ {
		item, err := items.Item(i)
		if err != nil {
			log.Debugf("Skipping unreadable occurrence %d: %v", i, err)
			continue
		}

		// The restriction already bounds the window, but recurrence
		// expansion can leak occurrences outside it, so each one is
		// checked again here. The ascending start sort means the first
		// occurrence past the window ends the scan.
		if st, ok := unpack(OptAttr[time.Time](item, "Start")); ok {
			if st.After(end) {
				break
			}
		}
		if en, ok := unpack(OptAttr[time.Time](item, "End")); ok {
			if en.Before(start) {
				continue
			}
		}

		records = append(records, eventRecord(item))
	}

	log.Debugf("Listed %d calendar occurrences over %d days",
		len(records), days)

	return records, nil
}

// GetEvent returns the full detail view of one appointment, including its
// body.
func (b *Bridge) GetEvent(id string) (EventRecord, error) {
	item, err := b.ItemByID(id)
	if err != nil {
		return EventRecord{}, err
	}

	rec := eventRecord(item)
	rec.Body = Attr(item, "Body", "")

	return rec, nil
}

// CreateEventRequest describes a new appointment. End and DurationMinutes
// are alternatives; when both are empty the event runs 30 minutes.
type CreateEventRequest struct {
	Subject           string
	Start             string
	End               string
	DurationMinutes   int
	Location          string
	Body              string
	AllDay            bool
	RequiredAttendees []string
	OptionalAttendees []string

	// SendInvitations sends meeting requests to the attendees instead of
	// just saving the meeting locally.
	SendInvitations bool
}

// CreateEvent creates a calendar appointment. When attendees are given
// the item becomes a meeting; invitations go out only when requested.
func (b *Bridge) CreateEvent(req CreateEventRequest) (OperationResult, error) {
	if req.Subject == "" {
		return OperationResult{}, validationErrf("subject",
			"subject must not be empty")
	}

	start, err := parseClock(req.Start)
	if err != nil {
		return OperationResult{}, validationErrf("start", "%s", err.Error())
	}

	var end time.Time
	switch {
	case req.End != "":
		end, err = parseClock(req.End)
		if err != nil {
			return OperationResult{}, validationErrf("end", "%s", err.Error())
		}
	case req.DurationMinutes > 0:
		end = start.Add(time.Duration(req.DurationMinutes) * time.Minute)
	default:
		end = start.Add(30 * time.Minute)
	}

	if !end.After(start) {
		return OperationResult{}, validationErrf("end",
			"end must be after start")
	}

	item, err := b.store.CreateItem(mapi.ItemAppointment)
	if err != nil {
		return OperationResult{}, automationErr("CreateEvent", err)
	}

	if err := item.Set("Subject", req.Subject); err != nil {
		return OperationResult{}, automationErr("CreateEvent", err)
	}
	if err := item.Set("Start", start); err != nil {
		return OperationResult{}, automationErr("CreateEvent", err)
	}
	if err := item.Set("End", end); err != nil {
		return OperationResult{}, automationErr("CreateEvent", err)
	}

	if req.Location != "" {
		item.Set("Location", req.Location)
	}
	if req.Body != "" {
		item.Set("Body", req.Body)
	}
	if req.AllDay {
		item.Set("AllDayEvent", true)
	}

	hasAttendees := len(req.RequiredAttendees) > 0 ||
		len(req.OptionalAttendees) > 0

	if hasAttendees {
		// olMeeting
		item.Set("MeetingStatus", 1)

		if len(req.RequiredAttendees) > 0 {
			item.Set("RequiredAttendees",
				strings.Join(req.RequiredAttendees, "; "))
		}
		if len(req.OptionalAttendees) > 0 {
			item.Set("OptionalAttendees",
				strings.Join(req.OptionalAttendees, "; "))
		}
	}

	if hasAttendees && req.SendInvitations {
		if _, err := item.Call("Send"); err != nil {
			return OperationResult{}, automationErr("CreateEvent", err)
		}

		log.Infof("Created meeting %q and sent invitations", req.Subject)

		return okResult("meeting created and invitations sent",
			Attr(item, "EntryID", "")), nil
	}

	if _, err := item.Call("Save"); err != nil {
		return OperationResult{}, automationErr("CreateEvent", err)
	}

	log.Infof("Created event %q at %s", req.Subject,
		start.Format(timestampFormat))

	return okResult("event created", Attr(item, "EntryID", "")), nil
}

// UpdateEventRequest carries the fields to change on an appointment. Nil
// fields are left untouched.
type UpdateEventRequest struct {
	Subject  *string
	Start    *string
	End      *string
	Location *string
	Body     *string
}

// UpdateEvent applies a partial update to an appointment. All inputs are
// validated before the first write so a bad field never leaves the item
// half-updated.
func (b *Bridge) UpdateEvent(id string,
	req UpdateEventRequest) (OperationResult, error) {

	var start, end time.Time
	var err error

	if req.Start != nil {
		start, err = parseClock(*req.Start)
		if err != nil {
			return OperationResult{}, validationErrf("start", "%s", err.Error())
		}
	}
	if req.End != nil {
		end, err = parseClock(*req.End)
		if err != nil {
			return OperationResult{}, validationErrf("end", "%s", err.Error())
		}
	}
	if req.Start != nil && req.End != nil && !end.After(start) {
		return OperationResult{}, validationErrf("end",
			"end must be after start")
	}

	item, err := b.ItemByID(id)
	if err != nil {
		return OperationResult{}, err
	}

	if req.Subject != nil {
		if err := item.Set("Subject", *req.Subject); err != nil {
			return OperationResult{}, automationErr("UpdateEvent", err)
		}
	}
	if req.Start != nil {
		if err := item.Set("Start", start); err != nil {
			return OperationResult{}, automationErr("UpdateEvent", err)
		}
	}
	if req.End != nil {
		if err := item.Set("End", end); err != nil {
			return OperationResult{}, automationErr("UpdateEvent", err)
		}
	}
	if req.Location != nil {
		if err := item.Set("Location", *req.Location); err != nil {
			return OperationResult{}, automationErr("UpdateEvent", err)
		}
	}
	if req.Body != nil {
		if err := item.Set("Body", *req.Body); err != nil {
			return OperationResult{}, automationErr("UpdateEvent", err)
		}
	}

	if _, err := item.Call("Save"); err != nil {
		return OperationResult{}, automationErr("UpdateEvent", err)
	}

	return okResult("event updated", id), nil
}

// DeleteEvent deletes an appointment. Deleting the master of a recurring
// series removes every occurrence.
func (b *Bridge) DeleteEvent(id string) (OperationResult, error) {
	item, err := b.ItemByID(id)
	if err != nil {
		return OperationResult{}, err
	}

	if _, err := item.Call("Delete"); err != nil {
		return OperationResult{}, automationErr("DeleteEvent", err)
	}

	return okResult("event deleted", ""), nil
}

// RespondEvent responds to a received meeting request with accept,
// decline or tentative, and sends the response to the organizer.
func (b *Bridge) RespondEvent(id, response string) (OperationResult, error) {
	code, ok := respondCodes[strings.ToLower(strings.TrimSpace(response))]
	if !ok {
		return OperationResult{}, validationErrf("response",
			"response must be accept, decline or tentative")
	}

	item, err := b.ItemByID(id)
	if err != nil {
		return OperationResult{}, err
	}

	if status, ok := unpack(OptAttr[int](item, "MeetingStatus")); ok {
		// 3 = meeting received. Responding to a non-meeting or to a
		// meeting the caller organizes is rejected by the store with an
		// opaque fault, so reject it up front instead.
		if status != 3 {
			return OperationResult{}, validationErrf("id",
				"item is not a received meeting request")
		}
	}

	raw, err := item.Call("Respond", code, true)
	if err != nil {
		return OperationResult{}, automationErr("RespondEvent", err)
	}

	if resp, ok := raw.(mapi.Object); ok && resp != nil {
		if _, err := resp.Call("Send"); err != nil {
			return OperationResult{}, automationErr("RespondEvent", err)
		}
	}

	log.Infof("Responded %q to meeting %s", response, id)

	return okResult("meeting response sent: "+response, ""), nil
}

// FreeBusy returns availability for each address over the next days days.
// Unresolvable addresses yield a partial record with Resolved false
// rather than failing the whole call.
func (b *Bridge) FreeBusy(emails []string, days int) ([]FreeBusyRecord, error) {
	if len(emails) == 0 {
		return nil, validationErrf("emails",
			"at least one address is required")
	}

	if days <= 0 {
		days = 1
	}
	if days > maxWindowDays {
		days = maxWindowDays
	}

	now := time.Now()
	start := time.Date(
		now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local,
	)
	end := start.AddDate(0, 0, days)

	records := make([]FreeBusyRecord, 0, len(emails))
	for _, email := range emails {
		records = append(records, b.freeBusyOne(email, start, end))
	}

	return records, nil
}

// freeBusyOne resolves one address and reads its free/busy slot string,
// 30 minutes per slot.
func (b *Bridge) freeBusyOne(email string, start,
	end time.Time) FreeBusyRecord {

	rec := FreeBusyRecord{
		Email:     email,
		StartDate: start.Format(dateFormat),
		EndDate:   end.Format(dateFormat),
	}

	recip, err := b.store.CreateRecipient(email)
	if err != nil {
		rec.Error = fmt.Sprintf("recipient creation: %v", err)
		return rec
	}
	defer recip.Release()

	resolved, err := recip.Call("Resolve")
	if err != nil {
		rec.Error = fmt.Sprintf("resolution: %v", err)
		return rec
	}
	if ok, _ := resolved.(bool); !ok {
		rec.Error = "address did not resolve against the directory"
		return rec
	}

	rec.Resolved = true

	raw, err := recip.Call("FreeBusy", start, 30, true)
	if err != nil {
		rec.Error = fmt.Sprintf("free/busy read: %v", err)
		return rec
	}

	slots, _ := raw.(string)

	// The store returns slots from start onward with no end bound; trim
	// down to the requested window. 48 half-hour slots per day.
	want := days48(start, end)
	if len(slots) > want {
		slots = slots[:want]
	}
	rec.FreeBusy = slots

	return rec
}

// days48 returns the number of 30-minute slots between start and end.
func days48(start, end time.Time) int {
	return int(end.Sub(start) / (30 * time.Minute))
}
