package bridge

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dgower/olbridge/internal/mapi"
	"github.com/dgower/olbridge/internal/simstore"
)

// today returns midnight at the start of the current day.
func today() time.Time {
	now := time.Now()
	return time.Date(
		now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local,
	)
}

func TestListEventsWindow(t *testing.T) {
	b, store := newTestBridge(t)
	base := today()

	inWindow, err := store.AddEvent(simstore.SeedEvent{
		Subject: "Tomorrow sync",
		Start:   base.Add(24*time.Hour + 10*time.Hour),
		End:     base.Add(24*time.Hour + 11*time.Hour),
	})
	require.NoError(t, err)

	_, err = store.AddEvent(simstore.SeedEvent{
		Subject: "Far future offsite",
		Start:   base.AddDate(0, 0, 30),
		End:     base.AddDate(0, 0, 30).Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = store.AddEvent(simstore.SeedEvent{
		Subject: "Last month retro",
		Start:   base.AddDate(0, 0, -30),
		End:     base.AddDate(0, 0, -30).Add(time.Hour),
	})
	require.NoError(t, err)

	events, err := b.ListEvents(7)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "Tomorrow sync", events[0].Subject)
	require.Equal(t, inWindow, events[0].EntryID)
}

// TestListEventsRecurring pins the recurrence window discipline: an
// unbounded daily series contributes one occurrence per day inside the
// window and nothing more, no matter how old the series is.
func TestListEventsRecurring(t *testing.T) {
	b, store := newTestBridge(t)
	base := today()

	_, err := store.AddEvent(simstore.SeedEvent{
		Subject:   "Daily stand-up",
		Start:     base.AddDate(0, 0, -30).Add(9 * time.Hour),
		End:       base.AddDate(0, 0, -30).Add(9*time.Hour + 15*time.Minute),
		RecurType: "daily",
	})
	require.NoError(t, err)

	events, err := b.ListEvents(7)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(events), 7)
	require.LessOrEqual(t, len(events), 8)

	for _, e := range events {
		require.Equal(t, "Daily stand-up", e.Subject)
	}

	// Occurrences come back in chronological order.
	for i := 1; i < len(events); i++ {
		require.True(t, events[i-1].Start <= events[i].Start)
	}
}

// TestRecurringWindowProperty checks the occurrence count of a daily
// series over arbitrary windows: always between days and days+1.
func TestRecurringWindowProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store, err := simstore.New(simstore.Config{})
		require.NoError(rt, err)
		defer store.Release()

		b := New(store)
		base := today()

		ageDays := rapid.IntRange(0, 90).Draw(rt, "ageDays")
		windowDays := rapid.IntRange(1, 30).Draw(rt, "windowDays")
		startHour := rapid.IntRange(0, 23).Draw(rt, "startHour")

		_, err = store.AddEvent(simstore.SeedEvent{
			Subject: "Series",
			Start: base.AddDate(0, 0, -ageDays).
				Add(time.Duration(startHour) * time.Hour),
			End: base.AddDate(0, 0, -ageDays).
				Add(time.Duration(startHour)*time.Hour + 30*time.Minute),
			RecurType: "daily",
		})
		require.NoError(rt, err)

		events, err := b.ListEvents(windowDays)
		require.NoError(rt, err)

		require.GreaterOrEqual(rt, len(events), windowDays)
		require.LessOrEqual(rt, len(events), windowDays+1)
	})
}

func TestCreateEventValidation(t *testing.T) {
	b, _ := newTestBridge(t)

	_, err := b.CreateEvent(CreateEventRequest{Start: "2026-04-01 10:00"})
	require.Equal(t, KindValidation, Classify(err))

	_, err = b.CreateEvent(CreateEventRequest{
		Subject: "No start",
	})
	require.Equal(t, KindValidation, Classify(err))

	_, err = b.CreateEvent(CreateEventRequest{
		Subject: "Backwards",
		Start:   "2026-04-01 10:00",
		End:     "2026-04-01 09:00",
	})
	require.Equal(t, KindValidation, Classify(err))
}

func TestCreateEventRoundTrip(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateEvent(CreateEventRequest{
		Subject:  "Design review",
		Start:    "2026-04-01 10:00",
		End:      "2026-04-01 11:30",
		Location: "Room 4",
		Body:     "agenda attached",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.EntryID)

	event, err := b.GetEvent(res.EntryID)
	require.NoError(t, err)
	require.Equal(t, "Design review", event.Subject)
	require.Equal(t, "2026-04-01 10:00:00", event.Start)
	require.Equal(t, "2026-04-01 11:30:00", event.End)
	require.Equal(t, "Room 4", event.Location)
	require.Equal(t, "NonMeeting", event.MeetingStatus)
	require.Equal(t, "agenda attached", event.Body)
}

func TestGetEventIdempotent(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateEvent(CreateEventRequest{
		Subject: "Standing sync",
		Start:   "2026-04-01 10:00",
		End:     "2026-04-01 10:30",
	})
	require.NoError(t, err)

	first, err := b.GetEvent(res.EntryID)
	require.NoError(t, err)

	second, err := b.GetEvent(res.EntryID)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCreateEventDefaultDuration(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateEvent(CreateEventRequest{
		Subject: "Quick chat",
		Start:   "2026-04-01 10:00",
	})
	require.NoError(t, err)

	event, err := b.GetEvent(res.EntryID)
	require.NoError(t, err)
	require.Equal(t, "2026-04-01 10:30:00", event.End)
}

func TestCreateMeetingWithAttendees(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateEvent(CreateEventRequest{
		Subject:           "Planning",
		Start:             "2026-04-02 14:00",
		DurationMinutes:   60,
		RequiredAttendees: []string{"alice@example.com", "bob@example.com"},
	})
	require.NoError(t, err)

	event, err := b.GetEvent(res.EntryID)
	require.NoError(t, err)
	require.Equal(t, "Meeting", event.MeetingStatus)
	require.Contains(t, event.RequiredAttendees, "alice@example.com")
	require.Contains(t, event.RequiredAttendees, "bob@example.com")
}

func TestUpdateEventPartial(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateEvent(CreateEventRequest{
		Subject:  "Original",
		Start:    "2026-04-01 10:00",
		End:      "2026-04-01 11:00",
		Location: "Room 1",
	})
	require.NoError(t, err)

	loc := "Room 9"
	_, err = b.UpdateEvent(res.EntryID, UpdateEventRequest{Location: &loc})
	require.NoError(t, err)

	event, err := b.GetEvent(res.EntryID)
	require.NoError(t, err)
	require.Equal(t, "Original", event.Subject)
	require.Equal(t, "Room 9", event.Location)
	require.Equal(t, "2026-04-01 10:00:00", event.Start)
}

// TestUpdateEventValidationLeavesRecordUnchanged pins the no-partial-write
// rule: one bad field fails the whole update before anything is written.
func TestUpdateEventValidationLeavesRecordUnchanged(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateEvent(CreateEventRequest{
		Subject: "Stable",
		Start:   "2026-04-01 10:00",
		End:     "2026-04-01 11:00",
	})
	require.NoError(t, err)

	subj := "Changed"
	badStart := "not a time"
	_, err = b.UpdateEvent(res.EntryID, UpdateEventRequest{
		Subject: &subj,
		Start:   &badStart,
	})
	require.Equal(t, KindValidation, Classify(err))

	event, err := b.GetEvent(res.EntryID)
	require.NoError(t, err)
	require.Equal(t, "Stable", event.Subject)
	require.Equal(t, "2026-04-01 10:00:00", event.Start)
}

func TestDeleteEvent(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateEvent(CreateEventRequest{
		Subject: "Doomed",
		Start:   "2026-04-01 10:00",
	})
	require.NoError(t, err)

	_, err = b.DeleteEvent(res.EntryID)
	require.NoError(t, err)

	_, err = b.DeleteEvent("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRespondEvent(t *testing.T) {
	b, store := newTestBridge(t)
	base := today()

	received, err := store.AddEvent(simstore.SeedEvent{
		Subject:        "Vendor pitch",
		Start:          base.Add(48 * time.Hour),
		End:            base.Add(49 * time.Hour),
		Organizer:      "carol@example.com",
		MeetingStatus:  3,
		ResponseStatus: 5,
	})
	require.NoError(t, err)

	plain, err := store.AddEvent(simstore.SeedEvent{
		Subject: "My own appointment",
		Start:   base.Add(50 * time.Hour),
		End:     base.Add(51 * time.Hour),
	})
	require.NoError(t, err)

	// Unknown verb.
	_, err = b.RespondEvent(received, "maybe")
	require.Equal(t, KindValidation, Classify(err))

	// Responding to something that is not a received meeting request is
	// rejected before any store write.
	_, err = b.RespondEvent(plain, "accept")
	require.Equal(t, KindValidation, Classify(err))

	res, err := b.RespondEvent(received, "accept")
	require.NoError(t, err)
	require.True(t, res.Success)

	event, err := b.GetEvent(received)
	require.NoError(t, err)
	require.Equal(t, "Accepted", event.ResponseStatus)
}

func TestFreeBusy(t *testing.T) {
	b, store := newTestBridge(t)
	base := today()

	// A meeting today makes the owner's calendar busy for that hour.
	_, err := store.AddEvent(simstore.SeedEvent{
		Subject: "Busy block",
		Start:   base.Add(10 * time.Hour),
		End:     base.Add(11 * time.Hour),
	})
	require.NoError(t, err)

	records, err := b.FreeBusy(
		[]string{"owner@example.com", "stranger@nowhere.invalid"}, 2,
	)
	require.NoError(t, err)
	require.Len(t, records, 2)

	owner := records[0]
	require.True(t, owner.Resolved)
	require.Len(t, owner.FreeBusy, 2*48)
	require.Equal(t, byte('2'), owner.FreeBusy[20])
	require.Equal(t, byte('2'), owner.FreeBusy[21])
	require.Equal(t, byte('0'), owner.FreeBusy[0])

	stranger := records[1]
	require.False(t, stranger.Resolved)
	require.NotEmpty(t, stranger.Error)
	require.Empty(t, stranger.FreeBusy)

	// No addresses at all is a validation failure.
	_, err = b.FreeBusy(nil, 7)
	require.Equal(t, KindValidation, Classify(err))
}

// runawayItems mimics a recurrence-expanded collection whose Count is
// the surface's overflow sentinel rather than a real length. Occurrences
// up to inWindow start inside the listing window; everything after
// starts far beyond it.
type runawayItems struct {
	base      time.Time
	inWindow  int
	itemCalls int
}

var _ mapi.Collection = (*runawayItems)(nil)

func (r *runawayItems) Get(string) (any, error) {
	return nil, mapi.ErrNoSuchProperty
}

func (r *runawayItems) Set(string, any) error            { return nil }
func (r *runawayItems) Call(string, ...any) (any, error) { return nil, nil }
func (r *runawayItems) Release()                         {}

func (r *runawayItems) Count() (int, error) {
	return math.MaxInt32, nil
}

func (r *runawayItems) Item(i int) (mapi.Object, error) {
	r.itemCalls++

	start := r.base.Add(time.Duration(i) * time.Hour)
	if i > r.inWindow {
		start = r.base.AddDate(0, 0, 30)
	}

	return &propObject{props: map[string]any{
		"EntryID": fmt.Sprintf("occurrence-%d", i),
		"Subject": "Daily standup",
		"Start":   start,
		"End":     start.Add(30 * time.Minute),
	}}, nil
}

func (r *runawayItems) Restrict(string) (mapi.Collection, error) {
	return r, nil
}

func (r *runawayItems) Sort(string, bool) error          { return nil }
func (r *runawayItems) SetIncludeRecurrences(bool) error { return nil }

func (r *runawayItems) Add() (mapi.Object, error) {
	return nil, errors.New("read only")
}

// runawayStore serves a calendar backed by runawayItems.
type runawayStore struct {
	items *runawayItems
}

var _ mapi.Store = (*runawayStore)(nil)

func (s *runawayStore) ItemFromID(string) (mapi.Object, error) {
	return nil, mapi.ErrNotFound
}

func (s *runawayStore) DefaultFolder(mapi.WellKnownFolder) (mapi.Object, error) {
	return &propObject{props: map[string]any{"Items": s.items}}, nil
}

func (s *runawayStore) Roots() (mapi.Collection, error) {
	return nil, errors.New("no roots")
}

func (s *runawayStore) CreateItem(mapi.ItemClass) (mapi.Object, error) {
	return nil, errors.New("read only")
}

func (s *runawayStore) CreateRecipient(string) (mapi.Object, error) {
	return nil, errors.New("no directory")
}

func (s *runawayStore) CurrentUserAddress() (string, error) {
	return "owner@example.com", nil
}

func (s *runawayStore) Release() {}

// TestListEventsRunawayCount pins the scan discipline against a backend
// whose expanded collection reports a garbage Count: the listing must
// stop at the first occurrence past the window instead of walking out
// the reported two billion entries.
func TestListEventsRunawayCount(t *testing.T) {
	items := &runawayItems{base: today(), inWindow: 5}
	b := New(&runawayStore{items: items})

	events, err := b.ListEvents(7)
	require.NoError(t, err)
	require.Len(t, events, 5)

	for _, ev := range events {
		require.Equal(t, "Daily standup", ev.Subject)
	}

	require.LessOrEqual(t, items.itemCalls, items.inWindow+1)
}
