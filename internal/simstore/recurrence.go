package simstore

import (
	"time"
)

// maxOccurrences caps how many occurrences a single series contributes,
// regardless of window. A window-clipped expansion never gets near this;
// it exists so a corrupt interval cannot spin.
const maxOccurrences = 10000

// expand explodes one recurring series master into its occurrences inside
// the window. Each occurrence shares the master's row and identifier but
// carries its own start and end.
func (s *Store) expand(rec itemRecord, w span) []*itemObject {
	if !rec.Start.Valid || !rec.End.Valid {
		return nil
	}

	step := stepFunc(rec.RecurType, rec.RecurInterval)
	if step == nil {
		return nil
	}

	duration := rec.End.Time.Sub(rec.Start.Time)

	var out []*itemObject
	start := rec.Start.Time
	for n := 0; n < maxOccurrences; n++ {
		if start.After(w.end) {
			break
		}
		if rec.RecurUntil.Valid && start.After(rec.RecurUntil.Time) {
			break
		}

		end := start.Add(duration)
		if end.After(w.start) || end.Equal(w.start) {
			out = append(out, &itemObject{
				store:     s,
				rec:       rec,
				persisted: true,
				occStart:  start,
				occEnd:    end,
			})
		}

		start = step(start)
	}

	return out
}

// stepFunc returns the function advancing one occurrence start to the
// next, or nil for an unknown recurrence type.
func stepFunc(recurType string, interval int) func(time.Time) time.Time {
	if interval < 1 {
		interval = 1
	}

	switch recurType {
	case "daily":
		return func(t time.Time) time.Time {
			return t.AddDate(0, 0, interval)
		}
	case "weekly":
		return func(t time.Time) time.Time {
			return t.AddDate(0, 0, 7*interval)
		}
	case "monthly":
		return func(t time.Time) time.Time {
			return t.AddDate(0, interval, 0)
		}
	default:
		return nil
	}
}
