package bridge

import (
	"fmt"
	"strings"
	"time"
)

// jetTimeFormat is the wall-clock format the store's query engine expects
// inside date comparisons.
const jetTimeFormat = "01/02/2006 15:04"

// appointmentClassFilter narrows a calendar collection to appointment
// items. Meeting requests and responses share the folder but raise on
// appointment property reads, so they are excluded before any other
// operation.
const appointmentClassFilter = "[MessageClass] >= 'IPM.Appointment' " +
	"AND [MessageClass] < 'IPM.Appointment{'"

// incompleteTaskFilter narrows a task collection to incomplete tasks on
// the store side.
const incompleteTaskFilter = "[Complete] = False"

// Property URNs understood by the store's DASL query dialect.
const (
	urnSubject   = "urn:schemas:httpmail:subject"
	urnBodyText  = "urn:schemas:httpmail:textdescription"
	urnFromName  = "urn:schemas:httpmail:fromname"
	urnFromMail  = "urn:schemas:httpmail:fromemail"
	urnRead      = "urn:schemas:httpmail:read"
	urnHasAttach = "urn:schemas:httpmail:hasattachment"
)

// escapeQuery doubles single quotes so caller-supplied text cannot break
// out of a quoted literal in a store query.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// windowFilter builds the date-window restriction for calendar listings:
// every occurrence that intersects [start, end]. Applying this BEFORE
// iterating an expanded collection is what keeps indefinitely recurring
// series bounded.
func windowFilter(start, end time.Time) string {
	return fmt.Sprintf(
		"[Start] <= '%s' AND [End] >= '%s'",
		end.Format(jetTimeFormat), start.Format(jetTimeFormat),
	)
}

// daslContains builds a case-blind substring match against the given
// property URN. The returned term carries no @SQL= prefix; the caller
// joins terms and prefixes the final query once.
func daslContains(urn, value string) string {
	return fmt.Sprintf(
		"%q LIKE '%%%s%%'", urn, escapeQuery(value),
	)
}

// daslBool builds a boolean property comparison in the DASL dialect,
// which spells booleans as 0 and 1.
func daslBool(urn string, value bool) string {
	n := 0
	if value {
		n = 1
	}

	return fmt.Sprintf("%q = %d", urn, n)
}

// SearchQuery is the structured criteria accepted by SearchEmails. All
// text fields are substring matches; nil booleans mean "don't filter".
type SearchQuery struct {
	// Subject matches against the subject line.
	Subject string

	// Sender matches against the sender's display name or address.
	Sender string

	// Body matches against the plain-text body.
	Body string

	// Unread filters by read state when non-nil.
	Unread *bool

	// HasAttachments filters by attachment presence when non-nil.
	HasAttachments *bool

	// Folder is the logical folder to search. Empty means Inbox.
	Folder string

	// Limit bounds the result count. Non-positive means the default.
	Limit int
}

// buildFilter renders the query as a store-side restriction, or "" when no
// criteria are set. All terms are expressed in the DASL dialect and joined
// under a single @SQL= prefix; the query engine rejects a restriction that
// mixes prefixed and bracketed terms.
func (q *SearchQuery) buildFilter() string {
	var terms []string

	if q.Subject != "" {
		terms = append(terms, daslContains(urnSubject, q.Subject))
	}
	if q.Body != "" {
		terms = append(terms, daslContains(urnBodyText, q.Body))
	}
	if q.Sender != "" {
		terms = append(terms, fmt.Sprintf("(%s OR %s)",
			daslContains(urnFromName, q.Sender),
			daslContains(urnFromMail, q.Sender),
		))
	}
	if q.Unread != nil {
		// The store tracks the inverse: read, not unread.
		terms = append(terms, daslBool(urnRead, !*q.Unread))
	}
	if q.HasAttachments != nil {
		terms = append(terms, daslBool(urnHasAttach, *q.HasAttachments))
	}

	if len(terms) == 0 {
		return ""
	}

	return "@SQL=" + strings.Join(terms, " AND ")
}
