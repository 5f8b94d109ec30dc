package bridge

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBuildFilterEmpty(t *testing.T) {
	q := SearchQuery{Folder: "Inbox", Limit: 10}
	require.Empty(t, q.buildFilter())
}

func TestBuildFilterSingleTerm(t *testing.T) {
	q := SearchQuery{Subject: "budget"}
	require.Equal(t,
		`@SQL="urn:schemas:httpmail:subject" LIKE '%budget%'`,
		q.buildFilter())
}

// TestBuildFilterSinglePrefix pins that a multi-term query carries exactly
// one @SQL= prefix; the query engine rejects repeated prefixes.
func TestBuildFilterSinglePrefix(t *testing.T) {
	unread := true
	hasAttach := false
	q := SearchQuery{
		Subject:        "budget",
		Sender:         "alice",
		Body:           "numbers",
		Unread:         &unread,
		HasAttachments: &hasAttach,
	}

	filter := q.buildFilter()
	require.Equal(t, 1, strings.Count(filter, "@SQL="))
	require.True(t, strings.HasPrefix(filter, "@SQL="))

	// Every criterion contributes a term.
	require.Contains(t, filter,
		`"urn:schemas:httpmail:subject" LIKE '%budget%'`)
	require.Contains(t, filter,
		`"urn:schemas:httpmail:textdescription" LIKE '%numbers%'`)
	require.Contains(t, filter,
		`("urn:schemas:httpmail:fromname" LIKE '%alice%' OR `+
			`"urn:schemas:httpmail:fromemail" LIKE '%alice%')`)

	// Unread is stored inverted as the read flag.
	require.Contains(t, filter, `"urn:schemas:httpmail:read" = 0`)
	require.Contains(t, filter, `"urn:schemas:httpmail:hasattachment" = 0`)
}

func TestBuildFilterReadPolarity(t *testing.T) {
	unread := false
	q := SearchQuery{Unread: &unread}
	require.Equal(t, `@SQL="urn:schemas:httpmail:read" = 1`,
		q.buildFilter())
}

func TestEscapeQuery(t *testing.T) {
	require.Equal(t, "o''brien", escapeQuery("o'brien"))
	require.Equal(t, "plain", escapeQuery("plain"))
	require.Equal(t, "''''", escapeQuery("''"))
}

// TestEscapeQueryProperty checks that escaping never leaves a lone quote,
// which is what would terminate the literal early.
func TestEscapeQueryProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.String().Draw(rt, "s")
		escaped := escapeQuery(s)

		runs := 0
		for _, r := range escaped {
			if r == '\'' {
				runs++
			} else {
				require.Zero(rt, runs%2,
					"odd quote run in %q", escaped)
				runs = 0
			}
		}
		require.Zero(rt, runs%2, "odd trailing quote run in %q", escaped)
	})
}

func TestWindowFilter(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2026, 4, 8, 0, 0, 0, 0, time.Local)

	require.Equal(t,
		"[Start] <= '04/08/2026 00:00' AND [End] >= '04/01/2026 00:00'",
		windowFilter(start, end))
}
