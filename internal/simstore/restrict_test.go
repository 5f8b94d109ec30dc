package simstore

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseRestrictionEmpty(t *testing.T) {
	_, err := parseRestriction("")
	require.Error(t, err)
}

func TestParseBracketedClassRange(t *testing.T) {
	r, err := parseRestriction(
		"[MessageClass] >= 'IPM.Appointment' " +
			"AND [MessageClass] < 'IPM.Appointment{'",
	)
	require.NoError(t, err)
	require.Equal(t, "message_class LIKE ?", r.cond)
	require.Equal(t, []any{"IPM.Appointment%"}, r.args)
	require.Nil(t, r.window)

	// A range that is not a prefix match is rejected.
	_, err = parseRestriction(
		"[MessageClass] >= 'IPM.Note' AND [MessageClass] < 'IPM.Task'",
	)
	require.Error(t, err)
}

func TestParseBracketedWindow(t *testing.T) {
	r, err := parseRestriction(
		"[Start] <= '04/08/2026 00:00' AND [End] >= '04/01/2026 00:00'",
	)
	require.NoError(t, err)
	require.NotNil(t, r.window)
	require.Equal(t,
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.Local), r.window.start)
	require.Equal(t,
		time.Date(2026, 4, 8, 0, 0, 0, 0, time.Local), r.window.end)

	// A half-bounded window is a caller bug and must not parse.
	_, err = parseRestriction("[Start] <= '04/08/2026 00:00'")
	require.Error(t, err)
}

func TestParseBracketedBool(t *testing.T) {
	r, err := parseRestriction("[Complete] = False")
	require.NoError(t, err)
	require.Equal(t, "complete = ?", r.cond)
	require.Equal(t, []any{0}, r.args)

	r, err = parseRestriction("[Unread] = True")
	require.NoError(t, err)
	require.Equal(t, "unread = ?", r.cond)
	require.Equal(t, []any{1}, r.args)

	_, err = parseRestriction("[Complete] = Maybe")
	require.Error(t, err)
}

func TestParseBracketedUnknownProperty(t *testing.T) {
	_, err := parseRestriction("[Banana] = True")
	require.Error(t, err)
}

func TestParseDASLContains(t *testing.T) {
	r, err := parseRestriction(
		`@SQL="urn:schemas:httpmail:subject" LIKE '%budget%'`,
	)
	require.NoError(t, err)
	require.Equal(t, "subject LIKE ?", r.cond)
	require.Equal(t, []any{"%budget%"}, r.args)
}

func TestParseDASLOrGroup(t *testing.T) {
	r, err := parseRestriction(
		`@SQL=("urn:schemas:httpmail:fromname" LIKE '%alice%' OR ` +
			`"urn:schemas:httpmail:fromemail" LIKE '%alice%') ` +
			`AND "urn:schemas:httpmail:read" = 0`,
	)
	require.NoError(t, err)
	require.Equal(t,
		"(sender_name LIKE ? OR sender_email LIKE ?) AND unread = ?",
		r.cond)
	require.Equal(t, []any{"%alice%", "%alice%", 1}, r.args)
}

// TestParseDASLReadInversion pins the schema mismatch handling: the query
// speaks of read, the column stores unread.
func TestParseDASLReadInversion(t *testing.T) {
	r, err := parseRestriction(`@SQL="urn:schemas:httpmail:read" = 1`)
	require.NoError(t, err)
	require.Equal(t, "unread = ?", r.cond)
	require.Equal(t, []any{0}, r.args)
}

func TestParseDASLHasAttachment(t *testing.T) {
	r, err := parseRestriction(
		`@SQL="urn:schemas:httpmail:hasattachment" = 1`,
	)
	require.NoError(t, err)
	require.Contains(t, r.cond, "EXISTS")
	require.NotContains(t, r.cond, "NOT EXISTS")
	require.Empty(t, r.args)

	r, err = parseRestriction(
		`@SQL="urn:schemas:httpmail:hasattachment" = 0`,
	)
	require.NoError(t, err)
	require.Contains(t, r.cond, "NOT EXISTS")
}

// TestParseDASLEscapedQuote checks that a doubled quote inside a pattern
// does not terminate the literal, and unquoting undoes the doubling.
func TestParseDASLEscapedQuote(t *testing.T) {
	r, err := parseRestriction(
		`@SQL="urn:schemas:httpmail:subject" LIKE '%o''brien%' ` +
			`AND "urn:schemas:httpmail:read" = 0`,
	)
	require.NoError(t, err)
	require.Equal(t, "subject LIKE ? AND unread = ?", r.cond)
	require.Equal(t, []any{"%o'brien%", 1}, r.args)
}

func TestParseDASLUnknownURN(t *testing.T) {
	_, err := parseRestriction(`@SQL="urn:schemas:mailheader:date" = '1'`)
	require.Error(t, err)
}

func TestSplitTopLevel(t *testing.T) {
	parts := splitTopLevel("a AND b AND c", " AND ")
	require.Equal(t, []string{"a", "b", "c"}, parts)

	// Separators inside quotes and parens do not split.
	parts = splitTopLevel("x = 'p AND q' AND (r OR s AND u)", " AND ")
	require.Equal(t, []string{"x = 'p AND q'", "(r OR s AND u)"}, parts)

	parts = splitTopLevel(`"a AND b" = 1`, " AND ")
	require.Equal(t, []string{`"a AND b" = 1`}, parts)
}

// TestSplitTopLevelProperty joins random simple terms and checks the
// split returns exactly the inputs.
func TestSplitTopLevelProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		term := rapid.StringMatching(`[a-z]{1,8} = '[a-z ]{0,12}'`)
		terms := rapid.SliceOfN(term, 1, 6).Draw(rt, "terms")

		joined := strings.Join(terms, " AND ")
		require.Equal(rt, terms, splitTopLevel(joined, " AND "))
	})
}

func TestUnquote(t *testing.T) {
	v, err := unquote("'plain'")
	require.NoError(t, err)
	require.Equal(t, "plain", v)

	v, err = unquote("'o''brien'")
	require.NoError(t, err)
	require.Equal(t, "o'brien", v)

	_, err = unquote("bare")
	require.Error(t, err)

	_, err = unquote("'")
	require.Error(t, err)
}
