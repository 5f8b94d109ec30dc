package simstore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// restriction is a parsed store-side filter: a SQL condition, a date
// window, or both.
type restriction struct {
	cond   string
	args   []any
	window *span
}

// jetTimeLayout is the wall-clock layout used inside bracketed date
// comparisons.
const jetTimeLayout = "01/02/2006 15:04"

// parseRestriction parses the query dialect the layers above emit:
// bracketed property comparisons joined by AND, or a DASL query behind an
// @SQL= prefix.
func parseRestriction(filter string) (restriction, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return restriction{}, fmt.Errorf("empty restriction")
	}

	if rest, ok := strings.CutPrefix(filter, "@SQL="); ok {
		cond, args, err := parseDASL(rest)
		if err != nil {
			return restriction{}, err
		}
		return restriction{cond: cond, args: args}, nil
	}

	return parseBracketed(filter)
}

// bracketedTerm matches one `[Property] op operand` comparison.
var bracketedTerm = regexp.MustCompile(
	`^\[(\w+)\]\s*(<=|>=|<|>|=)\s*(.+)$`,
)

// parseBracketed parses AND-joined bracketed comparisons. The recognized
// combinations are the message class prefix range, the date window pair,
// and boolean flags.
func parseBracketed(filter string) (restriction, error) {
	var out restriction

	// Accumulated class-range bounds, matched up at the end.
	var classLow, classHigh string

	for _, raw := range splitTopLevel(filter, " AND ") {
		m := bracketedTerm.FindStringSubmatch(strings.TrimSpace(raw))
		if m == nil {
			return restriction{}, fmt.Errorf(
				"unparseable restriction term %q", raw,
			)
		}

		prop, op, operand := m[1], m[2], strings.TrimSpace(m[3])

		switch prop {
		case "MessageClass":
			value, err := unquote(operand)
			if err != nil {
				return restriction{}, err
			}
			switch op {
			case ">=":
				classLow = value
			case "<":
				classHigh = value
			default:
				return restriction{}, fmt.Errorf(
					"unsupported MessageClass comparison %q", op,
				)
			}

		case "Start", "End":
			value, err := unquote(operand)
			if err != nil {
				return restriction{}, err
			}
			t, err := time.ParseInLocation(
				jetTimeLayout, value, time.Local,
			)
			if err != nil {
				return restriction{}, fmt.Errorf(
					"bad date in restriction: %w", err,
				)
			}

			if out.window == nil {
				out.window = &span{}
			}
			// "[Start] <= X" bounds the window's end, "[End] >= X"
			// its start.
			switch {
			case prop == "Start" && op == "<=":
				out.window.end = t
			case prop == "End" && op == ">=":
				out.window.start = t
			default:
				return restriction{}, fmt.Errorf(
					"unsupported date comparison [%s] %s", prop, op,
				)
			}

		case "Complete", "Unread":
			if op != "=" {
				return restriction{}, fmt.Errorf(
					"unsupported %s comparison %q", prop, op,
				)
			}
			val, err := parseJetBool(operand)
			if err != nil {
				return restriction{}, err
			}

			col := "complete"
			if prop == "Unread" {
				col = "unread"
			}
			out.cond = andCond(out.cond, col+" = ?")
			out.args = append(out.args, val)

		default:
			return restriction{}, fmt.Errorf(
				"unsupported restriction property [%s]", prop,
			)
		}
	}

	// The class range pattern `>= 'X' AND < 'X{'` is a prefix match: '{'
	// is the successor of 'z' in the collation.
	if classLow != "" || classHigh != "" {
		if classHigh != classLow+"{" {
			return restriction{}, fmt.Errorf(
				"unsupported message class range [%q, %q)",
				classLow, classHigh,
			)
		}
		out.cond = andCond(out.cond, "message_class LIKE ?")
		out.args = append(out.args, classLow+"%")
	}

	if out.window != nil &&
		(out.window.start.IsZero() || out.window.end.IsZero()) {

		return restriction{}, fmt.Errorf("half-bounded date window")
	}

	return out, nil
}

// parseJetBool parses the Jet boolean literals True and False.
func parseJetBool(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	return 0, fmt.Errorf("invalid boolean literal %q", s)
}

// daslColumns maps the property URNs of the DASL dialect to columns.
// read and hasattachment are handled specially.
var daslColumns = map[string]string{
	"urn:schemas:httpmail:subject":         "subject",
	"urn:schemas:httpmail:textdescription": "body",
	"urn:schemas:httpmail:fromname":        "sender_name",
	"urn:schemas:httpmail:fromemail":       "sender_email",
}

// parseDASL translates a DASL query into a SQL condition. The grammar is
// the subset the layers above emit: quoted-URN terms compared with LIKE
// or =, joined by AND, with parenthesized OR groups.
func parseDASL(q string) (string, []any, error) {
	var conds []string
	var args []any

	for _, raw := range splitTopLevel(q, " AND ") {
		cond, termArgs, err := parseDASLTerm(strings.TrimSpace(raw))
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		args = append(args, termArgs...)
	}

	return strings.Join(conds, " AND "), args, nil
}

// daslComparison matches one `"urn" op operand` term.
var daslComparison = regexp.MustCompile(
	`^"([^"]+)"\s+(LIKE|=)\s+(.+)$`,
)

// parseDASLTerm parses a single comparison or a parenthesized OR group.
func parseDASLTerm(term string) (string, []any, error) {
	if strings.HasPrefix(term, "(") && strings.HasSuffix(term, ")") {
		inner := term[1 : len(term)-1]

		var conds []string
		var args []any
		for _, raw := range splitTopLevel(inner, " OR ") {
			cond, termArgs, err := parseDASLTerm(
				strings.TrimSpace(raw),
			)
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, cond)
			args = append(args, termArgs...)
		}

		return "(" + strings.Join(conds, " OR ") + ")", args, nil
	}

	m := daslComparison.FindStringSubmatch(term)
	if m == nil {
		return "", nil, fmt.Errorf("unparseable DASL term %q", term)
	}

	urn, op, operand := m[1], m[2], strings.TrimSpace(m[3])

	switch urn {
	case "urn:schemas:httpmail:read":
		n, err := strconv.Atoi(operand)
		if err != nil || op != "=" {
			return "", nil, fmt.Errorf("bad read comparison %q", term)
		}
		// The schema tracks read; the column tracks unread.
		return "unread = ?", []any{1 - n}, nil

	case "urn:schemas:httpmail:hasattachment":
		n, err := strconv.Atoi(operand)
		if err != nil || op != "=" {
			return "", nil, fmt.Errorf(
				"bad hasattachment comparison %q", term,
			)
		}

		sub := `EXISTS (SELECT 1 FROM attachments a
		        WHERE a.item_id = items.id)`
		if n == 0 {
			sub = "NOT " + sub
		}
		return sub, nil, nil
	}

	col, ok := daslColumns[urn]
	if !ok {
		return "", nil, fmt.Errorf("unsupported DASL property %q", urn)
	}

	value, err := unquote(operand)
	if err != nil {
		return "", nil, err
	}

	if op == "LIKE" {
		// LIKE patterns arrive as '%value%'; pass them through.
		return col + " LIKE ?", []any{value}, nil
	}

	return col + " = ?", []any{value}, nil
}

// splitTopLevel splits s on sep, ignoring separators inside single-quoted
// literals, double-quoted URNs, and parentheses.
func splitTopLevel(s, sep string) []string {
	var parts []string
	depth := 0
	inSingle, inDouble := false, false
	start := 0

	for i := 0; i < len(s); i++ {
		switch {
		case inSingle:
			if s[i] == '\'' {
				// A doubled quote is an escaped literal quote.
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
					continue
				}
				inSingle = false
			}
		case inDouble:
			if s[i] == '"' {
				inDouble = false
			}
		case s[i] == '\'':
			inSingle = true
		case s[i] == '"':
			inDouble = true
		case s[i] == '(':
			depth++
		case s[i] == ')':
			depth--
		case depth == 0 && strings.HasPrefix(s[i:], sep):
			parts = append(parts, s[start:i])
			i += len(sep) - 1
			start = i + 1
		}
	}
	parts = append(parts, s[start:])

	return parts
}

// unquote strips single quotes from a query literal and undoes quote
// doubling.
func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", fmt.Errorf("expected quoted literal, got %q", s)
	}

	return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), nil
}

// andCond appends a condition with AND.
func andCond(existing, cond string) string {
	if existing == "" {
		return cond
	}
	return existing + " AND " + cond
}
