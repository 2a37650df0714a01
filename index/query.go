package index

import (
	"fmt"
	"path"
	"strings"
)

// Term fields.
const (
	FieldAll     = "*"
	FieldText    = "text"
	FieldTag     = "tag"
	FieldFrom    = "from"
	FieldTo      = "to"
	FieldSubject = "subject"
	FieldID      = "id"
	FieldThread  = "thread"
	FieldFolder  = "folder"
	FieldPath    = "path"
)

// prefixes maps query prefixes to term fields.
var prefixes = map[string]string{
	"tag":     FieldTag,
	"is":      FieldTag,
	"from":    FieldFrom,
	"to":      FieldTo,
	"subject": FieldSubject,
	"id":      FieldID,
	"mid":     FieldID,
	"thread":  FieldThread,
	"folder":  FieldFolder,
	"path":    FieldPath,
}

// Term is one condition of a query.
type Term struct {
	Field  string
	Value  string
	Negate bool
}

// Query is a parsed search expression: a disjunction of groups, each group
// a conjunction of terms. A query with no groups matches every document.
type Query struct {
	raw    string
	groups [][]Term
}

// Parse parses a notmuch-style query string.
//
// Supported syntax:
//
//	tag:inbox is:unread from:alice to:bob subject:"weekly report"
//	id:<message-id> thread:<thread-id> folder:INBOX path:archive/2024
//	bare words (match subject or sender), * (everything)
//	-term / not term, and, or
//
// The empty string matches every document. Parenthesized grouping is not
// supported.
func Parse(s string) (*Query, error) {
	tokens, err := tokenize(s)
	if err != nil {
		return nil, err
	}

	q := &Query{raw: s}
	var group []Term
	negate := false
	for i, tok := range tokens {
		switch strings.ToLower(tok.text) {
		case "or":
			if !tok.quoted {
				if negate || len(group) == 0 {
					return nil, fmt.Errorf("%w: misplaced %q at token %d", ErrMalformedQuery, tok.text, i+1)
				}
				q.groups = append(q.groups, group)
				group = nil
				continue
			}
		case "and":
			if !tok.quoted {
				if negate || len(group) == 0 {
					return nil, fmt.Errorf("%w: misplaced %q at token %d", ErrMalformedQuery, tok.text, i+1)
				}
				continue
			}
		case "not":
			if !tok.quoted {
				if negate {
					return nil, fmt.Errorf("%w: repeated %q at token %d", ErrMalformedQuery, tok.text, i+1)
				}
				negate = true
				continue
			}
		}

		term, err := parseTerm(tok)
		if err != nil {
			return nil, err
		}
		term.Negate = term.Negate != negate
		negate = false
		group = append(group, term)
	}

	if negate {
		return nil, fmt.Errorf("%w: dangling \"not\"", ErrMalformedQuery)
	}
	if len(group) == 0 && len(q.groups) > 0 {
		return nil, fmt.Errorf("%w: dangling \"or\"", ErrMalformedQuery)
	}
	if len(group) > 0 {
		q.groups = append(q.groups, group)
	}
	return q, nil
}

// ThreadQuery returns a query matching every document of one thread.
func ThreadQuery(threadID string) *Query {
	return &Query{
		raw:    FieldThread + ":" + threadID,
		groups: [][]Term{{{Field: FieldThread, Value: threadID}}},
	}
}

// PathQuery returns a query matching every document with a file at or
// below dir. The root ("" or ".") matches everything.
func PathQuery(dir string) *Query {
	dir = strings.Trim(dir, "/")
	if dir == "" || dir == "." {
		return &Query{raw: FieldAll}
	}
	return &Query{
		raw:    FieldPath + ":" + dir,
		groups: [][]Term{{{Field: FieldPath, Value: dir}}},
	}
}

type token struct {
	text   string
	quoted bool
	// leading is set when the token opened with a quote, which makes the
	// whole token literal text.
	leading bool
}

// tokenize splits s on whitespace, keeping double-quoted runs together.
// A quoted run may follow a prefix, as in subject:"two words".
func tokenize(s string) ([]token, error) {
	var (
		tokens  []token
		cur     strings.Builder
		inQuote bool
		quoted  bool
		leading bool
		started bool
	)
	flush := func() {
		if started {
			tokens = append(tokens, token{text: cur.String(), quoted: quoted, leading: leading})
		}
		cur.Reset()
		quoted = false
		leading = false
		started = false
	}
	for _, r := range s {
		switch {
		case r == '"':
			if !started {
				leading = true
			}
			inQuote = !inQuote
			quoted = true
			started = true
		case inQuote:
			cur.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		case r == '(' || r == ')':
			return nil, fmt.Errorf("%w: grouping is not supported", ErrMalformedQuery)
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("%w: unbalanced quote", ErrMalformedQuery)
	}
	flush()
	return tokens, nil
}

func parseTerm(tok token) (Term, error) {
	text := tok.text
	var t Term
	if !tok.leading && strings.HasPrefix(text, "-") && len(text) > 1 {
		t.Negate = true
		text = text[1:]
	}
	if !tok.quoted && text == "*" {
		t.Field = FieldAll
		return t, nil
	}

	if prefix, value, ok := strings.Cut(text, ":"); ok && !tok.leading {
		field, known := prefixes[strings.ToLower(prefix)]
		if !known {
			return Term{}, fmt.Errorf("%w: unknown prefix %q", ErrMalformedQuery, prefix)
		}
		if value == "" {
			return Term{}, fmt.Errorf("%w: empty value for %q", ErrMalformedQuery, prefix)
		}
		t.Field = field
		t.Value = value
		if field == FieldID {
			t.Value = strings.TrimSuffix(strings.TrimPrefix(value, "<"), ">")
		}
		return t, nil
	}

	if text == "" {
		return Term{}, fmt.Errorf("%w: empty term", ErrMalformedQuery)
	}
	t.Field = FieldText
	t.Value = text
	return t, nil
}

// String returns the query as it was written.
func (q *Query) String() string { return q.raw }

// Match reports whether d satisfies q.
func (q *Query) Match(d Document) bool {
	if len(q.groups) == 0 {
		return true
	}
	for _, group := range q.groups {
		if matchGroup(group, d) {
			return true
		}
	}
	return false
}

func matchGroup(group []Term, d Document) bool {
	for _, t := range group {
		if t.match(d) == t.Negate {
			return false
		}
	}
	return true
}

func (t Term) match(d Document) bool {
	switch t.Field {
	case FieldAll:
		return true
	case FieldTag:
		return d.HasTag(t.Value)
	case FieldFrom:
		return containsFold(d.From, t.Value)
	case FieldTo:
		return containsFold(d.To, t.Value)
	case FieldSubject:
		return containsFold(d.Subject, t.Value)
	case FieldID:
		return d.ID == t.Value
	case FieldThread:
		return d.ThreadID == t.Value
	case FieldFolder:
		for _, f := range d.Filenames {
			if maildirFolder(f) == strings.Trim(t.Value, "/") {
				return true
			}
		}
		return false
	case FieldPath:
		p := strings.Trim(t.Value, "/")
		for _, f := range d.Filenames {
			if dir := path.Dir(f); dir == p || strings.HasPrefix(dir, p+"/") {
				return true
			}
		}
		return false
	case FieldText:
		return containsFold(d.Subject, t.Value) || containsFold(d.From, t.Value)
	default:
		return false
	}
}

// maildirFolder returns the folder of a maildir file: its directory with
// a trailing cur or new component removed.
func maildirFolder(filename string) string {
	dir := path.Dir(filename)
	switch path.Base(dir) {
	case "cur", "new":
		dir = path.Dir(dir)
	}
	if dir == "." {
		return ""
	}
	return dir
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// RequiredTags returns the tags every match must carry, for backends that
// can narrow candidates by tag. Disjunctions return nil.
func (q *Query) RequiredTags() []string {
	if len(q.groups) != 1 {
		return nil
	}
	var tags []string
	for _, t := range q.groups[0] {
		if t.Field == FieldTag && !t.Negate {
			tags = append(tags, t.Value)
		}
	}
	return tags
}

// RequiredID returns the message id every match must have, if any.
func (q *Query) RequiredID() (string, bool) {
	if len(q.groups) != 1 {
		return "", false
	}
	for _, t := range q.groups[0] {
		if t.Field == FieldID && !t.Negate {
			return t.Value, true
		}
	}
	return "", false
}

// MentionsTag reports whether any term of q refers to tag. Engines use it
// to lift tag exclusions the query asks for explicitly.
func (q *Query) MentionsTag(tag string) bool {
	for _, group := range q.groups {
		for _, t := range group {
			if t.Field == FieldTag && t.Value == tag {
				return true
			}
		}
	}
	return false
}

// Terms returns a copy of the parsed groups.
func (q *Query) Terms() [][]Term {
	out := make([][]Term, len(q.groups))
	for i, g := range q.groups {
		out[i] = append([]Term(nil), g...)
	}
	return out
}
