package index

import (
	"errors"
	"testing"
	"time"
)

func testDoc() Document {
	return Document{
		ID:        "m1@example.com",
		ThreadID:  "t1",
		Filenames: []string{"INBOX/cur/1:2,S", "archive/2024/1"},
		Date:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		From:      "Alice <alice@example.com>",
		To:        "bob@example.com",
		Subject:   "Weekly report",
		Tags:      []string{"inbox", "unread"},
	}
}

func TestParseAndMatch(t *testing.T) {
	doc := testDoc()

	tests := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"*", true},
		{"tag:inbox", true},
		{"is:unread", true},
		{"tag:spam", false},
		{"-tag:spam", true},
		{"not tag:inbox", false},
		{"tag:inbox and tag:unread", true},
		{"tag:inbox tag:spam", false},
		{"tag:spam or tag:unread", true},
		{"tag:spam or from:carol", false},
		{"from:alice", true},
		{"FROM:ALICE", true},
		{"to:bob", true},
		{`subject:"weekly report"`, true},
		{`subject:"monthly report"`, false},
		{"weekly", true},
		{`"weekly report"`, true},
		{"id:m1@example.com", true},
		{"id:<m1@example.com>", true},
		{"mid:other@example.com", false},
		{"thread:t1", true},
		{"folder:INBOX", true},
		{"folder:archive", false},
		{"path:archive", true},
		{"path:archive/2024", true},
		{"path:INBOX/cur", true},
		{`"and"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := Parse(tt.query)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.query, err)
			}
			if got := q.Match(doc); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.query, got, tt.want)
			}
			if q.String() != tt.query {
				t.Errorf("String() = %q, want %q", q.String(), tt.query)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []string{
		`subject:"unterminated`,
		"tag:",
		"bogus:value",
		"or tag:inbox",
		"tag:inbox or",
		"tag:inbox or or tag:spam",
		"not",
		"not not tag:inbox",
		"and tag:inbox",
		"(tag:inbox)",
		`""`,
	}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			if !errors.Is(err, ErrMalformedQuery) {
				t.Errorf("Parse(%q) error = %v, want ErrMalformedQuery", s, err)
			}
		})
	}
}

func TestRequiredTags(t *testing.T) {
	t.Run("conjunction", func(t *testing.T) {
		q, err := Parse("tag:inbox -tag:spam tag:unread from:alice")
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		tags := q.RequiredTags()
		if len(tags) != 2 || tags[0] != "inbox" || tags[1] != "unread" {
			t.Errorf("RequiredTags() = %v, want [inbox unread]", tags)
		}
	})

	t.Run("disjunction", func(t *testing.T) {
		q, err := Parse("tag:inbox or tag:unread")
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if tags := q.RequiredTags(); tags != nil {
			t.Errorf("RequiredTags() = %v, want nil", tags)
		}
	})

	t.Run("required id", func(t *testing.T) {
		q, err := Parse("id:<abc@x> tag:inbox")
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		id, ok := q.RequiredID()
		if !ok || id != "abc@x" {
			t.Errorf("RequiredID() = %q, %v", id, ok)
		}
	})
}

func TestMentionsTag(t *testing.T) {
	q, err := Parse("tag:spam or from:alice")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !q.MentionsTag("spam") {
		t.Error("expected query to mention spam")
	}
	if q.MentionsTag("inbox") {
		t.Error("did not expect query to mention inbox")
	}
}

func TestThreadQuery(t *testing.T) {
	q := ThreadQuery("t1")
	if !q.Match(testDoc()) {
		t.Error("expected thread query to match")
	}
	other := testDoc()
	other.ThreadID = "t2"
	if q.Match(other) {
		t.Error("expected thread query not to match another thread")
	}
}

func TestFilter(t *testing.T) {
	a := testDoc()
	b := testDoc()
	b.ID = "m2@example.com"
	b.Tags = []string{"sent"}

	q, err := Parse("tag:inbox")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := Filter(q, []Document{a, b})
	if len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("Filter() = %v, want only %s", got, a.ID)
	}
}

func TestPathQuery(t *testing.T) {
	doc := testDoc()
	tests := []struct {
		dir  string
		want bool
	}{
		{"", true},
		{".", true},
		{"INBOX", true},
		{"archive/2024/", true},
		{"archive/2025", false},
		{"arch", false},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			if got := PathQuery(tt.dir).Match(doc); got != tt.want {
				t.Errorf("PathQuery(%q).Match() = %v, want %v", tt.dir, got, tt.want)
			}
		})
	}
}
