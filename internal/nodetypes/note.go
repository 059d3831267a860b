package nodetypes

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// NoteBody is the shape of the note node type's Peer entity data.
type NoteBody struct {
	Text string `json:"text"`
	// RemindAt is an optional natural-language reminder ("tomorrow at
	// 9am", "in two weeks"), parsed by ParseReminder before the body is
	// staged, the way the teacher's due-date fields accept free-text input
	// parsed by the same olebedev/when rule set.
	RemindAt string `json:"remind_at,omitempty"`
	// ParsedReminder is the resolved absolute time, filled in by
	// ParseReminder; nil if RemindAt is empty or didn't match any rule.
	ParsedReminder *time.Time `json:"parsed_reminder,omitempty"`
}

var reminderParser = buildReminderParser()

func buildReminderParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseReminder resolves a natural-language reminder string relative to
// now. It returns (nil, nil) when text is empty or matches no rule —
// callers treat an unparsed reminder as "no reminder", not an error.
func ParseReminder(text string, now time.Time) (*time.Time, error) {
	if text == "" {
		return nil, nil
	}
	r, err := reminderParser.Parse(text, now)
	if err != nil {
		return nil, fmt.Errorf("parsing reminder %q: %w", text, err)
	}
	if r == nil {
		return nil, nil
	}
	t := r.Time
	return &t, nil
}

// NewNoteBody builds a note Peer entity payload, resolving RemindAt (if
// any) eagerly so the stored body always carries both the original text
// and its parsed absolute time.
func NewNoteBody(text, remindAt string, now time.Time) (json.RawMessage, error) {
	body := NoteBody{Text: text, RemindAt: remindAt}
	parsed, err := ParseReminder(remindAt, now)
	if err != nil {
		return nil, err
	}
	body.ParsedReminder = parsed
	return json.Marshal(body)
}
