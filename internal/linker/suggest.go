package linker

import (
	"errors"
	"regexp"
	"strings"
)

// State is the state of a Suggester.
type State int

const (
	// StateIdle means no open marker precedes the caret.
	StateIdle State = iota
	// StateSuggesting means the text before the caret ends with an open {{ marker.
	StateSuggesting
)

func (s State) String() string {
	switch s {
	case StateSuggesting:
		return "suggesting"
	default:
		return "idle"
	}
}

const openMarker = "{{"

var openMarkerPattern = regexp.MustCompile(`\{\{([^}]*)$`)

// ErrNoOpenMarker is returned by Select when no {{ precedes the caret.
var ErrNoOpenMarker = errors.New("no open link marker before the caret")

// Suggester drives link insertion while an entry is being edited.
//
// Typing {{ starts suggesting; the text typed after the marker filters the candidate pool.
// Selecting a suggestion turns the marker and the filter into a [[Name]] token and adds the
// candidate to the linked list. The linked list is only an authoring aid: the server derives
// links from the saved text.
type Suggester struct {
	pool   []Candidate
	linked []Candidate
	state  State
	filter string
}

// NewSuggester creates a suggester over pool. The entry being edited is excluded from the pool.
func NewSuggester(pool []Candidate, editingID string) *Suggester {
	filtered := make([]Candidate, 0, len(pool))
	for _, candidate := range pool {
		if editingID != "" && candidate.ID == editingID {
			continue
		}
		filtered = append(filtered, candidate)
	}

	return &Suggester{
		pool:   filtered,
		linked: make([]Candidate, 0),
	}
}

// Seed initializes the linked list from the links already present in text.
func (s *Suggester) Seed(text string) {
	s.linked = Extract(text, s.pool)
}

// Update inspects the text up to the caret and returns the resulting state.
// caret is a byte offset into text and is clamped to its bounds.
func (s *Suggester) Update(text string, caret int) State {
	caret = clamp(caret, len(text))

	match := openMarkerPattern.FindStringSubmatch(text[:caret])
	if match == nil {
		s.Dismiss()
		return s.state
	}

	s.state = StateSuggesting
	s.filter = match[1]

	return s.state
}

// State returns the current state.
func (s *Suggester) State() State {
	return s.state
}

// Filter returns the text typed after the open marker.
func (s *Suggester) Filter() string {
	return s.filter
}

// Dismiss leaves suggestion mode.
func (s *Suggester) Dismiss() {
	s.state = StateIdle
	s.filter = ""
}

// Suggestions returns the pool entries whose name contains the filter, ignoring case.
func (s *Suggester) Suggestions() []Candidate {
	if s.state != StateSuggesting {
		return nil
	}

	filter := strings.ToLower(s.filter)
	suggestions := make([]Candidate, 0)
	for _, candidate := range s.pool {
		if strings.Contains(strings.ToLower(candidate.Name), filter) {
			suggestions = append(suggestions, candidate)
		}
	}

	return suggestions
}

// Select replaces the most recent {{ before the caret, and everything up to the caret, with a
// link token for candidate. It returns the new text and the caret placed after the token.
func (s *Suggester) Select(text string, caret int, candidate Candidate) (string, int, error) {
	caret = clamp(caret, len(text))

	start := strings.LastIndex(text[:caret], openMarker)
	if start < 0 {
		return text, caret, ErrNoOpenMarker
	}

	token := Token(candidate.Name)
	updated := text[:start] + token + text[caret:]

	s.addLinked(candidate)
	s.Dismiss()

	return updated, start + len(token), nil
}

// Remove deletes every token of the linked entry id from text and drops it from the linked list.
func (s *Suggester) Remove(text, id string) string {
	for i, candidate := range s.linked {
		if candidate.ID != id {
			continue
		}
		s.linked = append(s.linked[:i], s.linked[i+1:]...)
		return Strip(text, candidate.Name)
	}

	return text
}

// Linked returns the entries linked during this editing session.
func (s *Suggester) Linked() []Candidate {
	linked := make([]Candidate, len(s.linked))
	copy(linked, s.linked)
	return linked
}

func (s *Suggester) addLinked(candidate Candidate) {
	for _, linked := range s.linked {
		if linked.ID == candidate.ID {
			return
		}
	}
	s.linked = append(s.linked, candidate)
}

func clamp(caret, length int) int {
	if caret < 0 {
		return 0
	}
	if caret > length {
		return length
	}
	return caret
}
