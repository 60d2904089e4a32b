package linker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pool = []Candidate{
	{ID: "1", Name: "Gene A"},
	{ID: "2", Name: "Gene B"},
	{ID: "3", Name: "Protein"},
	{ID: "4", Name: "Current"},
}

func TestSuggester_Update(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		caret      int
		wantState  State
		wantFilter string
	}{
		{name: "plain text", text: "hello", caret: 5, wantState: StateIdle},
		{name: "open marker", text: "see {{", caret: 6, wantState: StateSuggesting, wantFilter: ""},
		{name: "open marker with filter", text: "see {{gen", caret: 9, wantState: StateSuggesting, wantFilter: "gen"},
		{name: "closed marker", text: "see {{gen}}", caret: 11, wantState: StateIdle},
		{name: "caret before marker", text: "see {{gen", caret: 3, wantState: StateIdle},
		{name: "caret past end is clamped", text: "{{pro", caret: 99, wantState: StateSuggesting, wantFilter: "pro"},
		{name: "negative caret", text: "{{pro", caret: -1, wantState: StateIdle},
		{name: "filter with spaces", text: "{{gene b", caret: 8, wantState: StateSuggesting, wantFilter: "gene b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSuggester(pool, "")
			state := s.Update(tt.text, tt.caret)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantFilter, s.Filter())
		})
	}
}

func TestSuggester_Suggestions(t *testing.T) {
	s := NewSuggester(pool, "4")

	assert.Nil(t, s.Suggestions())

	s.Update("{{GENE", 6)
	assert.Equal(t, []Candidate{{ID: "1", Name: "Gene A"}, {ID: "2", Name: "Gene B"}}, s.Suggestions())

	s.Update("{{", 2)
	assert.Len(t, s.Suggestions(), 3, "the edited entry is excluded")

	s.Update("{{zzz", 5)
	assert.Empty(t, s.Suggestions())
}

func TestSuggester_Select(t *testing.T) {
	s := NewSuggester(pool, "")
	text := "See {{gen and more"
	caret := len("See {{gen")

	require.Equal(t, StateSuggesting, s.Update(text, caret))

	updated, newCaret, err := s.Select(text, caret, pool[1])
	require.NoError(t, err)

	assert.Equal(t, "See [[Gene B]] and more", updated)
	assert.Equal(t, len("See [[Gene B]]"), newCaret)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, []Candidate{pool[1]}, s.Linked())

	// selecting the same entry again does not duplicate the chip
	text = updated + " {{"
	_, _, err = s.Select(text, len(text), pool[1])
	require.NoError(t, err)
	assert.Len(t, s.Linked(), 1)
}

func TestSuggester_SelectUsesLatestMarker(t *testing.T) {
	s := NewSuggester(pool, "")
	text := "{{a}} then {{pro"

	updated, _, err := s.Select(text, len(text), pool[2])
	require.NoError(t, err)
	assert.Equal(t, "{{a}} then [[Protein]]", updated)
}

func TestSuggester_SelectWithoutMarker(t *testing.T) {
	s := NewSuggester(pool, "")

	updated, caret, err := s.Select("plain", 5, pool[0])
	assert.ErrorIs(t, err, ErrNoOpenMarker)
	assert.Equal(t, "plain", updated)
	assert.Equal(t, 5, caret)
	assert.Empty(t, s.Linked())
}

func TestSuggester_SeedAndRemove(t *testing.T) {
	s := NewSuggester(pool, "3")
	text := "[[Gene A]] binds [[Protein]] and [[Gene A]] again, also [[Gene B]]"

	s.Seed(text)
	assert.Equal(t, []Candidate{pool[0], pool[1]}, s.Linked(), "the edited entry is never seeded")

	text = s.Remove(text, "1")
	assert.Equal(t, " binds [[Protein]] and  again, also [[Gene B]]", text)
	assert.Equal(t, []Candidate{pool[1]}, s.Linked())

	assert.Equal(t, text, s.Remove(text, "missing"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "suggesting", StateSuggesting.String())
}
