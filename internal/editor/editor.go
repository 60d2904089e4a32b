package editor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/emrgen/knowledge/internal/editor/styles"
	"github.com/emrgen/knowledge/internal/linker"
	"github.com/emrgen/knowledge/internal/service"
)

const (
	maxSuggestions = 8
	saveTimeout    = 30 * time.Second
)

// Backend saves the edited entry.
type Backend interface {
	UpdateEntry(ctx context.Context, id string, req service.UpdateEntryRequest) (*service.Entry, error)
}

type savedMsg struct {
	entry *service.Entry
}

type saveFailedMsg struct {
	err error
}

// Model edits the body of one entry. Typing {{ opens a list of the organization's entries
// filtered by the text typed after it; selecting one inserts a [[Name]] link.
type Model struct {
	backend   Backend
	entry     *service.Entry
	buf       buffer
	suggester *linker.Suggester
	cursor    int
	focused   int
	dirty     bool
	saving    bool
	status    string
	err       error
	width     int
}

// New creates an editor for entry. candidates are the entries it may link to.
func New(backend Backend, entry *service.Entry, candidates []*service.Candidate) *Model {
	pool := make([]linker.Candidate, 0, len(candidates))
	for _, c := range candidates {
		pool = append(pool, linker.Candidate{ID: c.ID, Name: c.Name})
	}

	suggester := linker.NewSuggester(pool, entry.ID)
	suggester.Seed(entry.Content)

	m := &Model{
		backend:   backend,
		entry:     entry,
		suggester: suggester,
		focused:   -1,
	}
	m.buf.set(entry.Content, len(entry.Content))
	m.suggester.Update(m.buf.text, m.buf.caret)

	return m
}

// Run opens the editor in the terminal and returns once the user quits.
func Run(backend Backend, entry *service.Entry, candidates []*service.Candidate) (*service.Entry, error) {
	p := tea.NewProgram(New(backend, entry, candidates), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, err
	}

	return final.(*Model).entry, nil
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// Text returns the current body.
func (m *Model) Text() string {
	return m.buf.text
}

// Entry returns the entry as last saved.
func (m *Model) Entry() *service.Entry {
	return m.entry
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case savedMsg:
		m.entry = msg.entry
		m.saving = false
		m.dirty = m.buf.text != msg.entry.Content
		m.err = nil
		m.status = fmt.Sprintf("saved version %d", msg.entry.Version)
		return m, nil

	case saveFailedMsg:
		m.saving = false
		m.err = msg.err
		m.status = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, Keys.Save):
		return m, m.save()
	}

	if m.suggester.State() == linker.StateSuggesting {
		switch {
		case key.Matches(msg, Keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case key.Matches(msg, Keys.Down):
			if m.cursor < len(m.suggestions())-1 {
				m.cursor++
			}
			return m, nil
		case key.Matches(msg, Keys.Select):
			m.selectSuggestion()
			return m, nil
		case key.Matches(msg, Keys.Dismiss):
			m.suggester.Dismiss()
			m.cursor = 0
			return m, nil
		}
	}

	switch {
	case key.Matches(msg, Keys.NextRef):
		if linked := m.suggester.Linked(); len(linked) > 0 {
			m.focused = (m.focused + 1) % len(linked)
		}
		return m, nil
	case key.Matches(msg, Keys.Unlink):
		m.unlinkFocused()
		return m, nil
	}

	switch msg.Type {
	case tea.KeyRunes:
		m.buf.insert(string(msg.Runes))
	case tea.KeySpace:
		m.buf.insert(" ")
	case tea.KeyEnter:
		m.buf.insert("\n")
	case tea.KeyTab:
		m.buf.insert("\t")
	case tea.KeyBackspace:
		m.buf.backspace()
	case tea.KeyDelete:
		m.buf.delete()
	case tea.KeyLeft:
		m.buf.left()
	case tea.KeyRight:
		m.buf.right()
	case tea.KeyUp:
		m.buf.up()
	case tea.KeyDown:
		m.buf.down()
	case tea.KeyHome, tea.KeyCtrlA:
		m.buf.home()
	case tea.KeyEnd, tea.KeyCtrlE:
		m.buf.end()
	default:
		return m, nil
	}

	m.changed()
	return m, nil
}

// changed re-evaluates the suggestion state after the text or the caret moved.
func (m *Model) changed() {
	m.dirty = m.buf.text != m.entry.Content
	m.suggester.Update(m.buf.text, m.buf.caret)
	if m.cursor >= len(m.suggestions()) {
		m.cursor = 0
	}
}

func (m *Model) suggestions() []linker.Candidate {
	suggestions := m.suggester.Suggestions()
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

func (m *Model) selectSuggestion() {
	suggestions := m.suggestions()
	if m.cursor < 0 || m.cursor >= len(suggestions) {
		return
	}

	text, caret, err := m.suggester.Select(m.buf.text, m.buf.caret, suggestions[m.cursor])
	if err != nil {
		m.err = err
		return
	}

	m.buf.set(text, caret)
	m.cursor = 0
	m.changed()
}

func (m *Model) unlinkFocused() {
	linked := m.suggester.Linked()
	if m.focused < 0 || m.focused >= len(linked) {
		return
	}

	target := linked[m.focused]
	caret := caretAfterStrip(m.buf.text, linker.Token(target.Name), m.buf.caret)
	m.buf.set(m.suggester.Remove(m.buf.text, target.ID), caret)
	m.focused = -1
	m.changed()
}

func (m *Model) save() tea.Cmd {
	if m.saving {
		return nil
	}
	m.saving = true
	m.status = "saving..."

	id := m.entry.ID
	content := m.buf.text
	version := m.entry.Version + 1
	backend := m.backend

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		entry, err := backend.UpdateEntry(ctx, id, service.UpdateEntryRequest{Content: &content, Version: &version})
		if err != nil {
			return saveFailedMsg{err: err}
		}
		return savedMsg{entry: entry}
	}
}

func (m *Model) View() string {
	var b strings.Builder

	title := styles.Title.Render(m.entry.Name)
	version := styles.Subtitle.Render(fmt.Sprintf(" v%d", m.entry.Version))
	if m.dirty {
		version += styles.Subtitle.Render(" (modified)")
	}
	b.WriteString(title + version + "\n\n")

	body := styles.Body
	if m.width > 8 {
		body = body.Width(m.width - 8)
	}
	b.WriteString(body.Render(m.renderText()) + "\n")

	if suggestions := m.suggestions(); m.suggester.State() == linker.StateSuggesting {
		b.WriteString(m.renderSuggestions(suggestions) + "\n")
	}

	if linked := m.suggester.Linked(); len(linked) > 0 {
		chips := make([]string, 0, len(linked))
		for i, c := range linked {
			style := styles.Chip
			if i == m.focused {
				style = styles.ChipFocused
			}
			chips = append(chips, style.Render(c.Name))
		}
		b.WriteString(styles.MutedText.Render("links ") + lipgloss.JoinHorizontal(lipgloss.Top, chips...) + "\n")
	}

	b.WriteString("\n" + m.renderStatus())

	return styles.App.Render(b.String())
}

func (m *Model) renderText() string {
	text, caret := m.buf.text, m.buf.caret
	if caret >= len(text) {
		return text + styles.Caret.Render(" ")
	}
	if text[caret] == '\n' {
		return text[:caret] + styles.Caret.Render(" ") + text[caret:]
	}

	next := caret + 1
	for next < len(text) && text[next]&0xC0 == 0x80 {
		next++
	}
	return text[:caret] + styles.Caret.Render(text[caret:next]) + text[next:]
}

func (m *Model) renderSuggestions(suggestions []linker.Candidate) string {
	if len(suggestions) == 0 {
		return styles.Popup.Render(styles.MutedText.Render(fmt.Sprintf("no entry matches %q", m.suggester.Filter())))
	}

	lines := make([]string, 0, len(suggestions))
	for i, s := range suggestions {
		if i == m.cursor {
			lines = append(lines, styles.SuggestionSelected.Render(s.Name))
		} else {
			lines = append(lines, styles.Suggestion.Render(s.Name))
		}
	}

	return styles.Popup.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderStatus() string {
	bindings := Keys.ShortHelp()
	if m.suggester.State() == linker.StateSuggesting {
		bindings = Keys.SuggestHelp()
	}

	help := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		h := binding.Help()
		help = append(help, styles.HelpKey.Render(h.Key)+" "+styles.HelpDesc.Render(h.Desc))
	}
	line := strings.Join(help, styles.MutedText.Render(" • "))

	switch {
	case m.err != nil:
		line = styles.ErrorMsg.Render(m.err.Error()) + "\n" + line
	case m.status != "":
		line = styles.Success.Render(m.status) + "\n" + line
	}

	return line
}
