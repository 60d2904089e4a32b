package editor

import (
	"strings"
	"unicode/utf8"
)

// buffer is an editable text with a caret at a byte offset that always sits on a rune boundary.
type buffer struct {
	text  string
	caret int
}

func (b *buffer) insert(s string) {
	b.text = b.text[:b.caret] + s + b.text[b.caret:]
	b.caret += len(s)
}

func (b *buffer) backspace() {
	if b.caret == 0 {
		return
	}
	_, size := utf8.DecodeLastRuneInString(b.text[:b.caret])
	b.text = b.text[:b.caret-size] + b.text[b.caret:]
	b.caret -= size
}

func (b *buffer) delete() {
	if b.caret >= len(b.text) {
		return
	}
	_, size := utf8.DecodeRuneInString(b.text[b.caret:])
	b.text = b.text[:b.caret] + b.text[b.caret+size:]
}

func (b *buffer) left() {
	if b.caret == 0 {
		return
	}
	_, size := utf8.DecodeLastRuneInString(b.text[:b.caret])
	b.caret -= size
}

func (b *buffer) right() {
	if b.caret >= len(b.text) {
		return
	}
	_, size := utf8.DecodeRuneInString(b.text[b.caret:])
	b.caret += size
}

func (b *buffer) lineStart() int {
	return strings.LastIndexByte(b.text[:b.caret], '\n') + 1
}

func (b *buffer) lineEnd() int {
	if i := strings.IndexByte(b.text[b.caret:], '\n'); i >= 0 {
		return b.caret + i
	}
	return len(b.text)
}

func (b *buffer) home() {
	b.caret = b.lineStart()
}

func (b *buffer) end() {
	b.caret = b.lineEnd()
}

// up moves the caret to the same column of the previous line, or to the end of it when shorter.
func (b *buffer) up() {
	start := b.lineStart()
	if start == 0 {
		return
	}
	column := utf8.RuneCountInString(b.text[start:b.caret])
	prevStart := strings.LastIndexByte(b.text[:start-1], '\n') + 1
	b.caret = advance(b.text, prevStart, start-1, column)
}

func (b *buffer) down() {
	end := b.lineEnd()
	if end == len(b.text) {
		return
	}
	column := utf8.RuneCountInString(b.text[b.lineStart():b.caret])
	nextStart := end + 1
	nextEnd := len(b.text)
	if i := strings.IndexByte(b.text[nextStart:], '\n'); i >= 0 {
		nextEnd = nextStart + i
	}
	b.caret = advance(b.text, nextStart, nextEnd, column)
}

// advance returns the offset of the column-th rune after from, stopping at limit.
func advance(text string, from, limit, column int) int {
	offset := from
	for i := 0; i < column && offset < limit; i++ {
		_, size := utf8.DecodeRuneInString(text[offset:])
		offset += size
	}
	return offset
}

func (b *buffer) set(text string, caret int) {
	b.text = text
	b.caret = min(max(caret, 0), len(text))
	for b.caret > 0 && b.caret < len(text) && !utf8.RuneStart(text[b.caret]) {
		b.caret--
	}
}

// caretAfterStrip maps caret to the same place in text once every occurrence of token is
// removed. A caret inside a removed occurrence moves to where the occurrence started.
func caretAfterStrip(text, token string, caret int) int {
	if token == "" {
		return caret
	}

	shift := 0
	for i := 0; i < caret; {
		j := strings.Index(text[i:], token)
		if j < 0 {
			break
		}

		start := i + j
		if start >= caret {
			break
		}

		end := start + len(token)
		if end > caret {
			shift += caret - start
			break
		}

		shift += len(token)
		i = end
	}

	return caret - shift
}
