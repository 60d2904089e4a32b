package linker

import "strings"

// Rename replaces every [[oldName]] token in text with [[newName]].
// It reports whether the text changed.
func Rename(text, oldName, newName string) (string, bool) {
	if oldName == newName {
		return text, false
	}

	oldToken := Token(oldName)
	if !strings.Contains(text, oldToken) {
		return text, false
	}

	return strings.ReplaceAll(text, oldToken, Token(newName)), true
}

// Strip removes every [[name]] token from text.
func Strip(text, name string) string {
	return strings.ReplaceAll(text, Token(name), "")
}
