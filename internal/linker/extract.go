package linker

import (
	"regexp"

	mapset "github.com/deckarep/golang-set/v2"
)

// tokenPattern matches a [[Name]] reference. Names cannot contain brackets.
var tokenPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// Candidate is an entry that can be the target of a link.
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Token returns the link token for the given entry name.
func Token(name string) string {
	return "[[" + name + "]]"
}

// Names returns the distinct names referenced by [[Name]] tokens in text, in order of first appearance.
func Names(text string) []string {
	matches := tokenPattern.FindAllStringSubmatch(text, -1)
	seen := mapset.NewThreadUnsafeSet[string]()
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		if seen.Add(match[1]) {
			names = append(names, match[1])
		}
	}

	return names
}

// Extract returns the candidates referenced by text. A candidate is referenced when its name,
// compared case-sensitively, appears inside a [[...]] token. Tokens that resolve to no candidate
// are ignored. Each candidate appears at most once in the result, in candidate order.
func Extract(text string, candidates []Candidate) []Candidate {
	names := mapset.NewThreadUnsafeSet[string](Names(text)...)
	if names.Cardinality() == 0 {
		return []Candidate{}
	}

	linked := make([]Candidate, 0)
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, candidate := range candidates {
		if !names.Contains(candidate.Name) {
			continue
		}
		if seen.Add(candidate.ID) {
			linked = append(linked, candidate)
		}
	}

	return linked
}

// ExtractIDs is Extract returning only candidate identifiers.
func ExtractIDs(text string, candidates []Candidate) []string {
	linked := Extract(text, candidates)
	ids := make([]string, 0, len(linked))
	for _, candidate := range linked {
		ids = append(ids, candidate.ID)
	}

	return ids
}
