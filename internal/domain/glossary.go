package domain

import (
	"sort"
	"strings"
)

// GlossaryEntry explains one term that lesson text may mention.
type GlossaryEntry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Category   string `json:"category,omitempty"`
}

var glossary = map[string]GlossaryEntry{
	"polymer": {
		Term:       "polymer",
		Definition: "A large molecule composed of many repeated subunits (monomers).",
		Category:   "Basics",
	},
	"monomer": {
		Term:       "monomer",
		Definition: "A small molecule that can react with others to form a long polymer chain.",
		Category:   "Basics",
	},
	"tg": {
		Term:       "tg",
		Definition: "Glass Transition Temperature: the point where a polymer turns from hard/glassy to soft/rubbery.",
		Category:   "Thermal Properties",
	},
	"atrp": {
		Term:       "atrp",
		Definition: "Atom Transfer Radical Polymerization: a method for controlled polymer growth.",
		Category:   "Synthesis",
	},
}

// Glossary lists every entry ordered by term.
func Glossary() []GlossaryEntry {
	out := make([]GlossaryEntry, 0, len(glossary))
	for _, e := range glossary {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out
}

// LookupGlossary finds the entry for a word as it appears in text, so
// "Polymer." matches "polymer".
func LookupGlossary(word string) (GlossaryEntry, error) {
	e, ok := glossary[GlossaryKey(word)]
	if !ok {
		return GlossaryEntry{}, ErrTermNotFound
	}
	return e, nil
}

// GlossaryKey lowercases word and strips surrounding punctuation marks.
func GlossaryKey(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(".,/#!$%^&*;:{}=-_`~()", r) {
			return -1
		}
		return r
	}, word)
}
