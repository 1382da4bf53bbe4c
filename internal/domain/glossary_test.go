package domain

import (
	"errors"
	"testing"
)

func TestLookupGlossaryNormalisesWords(t *testing.T) {
	for _, word := range []string{"polymer", "Polymer.", " (POLYMER), "} {
		e, err := LookupGlossary(word)
		if err != nil {
			t.Fatalf("lookup %q: %v", word, err)
		}
		if e.Term != "polymer" || e.Category != "Basics" {
			t.Fatalf("lookup %q: unexpected entry %+v", word, e)
		}
	}
	if _, err := LookupGlossary("plastic"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGlossaryIsSorted(t *testing.T) {
	entries := Glossary()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Term >= entries[i].Term {
			t.Fatalf("glossary not sorted: %+v", entries)
		}
	}
}
