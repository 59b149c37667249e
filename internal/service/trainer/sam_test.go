package trainer

import (
	"testing"
)

// countOf walks the automaton from the root and returns the propagated
// occurrence count of the state holding s, or 0 if s never occurs.
func countOf(sa *suffixAutomaton, s string) float64 {
	cur := int32(0)
	for _, r := range s {
		next, ok := sa.states[cur].next[r]
		if !ok {
			return 0
		}
		cur = next
	}
	return sa.states[cur].count
}

func TestSuffixAutomatonWeightedCounts(t *testing.T) {
	sa := newSuffixAutomaton()
	sa.addWord([]rune("ab"), 3)
	sa.addWord([]rune("b"), 2)
	sa.propagateCounts()

	cases := []struct {
		substr string
		want   float64
	}{
		{"a", 3},
		{"b", 5},
		{"ab", 3},
	}
	for _, c := range cases {
		if got := countOf(sa, c.substr); got != c.want {
			t.Errorf("count(%q): got %v, want %v", c.substr, got, c.want)
		}
	}
	if got := countOf(sa, "ba"); got != 0 {
		t.Errorf("count of absent substring: got %v, want 0", got)
	}
}

func TestSuffixAutomatonRepeatedSubstrings(t *testing.T) {
	sa := newSuffixAutomaton()
	sa.addWord([]rune("banana"), 2)
	sa.propagateCounts()

	// "an" and "na" occur twice per word, "ana" twice (overlapping).
	cases := []struct {
		substr string
		want   float64
	}{
		{"a", 6},
		{"n", 4},
		{"an", 4},
		{"na", 4},
		{"ana", 4},
		{"banana", 2},
	}
	for _, c := range cases {
		if got := countOf(sa, c.substr); got != c.want {
			t.Errorf("count(%q): got %v, want %v", c.substr, got, c.want)
		}
	}
}

func TestSuffixAutomatonSharedPrefixWords(t *testing.T) {
	// Generalized construction: the second word reuses the prefix states of
	// the first instead of growing the arena per character.
	sa := newSuffixAutomaton()
	sa.addWord([]rune("abc"), 1)
	sa.addWord([]rune("abd"), 1)
	sa.propagateCounts()

	cases := []struct {
		substr string
		want   float64
	}{
		{"ab", 2},
		{"abc", 1},
		{"abd", 1},
		{"b", 2},
		{"c", 1},
		{"d", 1},
	}
	for _, c := range cases {
		if got := countOf(sa, c.substr); got != c.want {
			t.Errorf("count(%q): got %v, want %v", c.substr, got, c.want)
		}
	}
}

func TestSuffixAutomatonSubstring(t *testing.T) {
	sa := newSuffixAutomaton()
	sa.addWord([]rune("abab"), 1)
	sa.propagateCounts()

	for id := int32(1); id < int32(len(sa.states)); id++ {
		st := sa.states[id]
		got := sa.substring(id, st.length)
		if int32(len([]rune(got))) != st.length {
			t.Errorf("state %d: substring length %d, want %d", id, len([]rune(got)), st.length)
		}
		// The recorded occurrence must resolve to the same state.
		cur := int32(0)
		for _, r := range got {
			cur = sa.states[cur].next[r]
		}
		if cur != id {
			t.Errorf("state %d: substring %q resolves to state %d", id, got, cur)
		}
	}
}
