package trainer

// samState is one state of the generalized suffix automaton. Transitions
// reference other states by index into the arena.
type samState struct {
	next   map[rune]int32
	link   int32
	length int32
	count  float64 // frequency-weighted occurrence count after propagation
	wordID int32   // a word containing an occurrence of this state's strings
	endOff int32   // rune offset just past that occurrence
}

// suffixAutomaton is a generalized suffix automaton over a set of distinct
// words. Each state represents a group of substrings sharing an occurrence
// set; after propagateCounts the count field holds the corpus-frequency
// weighted number of occurrences. Construction is near-linear in the total
// rune length of the words, which is what makes seed enumeration cheap
// compared to the quadratic per-word alternative.
type suffixAutomaton struct {
	states []samState
	words  [][]rune
}

func newSuffixAutomaton() *suffixAutomaton {
	sa := &suffixAutomaton{}
	sa.states = append(sa.states, samState{next: make(map[rune]int32), link: -1})
	return sa
}

// addWord inserts one word, weighting every substring occurrence by freq.
func (sa *suffixAutomaton) addWord(word []rune, freq float64) {
	wordID := int32(len(sa.words))
	sa.words = append(sa.words, word)
	last := int32(0)
	for i, r := range word {
		last = sa.extend(last, r, wordID, int32(i+1))
		sa.states[last].count += freq
	}
}

func (sa *suffixAutomaton) newState(length, wordID, endOff int32) int32 {
	id := int32(len(sa.states))
	sa.states = append(sa.states, samState{
		next:   make(map[rune]int32),
		link:   -1,
		length: length,
		wordID: wordID,
		endOff: endOff,
	})
	return id
}

func (sa *suffixAutomaton) cloneState(q, length int32) int32 {
	id := int32(len(sa.states))
	src := sa.states[q]
	next := make(map[rune]int32, len(src.next))
	for r, s := range src.next {
		next[r] = s
	}
	sa.states = append(sa.states, samState{
		next:   next,
		link:   src.link,
		length: length,
		wordID: src.wordID,
		endOff: src.endOff,
	})
	sa.states[q].link = id
	return id
}

// extend advances the automaton by one rune from state last. It is the
// generalized variant: re-inserting a word that shares a prefix with an
// earlier one reuses or clones existing states instead of growing the
// arena.
func (sa *suffixAutomaton) extend(last int32, r rune, wordID, endOff int32) int32 {
	if q, ok := sa.states[last].next[r]; ok {
		if sa.states[q].length == sa.states[last].length+1 {
			return q
		}
		clone := sa.cloneState(q, sa.states[last].length+1)
		for p := last; p >= 0; p = sa.states[p].link {
			if sa.states[p].next[r] != q {
				break
			}
			sa.states[p].next[r] = clone
		}
		return clone
	}

	cur := sa.newState(sa.states[last].length+1, wordID, endOff)
	p := last
	for p >= 0 {
		if _, ok := sa.states[p].next[r]; ok {
			break
		}
		sa.states[p].next[r] = cur
		p = sa.states[p].link
	}
	if p < 0 {
		sa.states[cur].link = 0
		return cur
	}
	q := sa.states[p].next[r]
	if sa.states[q].length == sa.states[p].length+1 {
		sa.states[cur].link = q
		return cur
	}
	clone := sa.cloneState(q, sa.states[p].length+1)
	for ; p >= 0; p = sa.states[p].link {
		if sa.states[p].next[r] != q {
			break
		}
		sa.states[p].next[r] = clone
	}
	sa.states[cur].link = clone
	return cur
}

// propagateCounts pushes occurrence weights up the suffix-link tree so that
// every state ends up with the total weighted count of its substrings.
// Must be called exactly once, after all words are added.
func (sa *suffixAutomaton) propagateCounts() {
	maxLen := int32(0)
	for i := range sa.states {
		if sa.states[i].length > maxLen {
			maxLen = sa.states[i].length
		}
	}
	// Counting sort by state length; links always point to shorter states.
	buckets := make([]int32, maxLen+2)
	for i := range sa.states {
		buckets[sa.states[i].length+1]++
	}
	for i := 1; i < len(buckets); i++ {
		buckets[i] += buckets[i-1]
	}
	order := make([]int32, len(sa.states))
	for i := range sa.states {
		l := sa.states[i].length
		order[buckets[l]] = int32(i)
		buckets[l]++
	}
	for i := len(order) - 1; i > 0; i-- {
		st := order[i]
		if link := sa.states[st].link; link >= 0 {
			sa.states[link].count += sa.states[st].count
		}
	}
}

// substring returns the length-l suffix of the occurrence recorded for
// state id. Valid for l up to the state's length.
func (sa *suffixAutomaton) substring(id int32, l int32) string {
	st := sa.states[id]
	w := sa.words[st.wordID]
	return string(w[st.endOff-l : st.endOff])
}
