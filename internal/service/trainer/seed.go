package trainer

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"unigram-go/internal/model/unigram"
)

// seedGenerator enumerates candidate substrings from the frequency table
// and produces the oversized initial vocabulary that EM and pruning will
// shrink down to the target size.
type seedGenerator struct {
	seedSize       int
	maxPieceLength int
	logger         *zap.Logger
}

type seedCandidate struct {
	surface string
	score   float64 // weighted frequency x rune length
}

// generate builds the seed vocabulary: every required character
// unconditionally, plus the top-scoring multi-character substrings.
// Scores are normalized natural-log probabilities over the whole seed set.
func (g *seedGenerator) generate(words []wordFreq, requiredChars []rune, charCounts map[rune]float64, specials map[string]struct{}) []unigram.Piece {
	sa := newSuffixAutomaton()
	for _, w := range words {
		sa.addWord(w.runes, w.freq)
	}
	sa.propagateCounts()

	// One candidate per automaton state: its longest substring, capped at
	// the piece-length limit. Shorter members of the same state share the
	// occurrence count and can only score lower.
	seen := make(map[string]float64)
	for id := int32(1); id < int32(len(sa.states)); id++ {
		st := sa.states[id]
		minLen := int32(2)
		if st.link >= 0 && sa.states[st.link].length+1 > minLen {
			minLen = sa.states[st.link].length + 1
		}
		l := st.length
		if l > int32(g.maxPieceLength) {
			l = int32(g.maxPieceLength)
		}
		if l < minLen || st.count < 2 {
			continue
		}
		surface := sa.substring(id, l)
		if _, isSpecial := specials[surface]; isSpecial {
			continue
		}
		score := st.count * float64(l)
		if prev, ok := seen[surface]; !ok || score > prev {
			seen[surface] = score
		}
	}

	candidates := make([]seedCandidate, 0, len(seen))
	for surface, score := range seen {
		candidates = append(candidates, seedCandidate{surface: surface, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].surface < candidates[j].surface
	})
	budget := g.seedSize - len(requiredChars)
	if budget < 0 {
		budget = 0
	}
	if len(candidates) > budget {
		candidates = candidates[:budget]
	}

	pieces := make([]unigram.Piece, 0, len(requiredChars)+len(candidates))
	total := 0.0
	for _, c := range requiredChars {
		count := charCounts[c]
		if count <= 0 {
			// Caller-supplied alphabet characters absent from the corpus
			// still need a finite probability.
			count = 1
		}
		pieces = append(pieces, unigram.Piece{Surface: string(c), Score: count})
		total += count
	}
	for _, cand := range candidates {
		pieces = append(pieces, unigram.Piece{Surface: cand.surface, Score: cand.score})
		total += cand.score
	}
	logTotal := math.Log(total)
	for i := range pieces {
		pieces[i].Score = math.Log(pieces[i].Score) - logTotal
	}

	g.logger.Debug("seed vocabulary generated",
		zap.Int("alphabet", len(requiredChars)),
		zap.Int("candidates", len(candidates)),
		zap.Int("automaton_states", len(sa.states)),
	)
	return pieces
}
