package trainer

import (
	"math"
)

// latticeNode is one piece occurrence inside a word: the edge
// (pos, pos+length) carrying the piece's current log-probability.
type latticeNode struct {
	pieceID int32 // vocabulary index, or a negative sentinel for unk edges
	pos     int   // start offset in runes
	length  int   // length in runes
	score   float64
}

// Lattice is the implicit DAG of all segmentations of one word under the
// current vocabulary. Nodes live in a flat arena; adjacency lists reference
// them by index. A lattice is transient: it exists for the duration of one
// Viterbi or forward-backward pass and is never persisted.
//
// All scores are natural-log probabilities. Nothing here exponentiates back
// to linear space except the marginal computation itself, which works on
// differences against the partition function to avoid underflow.
type Lattice struct {
	word     []rune
	nodes    []latticeNode
	beginsAt [][]int32 // node ids starting at offset 0..len-1
	endsAt   [][]int32 // node ids ending at offset 1..len
}

// newLattice builds the lattice for word using every trie match.
// scores[i] is the current log-probability of piece i.
func newLattice(word []rune, trie *PieceTrie, scores []float64) *Lattice {
	l := &Lattice{
		word:     word,
		beginsAt: make([][]int32, len(word)+1),
		endsAt:   make([][]int32, len(word)+1),
	}
	var matches []TrieMatch
	for pos := 0; pos < len(word); pos++ {
		matches = trie.MatchesAt(word, pos, matches[:0])
		for _, m := range matches {
			l.addNode(m.PieceID, pos, m.Length, scores[m.PieceID])
		}
	}
	return l
}

// NewEncodingLattice builds the lattice used for live encoding. When
// allowUnk is set, every position lacking a single-character match gets a
// fallback edge with a negative piece id and the given score, so decoding
// always completes even for characters the model has never seen.
func NewEncodingLattice(word []rune, trie *PieceTrie, scores []float64, allowUnk bool, unkScore float64) *Lattice {
	l := &Lattice{
		word:     word,
		beginsAt: make([][]int32, len(word)+1),
		endsAt:   make([][]int32, len(word)+1),
	}
	var matches []TrieMatch
	for pos := 0; pos < len(word); pos++ {
		matches = trie.MatchesAt(word, pos, matches[:0])
		covered := false
		for _, m := range matches {
			l.addNode(m.PieceID, pos, m.Length, scores[m.PieceID])
			if m.Length == 1 {
				covered = true
			}
		}
		if allowUnk && !covered {
			l.addNode(-1, pos, 1, unkScore)
		}
	}
	return l
}

// Edge returns the piece id, start offset, and rune length of a node.
// The piece id is negative for unknown-token fallback edges.
func (l *Lattice) Edge(id int32) (pieceID int32, pos, length int) {
	nd := l.nodes[id]
	return nd.pieceID, nd.pos, nd.length
}

// addNode inserts one edge. Insertion order is by start offset, which the
// Viterbi tie-break relies on: for a fixed end offset, earlier-starting
// (longer) edges are explored first.
func (l *Lattice) addNode(pieceID int32, pos, length int, score float64) int32 {
	id := int32(len(l.nodes))
	l.nodes = append(l.nodes, latticeNode{pieceID: pieceID, pos: pos, length: length, score: score})
	l.beginsAt[pos] = append(l.beginsAt[pos], id)
	l.endsAt[pos+length] = append(l.endsAt[pos+length], id)
	return id
}

// fullSpanNode returns the id of the single edge covering the whole word,
// or -1 if the word itself is not in the vocabulary.
func (l *Lattice) fullSpanNode() int32 {
	for _, id := range l.endsAt[len(l.word)] {
		if l.nodes[id].pos == 0 {
			return id
		}
	}
	return -1
}

// viterbi returns the ids of the highest-scoring segmentation, its total
// score, and whether a complete path exists. A node id passed as skip is
// excluded from consideration (-1 skips nothing). Ties are broken toward
// the leftmost-longest edge at every boundary, which makes the result
// reproducible across runs.
func (l *Lattice) viterbi(skip int32) ([]int32, float64, bool) {
	n := len(l.word)
	if n == 0 {
		return nil, 0, true
	}
	best := make([]float64, n+1)
	prev := make([]int32, n+1)
	for i := 1; i <= n; i++ {
		best[i] = math.Inf(-1)
		prev[i] = -1
	}
	for e := 1; e <= n; e++ {
		for _, id := range l.endsAt[e] {
			if id == skip {
				continue
			}
			nd := &l.nodes[id]
			if nd.pos > 0 && prev[nd.pos] == -1 {
				continue
			}
			cand := best[nd.pos] + nd.score
			if cand > best[e] {
				best[e] = cand
				prev[e] = id
			}
		}
	}
	if prev[n] == -1 {
		return nil, math.Inf(-1), false
	}
	var path []int32
	for e := n; e > 0; {
		id := prev[e]
		path = append(path, id)
		e = l.nodes[id].pos
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, best[n], true
}

// Viterbi returns the best segmentation as lattice node ids.
func (l *Lattice) Viterbi() ([]int32, bool) {
	path, _, ok := l.viterbi(-1)
	return path, ok
}

// node returns the node for an id. Valid only for ids produced by this
// lattice.
func (l *Lattice) node(id int32) latticeNode {
	return l.nodes[id]
}

// populateMarginal runs the forward-backward pass and accumulates
// freq-weighted expected counts per piece into expected. It returns the
// log partition function Z, or -Inf when the lattice has no complete path.
// expected may be nil to compute only Z.
func (l *Lattice) populateMarginal(freq float64, expected []float64) float64 {
	n := len(l.word)
	if n == 0 {
		return 0
	}
	alpha := make([]float64, n+1)
	beta := make([]float64, n+1)
	for i := 1; i <= n; i++ {
		alpha[i] = math.Inf(-1)
	}
	for i := 0; i < n; i++ {
		beta[i] = math.Inf(-1)
	}
	for e := 1; e <= n; e++ {
		for _, id := range l.endsAt[e] {
			nd := &l.nodes[id]
			alpha[e] = logSumExp(alpha[e], alpha[nd.pos]+nd.score)
		}
	}
	for s := n - 1; s >= 0; s-- {
		for _, id := range l.beginsAt[s] {
			nd := &l.nodes[id]
			beta[s] = logSumExp(beta[s], nd.score+beta[s+nd.length])
		}
	}
	z := alpha[n]
	if math.IsInf(z, -1) {
		return z
	}
	if expected != nil {
		for i := range l.nodes {
			nd := &l.nodes[i]
			if nd.pieceID < 0 {
				continue
			}
			expected[nd.pieceID] += freq * math.Exp(alpha[nd.pos]+nd.score+beta[nd.pos+nd.length]-z)
		}
	}
	return z
}

// logSumExp combines two log-space values as log(exp(a)+exp(b)).
func logSumExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}
