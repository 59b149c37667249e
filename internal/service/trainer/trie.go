package trainer

import (
	"unigram-go/internal/model/unigram"
)

// trieNode is one node of the piece trie. Children are referenced by index
// into the arena so a rebuild is a single slice allocation burst and the
// structure stays pointer-free.
type trieNode struct {
	children map[rune]int32
	pieceID  int32 // id of the piece ending here, -1 if none
}

// PieceTrie indexes vocabulary surfaces for prefix-match queries at a given
// position of a word. It is immutable once built and is rebuilt from
// scratch whenever the vocabulary changes between rounds.
type PieceTrie struct {
	nodes []trieNode
}

// TrieMatch is one vocabulary piece matching at a query position.
type TrieMatch struct {
	PieceID int32
	Length  int // match length in runes
}

// NewPieceTrie builds a trie over every surface in the vocabulary.
func NewPieceTrie(vocab *unigram.Vocabulary) *PieceTrie {
	t := &PieceTrie{
		nodes: make([]trieNode, 1, vocab.Len()*2+1),
	}
	t.nodes[0] = trieNode{children: make(map[rune]int32), pieceID: -1}
	for i := 0; i < vocab.Len(); i++ {
		t.insert(vocab.At(i).Surface, int32(i))
	}
	return t
}

func (t *PieceTrie) insert(surface string, pieceID int32) {
	cur := int32(0)
	for _, r := range surface {
		next, ok := t.nodes[cur].children[r]
		if !ok {
			next = int32(len(t.nodes))
			t.nodes = append(t.nodes, trieNode{children: make(map[rune]int32), pieceID: -1})
			t.nodes[cur].children[r] = next
		}
		cur = next
	}
	t.nodes[cur].pieceID = pieceID
}

// MatchesAt appends to out every piece whose surface equals
// word[pos:pos+len] for some length, in increasing length order.
// The cost is proportional to the number of matches, not the vocabulary
// size.
func (t *PieceTrie) MatchesAt(word []rune, pos int, out []TrieMatch) []TrieMatch {
	cur := int32(0)
	for i := pos; i < len(word); i++ {
		next, ok := t.nodes[cur].children[word[i]]
		if !ok {
			break
		}
		cur = next
		if id := t.nodes[cur].pieceID; id >= 0 {
			out = append(out, TrieMatch{PieceID: id, Length: i - pos + 1})
		}
	}
	return out
}

// NodeCount returns the number of trie nodes, root included.
func (t *PieceTrie) NodeCount() int {
	return len(t.nodes)
}
