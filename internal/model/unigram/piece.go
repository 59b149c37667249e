package unigram

import "fmt"

// FrequencyTable maps a word to its corpus occurrence count.
// It is the sole input contract of the trainer: the table is owned by the
// caller and never mutated. Words must be non-empty and counts positive.
type FrequencyTable map[string]int64

// TotalCount returns the sum of all word counts.
func (ft FrequencyTable) TotalCount() int64 {
	var total int64
	for _, c := range ft {
		total += c
	}
	return total
}

// Piece is a single subword unit with its natural-log probability.
// Identity is the surface string; the score is replaced wholesale by EM
// re-estimation, never mutated in place.
type Piece struct {
	Surface string  `json:"piece"`
	Score   float64 `json:"score"`
}

// Vocabulary is an ordered collection of pieces with unique surfaces.
// Indices are stable within a training round; the Pruner produces a new
// Vocabulary rather than mutating an existing one.
type Vocabulary struct {
	pieces []Piece
	index  map[string]int
}

// NewVocabulary builds a vocabulary from pieces, rejecting duplicate surfaces.
func NewVocabulary(pieces []Piece) (*Vocabulary, error) {
	index := make(map[string]int, len(pieces))
	for i, p := range pieces {
		if p.Surface == "" {
			return nil, fmt.Errorf("piece %d has empty surface", i)
		}
		if prev, exists := index[p.Surface]; exists {
			return nil, fmt.Errorf("duplicate piece %q at indices %d and %d", p.Surface, prev, i)
		}
		index[p.Surface] = i
	}
	return &Vocabulary{pieces: pieces, index: index}, nil
}

// Len returns the number of pieces.
func (v *Vocabulary) Len() int {
	return len(v.pieces)
}

// At returns the piece at index i.
func (v *Vocabulary) At(i int) Piece {
	return v.pieces[i]
}

// Index returns the index of the piece with the given surface.
func (v *Vocabulary) Index(surface string) (int, bool) {
	i, ok := v.index[surface]
	return i, ok
}

// Pieces returns a copy of the ordered piece list.
func (v *Vocabulary) Pieces() []Piece {
	out := make([]Piece, len(v.pieces))
	copy(out, v.pieces)
	return out
}

// MinScore returns the lowest score in the vocabulary, or 0 if empty.
func (v *Vocabulary) MinScore() float64 {
	if len(v.pieces) == 0 {
		return 0
	}
	min := v.pieces[0].Score
	for _, p := range v.pieces[1:] {
		if p.Score < min {
			min = p.Score
		}
	}
	return min
}

// Model is the finished output of training: special tokens first (score 0),
// then trained pieces sorted by descending score, plus the id of the
// unknown token (-1 when none was configured).
type Model struct {
	Pieces       []Piece `json:"vocab"`
	SpecialCount int     `json:"special_count"`
	UnknownID    int     `json:"unk_id"`
}

// PieceID returns the id of the piece with the given surface.
func (m *Model) PieceID(surface string) (int, bool) {
	for i, p := range m.Pieces {
		if p.Surface == surface {
			return i, true
		}
	}
	return -1, false
}

// TrainedPieces returns the non-special portion of the model vocabulary.
func (m *Model) TrainedPieces() []Piece {
	return m.Pieces[m.SpecialCount:]
}

// MinScore returns the lowest score among trained pieces, or 0 if there
// are none.
func (m *Model) MinScore() float64 {
	trained := m.TrainedPieces()
	if len(trained) == 0 {
		return 0
	}
	min := trained[0].Score
	for _, p := range trained[1:] {
		if p.Score < min {
			min = p.Score
		}
	}
	return min
}
