// Package encoder segments live strings against a frozen unigram model,
// reusing the trainer's lattice and Viterbi machinery.
package encoder

import (
	"fmt"

	"go.uber.org/zap"

	"unigram-go/internal/model/unigram"
	"unigram-go/internal/service/trainer"
)

// unkPenalty is subtracted from the model's minimum score to build the
// fallback edges for characters no piece covers. High enough that an unk
// edge never outcompetes a real piece.
const unkPenalty = 10.0

// Token is one piece occurrence in an encoded string, with rune offsets
// into the input word.
type Token struct {
	ID    int
	Piece string
	Start int
	End   int
}

// Encoder segments words with Viterbi decoding over a trained model. It is
// read-only after construction and safe for concurrent use.
type Encoder struct {
	model    *unigram.Model
	vocab    *unigram.Vocabulary
	trie     *trainer.PieceTrie
	scores   []float64
	ids      []int // vocabulary index -> model piece id
	unkScore float64
	logger   *zap.Logger
}

// New builds an encoder over the model's trained pieces. Special tokens
// keep their reserved ids but never participate in segmentation.
func New(model *unigram.Model, logger *zap.Logger) (*Encoder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	trained := model.TrainedPieces()
	if len(trained) == 0 {
		return nil, fmt.Errorf("model has no trained pieces")
	}
	pieces := make([]unigram.Piece, len(trained))
	ids := make([]int, len(trained))
	for i, p := range trained {
		pieces[i] = p
		ids[i] = model.SpecialCount + i
	}
	vocab, err := unigram.NewVocabulary(pieces)
	if err != nil {
		return nil, fmt.Errorf("building encoder vocabulary: %w", err)
	}
	scores := make([]float64, vocab.Len())
	for i := 0; i < vocab.Len(); i++ {
		scores[i] = vocab.At(i).Score
	}
	return &Encoder{
		model:    model,
		vocab:    vocab,
		trie:     trainer.NewPieceTrie(vocab),
		scores:   scores,
		ids:      ids,
		unkScore: model.MinScore() - unkPenalty,
		logger:   logger,
	}, nil
}

// Encode returns the highest-probability segmentation of word. Characters
// not covered by any piece fall back to the unknown token; when the model
// has no unknown id and the word cannot be segmented, an error is
// returned.
func (e *Encoder) Encode(word string) ([]Token, error) {
	runes := []rune(word)
	if len(runes) == 0 {
		return nil, nil
	}
	lattice := trainer.NewEncodingLattice(runes, e.trie, e.scores, e.model.UnknownID >= 0, e.unkScore)
	path, ok := lattice.Viterbi()
	if !ok {
		return nil, fmt.Errorf("no segmentation for %q and the model has no unknown token", word)
	}
	tokens := make([]Token, 0, len(path))
	for _, id := range path {
		pieceID, start, length := lattice.Edge(id)
		tok := Token{Start: start, End: start + length}
		if pieceID < 0 {
			tok.ID = e.model.UnknownID
			tok.Piece = string(runes[start : start+length])
		} else {
			tok.ID = e.ids[pieceID]
			tok.Piece = e.vocab.At(int(pieceID)).Surface
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// Decode concatenates token surfaces back into the original word.
func Decode(tokens []Token) string {
	out := ""
	for _, t := range tokens {
		out += t.Piece
	}
	return out
}
