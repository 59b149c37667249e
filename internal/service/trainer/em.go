package trainer

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"unigram-go/internal/model/unigram"
)

// minPieceScore is the floor assigned to pieces whose expected count is
// zero. A large finite value keeps the log-space arithmetic free of -Inf
// while guaranteeing such pieces never win a segmentation.
const minPieceScore = -1e9

// emTrainer runs the fixed-budget Expectation-Maximization refinement
// between pruning rounds. The frequency table is read-only; each iteration
// produces a fresh vocabulary with updated scores and an unchanged piece
// set.
type emTrainer struct {
	iterations int
	workers    int
	logger     *zap.Logger
}

// run executes the configured number of EM iterations and returns the new
// vocabulary together with the corpus log-likelihood observed in the last
// E-step.
func (e *emTrainer) run(words []wordFreq, vocab *unigram.Vocabulary, trie *PieceTrie, round int) (*unigram.Vocabulary, float64, error) {
	var logLikelihood float64
	for iter := 0; iter < e.iterations; iter++ {
		expected, ll, err := e.eStep(words, vocab, trie, round)
		if err != nil {
			return nil, 0, err
		}
		logLikelihood = ll
		vocab = e.mStep(vocab, expected)
		e.logger.Debug("EM iteration complete",
			zap.Int("round", round),
			zap.Int("iteration", iter+1),
			zap.Float64("log_likelihood", ll),
		)
	}
	return vocab, logLikelihood, nil
}

// eStep accumulates forward-backward expected piece counts over every word,
// weighted by corpus frequency, and the total corpus log-likelihood.
//
// Words are split into contiguous per-worker ranges; each worker owns a
// private accumulator and the partials are merged in worker order at the
// end, so the result is identical for every run with the same worker
// count.
func (e *emTrainer) eStep(words []wordFreq, vocab *unigram.Vocabulary, trie *PieceTrie, round int) ([]float64, float64, error) {
	scores := scoresOf(vocab)
	workers := e.workers
	if workers > len(words) {
		workers = len(words)
	}
	if workers < 1 {
		workers = 1
	}

	partials := make([][]float64, workers)
	partialLL := make([]float64, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		lo := w * len(words) / workers
		hi := (w + 1) * len(words) / workers
		g.Go(func() error {
			expected := make([]float64, vocab.Len())
			ll := 0.0
			for i := lo; i < hi; i++ {
				word := &words[i]
				lattice := newLattice(word.runes, trie, scores)
				z := lattice.populateMarginal(word.freq, expected)
				if math.IsInf(z, -1) {
					return &BrokenAlphabetError{Word: word.surface, Round: round}
				}
				ll += word.freq * z
			}
			partials[w] = expected
			partialLL[w] = ll
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("E-step failed: %w", err)
	}

	expected := make([]float64, vocab.Len())
	logLikelihood := 0.0
	for w := 0; w < workers; w++ {
		for i, v := range partials[w] {
			expected[i] += v
		}
		logLikelihood += partialLL[w]
	}
	return expected, logLikelihood, nil
}

// mStep re-estimates every score as log(expected / total expected), the
// maximum-likelihood estimate under the unigram independence assumption.
func (e *emTrainer) mStep(vocab *unigram.Vocabulary, expected []float64) *unigram.Vocabulary {
	total := 0.0
	for _, c := range expected {
		total += c
	}
	logTotal := math.Log(total)
	pieces := vocab.Pieces()
	for i := range pieces {
		if expected[i] > 0 {
			pieces[i].Score = math.Log(expected[i]) - logTotal
		} else {
			pieces[i].Score = minPieceScore
		}
	}
	newVocab, err := unigram.NewVocabulary(pieces)
	if err != nil {
		// The piece set is unchanged, so this cannot happen.
		panic(err)
	}
	return newVocab
}

// scoresOf extracts the score vector indexed by piece id.
func scoresOf(vocab *unigram.Vocabulary) []float64 {
	scores := make([]float64, vocab.Len())
	for i := 0; i < vocab.Len(); i++ {
		scores[i] = vocab.At(i).Score
	}
	return scores
}
