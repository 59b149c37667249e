package trainer

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"unigram-go/internal/model/unigram"
)

// pruner removes the pieces whose deletion costs the least corpus
// log-likelihood. Alphabet singletons are structurally exempt, which is
// what enforces the invariant that every training character stays
// representable; special tokens never enter the trained vocabulary at all.
type pruner struct {
	shrinkFactor float64
	workers      int
	logger       *zap.Logger
}

// pieceUsage holds the Viterbi usage statistics gathered in one pass over
// the corpus: freq[i] is the frequency-weighted number of times piece i
// appears on a best path, vsum the total word frequency.
type pieceUsage struct {
	freq []float64
	vsum float64
}

// prune returns a strictly smaller vocabulary, keeping at least targetSize
// pieces (or the shrink-factor fraction of the current size, whichever is
// larger).
func (p *pruner) prune(words []wordFreq, vocab *unigram.Vocabulary, trie *PieceTrie, alphabet map[string]struct{}, targetSize, round int) (*unigram.Vocabulary, error) {
	scores := scoresOf(vocab)

	// How each piece re-segments if removed: the best path of the piece's
	// own lattice, excluding the single full-span edge (the piece itself).
	// A piece whose best path already uses two or more edges is redundant
	// whenever unused; a piece with no alternative path must be kept.
	alwaysKeep := make([]bool, vocab.Len())
	alternatives := make([][]int32, vocab.Len())
	for i := 0; i < vocab.Len(); i++ {
		surface := []rune(vocab.At(i).Surface)
		if _, isAlpha := alphabet[vocab.At(i).Surface]; isAlpha {
			alwaysKeep[i] = true
			continue
		}
		lattice := newLattice(surface, trie, scores)
		path, _, ok := lattice.viterbi(-1)
		if !ok {
			return nil, &BrokenAlphabetError{Word: vocab.At(i).Surface, Round: round}
		}
		if len(path) >= 2 {
			continue
		}
		alwaysKeep[i] = true
		altPath, _, ok := lattice.viterbi(lattice.fullSpanNode())
		if !ok {
			continue
		}
		alt := make([]int32, len(altPath))
		for j, id := range altPath {
			alt[j] = lattice.node(id).pieceID
		}
		alternatives[i] = alt
	}

	usage, err := p.collectUsage(words, vocab, trie, scores, round)
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for _, f := range usage.freq {
		sum += f
	}
	logSum := math.Log(sum)

	type candidate struct {
		id   int
		loss float64
	}
	kept := make([]unigram.Piece, 0, vocab.Len())
	var candidates []candidate
	for i := 0; i < vocab.Len(); i++ {
		piece := vocab.At(i)
		switch {
		case alwaysKeep[i] && len(alternatives[i]) == 0:
			kept = append(kept, piece)
		case usage.freq[i] == 0:
			// Never chosen by any best path: removable for free.
		case len(alternatives[i]) == 0:
			kept = append(kept, piece)
		default:
			// Removing the piece re-assigns its usage to the alternative
			// segmentation; the loss is the drop in corpus log-likelihood
			// under the cached Viterbi statistics.
			f := usage.freq[i] / usage.vsum
			logProb := math.Log(usage.freq[i]) - logSum
			logSumAlt := math.Log(sum + usage.freq[i]*float64(len(alternatives[i])-1))
			logProbAlt := 0.0
			for _, a := range alternatives[i] {
				logProbAlt += math.Log(usage.freq[a]+usage.freq[i]) - logSumAlt
			}
			candidates = append(candidates, candidate{id: i, loss: f * (logProb - logProbAlt)})
		}
	}

	prunedSize := int(float64(vocab.Len()) * p.shrinkFactor)
	if prunedSize < targetSize {
		prunedSize = targetSize
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].loss != candidates[j].loss {
			return candidates[i].loss > candidates[j].loss
		}
		return candidates[i].id < candidates[j].id
	})
	for _, c := range candidates {
		if len(kept) >= prunedSize {
			break
		}
		kept = append(kept, vocab.At(c.id))
	}

	newVocab, err := unigram.NewVocabulary(kept)
	if err != nil {
		return nil, fmt.Errorf("rebuilding vocabulary after prune: %w", err)
	}
	p.logger.Debug("prune round complete",
		zap.Int("round", round),
		zap.Int("before", vocab.Len()),
		zap.Int("after", newVocab.Len()),
		zap.Int("candidates", len(candidates)),
	)
	return newVocab, nil
}

// collectUsage Viterbi-decodes every word in parallel and accumulates
// per-piece usage. Partial vectors are merged in worker order so the
// reduction is deterministic for a fixed worker count.
func (p *pruner) collectUsage(words []wordFreq, vocab *unigram.Vocabulary, trie *PieceTrie, scores []float64, round int) (*pieceUsage, error) {
	workers := p.workers
	if workers > len(words) {
		workers = len(words)
	}
	if workers < 1 {
		workers = 1
	}
	partials := make([][]float64, workers)
	partialVsum := make([]float64, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		lo := w * len(words) / workers
		hi := (w + 1) * len(words) / workers
		g.Go(func() error {
			freq := make([]float64, vocab.Len())
			vsum := 0.0
			for i := lo; i < hi; i++ {
				word := &words[i]
				lattice := newLattice(word.runes, trie, scores)
				path, _, ok := lattice.viterbi(-1)
				if !ok {
					return &BrokenAlphabetError{Word: word.surface, Round: round}
				}
				for _, id := range path {
					freq[lattice.node(id).pieceID] += word.freq
				}
				vsum += word.freq
			}
			partials[w] = freq
			partialVsum[w] = vsum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("prune scoring failed: %w", err)
	}
	usage := &pieceUsage{freq: make([]float64, vocab.Len())}
	for w := 0; w < workers; w++ {
		for i, v := range partials[w] {
			usage.freq[i] += v
		}
		usage.vsum += partialVsum[w]
	}
	return usage, nil
}
