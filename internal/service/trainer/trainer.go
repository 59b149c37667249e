package trainer

import (
	"runtime"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"unigram-go/internal/model/unigram"
)

const (
	defaultSeedSize       = 1000000
	defaultShrinkFactor   = 0.75
	defaultEMIterations   = 2
	defaultMaxPieceLength = 16

	// Alphabet characters missing from the trained vocabulary at finalize
	// re-enter just above the minimum score, each one a hair higher than
	// the previous so ordering stays total.
	minScorePenaltyDelta = 0.0001
)

// Options configures one training run. VocabSize counts trained pieces
// (alphabet plus learned subwords); special tokens occupy additional
// reserved ids in front of them.
type Options struct {
	// VocabSize is the target number of trained pieces. Required, > 0.
	VocabSize int
	// SpecialTokens are exempt from scoring and pruning and occupy the
	// lowest ids of the final model, in the order given.
	SpecialTokens []string
	// InitialAlphabet lists characters to include even if absent from the
	// corpus. Only the first rune of each entry is used.
	InitialAlphabet []string
	// UnkToken, when set, designates the unknown piece. It is prepended to
	// the special tokens if not already among them.
	UnkToken string
	// SeedSize caps the initial candidate vocabulary. Defaults to 1e6.
	SeedSize int
	// ShrinkFactor is the fraction of pieces surviving each prune round.
	// Defaults to 0.75.
	ShrinkFactor float64
	// EMIterations is the fixed EM budget per round. Defaults to 2.
	EMIterations int
	// MaxPieceLength bounds candidate pieces in runes. Defaults to 16.
	MaxPieceLength int
	// Workers is the data-parallel fan-out for E-step and prune scoring.
	// Defaults to the number of CPUs. Results are deterministic for a
	// fixed worker count.
	Workers int
	// Progress, when set, receives a checkpoint at every round boundary.
	// Reporting itself stays outside the trainer.
	Progress func(Checkpoint)
}

// Checkpoint is the round-boundary snapshot handed to Options.Progress.
type Checkpoint struct {
	Round         int
	VocabSize     int
	LogLikelihood float64
}

// Trainer drives the full Unigram training pipeline:
// seeding, EM refinement alternating with pruning, and finalization.
type Trainer struct {
	opts   Options
	logger *zap.Logger
	runID  string
}

// RunID returns the id of the most recent training run, empty before the
// first call to Train.
func (t *Trainer) RunID() string {
	return t.runID
}

// wordFreq is one frequency-table entry prepared for training.
type wordFreq struct {
	surface string
	runes   []rune
	freq    float64
}

// New validates the options and returns a ready trainer.
func New(opts Options, logger *zap.Logger) (*Trainer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.VocabSize <= 0 {
		return nil, &ConfigError{Field: "vocab_size", Msg: "must be positive"}
	}
	seen := make(map[string]struct{}, len(opts.SpecialTokens))
	for _, s := range opts.SpecialTokens {
		if s == "" {
			return nil, &ConfigError{Field: "special_tokens", Msg: "empty special token"}
		}
		if _, dup := seen[s]; dup {
			return nil, &ConfigError{Field: "special_tokens", Msg: "duplicate special token " + s}
		}
		seen[s] = struct{}{}
	}
	if opts.SeedSize == 0 {
		opts.SeedSize = defaultSeedSize
	}
	if opts.SeedSize < opts.VocabSize {
		return nil, &ConfigError{Field: "seed_size", Msg: "must be at least vocab_size"}
	}
	if opts.ShrinkFactor == 0 {
		opts.ShrinkFactor = defaultShrinkFactor
	}
	if opts.ShrinkFactor <= 0 || opts.ShrinkFactor >= 1 {
		return nil, &ConfigError{Field: "shrink_factor", Msg: "must be in (0, 1)"}
	}
	if opts.EMIterations == 0 {
		opts.EMIterations = defaultEMIterations
	}
	if opts.EMIterations < 1 {
		return nil, &ConfigError{Field: "em_iterations", Msg: "must be at least 1"}
	}
	if opts.MaxPieceLength == 0 {
		opts.MaxPieceLength = defaultMaxPieceLength
	}
	if opts.MaxPieceLength < 1 {
		return nil, &ConfigError{Field: "max_piece_length", Msg: "must be at least 1"}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Trainer{opts: opts, logger: logger}, nil
}

// Train runs the whole pipeline over the frequency table and emits the
// finished model. The table is read-only and is not retained.
func (t *Trainer) Train(table unigram.FrequencyTable) (*unigram.Model, error) {
	if len(table) == 0 {
		return nil, ErrEmptyCorpus
	}
	t.runID = uuid.NewString()
	logger := t.logger.With(zap.String("run_id", t.runID))

	words := sortedWords(table, logger)
	if len(words) == 0 {
		return nil, ErrEmptyCorpus
	}
	requiredChars, charCounts := collectAlphabet(words, t.opts.InitialAlphabet)
	if t.opts.VocabSize < len(requiredChars) {
		return nil, &ConfigError{
			Field: "vocab_size",
			Msg:   "target size is smaller than the mandatory alphabet plus special tokens",
		}
	}
	specials := t.specialTokens()
	specialSet := make(map[string]struct{}, len(specials))
	for _, s := range specials {
		specialSet[s] = struct{}{}
	}
	alphabetSet := make(map[string]struct{}, len(requiredChars))
	for _, c := range requiredChars {
		alphabetSet[string(c)] = struct{}{}
	}

	logger.Info("training started",
		zap.Int("words", len(words)),
		zap.Int("alphabet", len(requiredChars)),
		zap.Int("vocab_size", t.opts.VocabSize),
		zap.Int("special_tokens", len(specials)),
	)

	// Seeding
	seeder := &seedGenerator{
		seedSize:       t.opts.SeedSize,
		maxPieceLength: t.opts.MaxPieceLength,
		logger:         logger,
	}
	vocab, err := unigram.NewVocabulary(seeder.generate(words, requiredChars, charCounts, specialSet))
	if err != nil {
		return nil, err
	}
	logger.Info("seed vocabulary ready", zap.Int("size", vocab.Len()))

	em := &emTrainer{iterations: t.opts.EMIterations, workers: t.opts.Workers, logger: logger}
	pr := &pruner{shrinkFactor: t.opts.ShrinkFactor, workers: t.opts.Workers, logger: logger}

	// The prune loop overshoots the target slightly; finalize trims the
	// lowest-scoring remainder so the last rounds keep a little slack.
	desired := t.opts.VocabSize * 11 / 10

	// Refining <-> Pruning
	trie := NewPieceTrie(vocab)
	round := 0
	for {
		round++
		var ll float64
		vocab, ll, err = em.run(words, vocab, trie, round)
		if err != nil {
			return nil, err
		}
		t.checkpoint(logger, Checkpoint{Round: round, VocabSize: vocab.Len(), LogLikelihood: ll})
		if vocab.Len() <= desired {
			break
		}
		before := vocab.Len()
		vocab, err = pr.prune(words, vocab, trie, alphabetSet, desired, round)
		if err != nil {
			return nil, err
		}
		if vocab.Len() >= before {
			logger.Warn("vocabulary cannot shrink further",
				zap.Int("size", vocab.Len()),
				zap.Int("desired", desired),
			)
			break
		}
		trie = NewPieceTrie(vocab)
	}

	// Finalizing: one last EM pass to sharpen scores, no further pruning.
	trie = NewPieceTrie(vocab)
	vocab, finalLL, err := em.run(words, vocab, trie, round+1)
	if err != nil {
		return nil, err
	}
	model := t.finalize(vocab, requiredChars, specials, specialSet)
	logger.Info("training complete",
		zap.Int("rounds", round),
		zap.Int("model_size", len(model.Pieces)),
		zap.Float64("log_likelihood", finalLL),
		zap.Int("unk_id", model.UnknownID),
	)
	return model, nil
}

func (t *Trainer) checkpoint(logger *zap.Logger, cp Checkpoint) {
	logger.Info("round complete",
		zap.Int("round", cp.Round),
		zap.Int("vocab_size", cp.VocabSize),
		zap.Float64("log_likelihood", cp.LogLikelihood),
	)
	if t.opts.Progress != nil {
		t.opts.Progress(cp)
	}
}

// specialTokens returns the reserved-token list with the unk token
// prepended when configured but absent.
func (t *Trainer) specialTokens() []string {
	specials := append([]string(nil), t.opts.SpecialTokens...)
	if t.opts.UnkToken == "" {
		return specials
	}
	for _, s := range specials {
		if s == t.opts.UnkToken {
			return specials
		}
	}
	return append([]string{t.opts.UnkToken}, specials...)
}

// finalize assembles the output model: every required character survives,
// remaining slots fill by descending score, special tokens take the
// reserved front ids.
func (t *Trainer) finalize(vocab *unigram.Vocabulary, requiredChars []rune, specials []string, specialSet map[string]struct{}) *unigram.Model {
	alphabet := make(map[string]struct{}, len(requiredChars))
	kept := make([]unigram.Piece, 0, t.opts.VocabSize)
	minScore := vocab.MinScore()
	penalty := 0.0
	for _, c := range requiredChars {
		surface := string(c)
		alphabet[surface] = struct{}{}
		if idx, ok := vocab.Index(surface); ok {
			kept = append(kept, vocab.At(idx))
			continue
		}
		penalty += minScorePenaltyDelta
		kept = append(kept, unigram.Piece{Surface: surface, Score: minScore + penalty})
	}

	others := make([]unigram.Piece, 0, vocab.Len())
	for i := 0; i < vocab.Len(); i++ {
		p := vocab.At(i)
		if _, isAlpha := alphabet[p.Surface]; isAlpha {
			continue
		}
		if _, isSpecial := specialSet[p.Surface]; isSpecial {
			continue
		}
		others = append(others, p)
	}
	sort.Slice(others, func(i, j int) bool {
		if others[i].Score != others[j].Score {
			return others[i].Score > others[j].Score
		}
		return others[i].Surface < others[j].Surface
	})
	for _, p := range others {
		if len(kept) >= t.opts.VocabSize {
			break
		}
		kept = append(kept, p)
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Surface < kept[j].Surface
	})

	pieces := make([]unigram.Piece, 0, len(specials)+len(kept))
	unkID := -1
	for i, s := range specials {
		if s == t.opts.UnkToken && t.opts.UnkToken != "" {
			unkID = i
		}
		pieces = append(pieces, unigram.Piece{Surface: s, Score: 0})
	}
	pieces = append(pieces, kept...)
	return &unigram.Model{
		Pieces:       pieces,
		SpecialCount: len(specials),
		UnknownID:    unkID,
	}
}

// sortedWords turns the frequency table into a deterministic word list.
// Non-positive counts violate the input contract and are skipped with a
// warning rather than poisoning the run.
func sortedWords(table unigram.FrequencyTable, logger *zap.Logger) []wordFreq {
	keys := make([]string, 0, len(table))
	for w := range table {
		keys = append(keys, w)
	}
	sort.Strings(keys)
	words := make([]wordFreq, 0, len(keys))
	for _, w := range keys {
		count := table[w]
		if w == "" || count <= 0 {
			logger.Warn("skipping invalid frequency table entry",
				zap.String("word", w),
				zap.Int64("count", count),
			)
			continue
		}
		words = append(words, wordFreq{surface: w, runes: []rune(w), freq: float64(count)})
	}
	return words
}

// collectAlphabet gathers every distinct corpus character plus the
// caller-supplied initial alphabet, with frequency-weighted counts.
func collectAlphabet(words []wordFreq, initial []string) ([]rune, map[rune]float64) {
	counts := make(map[rune]float64)
	for _, w := range words {
		for _, r := range w.runes {
			counts[r] += w.freq
		}
	}
	for _, s := range initial {
		for _, r := range s {
			if _, ok := counts[r]; !ok {
				counts[r] = 0
			}
			break // only the first rune of each entry counts
		}
	}
	chars := make([]rune, 0, len(counts))
	for r := range counts {
		chars = append(chars, r)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
	return chars, counts
}
