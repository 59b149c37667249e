package trainer

import (
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"unigram-go/internal/model/unigram"
)

func smallTable() unigram.FrequencyTable {
	return unigram.FrequencyTable{
		"low":    5,
		"lower":  2,
		"newest": 6,
		"widest": 3,
	}
}

func TestTrainCharacterCoverage(t *testing.T) {
	// Ten distinct characters, target ten: the model ends up exactly the
	// alphabet plus the reserved unk slot.
	tr, err := New(Options{VocabSize: 10, UnkToken: "[unk]", Workers: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	model, err := tr.Train(smallTable())
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if model.SpecialCount != 1 {
		t.Errorf("special count: got %d, want 1", model.SpecialCount)
	}
	if model.UnknownID != 0 {
		t.Errorf("unk id: got %d, want 0", model.UnknownID)
	}
	if model.Pieces[0].Surface != "[unk]" || model.Pieces[0].Score != 0 {
		t.Errorf("piece 0 must be the unk token with score 0, got %+v", model.Pieces[0])
	}
	if got := len(model.Pieces); got != 11 {
		t.Fatalf("model size: got %d, want 11", got)
	}
	for _, r := range "lowernstid" {
		if _, ok := model.PieceID(string(r)); !ok {
			t.Errorf("character %q missing from model", string(r))
		}
	}
	trained := model.TrainedPieces()
	for i := 1; i < len(trained); i++ {
		if trained[i-1].Score < trained[i].Score {
			t.Errorf("trained pieces not sorted by descending score at %d", i)
		}
	}
	for _, p := range trained {
		if p.Score >= 0 {
			t.Errorf("trained piece %q has non-negative log-probability %v", p.Surface, p.Score)
		}
	}
	if tr.RunID() == "" {
		t.Error("run id must be set after training")
	}
}

func TestTrainRoundTrip(t *testing.T) {
	table := smallTable()
	tr, err := New(Options{VocabSize: 14, UnkToken: "[unk]", Workers: 1}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	model, err := tr.Train(table)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	vocab, err := unigram.NewVocabulary(model.TrainedPieces())
	if err != nil {
		t.Fatalf("model vocabulary invalid: %v", err)
	}
	trie := NewPieceTrie(vocab)
	scores := scoresOf(vocab)
	for word := range table {
		lattice := newLattice([]rune(word), trie, scores)
		path, ok := lattice.Viterbi()
		if !ok {
			t.Fatalf("word %q not segmentable by the trained model", word)
		}
		decoded := ""
		for _, id := range path {
			decoded += vocab.At(int(lattice.node(id).pieceID)).Surface
		}
		if decoded != word {
			t.Errorf("round trip of %q produced %q", word, decoded)
		}
	}
}

func TestTrainVocabShrinksMonotonically(t *testing.T) {
	table := unigram.FrequencyTable{
		"abab":   10,
		"ababab": 5,
		"baba":   7,
		"abcd":   3,
		"dcba":   2,
		"abcabc": 4,
	}
	var sizes []int
	tr, err := New(Options{
		VocabSize: 8,
		Workers:   2,
		Progress:  func(cp Checkpoint) { sizes = append(sizes, cp.VocabSize) },
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := tr.Train(table); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if len(sizes) < 2 {
		t.Fatalf("expected at least two rounds, got %d", len(sizes))
	}
	for i := 1; i < len(sizes); i++ {
		if sizes[i] >= sizes[i-1] {
			t.Errorf("vocabulary grew between rounds: %v", sizes)
		}
	}
}

func TestTrainDeterministic(t *testing.T) {
	table := unigram.FrequencyTable{
		"abab":   10,
		"ababab": 5,
		"baba":   7,
		"abcd":   3,
		"abcabc": 4,
	}
	run := func() []unigram.Piece {
		tr, err := New(Options{VocabSize: 8, UnkToken: "<unk>", Workers: 2}, zap.NewNop())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		model, err := tr.Train(table)
		if err != nil {
			t.Fatalf("Train failed: %v", err)
		}
		return model.Pieces
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical runs produced different models:\n%v\n%v", first, second)
	}
}

func TestTrainEmptyCorpus(t *testing.T) {
	tr, err := New(Options{VocabSize: 10}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := tr.Train(unigram.FrequencyTable{}); !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("expected ErrEmptyCorpus, got %v", err)
	}
	// A table holding only invalid entries degenerates to the same error.
	if _, err := tr.Train(unigram.FrequencyTable{"bad": 0}); !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("expected ErrEmptyCorpus for all-invalid table, got %v", err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	cases := []struct {
		name  string
		opts  Options
		field string
	}{
		{"zero vocab size", Options{}, "vocab_size"},
		{"negative vocab size", Options{VocabSize: -1}, "vocab_size"},
		{"empty special", Options{VocabSize: 10, SpecialTokens: []string{""}}, "special_tokens"},
		{"duplicate special", Options{VocabSize: 10, SpecialTokens: []string{"<s>", "<s>"}}, "special_tokens"},
		{"seed below vocab", Options{VocabSize: 10, SeedSize: 5}, "seed_size"},
		{"shrink factor too big", Options{VocabSize: 10, ShrinkFactor: 1.5}, "shrink_factor"},
		{"negative iterations", Options{VocabSize: 10, EMIterations: -1}, "em_iterations"},
		{"negative piece length", Options{VocabSize: 10, MaxPieceLength: -2}, "max_piece_length"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := New(c.opts, zap.NewNop())
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != c.field {
				t.Errorf("field: got %q, want %q", cfgErr.Field, c.field)
			}
		})
	}
}

func TestTrainVocabSmallerThanAlphabet(t *testing.T) {
	progressCalled := false
	tr, err := New(Options{
		VocabSize: 5,
		Progress:  func(Checkpoint) { progressCalled = true },
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// Ten distinct characters cannot fit in five slots.
	_, err = tr.Train(smallTable())
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if progressCalled {
		t.Error("training must fail before the first round")
	}
}

func TestTrainInitialAlphabet(t *testing.T) {
	tr, err := New(Options{
		VocabSize:       12,
		InitialAlphabet: []string{"x", "z"},
		Workers:         1,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	model, err := tr.Train(smallTable())
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	minScore := model.MinScore()
	for _, surface := range []string{"x", "z"} {
		id, ok := model.PieceID(surface)
		if !ok {
			t.Fatalf("initial alphabet character %q missing from model", surface)
		}
		if score := model.Pieces[id].Score; score > minScore+2*minScorePenaltyDelta {
			t.Errorf("absent character %q should score near the minimum, got %v", surface, score)
		}
	}
}

func TestSpecialTokensOrdering(t *testing.T) {
	tr, err := New(Options{
		VocabSize:     12,
		SpecialTokens: []string{"<s>", "</s>"},
		UnkToken:      "<unk>",
		Workers:       1,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	model, err := tr.Train(smallTable())
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	want := []string{"<unk>", "<s>", "</s>"}
	if model.SpecialCount != len(want) {
		t.Fatalf("special count: got %d, want %d", model.SpecialCount, len(want))
	}
	for i, surface := range want {
		if model.Pieces[i].Surface != surface {
			t.Errorf("special %d: got %q, want %q", i, model.Pieces[i].Surface, surface)
		}
		if model.Pieces[i].Score != 0 {
			t.Errorf("special %q must score 0, got %v", surface, model.Pieces[i].Score)
		}
	}
	if model.UnknownID != 0 {
		t.Errorf("unk id: got %d, want 0", model.UnknownID)
	}
}

func TestSpecialTokensUnkAlreadyListed(t *testing.T) {
	tr, err := New(Options{
		VocabSize:     12,
		SpecialTokens: []string{"<pad>", "<unk>"},
		UnkToken:      "<unk>",
		Workers:       1,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	model, err := tr.Train(smallTable())
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if model.SpecialCount != 2 {
		t.Fatalf("unk token must not be duplicated, special count %d", model.SpecialCount)
	}
	if model.UnknownID != 1 {
		t.Errorf("unk id: got %d, want 1", model.UnknownID)
	}
}

func TestTrainLearnsFrequentSubwords(t *testing.T) {
	table := unigram.FrequencyTable{
		"abab":   50,
		"ababab": 30,
		"ab":     40,
		"cd":     5,
	}
	tr, err := New(Options{VocabSize: 6, Workers: 1}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	model, err := tr.Train(table)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if _, ok := model.PieceID("ab"); !ok {
		t.Errorf("expected the dominant bigram 'ab' to be learned, model: %v", model.Pieces)
	}
}
