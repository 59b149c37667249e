package trainer

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"unigram-go/internal/model/unigram"
)

func alphabetOf(chars string) map[string]struct{} {
	set := make(map[string]struct{}, len(chars))
	for _, r := range chars {
		set[string(r)] = struct{}{}
	}
	return set
}

func TestPruneKeepsAlphabet(t *testing.T) {
	vocab := buildVocab(t, []unigram.Piece{
		{Surface: "a", Score: math.Log(0.2)},
		{Surface: "b", Score: math.Log(0.2)},
		{Surface: "ab", Score: math.Log(0.6)},
	})
	words := testWords(map[string]float64{"ab": 10})
	pr := &pruner{shrinkFactor: 0.5, workers: 1, logger: zap.NewNop()}

	pruned, err := pr.prune(words, vocab, NewPieceTrie(vocab), alphabetOf("ab"), 2, 1)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if pruned.Len() != 2 {
		t.Fatalf("expected 2 pieces after prune, got %d", pruned.Len())
	}
	for _, surface := range []string{"a", "b"} {
		if _, ok := pruned.Index(surface); !ok {
			t.Errorf("alphabet piece %q was pruned", surface)
		}
	}
}

func TestPruneDropsUnusedPieces(t *testing.T) {
	vocab := buildVocab(t, []unigram.Piece{
		{Surface: "a", Score: math.Log(0.15)},
		{Surface: "b", Score: math.Log(0.15)},
		{Surface: "ab", Score: math.Log(0.6)},
		{Surface: "bb", Score: math.Log(0.1)},
	})
	// "bb" never appears, so no best path uses it.
	words := testWords(map[string]float64{"ab": 4})
	pr := &pruner{shrinkFactor: 0.75, workers: 1, logger: zap.NewNop()}

	pruned, err := pr.prune(words, vocab, NewPieceTrie(vocab), alphabetOf("ab"), 3, 1)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if _, ok := pruned.Index("bb"); ok {
		t.Error("unused piece 'bb' must be dropped")
	}
	if _, ok := pruned.Index("ab"); !ok {
		t.Error("used piece 'ab' must survive")
	}
	if pruned.Len() != 3 {
		t.Errorf("expected 3 pieces, got %d", pruned.Len())
	}
}

func TestPruneRespectsTargetSize(t *testing.T) {
	pieces := []unigram.Piece{
		{Surface: "a", Score: math.Log(0.1)},
		{Surface: "b", Score: math.Log(0.1)},
		{Surface: "c", Score: math.Log(0.1)},
		{Surface: "ab", Score: math.Log(0.2)},
		{Surface: "bc", Score: math.Log(0.2)},
		{Surface: "abc", Score: math.Log(0.3)},
	}
	vocab := buildVocab(t, pieces)
	words := testWords(map[string]float64{"abc": 6, "ab": 3, "bc": 2})
	pr := &pruner{shrinkFactor: 0.9, workers: 2, logger: zap.NewNop()}

	pruned, err := pr.prune(words, vocab, NewPieceTrie(vocab), alphabetOf("abc"), 4, 1)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	// shrinkFactor 0.9 of 6 is 5, above the target of 4.
	if pruned.Len() > 5 {
		t.Errorf("pruned size %d exceeds shrink bound 5", pruned.Len())
	}
	if pruned.Len() < 3 {
		t.Errorf("pruned size %d lost alphabet pieces", pruned.Len())
	}
	for _, surface := range []string{"a", "b", "c"} {
		if _, ok := pruned.Index(surface); !ok {
			t.Errorf("alphabet piece %q was pruned", surface)
		}
	}
}

func TestPruneDeterministic(t *testing.T) {
	pieces := []unigram.Piece{
		{Surface: "a", Score: math.Log(0.1)},
		{Surface: "b", Score: math.Log(0.1)},
		{Surface: "c", Score: math.Log(0.1)},
		{Surface: "d", Score: math.Log(0.1)},
		{Surface: "ab", Score: math.Log(0.15)},
		{Surface: "cd", Score: math.Log(0.15)},
		{Surface: "abcd", Score: math.Log(0.3)},
	}
	words := testWords(map[string]float64{"abcd": 5, "ab": 3, "cd": 3, "dcba": 1})

	run := func() []string {
		vocab := buildVocab(t, append([]unigram.Piece(nil), pieces...))
		pr := &pruner{shrinkFactor: 0.75, workers: 3, logger: zap.NewNop()}
		pruned, err := pr.prune(words, vocab, NewPieceTrie(vocab), alphabetOf("abcd"), 5, 1)
		if err != nil {
			t.Fatalf("prune failed: %v", err)
		}
		out := make([]string, pruned.Len())
		for i := 0; i < pruned.Len(); i++ {
			out[i] = pruned.At(i).Surface
		}
		return out
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("runs disagree on size: %d != %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("piece %d differs between identical runs: %q != %q", i, first[i], second[i])
		}
	}
}
