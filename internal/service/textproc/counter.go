package textproc

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"unigram-go/internal/model/unigram"
)

// WordCounter builds a frequency table from raw text. Input lines are
// normalized, split into word units, and counted. With singleton pruning
// enabled, a bloom filter absorbs the first sighting of each word and only
// repeat words reach the table, trading exact hapax counts for a much
// smaller footprint on large corpora.
type WordCounter struct {
	normalizer *Normalizer
	pre        PreTokenizer
	counts     unigram.FrequencyTable
	seen       *bloom.BloomFilter
	mu         sync.Mutex
	logger     *zap.Logger
}

// CounterOption customizes a WordCounter.
type CounterOption func(*WordCounter)

// WithNormalizer replaces the default NFKC normalizer.
func WithNormalizer(n *Normalizer) CounterOption {
	return func(c *WordCounter) { c.normalizer = n }
}

// WithPreTokenizer replaces the default whitespace pre-tokenizer.
func WithPreTokenizer(p PreTokenizer) CounterOption {
	return func(c *WordCounter) { c.pre = p }
}

// WithSingletonPruning enables the bloom-filter hapax filter, sized for the
// expected number of distinct words.
func WithSingletonPruning(expectedWords uint, falsePositiveRate float64) CounterOption {
	return func(c *WordCounter) {
		c.seen = bloom.NewWithEstimates(expectedWords, falsePositiveRate)
	}
}

// NewWordCounter creates a counter with NFKC normalization and whitespace
// pre-tokenization unless overridden.
func NewWordCounter(logger *zap.Logger, opts ...CounterOption) *WordCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &WordCounter{
		normalizer: NewNormalizer(),
		pre:        WhitespacePreTokenizer{},
		counts:     make(unigram.FrequencyTable),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddText normalizes, pre-tokenizes, and counts one piece of raw text.
func (c *WordCounter) AddText(text string) {
	words := c.pre.Split(c.normalizer.Normalize(text))
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range words {
		if c.seen != nil {
			if !c.seen.TestString(w) {
				c.seen.AddString(w)
				continue
			}
		}
		c.counts[w]++
	}
}

// AddCounts merges a precomputed frequency table, bypassing normalization.
func (c *WordCounter) AddCounts(table unigram.FrequencyTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for w, n := range table {
		c.counts[w] += n
	}
}

// AddFile counts every line of a text file.
func (c *WordCounter) AddFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lines := 0
	for scanner.Scan() {
		c.AddText(scanner.Text())
		lines++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading corpus file %s: %w", path, err)
	}
	c.logger.Debug("corpus file counted",
		zap.String("path", path),
		zap.Int("lines", lines),
	)
	return nil
}

// AddFiles counts several corpus files with the given parallelism. The
// per-word totals are independent of file order, so the resulting table is
// deterministic.
func (c *WordCounter) AddFiles(paths []string, workers int) error {
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			return c.AddFile(path)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("counting corpus files: %w", err)
	}
	return nil
}

// Table returns a copy of the accumulated frequency table.
func (c *WordCounter) Table() unigram.FrequencyTable {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(unigram.FrequencyTable, len(c.counts))
	for w, n := range c.counts {
		out[w] = n
	}
	return out
}

// DistinctWords returns the number of distinct words counted so far.
func (c *WordCounter) DistinctWords() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts)
}
