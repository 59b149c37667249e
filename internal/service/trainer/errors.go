package trainer

import (
	"errors"
	"fmt"
)

// ErrEmptyCorpus is returned when the frequency table has no words.
// Training never starts in that case.
var ErrEmptyCorpus = errors.New("frequency table is empty")

// ConfigError reports invalid training configuration. It is returned
// before any EM or prune round executes.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid trainer configuration: %s: %s", e.Field, e.Msg)
}

// BrokenAlphabetError signals that a training word could not be segmented
// because no single-character piece covers one of its characters. It is an
// internal invariant violation (a defect in seeding or pruning), always
// fatal, never user-recoverable.
type BrokenAlphabetError struct {
	Word  string
	Round int
}

func (e *BrokenAlphabetError) Error() string {
	return fmt.Sprintf("alphabet invariant broken: word %q has no complete segmentation (round %d)", e.Word, e.Round)
}
