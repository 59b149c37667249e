// Package textproc holds the text-processing collaborators that surround
// the trainer: normalization, pre-tokenization into word units, frequency
// counting, and decoding of piece sequences back to text.
package textproc

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var multiSpace = regexp.MustCompile(" {2,}")

// Normalizer cleans raw text before pre-tokenization: Unicode NFKC,
// collapsing of space runs, and optional lowercasing.
type Normalizer struct {
	form           norm.Form
	lowercase      bool
	collapseSpaces bool
}

// NewNormalizer returns the default normalizer: NFKC with space collapsing.
func NewNormalizer() *Normalizer {
	return &Normalizer{form: norm.NFKC, collapseSpaces: true}
}

// WithLowercase enables lowercasing after normalization.
func (n *Normalizer) WithLowercase() *Normalizer {
	n.lowercase = true
	return n
}

// Normalize applies the configured transformations in order.
func (n *Normalizer) Normalize(text string) string {
	out := n.form.String(text)
	if n.collapseSpaces {
		out = multiSpace.ReplaceAllString(out, " ")
	}
	if n.lowercase {
		out = strings.ToLower(out)
	}
	return out
}
