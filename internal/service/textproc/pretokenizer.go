package textproc

import "strings"

// DefaultMetaspaceReplacement is the conventional visible-space marker.
const DefaultMetaspaceReplacement = '▁'

// PreTokenizer splits normalized text into the word units the frequency
// table is built from.
type PreTokenizer interface {
	Split(text string) []string
}

// WhitespacePreTokenizer splits on runs of Unicode whitespace.
type WhitespacePreTokenizer struct{}

func (WhitespacePreTokenizer) Split(text string) []string {
	return strings.Fields(text)
}

// MetaspacePreTokenizer replaces spaces with a visible marker and splits so
// that each word carries its preceding space marker. Decoding with the
// matching MetaspaceDecoder restores the original spacing.
type MetaspacePreTokenizer struct {
	Replacement    rune
	AddPrefixSpace bool
}

// NewMetaspacePreTokenizer returns the conventional configuration:
// replacement U+2581 with a prefix space.
func NewMetaspacePreTokenizer() *MetaspacePreTokenizer {
	return &MetaspacePreTokenizer{Replacement: DefaultMetaspaceReplacement, AddPrefixSpace: true}
}

func (m *MetaspacePreTokenizer) Split(text string) []string {
	if text == "" {
		return nil
	}
	if m.AddPrefixSpace && !strings.HasPrefix(text, " ") {
		text = " " + text
	}
	replaced := strings.ReplaceAll(text, " ", string(m.Replacement))
	var words []string
	var cur strings.Builder
	for _, r := range replaced {
		if r == m.Replacement && cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	return words
}
