package textproc

import "strings"

// Decoder turns a sequence of piece surfaces back into text.
type Decoder interface {
	Decode(pieces []string) string
}

// MetaspaceDecoder reverses MetaspacePreTokenizer: markers become spaces
// and the synthetic leading space is stripped.
type MetaspaceDecoder struct {
	Replacement    rune
	AddPrefixSpace bool
}

// NewMetaspaceDecoder matches NewMetaspacePreTokenizer.
func NewMetaspaceDecoder() *MetaspaceDecoder {
	return &MetaspaceDecoder{Replacement: DefaultMetaspaceReplacement, AddPrefixSpace: true}
}

func (d *MetaspaceDecoder) Decode(pieces []string) string {
	joined := strings.Join(pieces, "")
	out := strings.ReplaceAll(joined, string(d.Replacement), " ")
	if d.AddPrefixSpace {
		out = strings.TrimPrefix(out, " ")
	}
	return out
}
