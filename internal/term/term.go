// Package term models the terms and n-grams flowing through the ingestion
// pipeline, along with the document-frequency table that supplies their
// weighting.
package term

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// StreamID identifies the document stream a term was drawn from (body,
// title, anchor text, and so on).
type StreamID uint8

// gramSeparator joins component texts inside a composed n-gram. NUL cannot
// appear in tokenized term text, so composition is unambiguous.
const gramSeparator = "\x00"

// Term is a single term or a composed n-gram. An n-gram is built by
// extending a unigram with Extend; Text then holds the component texts
// joined by gramSeparator.
type Term struct {
	Text     string
	Stream   StreamID
	GramSize int
	IdfSum   float32
}

// New creates a unigram term, deriving its weight from the frequency table.
// A nil table yields a zero weight.
func New(text string, stream StreamID, ft *FrequencyTable) Term {
	t := Term{Text: text, Stream: stream, GramSize: 1}
	if ft != nil {
		t.IdfSum = ft.Idf(text)
	}
	return t
}

// Extend grows the n-gram in place by one trailing term.
func (t *Term) Extend(next Term) {
	t.Text += gramSeparator + next.Text
	t.GramSize++
	t.IdfSum += next.IdfSum
}

// Key is the identity under which postings are deduplicated: two postings
// with equal keys are the same n-gram.
type Key struct {
	Text   string
	Stream StreamID
}

// Key returns the term's dedup identity.
func (t Term) Key() Key {
	return Key{Text: t.Text, Stream: t.Stream}
}

// Hash returns a stable 64-bit hash of the term identity, used for row
// assignment and for statistics keyed by term.
func (t Term) Hash() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(t.Text)
	_, _ = d.Write([]byte{byte(t.Stream)})
	return d.Sum64()
}

// Components returns the component texts of the n-gram in order.
func (t Term) Components() []string {
	return strings.Split(t.Text, gramSeparator)
}

// DisplayText returns the composed text with a space between components,
// for statistics output and logs.
func (t Term) DisplayText() string {
	return strings.Join(t.Components(), " ")
}
