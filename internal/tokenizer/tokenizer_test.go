package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeNormalises(t *testing.T) {
	terms := Tokenize("The Quick, brown foxes JUMPED over the lazy dog!")
	require.Equal(t, []string{"quick", "brown", "fox", "jump", "over", "lazy", "dog"}, terms)
}

func TestTokenizeDropsStopWordsAndShortTokens(t *testing.T) {
	require.Empty(t, Tokenize("a an the of and I"))
	require.Equal(t, []string{"go"}, Tokenize("to go or not to go"))
}

func TestTokenizeSplitsOnPunctuation(t *testing.T) {
	terms := Tokenize("bit-packed postings: row/column layout")
	require.Equal(t, []string{"bit", "pack", "posting", "row", "column", "layout"}, terms)
}

func TestTokenizeKeepsDigits(t *testing.T) {
	require.Equal(t, []string{"utf8", "2026"}, Tokenize("utf8 in 2026"))
}

func TestStemRules(t *testing.T) {
	cases := map[string]string{
		"relational":  "relate",
		"functional":  "function",
		"agencies":    "agence",
		"normalizing": "normalize",
		"queries":     "query",
		"running":     "runn",
		"pointers":    "pointer",
		"process":     "process",
		"rows":        "row",
	}
	for in, want := range cases {
		require.Equal(t, want, stem(in), "stem(%q)", in)
	}
}
