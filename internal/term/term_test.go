package term

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtendComposesNGram(t *testing.T) {
	gram := New("big", 0, nil)
	gram.Extend(New("red", 0, nil))
	gram.Extend(New("dog", 0, nil))

	require.Equal(t, 3, gram.GramSize)
	require.Equal(t, []string{"big", "red", "dog"}, gram.Components())
	require.Equal(t, "big red dog", gram.DisplayText())
}

func TestCompositionIsUnambiguous(t *testing.T) {
	ab := New("a", 0, nil)
	ab.Extend(New("b", 0, nil))
	require.NotEqual(t, New("a b", 0, nil).Key(), ab.Key())
	require.NotEqual(t, New("ab", 0, nil).Key(), ab.Key())
}

func TestKeySeparatesStreams(t *testing.T) {
	body := New("dog", 0, nil)
	title := New("dog", 1, nil)
	require.NotEqual(t, body.Key(), title.Key())
	require.NotEqual(t, body.Hash(), title.Hash())
	require.Equal(t, body.Hash(), New("dog", 0, nil).Hash())
}

func TestExtendSumsWeights(t *testing.T) {
	ft := NewFrequencyTable()
	// "dog" in both documents, "cat" in one.
	ft.RecordDocument([]Key{{Text: "dog"}, {Text: "cat"}})
	ft.RecordDocument([]Key{{Text: "dog"}})

	dog := New("dog", 0, ft)
	require.Zero(t, dog.IdfSum, "a term in every document carries no weight")

	cat := New("cat", 0, ft)
	require.InDelta(t, 0.301, float64(cat.IdfSum), 0.001)

	gram := dog
	gram.Extend(cat)
	require.InDelta(t, float64(dog.IdfSum)+float64(cat.IdfSum), float64(gram.IdfSum), 1e-6)
}

func TestFrequencyTable(t *testing.T) {
	ft := NewFrequencyTable()
	require.Zero(t, ft.Idf("missing"))

	ft.RecordDocument([]Key{{Text: "a"}, {Text: "b"}})
	ft.RecordDocument([]Key{{Text: "a"}})
	ft.RecordDocument([]Key{{Text: "a"}})

	require.Equal(t, uint64(3), ft.DocumentCount())
	require.Equal(t, uint64(3), ft.Frequency(Key{Text: "a"}))
	require.Equal(t, uint64(1), ft.Frequency(Key{Text: "b"}))

	entries := ft.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "a", entries[0].Key.Text)
	require.Equal(t, uint64(3), entries[0].Count)
}

func TestQuantizeIdf(t *testing.T) {
	require.Equal(t, IdfX10(0), QuantizeIdf(-1))
	require.Equal(t, IdfX10(0), QuantizeIdf(0))
	require.Equal(t, IdfX10(3), QuantizeIdf(0.301))
	require.Equal(t, IdfX10(10), QuantizeIdf(1.0))
	require.Equal(t, MaxIdfX10, QuantizeIdf(9.9), "rare terms saturate at the cap")
}

func TestBuildIndexedIdf(t *testing.T) {
	ft := NewFrequencyTable()
	ft.RecordDocument([]Key{{Text: "common"}, {Text: "rare"}})
	for i := 0; i < 9; i++ {
		ft.RecordDocument([]Key{{Text: "common"}})
	}

	idx := BuildIndexedIdf(ft)
	require.Equal(t, 2, idx.Len())

	v, ok := idx.Lookup(New("rare", 0, nil).Hash())
	require.True(t, ok)
	require.Equal(t, IdfX10(10), v)

	v, ok = idx.Lookup(New("common", 0, nil).Hash())
	require.True(t, ok)
	require.Equal(t, IdfX10(0), v)

	_, ok = idx.Lookup(New("absent", 0, nil).Hash())
	require.False(t, ok)
}
