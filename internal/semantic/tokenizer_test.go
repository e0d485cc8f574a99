package semantic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVocab = `[PAD]
[UNK]
[CLS]
[SEP]
hello
world
un
##aff
##able
,
!
ada
love
##lace
visited
paris
`

func newTestTokenizer(t *testing.T, maxLength int) *Tokenizer {
	t.Helper()
	vocab, err := LoadVocab(strings.NewReader(testVocab))
	require.NoError(t, err)
	tok, err := NewTokenizer(vocab, true, maxLength)
	require.NoError(t, err)
	return tok
}

func TestLoadVocab(t *testing.T) {
	vocab, err := LoadVocab(strings.NewReader(testVocab))
	require.NoError(t, err)
	assert.Equal(t, int64(0), vocab["[PAD]"])
	assert.Equal(t, int64(4), vocab["hello"])
	assert.Equal(t, int64(8), vocab["##able"])
}

func TestNewTokenizer_MissingSpecial(t *testing.T) {
	_, err := NewTokenizer(map[string]int64{"[PAD]": 0}, true, 16)
	assert.ErrorIs(t, err, ErrTokenizationFailed)
}

func TestTokenizer_Encode(t *testing.T) {
	tok := newTestTokenizer(t, 32)
	text := "Hello unaffable world!"

	in := tok.Encode(text)

	assert.Equal(t, []int64{2, 4, 6, 7, 8, 5, 10, 3}, in.InputIDs)
	assert.Equal(t, []int{-1, 0, 1, 1, 1, 2, 3, -1}, in.WordIndex)
	assert.Equal(t, []Word{{0, 5}, {6, 15}, {16, 21}, {21, 22}}, in.Words)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 1, 1}, in.AttentionMask)
	assert.Equal(t, make([]int64, 8), in.TokenTypeIDs)

	assert.Equal(t, "unaffable", text[in.Words[1].Start:in.Words[1].End])
}

func TestTokenizer_Unknown(t *testing.T) {
	tok := newTestTokenizer(t, 32)
	in := tok.Encode("hello xyz")
	assert.Equal(t, []int64{2, 4, 1, 3}, in.InputIDs)
}

func TestTokenizer_TruncatesWholeWords(t *testing.T) {
	tok := newTestTokenizer(t, 4)
	in := tok.Encode("hello unaffable world")

	assert.Equal(t, []int64{2, 4, 3}, in.InputIDs)
	assert.Len(t, in.Words, 1)
}

func TestSplitWords_Offsets(t *testing.T) {
	text := "née, ok"
	words := splitWords(text)
	require.Len(t, words, 3)
	assert.Equal(t, "née", text[words[0].Start:words[0].End])
	assert.Equal(t, ",", text[words[1].Start:words[1].End])
	assert.Equal(t, "ok", text[words[2].Start:words[2].End])
}
