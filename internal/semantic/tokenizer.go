package semantic

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	tokenPad = "[PAD]"
	tokenUnk = "[UNK]"
	tokenCls = "[CLS]"
	tokenSep = "[SEP]"

	maxCharsPerWord = 100
)

// Word is a pre-tokenized word with byte offsets into the source text
type Word struct {
	Start int
	End   int
}

// TokenizedInput represents tokenized text ready for model inference
type TokenizedInput struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	// WordIndex maps each token to its word, or -1 for special tokens
	WordIndex []int
	Words     []Word
}

// Tokenizer is a WordPiece tokenizer over a BERT vocab.txt
type Tokenizer struct {
	vocab     map[string]int64
	lowerCase bool
	maxLength int

	unkID int64
	clsID int64
	sepID int64
}

// LoadVocab reads one token per line; the line number is the token id
func LoadVocab(r io.Reader) (map[string]int64, error) {
	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(r)
	var id int64
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r")
		if token != "" {
			vocab[token] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocab: %w", err)
	}
	return vocab, nil
}

// NewTokenizer creates a tokenizer. maxLength includes [CLS] and [SEP].
func NewTokenizer(vocab map[string]int64, lowerCase bool, maxLength int) (*Tokenizer, error) {
	for _, special := range []string{tokenPad, tokenUnk, tokenCls, tokenSep} {
		if _, ok := vocab[special]; !ok {
			return nil, fmt.Errorf("%w: vocab has no %s token", ErrTokenizationFailed, special)
		}
	}
	if maxLength < 3 {
		return nil, fmt.Errorf("%w: max length %d too small", ErrTokenizationFailed, maxLength)
	}

	return &Tokenizer{
		vocab:     vocab,
		lowerCase: lowerCase,
		maxLength: maxLength,
		unkID:     vocab[tokenUnk],
		clsID:     vocab[tokenCls],
		sepID:     vocab[tokenSep],
	}, nil
}

// Encode tokenizes text into a single sequence. Words that do not fit in
// maxLength are dropped whole, so every kept word has all its pieces.
func (t *Tokenizer) Encode(text string) *TokenizedInput {
	words := splitWords(text)

	in := &TokenizedInput{
		InputIDs:  []int64{t.clsID},
		WordIndex: []int{-1},
	}

	budget := t.maxLength - 2
	for _, w := range words {
		pieces := t.wordPiece(text[w.Start:w.End])
		if len(pieces) > budget {
			break
		}
		budget -= len(pieces)

		wordIdx := len(in.Words)
		in.Words = append(in.Words, w)
		for _, id := range pieces {
			in.InputIDs = append(in.InputIDs, id)
			in.WordIndex = append(in.WordIndex, wordIdx)
		}
	}

	in.InputIDs = append(in.InputIDs, t.sepID)
	in.WordIndex = append(in.WordIndex, -1)

	in.AttentionMask = make([]int64, len(in.InputIDs))
	in.TokenTypeIDs = make([]int64, len(in.InputIDs))
	for i := range in.AttentionMask {
		in.AttentionMask[i] = 1
	}
	return in
}

// wordPiece splits a word greedily into the longest vocab pieces
func (t *Tokenizer) wordPiece(word string) []int64 {
	if t.lowerCase {
		word = strings.ToLower(word)
	}
	if utf8.RuneCountInString(word) > maxCharsPerWord {
		return []int64{t.unkID}
	}

	var ids []int64
	start := 0
	for start < len(word) {
		end := len(word)
		found := false
		for end > start {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				ids = append(ids, id)
				found = true
				break
			}
			_, size := utf8.DecodeLastRuneInString(word[start:end])
			end -= size
		}
		if !found {
			return []int64{t.unkID}
		}
		start = end
	}
	return ids
}

// splitWords splits on whitespace and makes every punctuation rune its own word
func splitWords(text string) []Word {
	var words []Word
	start := -1
	for i, r := range text {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			if start >= 0 {
				words = append(words, Word{Start: start, End: i})
				start = -1
			}
		case isPunct(r):
			if start >= 0 {
				words = append(words, Word{Start: start, End: i})
				start = -1
			}
			words = append(words, Word{Start: i, End: i + utf8.RuneLen(r)})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	if start >= 0 {
		words = append(words, Word{Start: start, End: len(text)})
	}
	return words
}

// isPunct treats all non-alphanumeric ASCII as punctuation, as BERT does
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
