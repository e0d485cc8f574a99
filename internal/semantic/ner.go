package semantic

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/raaihank/aegis-shield/internal/privacy"
)

// Runner executes a token-classification model and returns row-major logits
// of shape [tokens, numLabels].
type Runner interface {
	Run(ctx context.Context, input *TokenizedInput) (logits []float32, numLabels int, err error)
	Close() error
}

// NER decodes BIO-tagged model output into entity spans
type NER struct {
	tokenizer *Tokenizer
	runner    Runner
	labels    []string
	minScore  float64
}

// NewNER creates a model-backed detector
func NewNER(tokenizer *Tokenizer, runner Runner, labels []string, minScore float64) *NER {
	return &NER{
		tokenizer: tokenizer,
		runner:    runner,
		labels:    labels,
		minScore:  minScore,
	}
}

// Detect tokenizes text, runs the model and decodes entity spans
func (n *NER) Detect(ctx context.Context, text string) ([]privacy.Match, error) {
	input := n.tokenizer.Encode(text)
	if len(input.Words) == 0 {
		return nil, nil
	}

	logits, numLabels, err := n.runner.Run(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}
	if numLabels != len(n.labels) {
		return nil, fmt.Errorf("%w: model has %d labels, configured %d", ErrInferenceFailed, numLabels, len(n.labels))
	}
	if len(logits) != len(input.InputIDs)*numLabels {
		return nil, fmt.Errorf("%w: got %d logits for %d tokens", ErrInferenceFailed, len(logits), len(input.InputIDs))
	}

	return decodeEntities(text, input, logits, n.labels, n.minScore), nil
}

// Close releases the model
func (n *NER) Close() error {
	return n.runner.Close()
}

type wordLabel struct {
	word  int
	label string
	score float64
}

type entity struct {
	kind       string
	first      int
	last       int
	scoreTotal float64
	words      int
}

// decodeEntities labels each word by its first sub-token and groups B-/I-
// runs of the same kind. An I- tag that does not continue a run starts one.
func decodeEntities(text string, input *TokenizedInput, logits []float32, labels []string, minScore float64) []privacy.Match {
	numLabels := len(labels)

	var tagged []wordLabel
	prevWord := -1
	for i, word := range input.WordIndex {
		if word < 0 || word == prevWord {
			continue
		}
		prevWord = word
		best, score := argmaxSoftmax(logits[i*numLabels : (i+1)*numLabels])
		tagged = append(tagged, wordLabel{word: word, label: labels[best], score: score})
	}

	var entities []entity
	var current *entity
	for _, wl := range tagged {
		prefix, kind := splitLabel(wl.label)
		switch {
		case prefix == "":
			current = nil
		case prefix == "I" && current != nil && current.kind == kind && current.last == wl.word-1:
			current.last = wl.word
			current.scoreTotal += wl.score
			current.words++
		default:
			entities = append(entities, entity{kind: kind, first: wl.word, last: wl.word, scoreTotal: wl.score, words: 1})
			current = &entities[len(entities)-1]
		}
	}

	var matches []privacy.Match
	for _, e := range entities {
		t, ok := entityType(e.kind)
		if !ok {
			continue
		}
		if e.scoreTotal/float64(e.words) < minScore {
			continue
		}
		start := input.Words[e.first].Start
		end := input.Words[e.last].End
		matches = append(matches, privacy.Match{
			Type:       t,
			Value:      text[start:end],
			StartIndex: start,
			EndIndex:   end,
		})
	}
	return matches
}

// splitLabel splits "B-PER" into ("B", "PER"); "O" yields empty strings
func splitLabel(label string) (string, string) {
	prefix, kind, ok := strings.Cut(label, "-")
	if !ok || (prefix != "B" && prefix != "I") {
		return "", ""
	}
	return prefix, kind
}

func entityType(kind string) (privacy.Type, bool) {
	switch kind {
	case "PER", "PERSON":
		return privacy.TypePerson, true
	case "ORG":
		return privacy.TypeOrg, true
	case "LOC", "GPE":
		return privacy.TypeLocation, true
	case "MISC":
		return privacy.TypeMisc, true
	}
	return "", false
}

func argmaxSoftmax(row []float32) (int, float64) {
	best := 0
	for i := range row {
		if row[i] > row[best] {
			best = i
		}
	}

	peak := float64(row[best])
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v) - peak)
	}
	return best, 1 / sum
}
