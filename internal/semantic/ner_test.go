package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/aegis-shield/internal/privacy"
)

var testLabels = []string{"O", "B-MISC", "I-MISC", "B-PER", "I-PER", "B-ORG", "I-ORG", "B-LOC", "I-LOC"}

// scriptedRunner emits a confident logit for one label per token
type scriptedRunner struct {
	labels []string
	err    error
	seen   *TokenizedInput
	closed bool
}

func (s *scriptedRunner) Run(_ context.Context, in *TokenizedInput) ([]float32, int, error) {
	s.seen = in
	if s.err != nil {
		return nil, 0, s.err
	}
	logits := make([]float32, len(in.InputIDs)*len(testLabels))
	for i := range in.InputIDs {
		label := "O"
		if i < len(s.labels) {
			label = s.labels[i]
		}
		for j, l := range testLabels {
			if l == label {
				logits[i*len(testLabels)+j] = 10
			}
		}
	}
	return logits, len(testLabels), nil
}

func (s *scriptedRunner) Close() error {
	s.closed = true
	return nil
}

func TestNER_Detect(t *testing.T) {
	text := "Ada Lovelace visited Paris"
	// [CLS] ada love ##lace visited paris [SEP]
	runner := &scriptedRunner{labels: []string{"O", "B-PER", "I-PER", "O", "O", "B-LOC", "O"}}
	ner := NewNER(newTestTokenizer(t, 32), runner, testLabels, 0.5)

	matches, err := ner.Detect(context.Background(), text)
	require.NoError(t, err)
	require.NotNil(t, runner.seen)
	assert.Len(t, runner.seen.InputIDs, 7)

	assert.Equal(t, []privacy.Match{
		{Type: privacy.TypePerson, Value: "Ada Lovelace", StartIndex: 0, EndIndex: 12},
		{Type: privacy.TypeLocation, Value: "Paris", StartIndex: 21, EndIndex: 26},
	}, matches)

	require.NoError(t, ner.Close())
	assert.True(t, runner.closed)
}

func TestNER_MinScore(t *testing.T) {
	runner := &scriptedRunner{labels: []string{"O", "B-PER", "I-PER", "O", "O", "B-LOC", "O"}}
	ner := NewNER(newTestTokenizer(t, 32), runner, testLabels, 0.9999)

	matches, err := ner.Detect(context.Background(), "Ada Lovelace visited Paris")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestNER_DanglingInsideStartsEntity(t *testing.T) {
	// I-ORG after O, then I-PER after I-ORG
	runner := &scriptedRunner{labels: []string{"O", "I-ORG", "I-PER", "O", "O", "O", "O"}}
	ner := NewNER(newTestTokenizer(t, 32), runner, testLabels, 0.5)

	matches, err := ner.Detect(context.Background(), "Ada Lovelace visited Paris")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, privacy.TypeOrg, matches[0].Type)
	assert.Equal(t, "Ada", matches[0].Value)
	assert.Equal(t, privacy.TypePerson, matches[1].Type)
	assert.Equal(t, "Lovelace", matches[1].Value)
}

func TestNER_RunnerError(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("session lost")}
	ner := NewNER(newTestTokenizer(t, 32), runner, testLabels, 0.5)

	_, err := ner.Detect(context.Background(), "Ada")
	assert.ErrorIs(t, err, ErrInferenceFailed)
}

func TestNER_LabelMismatch(t *testing.T) {
	runner := &scriptedRunner{}
	ner := NewNER(newTestTokenizer(t, 32), runner, []string{"O", "B-PER", "I-PER"}, 0.5)

	_, err := ner.Detect(context.Background(), "Ada")
	assert.ErrorIs(t, err, ErrInferenceFailed)
}

func TestNER_EmptyText(t *testing.T) {
	runner := &scriptedRunner{}
	ner := NewNER(newTestTokenizer(t, 32), runner, testLabels, 0.5)

	matches, err := ner.Detect(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Nil(t, runner.seen)
}
