package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/aegis-shield/internal/privacy"
)

func TestHeuristic_Detect(t *testing.T) {
	text := "Dr. Jane Smith met Mr Brown at Globex Corporation in London."

	matches, err := NewHeuristic().Detect(context.Background(), text)
	require.NoError(t, err)

	want := []struct {
		typ   privacy.Type
		value string
	}{
		{privacy.TypePerson, "Jane Smith"},
		{privacy.TypePerson, "Brown"},
		{privacy.TypeOrg, "Globex Corporation"},
		{privacy.TypeLocation, "London"},
	}

	require.Len(t, matches, len(want))
	for i, w := range want {
		assert.Equal(t, w.typ, matches[i].Type)
		assert.Equal(t, w.value, matches[i].Value)
		assert.Equal(t, w.value, text[matches[i].StartIndex:matches[i].EndIndex])
	}
}

func TestHeuristic_Locations(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"flying to New York tomorrow", "New York"},
		{"a walk near London Bridge", "London"},
		{"she moved from Paris", "Paris"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			matches, err := NewHeuristic().Detect(context.Background(), tt.text)
			require.NoError(t, err)
			require.Len(t, matches, 1)
			assert.Equal(t, privacy.TypeLocation, matches[0].Type)
			assert.Equal(t, tt.want, matches[0].Value)
		})
	}
}

func TestHeuristic_NoCues(t *testing.T) {
	matches, err := NewHeuristic().Detect(context.Background(), "we met at Noon in Someplace with smith")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestHeuristic_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHeuristic().Detect(ctx, "Dr. Who")
	assert.ErrorIs(t, err, context.Canceled)
}
