package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummary(t *testing.T) {
	got := Summary("a@x.com b@y.org 555-123-4567", nil)
	assert.Equal(t, map[Type]int{TypeEmail: 2, TypePhone: 1}, got)
}

func TestSummary_BlankText(t *testing.T) {
	assert.Empty(t, Summary("", nil))
	assert.Empty(t, Summary("   \n\t", nil))
}

func TestSummary_GivenMatches(t *testing.T) {
	got := Summary("ignored", []Match{span(TypePerson, 0, 3), span(TypePerson, 5, 8), span(TypeOrg, 9, 12)})
	assert.Equal(t, map[Type]int{TypePerson: 2, TypeOrg: 1}, got)
}
