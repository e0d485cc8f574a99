package privacy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrubText_ContactScenario(t *testing.T) {
	got := ScrubText("Contact me at jane@example.com or 555-123-4567, SSN 123-45-6789.")
	assert.Equal(t, "Contact me at [EMAIL] or [PHONE], SSN [SSN].", got)
}

func TestRedact_Idempotent(t *testing.T) {
	inputs := []string{
		"Contact me at jane@example.com or 555-123-4567, SSN 123-45-6789.",
		"card 4111 1111 1111 1111 from 10.0.0.1 on 12/25/2023",
		"nothing sensitive",
		"",
	}

	for _, in := range inputs {
		once := Redact(in, nil)
		assert.Equal(t, once, Redact(once, nil), "input %q", in)
	}
}

func TestRedact_NoMatchesReturnsInput(t *testing.T) {
	text := "just a sentence"
	assert.Equal(t, text, Redact(text, []Match{}))
	assert.Equal(t, text, Redact(text, nil))
}

func TestRedact_ExplicitMatches(t *testing.T) {
	text := "Ada Lovelace wrote to a@b.io"

	got := Redact(text, []Match{
		{Type: TypePerson, StartIndex: 0, EndIndex: 12},
		{Type: TypeEmail, Value: "a@b.io", StartIndex: 22, EndIndex: 28},
	})
	assert.Equal(t, "[NAME] wrote to [EMAIL]", got)
}

func TestRedact_SkipsMatchesThatDoNotFit(t *testing.T) {
	text := "short"

	got := Redact(text, []Match{
		{Type: TypeEmail, StartIndex: 2, EndIndex: 40},
		{Type: TypeSSN, StartIndex: -1, EndIndex: 3},
		{Type: TypeZipCode, StartIndex: 3, EndIndex: 3},
		{Type: TypePhone, Value: "nope", StartIndex: 0, EndIndex: 4},
	})
	assert.Equal(t, text, got)
}

func TestRedact_OverlappingInputResolved(t *testing.T) {
	text := "0123456789abcdef"

	got := Redact(text, []Match{
		{Type: TypeZipCode, StartIndex: 2, EndIndex: 7},
		{Type: TypeCreditCard, StartIndex: 0, EndIndex: 10},
	})
	assert.Equal(t, "[CARD]abcdef", got)
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "[EMAIL]", Placeholder(TypeEmail))
	assert.Equal(t, "[CARD]", Placeholder(TypeCreditCard))
	assert.Equal(t, "[NAME]", Placeholder(TypePerson))
	assert.Equal(t, "[LOCATION]", Placeholder(TypeLocation))
	assert.Equal(t, "[PASSPORT]", Placeholder(Type("passport")))
}

func TestScrubWithMapping_RoundTrip(t *testing.T) {
	text := "Email jane@example.com, call 555-123-4567, SSN 123-45-6789, " +
		"card 4111 1111 1111 1111, from 10.0.0.1 on 12/25/2023 zip 94105."

	res := ScrubWithMapping(text, nil)

	assert.Equal(t, "Email [EMAIL], call [PHONE], SSN [SSN], card [CARD], from [IP] on [DATE] zip [ZIP].", res.Scrubbed)
	assert.Len(t, res.Mapping, 7)

	restored, err := Restore(res.Scrubbed, res.Mapping)
	require.NoError(t, err)
	assert.Equal(t, text, restored)
}

func TestScrubWithMapping_FirstOccurrenceWins(t *testing.T) {
	res := ScrubWithMapping("a@x.com and b@y.org", nil)

	assert.Equal(t, "[EMAIL] and [EMAIL]", res.Scrubbed)
	assert.Equal(t, Mapping{"[EMAIL]": "a@x.com"}, res.Mapping)

	restored, err := Restore(res.Scrubbed, res.Mapping)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com and a@x.com", restored)
}

func TestScrubWithMapping_ZeroWidthEvasion(t *testing.T) {
	text := "mail jane\u200b@example.com now"

	assert.NotContains(t, typesOf(Detect(text)), TypeEmail)
	assert.Equal(t, "mail [EMAIL] now", ScrubText(text))

	res := ScrubWithMapping(text, nil)
	assert.Equal(t, "mail [EMAIL] now", res.Scrubbed)
	assert.Equal(t, "jane@example.com", res.Mapping["[EMAIL]"])
}

func TestScrubWithMapping_ExtraMatches(t *testing.T) {
	text := "Ada Lovelace lives in London, mail ada@example.com"

	res := ScrubWithMapping(text, []Match{
		{Type: TypePerson, StartIndex: 0, EndIndex: 12},
		{Type: TypeLocation, StartIndex: 22, EndIndex: 28},
		// overlaps the email, dropped
		{Type: TypeMisc, StartIndex: 35, EndIndex: 38},
	})

	assert.Equal(t, "[NAME] lives in [LOCATION], mail [EMAIL]", res.Scrubbed)
	assert.Equal(t, Mapping{
		"[NAME]":     "Ada Lovelace",
		"[LOCATION]": "London",
		"[EMAIL]":    "ada@example.com",
	}, res.Mapping)

	require.Len(t, res.Matches, 3)
	assert.Equal(t, []Type{TypePerson, TypeLocation, TypeEmail}, typesOf(res.Matches))
}

func TestScrubWithMapping_NoPII(t *testing.T) {
	res := ScrubWithMapping("hello world", nil)
	assert.Equal(t, "hello world", res.Scrubbed)
	assert.Empty(t, res.Mapping)
	assert.Empty(t, res.Matches)
}

func TestRestore_EmptyMapping(t *testing.T) {
	out, err := Restore("[EMAIL]", nil)
	assert.True(t, errors.Is(err, ErrNothingToRestore))
	assert.Equal(t, "[EMAIL]", out)

	_, err = Restore("[EMAIL]", Mapping{})
	assert.ErrorIs(t, err, ErrNothingToRestore)
}

func TestRestore_UnknownPlaceholdersLeftAlone(t *testing.T) {
	out, err := Restore("[EMAIL] and [PHONE]", Mapping{"[EMAIL]": "a@b.io"})
	require.NoError(t, err)
	assert.Equal(t, "a@b.io and [PHONE]", out)
}

func TestRestore_SortedSubstitution(t *testing.T) {
	// A value containing a later placeholder is substituted again
	out, err := Restore("[EMAIL]", Mapping{"[EMAIL]": "[NAME]", "[NAME]": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob", out)
}

func TestRestore_SkipsEmptyKey(t *testing.T) {
	out, err := Restore("x [ZIP]", Mapping{"": "boom", "[ZIP]": "94105"})
	require.NoError(t, err)
	assert.Equal(t, "x 94105", out)
}

func TestScrubWithMapping_InvalidUTF8RoundTrip(t *testing.T) {
	res := ScrubWithMapping("\xffmail \u200bjane@example.com from caf\xe9\xfe", nil)

	assert.Equal(t, "\xffmail [EMAIL] from caf\xe9\xfe", res.Scrubbed)
	assert.Equal(t, Mapping{"[EMAIL]": "jane@example.com"}, res.Mapping)

	restored, err := Restore(res.Scrubbed, res.Mapping)
	require.NoError(t, err)
	assert.Equal(t, "\xffmail jane@example.com from caf\xe9\xfe", restored)
}
