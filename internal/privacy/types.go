package privacy

import (
	"errors"
	"regexp"
	"sort"
)

// Type is the category tag of a detected entity
type Type string

// Structural categories produced by the pattern library
const (
	TypeEmail      Type = "email"
	TypePhone      Type = "phone"
	TypeSSN        Type = "ssn"
	TypeCreditCard Type = "creditCard"
	TypeZipCode    Type = "zipCode"
	TypeIPAddress  Type = "ipAddress"
	TypeDate       Type = "date"
)

// Semantic categories produced by an entity-recognition source
const (
	TypePerson   Type = "person"
	TypeOrg      Type = "org"
	TypeLocation Type = "location"
	TypeMisc     Type = "misc"
)

// ErrNothingToRestore is returned when a restore is attempted without a mapping.
var ErrNothingToRestore = errors.New("no mapping to restore from, scrub a prompt first")

// Match is one detected occurrence. StartIndex and EndIndex are byte offsets
// into the UTF-8 encoding of the scanned string, forming the half-open span
// [StartIndex, EndIndex). They are not rune or UTF-16 code unit indexes, so a
// JavaScript client must slice the UTF-8 bytes (TextEncoder) rather than the
// string itself when any text before the match is non-ASCII.
type Match struct {
	Type       Type   `json:"type"`
	Value      string `json:"value"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
}

// Len returns the span length in bytes
func (m Match) Len() int {
	return m.EndIndex - m.StartIndex
}

// Pattern is a typed matcher in the pattern library
type Pattern struct {
	Type     Type
	Regexp   *regexp.Regexp
	Validate func(candidate string) bool
}

// Mapping maps a placeholder token to the original value it replaced
type Mapping map[string]string

// Placeholders returns the mapping keys in sorted order
func (m Mapping) Placeholders() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ScrubResult contains the output of a reversible scrub
type ScrubResult struct {
	Scrubbed string  `json:"scrubbed"`
	Mapping  Mapping `json:"mapping"`
	Matches  []Match `json:"-"` // Never serialize original values alongside scrubbed text
}
