package privacy

import "regexp"

// patterns is the structural pattern library in category-declaration order.
// Detection output follows this order.
var patterns = []Pattern{
	{
		Type:   TypeEmail,
		Regexp: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	},
	{
		// US formats: 555-123-4567, (555) 123-4567, +1.555.123.4567
		Type:   TypePhone,
		Regexp: regexp.MustCompile(`(\+1[-.]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	},
	{
		Type:   TypeSSN,
		Regexp: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		Type:     TypeCreditCard,
		Regexp:   regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b|\b\d{13,19}\b`),
		Validate: validCreditCard,
	},
	{
		Type:   TypeZipCode,
		Regexp: regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`),
	},
	{
		Type:     TypeIPAddress,
		Regexp:   regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		Validate: ValidIPv4,
	},
	{
		Type:   TypeDate,
		Regexp: regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
	},
}

// placeholders is the canonical category to token table
var placeholders = map[Type]string{
	TypeEmail:      "[EMAIL]",
	TypePhone:      "[PHONE]",
	TypeSSN:        "[SSN]",
	TypeCreditCard: "[CARD]",
	TypeZipCode:    "[ZIP]",
	TypeIPAddress:  "[IP]",
	TypeDate:       "[DATE]",
	TypePerson:     "[NAME]",
	TypeOrg:        "[ORG]",
	TypeLocation:   "[LOCATION]",
	TypeMisc:       "[MISC]",
}

// Patterns returns a copy of the pattern library
func Patterns() []Pattern {
	out := make([]Pattern, len(patterns))
	copy(out, patterns)
	return out
}

// StructuralTypes returns the structural categories in declaration order
func StructuralTypes() []Type {
	types := make([]Type, len(patterns))
	for i, p := range patterns {
		types[i] = p.Type
	}
	return types
}
