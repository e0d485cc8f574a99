package privacy

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// invisibleRunes are format and filler code points that render as nothing but
// split tokens or carry hidden payloads (tag block steganography).
var invisibleRunes = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x00AD, Hi: 0x00AD, Stride: 1}, // soft hyphen
		{Lo: 0x034F, Hi: 0x034F, Stride: 1}, // combining grapheme joiner
		{Lo: 0x061C, Hi: 0x061C, Stride: 1}, // arabic letter mark
		{Lo: 0x115F, Hi: 0x1160, Stride: 1}, // hangul choseong/jungseong fillers
		{Lo: 0x17B4, Hi: 0x17B5, Stride: 1}, // khmer inherent vowels
		{Lo: 0x200B, Hi: 0x200D, Stride: 1}, // zero-width space, non-joiner, joiner
		{Lo: 0x2060, Hi: 0x2060, Stride: 1}, // word joiner
		{Lo: 0x3000, Hi: 0x3000, Stride: 1}, // ideographic space
		{Lo: 0x303F, Hi: 0x303F, Stride: 1}, // ideographic half fill space
		{Lo: 0x3164, Hi: 0x3164, Stride: 1}, // hangul filler
		{Lo: 0xFEFF, Hi: 0xFEFF, Stride: 1}, // byte order mark
		{Lo: 0xFFA0, Hi: 0xFFA0, Stride: 1}, // halfwidth hangul filler
	},
	R32: []unicode.Range32{
		{Lo: 0xE0000, Hi: 0xE007F, Stride: 1}, // tags block
	},
}

func isInvisible(r rune) bool {
	return unicode.Is(invisibleRunes, r)
}

// Sanitize strips invisible code points. No other byte is altered: invalid
// UTF-8 passes through as is. Offsets of matches detected afterwards refer to
// the sanitized string.
func Sanitize(text string) string {
	if !ContainsInvisible(text) {
		return text
	}

	// invisibleFilter never returns a terminal error
	out, _, _ := transform.String(invisibleFilter{}, text)
	return out
}

// invisibleFilter drops invisible runes and copies everything else verbatim.
// runes.Remove would rewrite invalid bytes to U+FFFD.
type invisibleFilter struct{ transform.NopResetter }

func (invisibleFilter) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if !atEOF && !utf8.FullRune(src[nSrc:]) {
			return nDst, nSrc, transform.ErrShortSrc
		}

		r, size := utf8.DecodeRune(src[nSrc:])
		if isInvisible(r) {
			nSrc += size
			continue
		}
		if nDst+size > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], src[nSrc:nSrc+size])
		nSrc += size
	}
	return nDst, nSrc, nil
}

// ContainsInvisible reports whether Sanitize would change text
func ContainsInvisible(text string) bool {
	return strings.IndexFunc(text, isInvisible) >= 0
}
