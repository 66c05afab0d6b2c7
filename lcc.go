/*

lccfilter creates ALEPH style filing keys for Library of Congress call
numbers and filters catalog exports by call number range.

*/
package lccfilter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/transform"
)

// ErrInvalidCallNumber is returned by FilingKey in strict mode when the
// input is not a Library of Congress call number.
var ErrInvalidCallNumber = errors.New("not a valid Library of Congress call number")

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var lccPattern = regexp.MustCompile(`^([a-z]+)([0-9]+)(.*)$`)

// widthMarkers is indexed by the digit count of the class number. Each
// marker sorts below every digit and letter, and ' ' < '!' < '"' < '#'.
var widthMarkers = [...]string{1: " ", 2: "!", 3: "\"", 4: "#"}

// FilingKey creates a filing key for an LCC call number. The key sorts
// correctly against other keys using plain string comparison:
//
//	KF12454.A45 J32 2011 -> kf#12454 a45 j32 2011
//	HV23.C32 1953z       -> hv!23 c32 1953z
//	Z1.A9 T32            -> z 1 a9 t32
//
// Only the class number is width encoded; Cutter numbers and dates are left
// as lowercase text. In strict mode an input without a leading letters and
// digits class, or with a class number of more than four digits, returns
// ErrInvalidCallNumber. Otherwise those inputs return the normalized string,
// with the 4 digit marker for long class numbers.
func FilingKey(raw string, strict bool) (string, error) {
	s := normalize(raw)
	m := lccPattern.FindStringSubmatch(s)
	if m == nil {
		if strict {
			return "", fmt.Errorf("%w: %q", ErrInvalidCallNumber, raw)
		}
		return s, nil
	}
	alpha, digits, rest := m[1], m[2], m[3]
	var marker string
	switch {
	case len(digits) < len(widthMarkers):
		marker = widthMarkers[len(digits)]
	case strict:
		return "", fmt.Errorf("%w: %q", ErrInvalidCallNumber, raw)
	default:
		marker = widthMarkers[len(widthMarkers)-1]
	}
	return alpha + marker + digits + rest, nil
}

// normalize folds punctuation to blanks, collapses whitespace, lowercases
// ASCII letters and trims. Bytes outside ASCII are kept as they are.
func normalize(raw string) string {
	s, _, _ := transform.String(foldASCII{}, raw)
	return strings.Join(strings.Fields(s), " ")
}

// foldASCII maps single bytes. Punctuation and letters are ASCII, so UTF-8
// sequences and invalid bytes pass through untouched.
type foldASCII struct{ transform.NopResetter }

func (foldASCII) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = foldByte(src[nSrc])
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}

func foldByte(b byte) byte {
	switch {
	case strings.IndexByte(punctuation, b) >= 0:
		return ' '
	case 'A' <= b && b <= 'Z':
		return b + 'a' - 'A'
	}
	return b
}
