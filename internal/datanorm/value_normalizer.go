package datanorm

import (
	"strings"

	"golang.org/x/text/width"
)

// DefaultCountryCode is stripped from internationally written fax numbers.
const DefaultCountryCode = "81"

// faxWords are label prefixes seen in fax cells, longest first so that
// "telefax" is not cut down to "tele".
var faxWords = []string{
	"ファクシミリ", "telefax", "телефакс", "ファックス", "ファクス",
	"fax番号", "fax", "факс", "传真", "傳真", "팩스",
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	return strings.Trim(email, "\"'<>")
}

// NormalizeFax reduces a fax value to a comparable form. Full-width
// characters are folded, label words in any case or script are dropped,
// a leading "+" (or "00") with the country code is removed, and leading
// zeros are trimmed, so "FAX:03-1234-5678", "+81-3-1234-5678" and
// "ＦＡＸ０３-１２３４-５６７８" all become "3-1234-5678".
func NormalizeFax(raw, countryCode string) string {
	s := strings.TrimSpace(width.Fold.String(raw))
	s = stripFaxWords(s)

	international := strings.HasPrefix(s, "+")
	if !international && countryCode != "" && strings.HasPrefix(s, "00"+countryCode) {
		international = true
		s = strings.TrimPrefix(s, "00")
	}
	if international {
		s = strings.TrimPrefix(s, "+")
		if countryCode != "" {
			s = strings.TrimPrefix(s, countryCode)
		}
		s = strings.TrimLeft(s, " -.")
		s = strings.TrimPrefix(s, "(0)")
		s = strings.TrimLeft(s, " -.")
	}

	s = strings.TrimLeft(s, "0")
	return strings.TrimSpace(s)
}

func stripFaxWords(s string) string {
	for {
		matched := false
		for _, w := range faxWords {
			if len(s) >= len(w) && strings.EqualFold(s[:len(w)], w) {
				s = strings.TrimLeft(s[len(w):], " :.#)")
				matched = true
				break
			}
		}
		if !matched {
			return s
		}
	}
}
