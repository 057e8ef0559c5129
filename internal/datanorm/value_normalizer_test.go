package datanorm

import (
	"testing"

	"pgregory.net/rapid"
)

func TestNormalizeFax(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"555-1000", "555-1000"},
		{"FAX:03-1234-5678", "3-1234-5678"},
		{"fax 03-1234-5678", "3-1234-5678"},
		{"Fax.03-1234-5678", "3-1234-5678"},
		{"+81-3-1234-5678", "3-1234-5678"},
		{"+81 (0)3-1234-5678", "3-1234-5678"},
		{"0081-3-1234-5678", "3-1234-5678"},
		{"ＦＡＸ０３－１２３４－５６７８", "3-1234-5678"},
		{"ファックス：03-1234-5678", "3-1234-5678"},
		{"ファクス 03-1234-5678", "3-1234-5678"},
		{"传真 010-8888-9999", "10-8888-9999"},
		{"팩스 02-123-4567", "2-123-4567"},
		{"Fax fax 06-1111-2222", "6-1111-2222"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeFax(tt.raw, DefaultCountryCode); got != tt.want {
			t.Errorf("NormalizeFax(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeFax_OtherCountryCodeKept(t *testing.T) {
	// Only the configured country code is stripped.
	if got := NormalizeFax("+1-212-555-0100", DefaultCountryCode); got != "1-212-555-0100" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeFax("+1-212-555-0100", "1"); got != "212-555-0100" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeFax_NationalAndInternationalAgree(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		national := rapid.StringMatching(`[1-9][0-9]{0,3}-[0-9]{2,4}-[0-9]{4}`).Draw(t, "national")
		sep := rapid.SampledFrom([]string{"", "-", " "}).Draw(t, "sep")
		label := rapid.SampledFrom([]string{"", "FAX:", "fax ", "ファックス "}).Draw(t, "label")

		domestic := NormalizeFax(label+"0"+national, DefaultCountryCode)
		intl := NormalizeFax(label+"+81"+sep+national, DefaultCountryCode)
		if domestic != intl {
			t.Fatalf("domestic %q != international %q", domestic, intl)
		}
		if again := NormalizeFax(domestic, DefaultCountryCode); again != domestic {
			t.Fatalf("not idempotent: %q -> %q", domestic, again)
		}
	})
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  <John.Doe@Example.COM> "); got != "john.doe@example.com" {
		t.Errorf("got %q", got)
	}
}
