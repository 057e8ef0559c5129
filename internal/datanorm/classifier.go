package datanorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// strictEmail matches local@domain.tld anywhere in free text.
var strictEmail = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`)

// emailSignals mark a field that is meant to hold an email address.
var emailSignals = []string{
	"@", "[at]", "(at)", " at ",
	"mail", "e-mail", "メール", "めーる", "邮箱", "郵箱", "電子郵件", "이메일",
}

// emptyMarkers are placeholders people type instead of leaving a cell blank.
var emptyMarkers = map[string]bool{
	"-": true, "--": true, "—": true, "n/a": true, "na": true, "none": true,
	"null": true, "nil": true, "なし": true, "無し": true, "不明": true, "无": true, "없음": true,
}

// EmailClassification is the result of ClassifyEmail.
type EmailClassification struct {
	Verdict EmailVerdict
	Address string
}

// ClassifyEmail runs a strict extraction pass and then a heuristic pass.
// A match in the strict pass wins and is lower-cased. Otherwise the field
// is ambiguous if it carries an email signal, else absent.
func ClassifyEmail(raw string) EmailClassification {
	s := strings.TrimSpace(width.Fold.String(raw))
	if m := strictEmail.FindString(s); m != "" {
		return EmailClassification{Verdict: EmailValid, Address: NormalizeEmail(m)}
	}

	lower := strings.ToLower(s)
	if lower == "" || emptyMarkers[lower] {
		return EmailClassification{Verdict: EmailAbsent}
	}
	for _, sig := range emailSignals {
		if strings.Contains(lower, sig) {
			return EmailClassification{Verdict: EmailAmbiguous}
		}
	}
	return EmailClassification{Verdict: EmailAbsent}
}
