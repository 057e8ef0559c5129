package datanorm

import (
	"strings"

	"golang.org/x/text/width"
)

// CanonicalField is a normalized import column.
type CanonicalField string

const (
	FieldCompany CanonicalField = "company"
	FieldEmail   CanonicalField = "email"
	FieldFax     CanonicalField = "fax"
)

// columnAliases maps folded, lower-cased header names to canonical fields.
var columnAliases = map[string]CanonicalField{
	"company":      FieldCompany,
	"company_name": FieldCompany,
	"company name": FieldCompany,
	"customer":     FieldCompany,
	"会社名":          FieldCompany,
	"会社":           FieldCompany,
	"企業名":          FieldCompany,
	"顧客名":          FieldCompany,
	"公司":           FieldCompany,
	"회사":           FieldCompany,

	"email":         FieldEmail,
	"e-mail":        FieldEmail,
	"email_address": FieldEmail,
	"email address": FieldEmail,
	"mail":          FieldEmail,
	"メール":           FieldEmail,
	"メールアドレス":       FieldEmail,
	"邮箱":            FieldEmail,
	"이메일":           FieldEmail,

	"fax":        FieldFax,
	"fax_number": FieldFax,
	"fax number": FieldFax,
	"fax番号":      FieldFax,
	"ファックス":      FieldFax,
	"ファクス":       FieldFax,
	"传真":         FieldFax,
	"팩스":         FieldFax,
}

// ColumnMapping holds the source column index of each canonical field,
// -1 when the column is missing.
type ColumnMapping struct {
	Company int
	Email   int
	Fax     int
}

// MapColumns resolves header names. It returns nil when neither an email
// nor a fax column is present, since such a file can never yield a contact.
func MapColumns(header []string) *ColumnMapping {
	m := &ColumnMapping{Company: -1, Email: -1, Fax: -1}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(width.Fold.String(h)))
		switch columnAliases[key] {
		case FieldCompany:
			if m.Company < 0 {
				m.Company = i
			}
		case FieldEmail:
			if m.Email < 0 {
				m.Email = i
			}
		case FieldFax:
			if m.Fax < 0 {
				m.Fax = i
			}
		}
	}
	if m.Email < 0 && m.Fax < 0 {
		return nil
	}
	return m
}

func (m *ColumnMapping) get(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
