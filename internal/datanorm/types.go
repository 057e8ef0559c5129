// Package datanorm turns raw contact import data into comparable values:
// header mapping, email classification and fax normalisation.
package datanorm

// RawContact is one import row before normalisation. Row is the 1-based
// data row number in the source (the header is not counted).
type RawContact struct {
	Row     int    `json:"row"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Fax     string `json:"fax"`
}

// EmailVerdict is the outcome of classifying a raw email field.
type EmailVerdict int

const (
	// EmailAbsent means the field holds no email and does not look like it should.
	EmailAbsent EmailVerdict = iota
	// EmailValid means a well-formed address was extracted.
	EmailValid
	// EmailAmbiguous means the field clearly intends an email but none
	// could be extracted. Imports must abort on it.
	EmailAmbiguous
)

func (v EmailVerdict) String() string {
	switch v {
	case EmailValid:
		return "valid"
	case EmailAmbiguous:
		return "ambiguous"
	default:
		return "absent"
	}
}
