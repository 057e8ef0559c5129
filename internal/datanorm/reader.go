package datanorm

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrNoContactColumns is returned when a header has neither an email nor a
// fax column.
var ErrNoContactColumns = errors.New("no email or fax column in header")

// ReadContacts maps a CSV stream onto RawContact rows. Only header mapping
// happens here; values are left as typed so the dedup engine can classify
// them.
func ReadContacts(r io.Reader) ([]RawContact, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	mapping := MapColumns(header)
	if mapping == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoContactColumns, header)
	}

	var out []RawContact
	for row := 1; ; row++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		out = append(out, RawContact{
			Row:     row,
			Company: mapping.get(rec, mapping.Company),
			Email:   mapping.get(rec, mapping.Email),
			Fax:     mapping.get(rec, mapping.Fax),
		})
	}
	return out, nil
}

// stripBOM drops a leading UTF-8 byte order mark.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		br.Discard(3)
	}
	return br
}
