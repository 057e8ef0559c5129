package dedup

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/datanorm"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/metrics"
)

// RejectReason is the machine code attached to a rejected row.
type RejectReason string

const (
	RejectNoContactMethod      RejectReason = "no_contact_method"
	RejectEmailAndFaxDuplicate RejectReason = "email_and_fax_duplicate"
	RejectEmailDuplicateNoFax  RejectReason = "email_duplicate_no_fax"
)

// DefaultLookupBatchSize bounds how many values go into one existence query.
const DefaultLookupBatchSize = 100

// ContactIndex answers which normalized emails and faxes are already stored.
type ContactIndex interface {
	ExistingEmails(ctx context.Context, emails []string) (map[string]bool, error)
	ExistingFaxes(ctx context.Context, faxes []string) (map[string]bool, error)
}

// Decision is the outcome for one import row.
type Decision struct {
	Row          int            `json:"row"`
	Accepted     bool           `json:"accepted"`
	Reason       RejectReason   `json:"reason,omitempty"`
	EmailDropped bool           `json:"email_dropped,omitempty"`
	Contact      domain.Contact `json:"contact"`
}

// Result lists decisions in source row order.
type Result struct {
	Decisions []Decision `json:"decisions"`
}

// Accepted returns the contacts to persist, in row order.
func (r *Result) Accepted() []domain.Contact {
	var out []domain.Contact
	for _, d := range r.Decisions {
		if d.Accepted {
			out = append(out, d.Contact)
		}
	}
	return out
}

// Rejected returns the rejected decisions, in row order.
func (r *Result) Rejected() []Decision {
	var out []Decision
	for _, d := range r.Decisions {
		if !d.Accepted {
			out = append(out, d)
		}
	}
	return out
}

// Options tunes an Engine.
type Options struct {
	CountryCode     string
	LookupBatchSize int
}

// Engine partitions import rows into accepted and rejected.
type Engine struct {
	index       ContactIndex
	countryCode string
	lookupBatch int
}

// NewEngine creates an engine that checks persisted contacts through index.
func NewEngine(index ContactIndex, opts Options) *Engine {
	if opts.LookupBatchSize <= 0 {
		opts.LookupBatchSize = DefaultLookupBatchSize
	}
	if opts.CountryCode == "" {
		opts.CountryCode = datanorm.DefaultCountryCode
	}
	return &Engine{index: index, countryCode: opts.CountryCode, lookupBatch: opts.LookupBatchSize}
}

type normalized struct {
	row     int
	company string
	email   string
	fax     string
}

// contactSet is the set of emails and faxes a row is compared against.
type contactSet struct {
	emails map[string]bool
	faxes  map[string]bool
}

// Resolve classifies every row. It returns a *ValidationError, and no
// result, when any email field is ambiguous.
func (e *Engine) Resolve(ctx context.Context, rows []datanorm.RawContact) (*Result, error) {
	norm := make([]normalized, 0, len(rows))
	for _, r := range rows {
		n, err := e.normalize(r)
		if err != nil {
			return nil, err
		}
		norm = append(norm, n)
	}

	stored, err := e.loadStored(ctx, norm)
	if err != nil {
		return nil, err
	}
	batch := contactSet{emails: map[string]bool{}, faxes: map[string]bool{}}

	res := &Result{Decisions: make([]Decision, 0, len(norm))}
	for _, n := range norm {
		d := decide(n, stored, batch)
		if d.Accepted {
			if d.Contact.Email != nil {
				batch.emails[*d.Contact.Email] = true
			}
			if d.Contact.Fax != nil {
				batch.faxes[*d.Contact.Fax] = true
			}
		}
		recordDecision(d)
		res.Decisions = append(res.Decisions, d)
	}
	return res, nil
}

func (e *Engine) normalize(r datanorm.RawContact) (normalized, error) {
	n := normalized{row: r.Row, company: r.Company}
	switch c := datanorm.ClassifyEmail(r.Email); c.Verdict {
	case datanorm.EmailValid:
		n.email = c.Address
	case datanorm.EmailAmbiguous:
		return n, &ValidationError{Row: r.Row, Field: "email", Value: r.Email, Err: ErrAmbiguousEmail}
	}
	n.fax = datanorm.NormalizeFax(r.Fax, e.countryCode)
	return n, nil
}

// decide applies the precedence rules against the store, then against the
// batch.
func decide(n normalized, stored, batch contactSet) Decision {
	d := Decision{Row: n.row}
	email, fax := n.email, n.fax
	if email == "" && fax == "" {
		d.Reason = RejectNoContactMethod
		return d
	}

	for _, set := range []contactSet{stored, batch} {
		emailHit := email != "" && set.emails[email]
		faxHit := fax != "" && set.faxes[fax]
		switch {
		case emailHit && faxHit:
			d.Reason = RejectEmailAndFaxDuplicate
			return d
		case emailHit && fax == "":
			d.Reason = RejectEmailDuplicateNoFax
			return d
		case emailHit:
			email = ""
			d.EmailDropped = true
		}
	}

	d.Accepted = true
	d.Contact = domain.Contact{
		ID:        uuid.New(),
		Company:   n.company,
		FaxStatus: domain.FaxActive,
	}
	if email != "" {
		d.Contact.Email = &email
	}
	if fax != "" {
		d.Contact.Fax = &fax
	}
	if d.EmailDropped {
		d.Contact.FaxStatus = domain.FaxInactive
	}
	return d
}

func (e *Engine) loadStored(ctx context.Context, norm []normalized) (contactSet, error) {
	var emails, faxes []string
	seenE, seenF := map[string]bool{}, map[string]bool{}
	for _, n := range norm {
		if n.email != "" && !seenE[n.email] {
			seenE[n.email] = true
			emails = append(emails, n.email)
		}
		if n.fax != "" && !seenF[n.fax] {
			seenF[n.fax] = true
			faxes = append(faxes, n.fax)
		}
	}

	set := contactSet{emails: map[string]bool{}, faxes: map[string]bool{}}
	for _, chunk := range chunks(emails, e.lookupBatch) {
		found, err := e.index.ExistingEmails(ctx, chunk)
		if err != nil {
			return set, fmt.Errorf("lookup existing emails: %w", err)
		}
		for k, v := range found {
			if v {
				set.emails[k] = true
			}
		}
	}
	for _, chunk := range chunks(faxes, e.lookupBatch) {
		found, err := e.index.ExistingFaxes(ctx, chunk)
		if err != nil {
			return set, fmt.Errorf("lookup existing faxes: %w", err)
		}
		for k, v := range found {
			if v {
				set.faxes[k] = true
			}
		}
	}
	return set, nil
}

func chunks(in []string, size int) [][]string {
	var out [][]string
	for len(in) > 0 {
		n := min(size, len(in))
		out = append(out, in[:n])
		in = in[n:]
	}
	return out
}

func recordDecision(d Decision) {
	switch {
	case !d.Accepted:
		metrics.DedupDecisions.WithLabelValues(string(d.Reason)).Inc()
	case d.EmailDropped:
		metrics.DedupDecisions.WithLabelValues("email_dropped").Inc()
	default:
		metrics.DedupDecisions.WithLabelValues("accepted").Inc()
	}
}
