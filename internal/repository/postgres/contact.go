package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
	"github.com/lib/pq"
)

// ContactRepo is the contact store: contact.Repository for the API,
// dedup.Store for imports and dispatch.ContactResolver plus
// dispatch.UnreadRefresher for sending.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = `id, company, email, fax, fax_status, unsubscribed, has_unread, created_at`

func scanContact(s rowScanner) (*domain.Contact, error) {
	var (
		c          domain.Contact
		email, fax sql.NullString
	)
	if err := s.Scan(&c.ID, &c.Company, &email, &fax, &c.FaxStatus, &c.Unsubscribed, &c.HasUnread, &c.CreatedAt); err != nil {
		return nil, err
	}
	if email.Valid {
		c.Email = &email.String
	}
	if fax.Valid {
		c.Fax = &fax.String
	}
	return &c, nil
}

func (r *ContactRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// FindByEmail returns nil, nil when no contact has the address.
func (r *ContactRepo) FindByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE email = $1 ORDER BY created_at ASC LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find contact by email: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) List(ctx context.Context, f contact.ListFilter) ([]domain.Contact, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND (company ILIKE $%d OR email ILIKE $%d)", len(args), len(args))
	}
	if f.Unsubscribed != nil {
		args = append(args, *f.Unsubscribed)
		where += fmt.Sprintf(" AND unsubscribed = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	q := `SELECT ` + contactColumns + ` FROM contacts` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *ContactRepo) SetUnsubscribed(ctx context.Context, id uuid.UUID, unsubscribed bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE contacts SET unsubscribed = $1 WHERE id = $2`, unsubscribed, id)
	if err != nil {
		return fmt.Errorf("set unsubscribed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) ExistingEmails(ctx context.Context, emails []string) (map[string]bool, error) {
	return r.existing(ctx, `SELECT email FROM contacts WHERE email = ANY($1)`, emails)
}

func (r *ContactRepo) ExistingFaxes(ctx context.Context, faxes []string) (map[string]bool, error) {
	return r.existing(ctx, `SELECT fax FROM contacts WHERE fax = ANY($1)`, faxes)
}

func (r *ContactRepo) existing(ctx context.Context, q string, values []string) (map[string]bool, error) {
	out := make(map[string]bool, len(values))
	if len(values) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, q, pq.Array(values))
	if err != nil {
		return nil, fmt.Errorf("lookup existing contacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan existing contact: %w", err)
		}
		out[v] = true
	}
	return out, rows.Err()
}

// InsertBatch writes contacts in one multi-row statement.
func (r *ContactRepo) InsertBatch(ctx context.Context, contacts []domain.Contact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(contacts)*6)
	for _, c := range contacts {
		faxStatus := c.FaxStatus
		if faxStatus == "" {
			faxStatus = domain.FaxActive
		}
		args = append(args, c.ID, c.Company, c.Email, c.Fax, faxStatus, c.Unsubscribed)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, company, email, fax, fax_status, unsubscribed)
		VALUES `+placeholders(len(contacts), 6), args...)
	if err != nil {
		return 0, fmt.Errorf("insert contacts: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RefreshUnread recomputes has_unread from the conversation history.
func (r *ContactRepo) RefreshUnread(ctx context.Context, contactID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET has_unread = EXISTS (SELECT 1 FROM conversations WHERE contact_id = $1 AND read = false)
		WHERE id = $1
	`, contactID)
	if err != nil {
		return fmt.Errorf("refresh unread flag: %w", err)
	}
	return nil
}
