package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/approval"
	"github.com/lib/pq"
)

// CampaignRepo implements approval.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, applicant_id, subject, body, recipients, status,
	approver_id, approved_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(s rowScanner) (*domain.Campaign, error) {
	var (
		c          domain.Campaign
		approverID uuid.NullUUID
		approvedAt sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.ApplicantID, &c.Subject, &c.Body, pq.Array(&c.Recipients),
		&c.Status, &approverID, &approvedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if approverID.Valid {
		id := approverID.UUID
		c.ApproverID = &id
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		c.ApprovedAt = &t
	}
	return &c, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, applicant_id, subject, body, recipients, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.ApplicantID, c.Subject, c.Body, pq.Array(c.Recipients), c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, approval.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f approval.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ` WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.ApplicantID != nil {
		args = append(args, *f.ApplicantID)
		where += fmt.Sprintf(" AND applicant_id = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// transitionError tells a missing campaign apart from one that has
// already left pending.
func (r *CampaignRepo) transitionError(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, id uuid.UUID) error {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check campaign: %w", err)
	}
	if !exists {
		return approval.ErrNotFound
	}
	return approval.ErrInvalidTransition
}

func (r *CampaignRepo) UpdateContent(ctx context.Context, id uuid.UUID, subject, body string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET subject = $1, body = $2, updated_at = $3
		WHERE id = $4 AND status = 'pending'
	`, subject, body, at, id)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.transitionError(ctx, r.db, id)
	}
	return nil
}

// Approve flips the campaign to approved and inserts its queue items in
// one transaction. Nothing is written unless both succeed.
func (r *CampaignRepo) Approve(ctx context.Context, id, approver uuid.UUID, at time.Time, items []domain.QueueItem) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin approve: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'approved', approver_id = $1, approved_at = $2, updated_at = $2
		WHERE id = $3 AND status = 'pending'
	`, approver, at, id)
	if err != nil {
		return 0, fmt.Errorf("approve campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, r.transitionError(ctx, tx, id)
	}

	n, err := insertQueueItems(ctx, tx, items)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit approve: %w", err)
	}
	return n, nil
}

func (r *CampaignRepo) Reject(ctx context.Context, id, approver uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'rejected', approver_id = $1, approved_at = $2, updated_at = $2
		WHERE id = $3 AND status = 'pending'
	`, approver, at, id)
	if err != nil {
		return fmt.Errorf("reject campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.transitionError(ctx, r.db, id)
	}
	return nil
}

func (r *CampaignRepo) OldestPending(ctx context.Context) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE status = 'pending' ORDER BY created_at ASC, id ASC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, approval.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("oldest pending campaign: %w", err)
	}
	return c, nil
}
