package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
)

// queueInsertChunk keeps multi-row inserts well under the 65535
// parameter limit.
const queueInsertChunk = 500

// QueueRepo implements queue.Store and dispatch.Store against PostgreSQL.
type QueueRepo struct{ db *sql.DB }

// NewQueueRepo creates a Postgres-backed queue repository.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

// InsertItems inserts items, ignoring (campaign_id, recipient) pairs that
// already exist.
func (r *QueueRepo) InsertItems(ctx context.Context, items []domain.QueueItem) (int, error) {
	return insertQueueItems(ctx, r.db, items)
}

func insertQueueItems(ctx context.Context, db execer, items []domain.QueueItem) (int, error) {
	total := 0
	for start := 0; start < len(items); start += queueInsertChunk {
		chunk := items[start:min(start+queueInsertChunk, len(items))]
		args := make([]any, 0, len(chunk)*8)
		for _, it := range chunk {
			args = append(args, it.ID, it.CampaignID, it.Recipient, it.Subject, it.Body,
				it.Status, it.RetryCount, it.CreatedAt)
		}
		res, err := db.ExecContext(ctx, `
			INSERT INTO queue_items (id, campaign_id, recipient, subject, body, status, retry_count, created_at)
			VALUES `+placeholders(len(chunk), 8)+`
			ON CONFLICT (campaign_id, recipient) DO NOTHING
		`, args...)
		if err != nil {
			return total, fmt.Errorf("insert queue items: %w", err)
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}
	return total, nil
}

func (r *QueueRepo) ReclaimStale(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = 'pending', processed_at = NULL
		WHERE status = 'processing' AND processed_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Claim selects and flips eligible items in one statement. SKIP LOCKED
// keeps concurrent passes from blocking on each other, and the status
// guard on the outer UPDATE makes the flip a compare-and-swap.
func (r *QueueRepo) Claim(ctx context.Context, limit, maxRetries int, now time.Time) ([]domain.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH claimed AS (
			UPDATE queue_items q
			SET status = 'processing', processed_at = $1
			WHERE q.id IN (
				SELECT id FROM queue_items
				WHERE status IN ('pending', 'failed') AND retry_count <= $2
				ORDER BY created_at ASC
				LIMIT $3
				FOR UPDATE SKIP LOCKED
			)
			AND q.status IN ('pending', 'failed')
			RETURNING q.id, q.campaign_id, q.recipient, q.subject, q.body, q.status,
			          q.retry_count, q.error_message, q.created_at, q.processed_at
		)
		SELECT c.id, c.campaign_id, c.recipient, c.subject, c.body, c.status,
		       c.retry_count, c.error_message, c.created_at, c.processed_at, camp.applicant_id
		FROM claimed c
		JOIN campaigns camp ON camp.id = c.campaign_id
		ORDER BY c.created_at ASC
	`, now, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("claim queue items: %w", err)
	}
	defer rows.Close()

	var out []domain.QueueItem
	for rows.Next() {
		var (
			it          domain.QueueItem
			errMsg      sql.NullString
			processedAt sql.NullTime
		)
		if err := rows.Scan(&it.ID, &it.CampaignID, &it.Recipient, &it.Subject, &it.Body, &it.Status,
			&it.RetryCount, &errMsg, &it.CreatedAt, &processedAt, &it.ApplicantID); err != nil {
			return nil, fmt.Errorf("scan claimed item: %w", err)
		}
		if errMsg.Valid {
			it.ErrorMessage = &errMsg.String
		}
		if processedAt.Valid {
			it.ProcessedAt = &processedAt.Time
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *QueueRepo) MarkSent(ctx context.Context, id uuid.UUID, messageID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = 'sent', message_id = $2, processed_at = $3, error_message = NULL
		WHERE id = $1 AND status = 'processing'
	`, id, messageID, at)
	if err != nil {
		return false, fmt.Errorf("mark item sent: %w", err)
	}
	return transitioned(res)
}

func (r *QueueRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string, permanent bool, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = 'failed',
		    error_message = $2,
		    processed_at = $3,
		    retry_count = CASE WHEN $4 THEN GREATEST(retry_count + 1, $5) ELSE retry_count + 1 END
		WHERE id = $1 AND status = 'processing'
	`, id, reason, at, permanent, domain.MaxRetries+1)
	if err != nil {
		return false, fmt.Errorf("mark item failed: %w", err)
	}
	return transitioned(res)
}

// Release hands a claimed item back without spending a retry.
func (r *QueueRepo) Release(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = 'pending', processed_at = NULL
		WHERE id = $1 AND status = 'processing'
	`, id)
	if err != nil {
		return false, fmt.Errorf("release item: %w", err)
	}
	return transitioned(res)
}

// transitioned reports whether a guarded single-row update matched.
func transitioned(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *QueueRepo) Progress(ctx context.Context, campaignID uuid.UUID, maxRetries int) (*domain.QueueProgress, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COUNT(*) FILTER (WHERE status = 'failed' AND retry_count > $2)
		FROM queue_items
		WHERE campaign_id = $1
		GROUP BY status
	`, campaignID, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("queue progress: %w", err)
	}
	defer rows.Close()

	p := &domain.QueueProgress{CampaignID: campaignID}
	for rows.Next() {
		var (
			status           domain.QueueItemStatus
			count, exhausted int
		)
		if err := rows.Scan(&status, &count, &exhausted); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		p.Total += count
		p.Exhausted += exhausted
		switch status {
		case domain.QueuePending:
			p.Pending = count
		case domain.QueueProcessing:
			p.Processing = count
		case domain.QueueSent:
			p.Sent = count
		case domain.QueueFailed:
			p.Failed = count
		}
	}
	return p, rows.Err()
}
