package dedup

import (
	"context"
	"fmt"

	"github.com/ignite/campaign-dispatch/internal/datanorm"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

const (
	DefaultInsertBatchSize = 50
	maxInsertBatchSize     = 100
)

// ContactWriter persists accepted contacts.
type ContactWriter interface {
	InsertBatch(ctx context.Context, contacts []domain.Contact) (int, error)
}

// Store is what the importer needs from the contact store.
type Store interface {
	ContactIndex
	ContactWriter
}

// ImportReport summarises one import.
type ImportReport struct {
	Total        int        `json:"total"`
	Inserted     int        `json:"inserted"`
	EmailDropped int        `json:"email_dropped"`
	Rejected     []Decision `json:"rejected"`
}

// Importer resolves an import and writes the accepted rows.
type Importer struct {
	engine    *Engine
	writer    ContactWriter
	batchSize int
	log       *logger.Logger
}

// NewImporter creates an importer. batchSize is clamped to [50, 100].
func NewImporter(store Store, opts Options, batchSize int) *Importer {
	if batchSize < DefaultInsertBatchSize {
		batchSize = DefaultInsertBatchSize
	}
	if batchSize > maxInsertBatchSize {
		batchSize = maxInsertBatchSize
	}
	return &Importer{
		engine:    NewEngine(store, opts),
		writer:    store,
		batchSize: batchSize,
		log:       logger.Named("dedup.Importer"),
	}
}

// Import resolves rows and inserts accepted contacts batch by batch.
// Validation errors return before anything is written. A write error
// stops the import; batches already written stay written and the report
// counts them.
func (im *Importer) Import(ctx context.Context, rows []datanorm.RawContact) (*ImportReport, error) {
	res, err := im.engine.Resolve(ctx, rows)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{Total: len(rows), Rejected: res.Rejected()}
	for _, d := range res.Decisions {
		if d.Accepted && d.EmailDropped {
			report.EmailDropped++
		}
	}

	accepted := res.Accepted()
	for start := 0; start < len(accepted); start += im.batchSize {
		end := min(start+im.batchSize, len(accepted))
		n, err := im.writer.InsertBatch(ctx, accepted[start:end])
		report.Inserted += n
		if err != nil {
			return report, fmt.Errorf("insert contacts %d-%d: %w", start, end, err)
		}
	}

	im.log.Info("import finished",
		"total", report.Total,
		"inserted", report.Inserted,
		"email_dropped", report.EmailDropped,
		"rejected", len(report.Rejected))
	return report, nil
}
