package enrichment

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/workdatahub/workdatahub/internal/warehouse"
)

// Queue request statuses. pending moves to processing, then done or
// failed; the
// transitions beyond pending belong to the async resolver job.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// QueueStore owns pending inserts into enrichment_requests. A partial
// unique index on normalized_name WHERE status IN (pending, processing)
// guarantees at most one active request per name.
type QueueStore struct {
	db warehouse.DB
}

// NewQueueStore creates a store over an open pool.
func NewQueueStore(db warehouse.DB) *QueueStore {
	return &QueueStore{db: db}
}

const enqueueSQL = `
INSERT INTO enrichment_requests (raw_name, normalized_name, temp_id, status, attempts)
VALUES ($1, $2, $3, 'pending', 0)
ON CONFLICT (normalized_name) WHERE status IN ('pending', 'processing')
DO NOTHING`

// EnqueuePending inserts a pending request unless an active one already
// exists for the normalized name. Returns true when a new row was added.
func (s *QueueStore) EnqueuePending(ctx context.Context, rawName, normalizedName, tempID string) (bool, error) {
	tag, err := s.db.Exec(ctx, enqueueSQL, rawName, normalizedName, tempID)
	if err != nil {
		return false, eris.Wrapf(err, "enrichment: enqueue %q", normalizedName)
	}
	return tag.RowsAffected() > 0, nil
}

const queueDepthSQL = `
SELECT count(*) FROM enrichment_requests WHERE status IN ('pending', 'processing')`

// Depth counts active queue rows.
func (s *QueueStore) Depth(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, queueDepthSQL).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "enrichment: queue depth")
	}
	return n, nil
}
