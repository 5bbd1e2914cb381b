package enrichment

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/workdatahub/workdatahub/internal/warehouse"
)

// IndexEntry is one row of the warehouse-side enrichment_index cache.
type IndexEntry struct {
	LookupKey  string
	LookupType string
	CompanyID  string
	Confidence float64
	Source     string
}

// IndexStore reads and writes enrichment_index. Writes are idempotent
// upserts on (lookup_key, lookup_type): the async resolver job shares
// the table.
type IndexStore struct {
	db warehouse.DB

	mu   sync.Mutex
	hits *errgroup.Group
}

// NewIndexStore creates a store over an open pool. Hit-count updates run
// asynchronously with bounded concurrency so lookups never wait on them.
func NewIndexStore(db warehouse.DB) *IndexStore {
	g := &errgroup.Group{}
	g.SetLimit(4)
	return &IndexStore{db: db, hits: g}
}

const indexLookupSQL = `
SELECT company_id, confidence, source
FROM enrichment_index
WHERE lookup_type = $1 AND lookup_key = $2`

// Lookup queries the cache by (lookupType, lookupKey). A miss returns
// (nil, nil).
func (s *IndexStore) Lookup(ctx context.Context, lookupType, lookupKey string) (*IndexEntry, error) {
	entry := IndexEntry{LookupKey: lookupKey, LookupType: lookupType}
	err := s.db.QueryRow(ctx, indexLookupSQL, lookupType, lookupKey).
		Scan(&entry.CompanyID, &entry.Confidence, &entry.Source)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "enrichment: index lookup %s/%s", lookupType, lookupKey)
	}
	return &entry, nil
}

const indexHitSQL = `
UPDATE enrichment_index
SET hit_count = hit_count + 1, last_hit_at = now()
WHERE lookup_type = $1 AND lookup_key = $2`

// RecordHit bumps hit_count and last_hit_at asynchronously. Failures are
// logged, never surfaced: the cache row itself already served the lookup.
func (s *IndexStore) RecordHit(lookupType, lookupKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits.Go(func() error {
		if _, err := s.db.Exec(context.Background(), indexHitSQL, lookupType, lookupKey); err != nil {
			zap.L().Warn("enrichment: hit-count update failed",
				zap.String("lookup_type", lookupType),
				zap.String("lookup_key", lookupKey),
				zap.Error(err),
			)
		}
		return nil
	})
}

// Wait blocks until pending hit-count updates finish; called at run end.
func (s *IndexStore) Wait() {
	s.mu.Lock()
	g := s.hits
	s.mu.Unlock()
	_ = g.Wait()
}

const indexUpsertSQL = `
INSERT INTO enrichment_index (lookup_key, lookup_type, company_id, confidence, source, hit_count, last_hit_at)
VALUES ($1, $2, $3, $4, $5, 0, now())
ON CONFLICT (lookup_key, lookup_type)
DO UPDATE SET company_id = EXCLUDED.company_id,
              confidence = EXCLUDED.confidence,
              source     = EXCLUDED.source`

// Upsert writes a resolved mapping into the cache.
func (s *IndexStore) Upsert(ctx context.Context, entry IndexEntry) error {
	_, err := s.db.Exec(ctx, indexUpsertSQL,
		entry.LookupKey, entry.LookupType, entry.CompanyID, entry.Confidence, entry.Source)
	if err != nil {
		return eris.Wrapf(err, "enrichment: index upsert %s/%s", entry.LookupType, entry.LookupKey)
	}
	return nil
}
