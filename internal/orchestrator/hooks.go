package orchestrator

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/warehouse"
)

// Hook is one post-ETL action, executed after a successful load.
type Hook interface {
	Name() string
	Run(ctx context.Context, db warehouse.DB) error
}

// HookRegistry holds ordered per-domain hook lists.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[string][]Hook
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[string][]Hook)}
}

// Register appends a hook to a domain's ordered list.
func (r *HookRegistry) Register(domain string, h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[domain] = append(r.hooks[domain], h)
}

// For returns the domain's hooks in registration order.
func (r *HookRegistry) For(domain string) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hooks[domain]
}

// Domains lists domains with registered hooks, sorted.
func (r *HookRegistry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.hooks))
	for n := range r.hooks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// runHooks executes hooks in order, stopping at the first failure. The
// fact load has already committed, so a hook failure degrades the run to
// "succeeded with hook failures" instead of failing it.
func runHooks(ctx context.Context, db warehouse.DB, hooks []Hook) []string {
	var failed []string
	for _, h := range hooks {
		if err := h.Run(ctx, db); err != nil {
			zap.L().Error("post-etl hook failed; remaining hooks skipped",
				zap.String("hook", h.Name()),
				zap.Error(err),
			)
			failed = append(failed, h.Name())
			break
		}
		zap.L().Info("post-etl hook complete", zap.String("hook", h.Name()))
	}
	return failed
}

// SQLHook runs a fixed statement against the warehouse. Used for
// snapshot refreshes that are pure SQL.
type SQLHook struct {
	HookName string
	SQL      string
	Args     []any
}

func (h *SQLHook) Name() string { return h.HookName }

func (h *SQLHook) Run(ctx context.Context, db warehouse.DB) error {
	tag, err := db.Exec(ctx, h.SQL, h.Args...)
	if err != nil {
		return eris.Wrapf(err, "hook %s", h.HookName)
	}
	zap.L().Debug("hook statement executed",
		zap.String("hook", h.HookName),
		zap.Int64("rows_affected", tag.RowsAffected()),
	)
	return nil
}

// snapshotRefreshSQL rebuilds the latest-month plan snapshot from the
// freshly loaded facts.
const snapshotRefreshSQL = `
INSERT INTO "规模明细_快照" ("月度", "计划代码", "company_id", "期末资产规模")
SELECT "月度", "计划代码", "company_id", sum("期末资产规模")
FROM "规模明细"
WHERE "月度" = (SELECT max("月度") FROM "规模明细")
GROUP BY "月度", "计划代码", "company_id"
ON CONFLICT ("月度", "计划代码", "company_id")
DO UPDATE SET "期末资产规模" = EXCLUDED."期末资产规模"`

// RegisterDefaultHooks wires the built-in post-ETL hooks.
func RegisterDefaultHooks(r *HookRegistry) {
	r.Register("annuity_performance", &SQLHook{
		HookName: "refresh_plan_snapshot",
		SQL:      snapshotRefreshSQL,
	})
}
