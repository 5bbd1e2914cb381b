// Package enrichment resolves every input row to a canonical company id
// through five layers: YAML config, warehouse cache, existing column,
// external lookup, temporary id. Layers form an acyclic cascade: the
// first success wins and no layer calls back into an earlier one.
package enrichment

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/config"
)

// Sources tagged on resolution results.
const (
	SourceYAML     = "yaml"
	SourceDBCache  = "db_cache"
	SourceExisting = "existing"
	SourceEQCAPI   = "eqc_api"
	SourceTempID   = "temp_id"
)

// Request carries the identifying fields of one input row. At least one
// field must be set.
type Request struct {
	PlanCode      string
	CustomerName  string
	AccountName   string
	AccountNumber string
	ExistingID    string
}

func (r Request) empty() bool {
	return r.PlanCode == "" && r.CustomerName == "" && r.AccountName == "" &&
		r.AccountNumber == "" && r.ExistingID == ""
}

// Result is the outcome of resolving one request.
type Result struct {
	CompanyID   string
	Source      string
	MatchType   string
	Confidence  float64
	NeedsReview bool
}

// Stats are the per-run observable counters.
type Stats struct {
	CacheHits        int `json:"cache_hits"`
	YAMLHits         int `json:"yaml_hits"`
	ExistingHits     int `json:"existing_hits"`
	APICalls         int `json:"api_calls"`
	APIBudgetUsed    int `json:"api_budget_used"`
	APIFailures      int `json:"api_failures"`
	TempIDsGenerated int `json:"temp_ids_generated"`
	QueuedNew        int `json:"queued_new"`
	QueueDepthAfter  int `json:"queue_depth_after"`
}

// Resolver runs the five-layer cascade.
type Resolver struct {
	mapping    *config.CompanyMappingStore
	confidence *config.ConfidenceStore
	index      *IndexStore // nil in plan-only runs
	queue      *QueueStore // nil in plan-only runs
	eqc        *EQCClient  // nil when no token is configured
	salt       string

	syncBudget   int
	forceTempIDs bool // --no-enrichment: Layer 5 only

	stats    Stats
	unknowns map[string]int // raw name to occurrence count, for the export
}

// Options configures a resolver for one run.
type Options struct {
	Mapping      *config.CompanyMappingStore
	Confidence   *config.ConfidenceStore
	Index        *IndexStore
	Queue        *QueueStore
	EQC          *EQCClient
	Salt         string
	SyncBudget   int
	ForceTempIDs bool
}

// NewResolver creates a resolver.
func NewResolver(opts Options) (*Resolver, error) {
	if opts.Salt == "" {
		return nil, eris.New("enrichment: salt is required")
	}
	return &Resolver{
		mapping:      opts.Mapping,
		confidence:   opts.Confidence,
		index:        opts.Index,
		queue:        opts.Queue,
		eqc:          opts.EQC,
		salt:         opts.Salt,
		syncBudget:   opts.SyncBudget,
		forceTempIDs: opts.ForceTempIDs,
		unknowns:     make(map[string]int),
	}, nil
}

// Stats returns a snapshot of the run counters.
func (r *Resolver) Stats() Stats { return r.stats }

// Unknowns returns the customer names that fell through to Layer 5 with
// their occurrence counts.
func (r *Resolver) Unknowns() map[string]int { return r.unknowns }

// Resolve runs the cascade for one request. The returned company id is
// always non-empty.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	if req.empty() {
		return nil, eris.New("enrichment: request has no identifying fields")
	}

	if r.forceTempIDs {
		return r.resolveTempID(ctx, req)
	}

	if res := r.resolveYAML(req); res != nil {
		r.stats.YAMLHits++
		return res, nil
	}

	if r.index != nil {
		res, err := r.resolveCache(ctx, req)
		if err != nil {
			return nil, err
		}
		if res != nil {
			r.stats.CacheHits++
			return res, nil
		}
	}

	if req.ExistingID != "" {
		r.stats.ExistingHits++
		return &Result{
			CompanyID:  req.ExistingID,
			Source:     SourceExisting,
			MatchType:  "existing_column",
			Confidence: 0.90,
		}, nil
	}

	if res := r.resolveEQC(ctx, req); res != nil {
		return res, nil
	}

	return r.resolveTempID(ctx, req)
}

// resolveYAML is Layer 1: exact matches in company_mapping.yml, checked
// in lookup-priority order.
func (r *Resolver) resolveYAML(req Request) *Result {
	if r.mapping == nil {
		return nil
	}
	for _, lt := range config.LookupPriority {
		key := r.lookupKey(lt, req)
		if key == "" {
			continue
		}
		if id, ok := r.mapping.Lookup(lt, key); ok {
			return &Result{
				CompanyID:  id,
				Source:     SourceYAML,
				MatchType:  lt,
				Confidence: 1.0,
			}
		}
	}
	return nil
}

// resolveCache is Layer 2: the warehouse enrichment_index, skipping
// entries below the configured confidence floor. Hits bump hit_count
// asynchronously.
func (r *Resolver) resolveCache(ctx context.Context, req Request) (*Result, error) {
	minConf := 0.60
	if r.confidence != nil {
		minConf = r.confidence.MinForCache
	}
	for _, lt := range config.LookupPriority {
		key := r.lookupKey(lt, req)
		if key == "" {
			continue
		}
		entry, err := r.index.Lookup(ctx, lt, key)
		if err != nil {
			return nil, err
		}
		if entry == nil || entry.Confidence < minConf {
			continue
		}
		r.index.RecordHit(lt, key)
		return &Result{
			CompanyID:  entry.CompanyID,
			Source:     SourceDBCache,
			MatchType:  lt,
			Confidence: entry.Confidence,
		}, nil
	}
	return nil, nil
}

// resolveEQC is Layer 4: the external lookup, only while sync budget
// remains. The budget burns on every attempt, successful or not;
// failures fall through to Layer 5.
func (r *Resolver) resolveEQC(ctx context.Context, req Request) *Result {
	if r.eqc == nil || r.eqc.Disabled() || r.syncBudget <= 0 || req.CustomerName == "" {
		return nil
	}

	r.syncBudget--
	r.stats.APICalls++
	r.stats.APIBudgetUsed++

	candidates, err := r.eqc.Search(ctx, req.CustomerName)
	if err != nil {
		r.stats.APIFailures++
		if !eris.Is(err, ErrProviderDisabled) {
			zap.L().Warn("eqc lookup failed",
				zap.String("customer_name", req.CustomerName),
				zap.Error(err),
			)
		}
		return nil
	}

	minConf := 0.60
	if r.confidence != nil {
		minConf = r.confidence.MinForCache
	}

	var best *Candidate
	bestConf := 0.0
	for i := range candidates {
		c := candidates[i]
		conf := r.candidateConfidence(c.Type)
		if conf > bestConf {
			best = &candidates[i]
			bestConf = conf
		}
	}
	if best == nil || bestConf < minConf {
		return nil
	}

	if r.index != nil {
		entry := IndexEntry{
			LookupKey:  req.CustomerName,
			LookupType: config.LookupCustomerName,
			CompanyID:  best.CompanyID,
			Confidence: bestConf,
			Source:     SourceEQCAPI,
		}
		if err := r.index.Upsert(ctx, entry); err != nil {
			zap.L().Warn("eqc result not cached", zap.Error(err))
		}
	}

	return &Result{
		CompanyID:  best.CompanyID,
		Source:     SourceEQCAPI,
		MatchType:  best.Type,
		Confidence: bestConf,
	}
}

// resolveTempID is Layer 5: the stable HMAC identifier plus a pending
// queue row, keyed by the normalized name so reruns never duplicate it.
func (r *Resolver) resolveTempID(ctx context.Context, req Request) (*Result, error) {
	rawName := req.CustomerName
	if rawName == "" {
		rawName = req.AccountName
	}
	if rawName == "" {
		rawName = req.PlanCode + "/" + req.AccountNumber
	}
	normalized := NormalizeName(rawName)
	id := TempID(r.salt, normalized)

	r.stats.TempIDsGenerated++
	r.unknowns[rawName]++

	if r.queue != nil {
		inserted, err := r.queue.EnqueuePending(ctx, rawName, normalized, id)
		if err != nil {
			return nil, err
		}
		if inserted {
			r.stats.QueuedNew++
		}
	}

	return &Result{
		CompanyID:   id,
		Source:      SourceTempID,
		MatchType:   "temp_id",
		Confidence:  0.0,
		NeedsReview: true,
	}, nil
}

func (r *Resolver) candidateConfidence(label string) float64 {
	if r.confidence == nil {
		return 0.70
	}
	return r.confidence.Confidence(label)
}

// lookupKey maps a lookup type to the request field that feeds it.
func (r *Resolver) lookupKey(lookupType string, req Request) string {
	switch lookupType {
	case config.LookupPlanCode:
		return strings.TrimSpace(req.PlanCode)
	case config.LookupAccountName:
		return strings.TrimSpace(req.AccountName)
	case config.LookupAccountNumber:
		return strings.TrimSpace(req.AccountNumber)
	case config.LookupCustomerName:
		return strings.TrimSpace(req.CustomerName)
	case config.LookupPlanCustomer:
		plan := strings.TrimSpace(req.PlanCode)
		cust := strings.TrimSpace(req.CustomerName)
		if plan == "" || cust == "" {
			return ""
		}
		return plan + "|" + cust
	default:
		return ""
	}
}

// FinalizeQueueDepth records the queue depth after the run.
func (r *Resolver) FinalizeQueueDepth(ctx context.Context) {
	if r.queue == nil {
		return
	}
	depth, err := r.queue.Depth(ctx)
	if err != nil {
		zap.L().Warn("queue depth unavailable", zap.Error(err))
		return
	}
	r.stats.QueueDepthAfter = depth
}
