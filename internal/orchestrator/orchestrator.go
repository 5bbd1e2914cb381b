// Package orchestrator drives one domain run through the execution
// graph: discover, read, process, backfill, load, hooks. All
// domain-specific behavior comes from the registries; this package never
// branches on domain names.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/cleansing"
	"github.com/workdatahub/workdatahub/internal/config"
	"github.com/workdatahub/workdatahub/internal/discovery"
	"github.com/workdatahub/workdatahub/internal/enrichment"
	"github.com/workdatahub/workdatahub/internal/loader"
	"github.com/workdatahub/workdatahub/internal/pipeline"
	"github.com/workdatahub/workdatahub/internal/registry"
	"github.com/workdatahub/workdatahub/internal/validation"
	"github.com/workdatahub/workdatahub/internal/warehouse"

	backfillpkg "github.com/workdatahub/workdatahub/internal/backfill"
)

// RunConfig is one domain run as requested from the CLI.
type RunConfig struct {
	Domain        string
	Period        string
	FileOverride  string
	SheetOverride string
	PlanOnly      bool
	Mode          loader.Mode
	NoEnrichment  bool
	SyncBudget    int // <0 means use the configured default
	MaxFiles      int // 0 means use the configured value
	NoPostHooks   bool
}

// Orchestrator executes domain runs against a loaded configuration.
type Orchestrator struct {
	cfg      *config.Store
	jobs     *registry.JobRegistry
	services *registry.ServiceRegistry
	hooks    *HookRegistry
	rules    *cleansing.Registry
	pool     *warehouse.LazyPool
}

// New wires an orchestrator. The pool stays unopened until a component
// actually needs the warehouse, so plan-only runs never connect.
func New(cfg *config.Store, jobs *registry.JobRegistry, services *registry.ServiceRegistry, hooks *HookRegistry, rules *cleansing.Registry) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		jobs:     jobs,
		services: services,
		hooks:    hooks,
		rules:    rules,
		pool:     warehouse.NewLazyPool(cfg.Settings.DatabaseURI, cfg.Settings.PoolMin, cfg.Settings.PoolMax),
	}
}

// Close releases the pool if it was opened.
func (o *Orchestrator) Close() { o.pool.Close() }

// Run executes one domain run. The summary is returned alongside any
// error and has already been written to the artifact directory.
func (o *Orchestrator) Run(ctx context.Context, rc RunConfig) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		Domain:    rc.Domain,
		Period:    rc.Period,
		StartedAt: time.Now().UTC(),
	}
	err := o.run(ctx, rc, summary)

	summary.FinishedAt = time.Now().UTC()
	if err != nil {
		summary.Status = StatusFailed
		summary.Error = err.Error()
	}
	if path, werr := summary.Write(o.cfg.Settings.ArtifactDir); werr != nil {
		zap.L().Warn("run summary not written", zap.Error(werr))
	} else {
		zap.L().Info("run summary written", zap.String("path", path))
	}

	if err != nil {
		zap.L().Error("run failed", summary.logFields()...)
	} else {
		zap.L().Info("run complete", summary.logFields()...)
	}
	return summary, err
}

func (o *Orchestrator) run(ctx context.Context, rc RunConfig, summary *Summary) error {
	dc, err := o.cfg.DataSources.Domain(rc.Domain)
	if err != nil {
		return fail(StageConfig, err)
	}
	spec, ok := o.jobs.Get(rc.Domain)
	if !ok {
		return fail(StageConfig, eris.Errorf("domain %q has no registered job", rc.Domain))
	}
	entry, ok := o.services.Get(rc.Domain)
	if !ok {
		return fail(StageConfig, eris.Errorf("domain %q has no registered service", rc.Domain))
	}
	if rc.MaxFiles > 0 {
		dc.MaxFiles = rc.MaxFiles
	}
	if dc.MaxFiles > 1 && !spec.MultiFile {
		return fail(StageConfig, eris.Errorf("domain %q does not support multi-file runs", rc.Domain))
	}
	mode := rc.Mode
	if mode == "" {
		mode = loader.ModeUpsert
	}

	// Discover and read.
	disc := discovery.NewService(rc.Domain, dc)
	var dres *discovery.Result
	if rc.FileOverride != "" {
		dres, err = disc.DiscoverFile(rc.FileOverride, rc.SheetOverride)
	} else {
		dres, err = disc.Discover(rc.Period)
	}
	if err != nil {
		return fail(StageDiscovery, err)
	}
	summary.File = dres.FilePath
	summary.Files = dres.FilePaths
	summary.VersionTag = dres.VersionTag
	summary.RowsRead = dres.RowCount

	// Bronze gate.
	svc := entry.Service
	bronze, err := svc.Bronze().Validate(dres.Frame, svc.RowIn())
	if err != nil {
		return fail(StageValidation, err)
	}

	// Enrichment wiring.
	resolver, indexStore, err := o.buildResolver(ctx, rc, dc, spec)
	if err != nil {
		return err
	}

	// Pipeline.
	runCtx := pipeline.NewRunContext(summary.RunID, rc.Domain, rc.Period)
	runCtx.Rejections = append(runCtx.Rejections, bronze.Rejections...)

	steps := svc.Steps(registry.StepDeps{
		Cleansing:     o.rules,
		Resolver:      resolver,
		NoEnrichment:  rc.NoEnrichment,
		OutputColumns: dc.Output.PK,
	})
	runner := pipeline.NewRunner(steps, pipeline.CollectErrors)
	gold, err := runner.Run(ctx, bronze.Frame, runCtx)

	summary.Steps = runCtx.Metrics
	summary.RowsRejected = len(runCtx.Rejections)
	o.exportArtifacts(ctx, rc, dres, runCtx, resolver, indexStore, summary)
	if err != nil {
		return fail(StageProcessing, err)
	}

	// Gold gate.
	if err := svc.Gold().Validate(gold); err != nil {
		return fail(StageValidation, err)
	}

	target := loader.Target{
		Schema:    dc.Output.SchemaName,
		Table:     dc.Output.Table,
		PK:        dc.Output.PK,
		DeleteKey: dc.Output.DeleteKey,
	}

	if rc.PlanOnly {
		plan := loader.PlanOffline(gold, target, mode, o.cfg.Settings.BatchSize)
		summary.PlannedSQL = plan.PlannedSQL
		summary.Batches = plan.BatchesExecuted
		summary.Status = StatusPlanned
		return nil
	}

	db, err := o.pool.Get(ctx)
	if err != nil {
		return fail(StageLoad, err)
	}

	// Backfill references before the fact load.
	if spec.SupportsBackfill && dc.RequiresBackfill {
		engine := backfillpkg.NewEngine(db)
		reports, err := engine.Run(ctx, gold, o.cfg.ForeignKeys.RulesFor(rc.Domain))
		summary.Backfill = reports
		if err != nil {
			return fail(StageBackfill, err)
		}
	}

	lres, err := loader.New(db, o.cfg.Settings.BatchSize).Load(ctx, gold, target, mode)
	if err != nil {
		return fail(StageLoad, err)
	}
	summary.RowsLoaded = lres.RowsInserted
	summary.Batches = lres.BatchesExecuted

	summary.Status = StatusSucceeded
	if !rc.NoPostHooks {
		if failed := runHooks(ctx, db, o.hooks.For(rc.Domain)); len(failed) > 0 {
			summary.HookFailures = failed
			summary.Status = StatusSucceededHooks
		}
	}
	return nil
}

// buildResolver wires the enrichment cascade for this run. Plan-only
// runs get a resolver with no warehouse stores so no connection opens;
// domains without enrichment get none at all.
func (o *Orchestrator) buildResolver(ctx context.Context, rc RunConfig, dc config.DomainConfig, spec registry.JobSpec) (*enrichment.Resolver, *enrichment.IndexStore, error) {
	if !spec.SupportsEnrichment || !dc.SupportsEnrich {
		return nil, nil, nil
	}
	settings := o.cfg.Settings
	if settings.EnrichmentSalt == "" {
		return nil, nil, fail(StageConfig, eris.New("enrichment salt is not configured"))
	}

	forceTempIDs := rc.NoEnrichment || !settings.EnrichmentEnabled
	budget := rc.SyncBudget
	if budget < 0 {
		budget = settings.SyncBudgetDefault
	}

	opts := enrichment.Options{
		Mapping:      o.cfg.Mapping,
		Confidence:   o.cfg.Confidence,
		Salt:         settings.EnrichmentSalt,
		SyncBudget:   budget,
		ForceTempIDs: forceTempIDs,
	}

	var indexStore *enrichment.IndexStore
	if !rc.PlanOnly && !forceTempIDs {
		db, err := o.pool.Get(ctx)
		if err != nil {
			return nil, nil, fail(StageLoad, err)
		}
		indexStore = enrichment.NewIndexStore(db)
		opts.Index = indexStore
		opts.Queue = enrichment.NewQueueStore(db)
		if settings.EQCToken != "" {
			opts.EQC = enrichment.NewEQCClient(settings.EQCBaseURL, settings.EQCToken)
		}
	}

	resolver, err := enrichment.NewResolver(opts)
	if err != nil {
		return nil, nil, fail(StageConfig, err)
	}
	return resolver, indexStore, nil
}

// exportArtifacts writes the rejection and unknown-company CSVs and
// finalizes enrichment counters. Export problems are logged, never fatal:
// the run outcome does not depend on artifact writes.
func (o *Orchestrator) exportArtifacts(ctx context.Context, rc RunConfig, dres *discovery.Result, runCtx *pipeline.RunContext, resolver *enrichment.Resolver, indexStore *enrichment.IndexStore, summary *Summary) {
	dir := o.cfg.Settings.ArtifactDir

	if len(runCtx.Rejections) > 0 {
		path, err := validation.ExportRejections(dir, rc.Domain, dres.Frame.Columns, runCtx.Rejections)
		if err != nil {
			zap.L().Warn("rejection export failed", zap.Error(err))
		} else {
			summary.RejectionCSV = path
		}
	}

	if resolver == nil {
		return
	}
	resolver.FinalizeQueueDepth(ctx)
	if indexStore != nil {
		indexStore.Wait()
	}
	stats := resolver.Stats()
	summary.Enrichment = &stats

	path, err := enrichment.ExportUnknowns(dir, rc.Domain, o.cfg.Settings.EnrichmentSalt, resolver.Unknowns())
	if err != nil {
		zap.L().Warn("unknown-company export failed", zap.Error(err))
	} else if path != "" {
		summary.UnknownsCSV = path
	}
}
