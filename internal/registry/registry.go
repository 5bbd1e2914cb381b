// Package registry maps domain names to their job capabilities and
// service implementations. The orchestrator dispatches through these
// maps and never branches on domain names.
package registry

import (
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/cleansing"
	"github.com/workdatahub/workdatahub/internal/enrichment"
	"github.com/workdatahub/workdatahub/internal/pipeline"
	"github.com/workdatahub/workdatahub/internal/validation"
)

// JobSpec declares which job shapes a domain supports.
type JobSpec struct {
	SingleFile         bool
	MultiFile          bool
	SupportsBackfill   bool
	SupportsEnrichment bool
}

// StepDeps is handed to a service when it assembles its step list.
type StepDeps struct {
	Cleansing     *cleansing.Registry
	Resolver      *enrichment.Resolver // nil when enrichment is off or plan-only
	NoEnrichment  bool
	OutputColumns []string
}

// Service supplies the domain-specific pieces of a run. Implementations
// are stateless; all run state lives in the pipeline context.
type Service interface {
	// Bronze returns the raw-frame gate.
	Bronze() *validation.BronzeSchema
	// RowIn returns the loose row parser applied during Bronze, or nil.
	RowIn() validation.RowValidator
	// Steps returns the ordered pipeline for this domain.
	Steps(deps StepDeps) []pipeline.Step
	// Gold returns the warehouse-ready contract.
	Gold() *validation.GoldSchema
}

// Entry is one registered domain service.
type Entry struct {
	DisplayName string
	Service     Service
}

// JobRegistry holds the per-domain job capabilities.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]JobSpec
}

// NewJobRegistry creates an empty job registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]JobSpec)}
}

// Register adds a domain's job spec. Duplicate registration is an error.
func (r *JobRegistry) Register(domain string, spec JobSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.jobs[domain]; dup {
		return eris.Errorf("registry: job for %q already registered", domain)
	}
	r.jobs[domain] = spec
	return nil
}

// Get returns the job spec for a domain.
func (r *JobRegistry) Get(domain string) (JobSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.jobs[domain]
	return spec, ok
}

// Names returns all registered domains, sorted.
func (r *JobRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.jobs))
	for n := range r.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ServiceRegistry holds the per-domain service entries.
type ServiceRegistry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewServiceRegistry creates an empty service registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{entries: make(map[string]Entry)}
}

// Register adds a domain service. Duplicate registration is an error.
func (r *ServiceRegistry) Register(domain string, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[domain]; dup {
		return eris.Errorf("registry: service for %q already registered", domain)
	}
	r.entries[domain] = entry
	return nil
}

// Get returns the service entry for a domain.
func (r *ServiceRegistry) Get(domain string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[domain]
	return e, ok
}

// Names returns all registered domains, sorted.
func (r *ServiceRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ConfiguredDomains is the view of data_sources.yml the validation needs.
type ConfiguredDomains interface {
	Names() []string
}

// Validate enforces the config/code contract at startup: every domain in
// data_sources.yml must be registered in both registries; registered
// domains missing from the config are warnings.
func Validate(configured ConfiguredDomains, jobs *JobRegistry, services *ServiceRegistry) error {
	inConfig := make(map[string]bool)
	for _, name := range configured.Names() {
		inConfig[name] = true
		if _, ok := jobs.Get(name); !ok {
			return eris.Errorf("registry: domain %q configured but has no registered job", name)
		}
		if _, ok := services.Get(name); !ok {
			return eris.Errorf("registry: domain %q configured but has no registered service", name)
		}
	}
	for _, name := range jobs.Names() {
		if !inConfig[name] {
			zap.L().Warn("registered domain missing from data_sources.yml", zap.String("domain", name))
		}
	}
	for _, name := range services.Names() {
		if !inConfig[name] {
			zap.L().Warn("registered service missing from data_sources.yml", zap.String("domain", name))
		}
	}
	return nil
}
