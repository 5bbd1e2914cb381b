package annuity

import (
	"github.com/workdatahub/workdatahub/internal/registry"
)

// Register wires both annuity domains into the registries. Call once at
// startup, before registry validation.
func Register(jobs *registry.JobRegistry, services *registry.ServiceRegistry) error {
	if err := jobs.Register(DomainPerformance, registry.JobSpec{
		SingleFile:         true,
		MultiFile:          true,
		SupportsBackfill:   true,
		SupportsEnrichment: true,
	}); err != nil {
		return err
	}
	if err := services.Register(DomainPerformance, registry.Entry{
		DisplayName: "Annuity performance facts",
		Service:     NewPerformanceService(),
	}); err != nil {
		return err
	}

	if err := jobs.Register(DomainIncome, registry.JobSpec{
		SingleFile:         true,
		SupportsBackfill:   true,
		SupportsEnrichment: true,
	}); err != nil {
		return err
	}
	return services.Register(DomainIncome, registry.Entry{
		DisplayName: "Annuity income facts",
		Service:     NewIncomeService(),
	})
}
