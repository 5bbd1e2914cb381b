package config

import (
	"bytes"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Version selection strategies and fallbacks.
const (
	StrategyHighestNumber  = "highest_number"
	StrategyLatestModified = "latest_modified"
	StrategyManual         = "manual"

	FallbackError             = "error"
	FallbackUseLatestModified = "use_latest_modified"
)

// OutputConfig describes the warehouse target of a domain.
type OutputConfig struct {
	Table      string   `yaml:"table" validate:"required"`
	SchemaName string   `yaml:"schema_name"`
	PK         []string `yaml:"pk" validate:"required,min=1"`
	DeleteKey  []string `yaml:"delete_key"`
}

// DomainConfig is the per-domain entry of data_sources.yml. Validated at
// startup; immutable thereafter. Template placeholders such as {YYYYMM}
// stay literal here and are resolved by discovery.
type DomainConfig struct {
	BasePath         string              `yaml:"base_path" validate:"required"`
	FilePatterns     []string            `yaml:"file_patterns" validate:"required,min=1"`
	ExcludePatterns  []string            `yaml:"exclude_patterns"`
	SheetName        string              `yaml:"sheet_name"`
	SheetIndex       *int                `yaml:"sheet_index"`
	VersionStrategy  string              `yaml:"version_strategy" validate:"omitempty,oneof=highest_number latest_modified manual"`
	Fallback         string              `yaml:"fallback" validate:"omitempty,oneof=error use_latest_modified"`
	RequiresBackfill bool                `yaml:"requires_backfill"`
	SupportsEnrich   bool                `yaml:"supports_enrichment"`
	MaxFiles         int                 `yaml:"max_files"`
	Output           OutputConfig        `yaml:"output" validate:"required"`
	Cleansing        map[string][]string `yaml:"cleansing"`
}

// dataSourcesFile is the root shape of data_sources.yml.
type dataSourcesFile struct {
	Domains map[string]DomainConfig `yaml:"domains" validate:"required,min=1,dive"`
}

// DataSourceStore exposes the validated domain configurations.
type DataSourceStore struct {
	domains map[string]DomainConfig
}

// LoadDataSources reads and validates data_sources.yml. Unknown keys are
// rejected to prevent silent typos.
func LoadDataSources(path string) (*DataSourceStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read %s", path)
	}
	return ParseDataSources(raw)
}

// ParseDataSources decodes and validates the raw YAML document.
func ParseDataSources(raw []byte) (*DataSourceStore, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var file dataSourcesFile
	if err := dec.Decode(&file); err != nil {
		return nil, eris.Wrap(err, "config: data_sources.yml")
	}

	validate := validator.New()
	for name, dc := range file.Domains {
		if err := validate.Struct(dc); err != nil {
			return nil, eris.Wrapf(firstViolation(err), "config: data_sources.yml: domains.%s", name)
		}
		if dc.SheetName == "" && dc.SheetIndex == nil {
			return nil, eris.Errorf("config: data_sources.yml: domains.%s.sheet_name: required", name)
		}
		if dc.VersionStrategy == "" {
			dc.VersionStrategy = StrategyHighestNumber
		}
		if dc.Fallback == "" {
			dc.Fallback = FallbackError
		}
		if dc.Output.SchemaName == "" {
			dc.Output.SchemaName = "public"
		}
		if len(dc.Output.DeleteKey) == 0 {
			dc.Output.DeleteKey = dc.Output.PK
		}
		if dc.MaxFiles <= 0 {
			dc.MaxFiles = 1
		}
		file.Domains[name] = dc
	}

	return &DataSourceStore{domains: file.Domains}, nil
}

// Domain returns the configuration for a domain name.
func (s *DataSourceStore) Domain(name string) (DomainConfig, error) {
	dc, ok := s.domains[name]
	if !ok {
		return DomainConfig{}, eris.Errorf("config: unknown domain %q", name)
	}
	return dc, nil
}

// Names returns all configured domain names, sorted.
func (s *DataSourceStore) Names() []string {
	names := make([]string, 0, len(s.domains))
	for n := range s.domains {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// firstViolation converts the first validator error into a dotted-path
// message so the operator sees exactly which key is wrong.
func firstViolation(err error) error {
	var verrs validator.ValidationErrors
	if !eris.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	path := yamlPath(fe.Namespace())
	if fe.Tag() == "oneof" {
		return eris.Errorf("%s: must be one of [%s]", path, fe.Param())
	}
	return eris.Errorf("%s: %s", path, fe.Tag())
}

// yamlPath maps a validator namespace like DomainConfig.Output.Table to
// the YAML spelling output.table.
func yamlPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:] // drop the struct type name
	}
	for i, p := range parts {
		parts[i] = fieldToYAML(p)
	}
	return strings.Join(parts, ".")
}

var fieldYAMLNames = map[string]string{
	"BasePath":         "base_path",
	"FilePatterns":     "file_patterns",
	"ExcludePatterns":  "exclude_patterns",
	"SheetName":        "sheet_name",
	"SheetIndex":       "sheet_index",
	"VersionStrategy":  "version_strategy",
	"Fallback":         "fallback",
	"RequiresBackfill": "requires_backfill",
	"SupportsEnrich":   "supports_enrichment",
	"MaxFiles":         "max_files",
	"Output":           "output",
	"Cleansing":        "cleansing",
	"Table":            "table",
	"SchemaName":       "schema_name",
	"PK":               "pk",
	"DeleteKey":        "delete_key",
}

func fieldToYAML(field string) string {
	if y, ok := fieldYAMLNames[field]; ok {
		return y
	}
	return strings.ToLower(field)
}
