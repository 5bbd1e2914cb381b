package config

import (
	"bytes"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Aggregation types for backfill column projection.
const (
	AggFirst          = "first"
	AggMaxBy          = "max_by"
	AggConcatDistinct = "concat_distinct"
)

// Aggregation selects how a backfill column value is derived when the
// same key appears on multiple fact rows.
type Aggregation struct {
	Type        string `yaml:"type" validate:"required,oneof=first max_by concat_distinct"`
	OrderColumn string `yaml:"order_column"`
	Separator   string `yaml:"separator"`
	Sort        bool   `yaml:"sort"`
}

// BackfillColumn maps one fact column onto a reference-table column.
type BackfillColumn struct {
	Source      string       `yaml:"source" validate:"required"`
	Target      string       `yaml:"target" validate:"required"`
	Optional    bool         `yaml:"optional"`
	Aggregation *Aggregation `yaml:"aggregation"`
}

// ForeignKeyRule describes one reference table fed from fact rows before
// the fact load.
type ForeignKeyRule struct {
	Name            string           `yaml:"name" validate:"required"`
	SourceColumn    string           `yaml:"source_column" validate:"required"`
	TargetTable     string           `yaml:"target_table" validate:"required"`
	TargetKey       string           `yaml:"target_key" validate:"required"`
	TargetSchema    string           `yaml:"target_schema"`
	Mode            string           `yaml:"mode" validate:"omitempty,oneof=insert_missing"`
	DependsOn       []string         `yaml:"depends_on"`
	SkipBlankValues bool             `yaml:"skip_blank_values"`
	BackfillColumns []BackfillColumn `yaml:"backfill_columns" validate:"required,min=1,dive"`
}

// ForeignKeyStore holds the per-domain rule lists, already topologically
// sorted so every rule appears after its dependencies.
type ForeignKeyStore struct {
	rules map[string][]ForeignKeyRule
}

// LoadForeignKeys reads and validates foreign_keys.yml.
func LoadForeignKeys(path string) (*ForeignKeyStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read %s", path)
	}
	return ParseForeignKeys(raw)
}

// ParseForeignKeys decodes, validates and topologically sorts the rules.
func ParseForeignKeys(raw []byte) (*ForeignKeyStore, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var file map[string][]ForeignKeyRule
	if err := dec.Decode(&file); err != nil {
		return nil, eris.Wrap(err, "config: foreign_keys.yml")
	}

	validate := validator.New()
	for domain, rules := range file {
		for i, rule := range rules {
			if err := validate.Struct(rule); err != nil {
				return nil, eris.Wrapf(firstViolation(err), "config: foreign_keys.yml: %s[%d]", domain, i)
			}
			if rule.Mode == "" {
				rule.Mode = "insert_missing"
			}
			if rule.TargetSchema == "" {
				rule.TargetSchema = "public"
			}
			for j, bc := range rule.BackfillColumns {
				if bc.Aggregation != nil {
					if bc.Aggregation.Type == AggMaxBy && bc.Aggregation.OrderColumn == "" {
						return nil, eris.Errorf("config: foreign_keys.yml: %s[%d].backfill_columns[%d].aggregation.order_column: required for max_by", domain, i, j)
					}
					if bc.Aggregation.Type == AggConcatDistinct && bc.Aggregation.Separator == "" {
						bc.Aggregation.Separator = ","
						rule.BackfillColumns[j] = bc
					}
				}
			}
			rules[i] = rule
		}
		sorted, err := topoSort(rules)
		if err != nil {
			return nil, eris.Wrapf(err, "config: foreign_keys.yml: %s", domain)
		}
		file[domain] = sorted
	}

	return &ForeignKeyStore{rules: file}, nil
}

// RulesFor returns the ordered rules for a domain; domains without rules
// get an empty list.
func (s *ForeignKeyStore) RulesFor(domain string) []ForeignKeyRule {
	return s.rules[domain]
}

// topoSort orders rules so each appears after everything it depends on.
// Ties keep the declaration order, which keeps runs deterministic.
func topoSort(rules []ForeignKeyRule) ([]ForeignKeyRule, error) {
	byName := make(map[string]ForeignKeyRule, len(rules))
	for _, r := range rules {
		if _, dup := byName[r.Name]; dup {
			return nil, eris.Errorf("duplicate rule name %q", r.Name)
		}
		byName[r.Name] = r
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := make(map[string]int, len(rules))
	var out []ForeignKeyRule

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case gray:
			return eris.Errorf("dependency cycle through rule %q", name)
		case black:
			return nil
		}
		rule, ok := byName[name]
		if !ok {
			return eris.Errorf("depends_on references unknown rule %q", name)
		}
		state[name] = gray
		for _, dep := range rule.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = black
		out = append(out, rule)
		return nil
	}

	for _, r := range rules {
		if err := visit(r.Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}
