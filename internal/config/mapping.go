package config

import (
	"bytes"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Lookup types recognized by the enrichment resolver, in priority order.
const (
	LookupPlanCode      = "plan_code"
	LookupAccountName   = "account_name"
	LookupAccountNumber = "account_number"
	LookupCustomerName  = "customer_name"
	LookupPlanCustomer  = "plan_customer"
)

// LookupPriority is the order in which lookup types are consulted.
var LookupPriority = []string{
	LookupPlanCode,
	LookupAccountName,
	LookupAccountNumber,
	LookupCustomerName,
	LookupPlanCustomer,
}

// CompanyMappingStore holds the exact-match company mappings from
// company_mapping.yml, keyed by lookup type then lookup key.
type CompanyMappingStore struct {
	byType map[string]map[string]string
}

// LoadCompanyMapping reads company_mapping.yml.
func LoadCompanyMapping(path string) (*CompanyMappingStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read %s", path)
	}
	return ParseCompanyMapping(raw)
}

// ParseCompanyMapping decodes the raw YAML document. Lookup types outside
// the known set are rejected.
func ParseCompanyMapping(raw []byte) (*CompanyMappingStore, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	byType := make(map[string]map[string]string)
	if err := dec.Decode(&byType); err != nil {
		return nil, eris.Wrap(err, "config: company_mapping.yml")
	}

	known := make(map[string]bool, len(LookupPriority))
	for _, t := range LookupPriority {
		known[t] = true
	}
	for t := range byType {
		if !known[t] {
			return nil, eris.Errorf("config: company_mapping.yml: %s: unknown lookup type", t)
		}
	}
	return &CompanyMappingStore{byType: byType}, nil
}

// Lookup returns the mapped company id for (lookupType, key), if any.
func (s *CompanyMappingStore) Lookup(lookupType, key string) (string, bool) {
	m, ok := s.byType[lookupType]
	if !ok {
		return "", false
	}
	id, ok := m[key]
	return id, ok
}

// Size returns the total number of mapping entries.
func (s *CompanyMappingStore) Size() int {
	n := 0
	for _, m := range s.byType {
		n += len(m)
	}
	return n
}
