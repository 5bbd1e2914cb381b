package config

import (
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Store is the immutable startup snapshot handed to every component.
type Store struct {
	Settings    *Settings
	DataSources *DataSourceStore
	ForeignKeys *ForeignKeyStore
	Mapping     *CompanyMappingStore
	Confidence  *ConfidenceStore
}

// LoadAll loads settings plus the four YAML configuration files from the
// settings' config directory. Any structural error is fatal and carries
// the offending location.
func LoadAll() (*Store, error) {
	settings, err := LoadSettings()
	if err != nil {
		return nil, err
	}
	return LoadAllFrom(settings)
}

// LoadAllFrom loads the YAML stores relative to the given settings.
func LoadAllFrom(settings *Settings) (*Store, error) {
	dir := settings.ConfigDir

	ds, err := LoadDataSources(filepath.Join(dir, "data_sources.yml"))
	if err != nil {
		return nil, err
	}
	fk, err := LoadForeignKeys(filepath.Join(dir, "foreign_keys.yml"))
	if err != nil {
		return nil, err
	}
	mapping, err := LoadCompanyMapping(filepath.Join(dir, "company_mapping.yml"))
	if err != nil {
		return nil, err
	}
	conf, err := LoadConfidence(filepath.Join(dir, "eqc_confidence.yml"))
	if err != nil {
		return nil, err
	}

	// Every domain with backfill enabled needs at least one rule.
	for _, name := range ds.Names() {
		dc, _ := ds.Domain(name)
		if dc.RequiresBackfill && len(fk.RulesFor(name)) == 0 {
			return nil, eris.Errorf("config: domain %s requires backfill but foreign_keys.yml has no rules for it", name)
		}
	}

	return &Store{
		Settings:    settings,
		DataSources: ds,
		ForeignKeys: fk,
		Mapping:     mapping,
		Confidence:  conf,
	}, nil
}
