package config

import (
	"bytes"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ConfidenceStore maps EQC candidate type labels to confidence scores.
type ConfidenceStore struct {
	ByLabel     map[string]float64 `yaml:"eqc_match_confidence"`
	Default     float64            `yaml:"default"`
	MinForCache float64            `yaml:"min_confidence_for_cache"`
}

// LoadConfidence reads eqc_confidence.yml.
func LoadConfidence(path string) (*ConfidenceStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read %s", path)
	}
	return ParseConfidence(raw)
}

// ParseConfidence decodes and validates the raw YAML document.
func ParseConfidence(raw []byte) (*ConfidenceStore, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	s := &ConfidenceStore{
		Default:     0.70,
		MinForCache: 0.60,
	}
	if err := dec.Decode(s); err != nil {
		return nil, eris.Wrap(err, "config: eqc_confidence.yml")
	}

	for label, c := range s.ByLabel {
		if c < 0 || c > 1 {
			return nil, eris.Errorf("config: eqc_confidence.yml: eqc_match_confidence.%s: confidence %v out of [0,1]", label, c)
		}
	}
	if s.Default < 0 || s.Default > 1 {
		return nil, eris.Errorf("config: eqc_confidence.yml: default: confidence %v out of [0,1]", s.Default)
	}
	return s, nil
}

// Confidence returns the configured score for a candidate type label,
// falling back to the default.
func (s *ConfidenceStore) Confidence(label string) float64 {
	if c, ok := s.ByLabel[label]; ok {
		return c
	}
	return s.Default
}
