package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

// Policy holds the acceptance thresholds of both evidence channels.
type Policy struct {
	Text      TextPolicy      `yaml:"text"`
	Biometric BiometricPolicy `yaml:"biometric"`
}

type TextPolicy struct {
	LexicalAccept          float64  `yaml:"lexical_accept"`          // token-set score that accepts without vector fallback
	VectorAccept           float64  `yaml:"vector_accept"`           // TF-IDF cosine score (0-100) needed by the fallback
	CorroborationThreshold float64  `yaml:"corroboration_threshold"` // text score confirming a biometric winner
	MarkerKeywords         []string `yaml:"marker_keywords"`         // details must mention one of these to engage the text channel
}

type BiometricPolicy struct {
	MaxDistance float64   `yaml:"max_distance"` // candidates must be strictly closer than this cosine distance
	ANN         ANNPolicy `yaml:"ann"`
}

// ANNPolicy controls approximate candidate generation for large embedding stores.
type ANNPolicy struct {
	Enabled      bool `yaml:"enabled"`
	MinStoreSize int  `yaml:"min_store_size"` // below this size the exact scan is always used
	MaxNeighbors int  `yaml:"max_neighbors"`  // HNSW M parameter
	Candidates   int  `yaml:"candidates"`     // neighbours fetched before exact rescoring
}

// DefaultPolicy returns the embedded policy.
func DefaultPolicy() Policy {
	var p Policy
	if err := yaml.Unmarshal(policyYAML, &p); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}
	return p
}

// LoadPolicy returns the embedded defaults overlaid with the keys present in path.
// An empty path returns the defaults unchanged.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("reading policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parsing policy file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

// Validate rejects thresholds outside their score ranges.
func (p Policy) Validate() error {
	var errs []error
	for name, v := range map[string]float64{
		"text.lexical_accept":          p.Text.LexicalAccept,
		"text.vector_accept":           p.Text.VectorAccept,
		"text.corroboration_threshold": p.Text.CorroborationThreshold,
	} {
		if v <= 0 || v > 100 {
			errs = append(errs, fmt.Errorf("%s must be in (0, 100], got %v", name, v))
		}
	}
	if p.Biometric.MaxDistance <= 0 || p.Biometric.MaxDistance > 2 {
		errs = append(errs, fmt.Errorf("biometric.max_distance must be in (0, 2], got %v", p.Biometric.MaxDistance))
	}
	keywords := 0
	for _, k := range p.Text.MarkerKeywords {
		if strings.TrimSpace(k) != "" {
			keywords++
		}
	}
	if keywords == 0 {
		errs = append(errs, errors.New("text.marker_keywords must not be empty"))
	}
	if p.Biometric.ANN.Enabled && (p.Biometric.ANN.MaxNeighbors <= 0 || p.Biometric.ANN.Candidates <= 0) {
		errs = append(errs, errors.New("biometric.ann.max_neighbors and candidates must be positive"))
	}
	return errors.Join(errs...)
}
