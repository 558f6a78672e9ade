package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/imagecrawl/internal/model"
)

// File represents the structure of the .imagecrawl configuration file.
// Zero values mean "not set" and leave the corresponding Config field alone.
type File struct {
	ImagesDir   string        `yaml:"imagesDir,omitempty"`
	QueriesDir  string        `yaml:"queriesDir,omitempty"`
	IndexDir    string        `yaml:"indexDir,omitempty"`
	Endpoint    string        `yaml:"endpoint,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
	PageCeiling int           `yaml:"pageCeiling,omitempty"`
	RateLimit   float64       `yaml:"rateLimit,omitempty"`
	MaxBodySize int64         `yaml:"maxBodySize,omitempty"`
	UserAgent   string        `yaml:"userAgent,omitempty"`
	Proxy       string        `yaml:"proxy,omitempty"`
	Digest      string        `yaml:"digest,omitempty"`
	InspectExif *bool         `yaml:"inspectExif,omitempty"`
	EnvFile     string        `yaml:"envFile,omitempty"`
	LogFile     string        `yaml:"logFile,omitempty"`
	MetricsAddr string        `yaml:"metricsAddr,omitempty"`

	// Classifications maps each bucket label to its search terms.
	// Document order is preserved.
	Classifications Plan `yaml:"classifications,omitempty"`
}

// Apply copies every value set in the file onto cfg.
func (cf *File) Apply(cfg *Config) {
	if cf.ImagesDir != "" {
		cfg.ImagesDir = cf.ImagesDir
	}
	if cf.QueriesDir != "" {
		cfg.QueriesDir = cf.QueriesDir
	}
	if cf.IndexDir != "" {
		cfg.IndexDir = cf.IndexDir
	}
	if cf.Endpoint != "" {
		cfg.SearchEndpoint = cf.Endpoint
	}
	if cf.Timeout != 0 {
		cfg.Timeout = cf.Timeout
	}
	if cf.Concurrency != 0 {
		cfg.Concurrency = cf.Concurrency
	}
	if cf.PageCeiling != 0 {
		cfg.PageCeiling = cf.PageCeiling
	}
	if cf.RateLimit != 0 {
		cfg.RateLimit = cf.RateLimit
	}
	if cf.MaxBodySize != 0 {
		cfg.MaxBodySize = cf.MaxBodySize
	}
	if cf.UserAgent != "" {
		cfg.UserAgent = cf.UserAgent
	}
	if cf.Proxy != "" {
		cfg.ProxyAddress = cf.Proxy
	}
	if cf.Digest != "" {
		cfg.Digest = model.DigestAlgorithm(cf.Digest)
	}
	if cf.InspectExif != nil {
		cfg.InspectExif = *cf.InspectExif
	}
	if cf.EnvFile != "" {
		cfg.EnvFile = cf.EnvFile
	}
	if cf.LogFile != "" {
		cfg.LogFile = cf.LogFile
	}
	if cf.MetricsAddr != "" {
		cfg.MetricsAddr = cf.MetricsAddr
	}
	if len(cf.Classifications) > 0 {
		cfg.Plan = cf.Classifications.Terms()
	}
}

// ClassificationTerms is one entry of the classifications mapping.
type ClassificationTerms struct {
	Classification model.Classification
	Terms          []string
}

// Plan is the ordered classifications mapping of the config file.
type Plan []ClassificationTerms

// UnmarshalYAML decodes a mapping of label -> list of terms while keeping
// the document order, which a Go map would lose. A scalar value is accepted
// as a single term.
func (p *Plan) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: classifications must be a mapping of label to terms", node.Line)
	}

	plan := make(Plan, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		var terms []string
		switch valueNode.Kind {
		case yaml.ScalarNode:
			terms = []string{valueNode.Value}
		case yaml.SequenceNode:
			if err := valueNode.Decode(&terms); err != nil {
				return fmt.Errorf("line %d: %w", valueNode.Line, err)
			}
		default:
			return fmt.Errorf("line %d: terms for %q must be a list of strings", valueNode.Line, keyNode.Value)
		}

		plan = append(plan, ClassificationTerms{
			Classification: model.Classification(keyNode.Value),
			Terms:          terms,
		})
	}

	*p = plan
	return nil
}

// Terms flattens the plan into traversal order: classification by
// classification, and within each, the terms in listed order.
func (p Plan) Terms() []model.SearchTerm {
	out := make([]model.SearchTerm, 0)
	for _, ct := range p {
		for _, term := range ct.Terms {
			out = append(out, model.SearchTerm{Term: term, Classification: ct.Classification})
		}
	}
	return out
}

// ParseTermFlag parses a "classification=term" flag value.
func ParseTermFlag(value string) (model.SearchTerm, error) {
	c, term, ok := strings.Cut(value, "=")
	if !ok || c == "" || term == "" {
		return model.SearchTerm{}, fmt.Errorf("invalid term %q: expected classification=term", value)
	}
	return model.SearchTerm{Term: term, Classification: model.Classification(c)}, nil
}
