package knowledge

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultCatalog []byte

// Catalog is an in-memory knowledge source loaded from YAML. It also keeps
// recorded corrections in memory and derives learned rules from them.
type Catalog struct {
	LearnedPatterns []LearnedPattern `yaml:"learned_patterns"`
	ErrorPatterns   []ErrorPattern   `yaml:"error_patterns"`
	TopicGuides     []TopicEntry     `yaml:"topic_guides"`

	mu             sync.Mutex
	corrections    map[string]map[string]*correctionCount // subject -> key -> count
	learnThreshold int
}

type correctionCount struct {
	from, to, markType string
	count              int
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// DefaultCatalogYAML returns the source of the built-in catalog, as a
// starting point for a custom one.
func DefaultCatalogYAML() []byte {
	return append([]byte(nil), defaultCatalog...)
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse knowledge catalog: %w", err)
	}
	c.learnThreshold = DefaultLearnThreshold
	return c, nil
}

// SetLearnThreshold sets how many identical corrections become a rule.
func (c *Catalog) SetLearnThreshold(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > 0 {
		c.learnThreshold = n
	}
}

// GetAdditions implements PatternSource.
func (c *Catalog) GetAdditions(_ context.Context, subject string) (string, error) {
	var rules []string
	for _, p := range c.LearnedPatterns {
		if subjectMatches(p.Subject, subject) {
			rules = append(rules, p.Rule)
		}
	}

	c.mu.Lock()
	var learned []*correctionCount
	for s, bySubject := range c.corrections {
		if !subjectMatches(s, subject) {
			continue
		}
		for _, cc := range bySubject {
			if cc.count >= c.learnThreshold {
				learned = append(learned, cc)
			}
		}
	}
	c.mu.Unlock()

	sort.Slice(learned, func(i, j int) bool { return learned[i].count > learned[j].count })
	for _, cc := range learned {
		rules = append(rules, correctionRule(cc.from, cc.to, cc.markType, cc.count))
	}
	return FormatAdditions(rules), nil
}

// TopErrorPatterns implements ErrorLibrary.
func (c *Catalog) TopErrorPatterns(_ context.Context, subject string, limit int) ([]ErrorPattern, error) {
	var out []ErrorPattern
	for _, p := range c.ErrorPatterns {
		if subjectMatches(p.Subject, subject) {
			out = append(out, p)
		}
	}
	sortByFrequency(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Lookup implements TopicGuide.
func (c *Catalog) Lookup(_ context.Context, gradeLevel, unit string) ([]TopicEntry, error) {
	var out []TopicEntry
	for _, e := range c.TopicGuides {
		if !strings.EqualFold(e.GradeLevel, gradeLevel) {
			continue
		}
		if unit != "" && !strings.EqualFold(e.Unit, unit) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Broad implements TopicGuide.
func (c *Catalog) Broad(ctx context.Context, gradeLevel string) ([]TopicEntry, error) {
	return c.Lookup(ctx, gradeLevel, "")
}

// RecordCorrection implements CorrectionRecorder.
func (c *Catalog) RecordCorrection(_ context.Context, corr Correction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.corrections == nil {
		c.corrections = make(map[string]map[string]*correctionCount)
	}
	bySubject := c.corrections[corr.Subject]
	if bySubject == nil {
		bySubject = make(map[string]*correctionCount)
		c.corrections[corr.Subject] = bySubject
	}
	cc := bySubject[corr.Key()]
	if cc == nil {
		cc = &correctionCount{from: corr.From, to: corr.To, markType: corr.MarkType}
		bySubject[corr.Key()] = cc
	}
	cc.count++
	return nil
}

var (
	_ PatternSource      = (*Catalog)(nil)
	_ ErrorLibrary       = (*Catalog)(nil)
	_ TopicGuide         = (*Catalog)(nil)
	_ CorrectionRecorder = (*Catalog)(nil)
)
