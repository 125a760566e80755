package signals

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// #region rule-types

// Bucket maps a keyword set to a fixed category and activation.
type Bucket struct {
	Category   string   `yaml:"category"`
	Activation float64  `yaml:"activation"`
	Keywords   []string `yaml:"keywords"`
}

// Band maps a numeric reading below an upper bound to a category.
// A nil Below marks the open-ended last band.
type Band struct {
	Below      *float64 `yaml:"below"`
	Category   string   `yaml:"category"`
	Activation float64  `yaml:"activation"`
}

// Vocabulary holds the shared keyword lists used by the keyword scorer.
type Vocabulary struct {
	Positive   []string `yaml:"positive"`
	Negative   []string `yaml:"negative"`
	HighIntent []string `yaml:"high_intent"`
	Social     []string `yaml:"social"`
	Relax      []string `yaml:"relax"`
	Tense      []string `yaml:"tense"`
}

// Patterns holds the numeric extraction regexes, as source text.
type Patterns struct {
	Decibel     string `yaml:"decibel"`
	Coordinates string `yaml:"coordinates"`
	HeartRate   string `yaml:"heart_rate"`
	Minutes     string `yaml:"minutes"`
	Seconds     string `yaml:"seconds"`
	Lux         string `yaml:"lux"`
	Temperature string `yaml:"temperature"`
}

// RuleSet is the full data-driven rule table for the eight channel heuristics.
type RuleSet struct {
	Vocabulary Vocabulary `yaml:"vocabulary"`
	Visual     struct {
		Scene []string `yaml:"scene"`
	} `yaml:"visual"`
	Audio struct {
		Buckets []Bucket `yaml:"buckets"`
	} `yaml:"audio"`
	Spatial struct {
		Buckets []Bucket `yaml:"buckets"`
	} `yaml:"spatial"`
	Biometric struct {
		Bands   []Band   `yaml:"bands"`
		Buckets []Bucket `yaml:"buckets"`
	} `yaml:"biometric"`
	Text struct {
		Absent []string `yaml:"absent"`
	} `yaml:"text"`
	Device struct {
		Idle []string `yaml:"idle"`
	} `yaml:"device"`
	UserMode struct {
		Buckets []Bucket `yaml:"buckets"`
	} `yaml:"user_mode"`
	Patterns Patterns `yaml:"patterns"`

	compiled compiledPatterns
}

type compiledPatterns struct {
	decibel     *regexp.Regexp
	coordinates *regexp.Regexp
	heartRate   *regexp.Regexp
	minutes     *regexp.Regexp
	seconds     *regexp.Regexp
	lux         *regexp.Regexp
	temperature *regexp.Regexp
}

// #endregion rule-types

// #region load

// LoadRules parses a YAML rule table and compiles its patterns.
// Keywords are lower-cased so matching against lower-cased text is exact.
func LoadRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	rs.normalize()
	if err := rs.validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

var (
	defaultRulesOnce sync.Once
	defaultRules     *RuleSet
)

// DefaultRules returns the embedded rule table. It panics if the embedded
// document is malformed, which the package tests rule out.
func DefaultRules() *RuleSet {
	defaultRulesOnce.Do(func() {
		rs, err := LoadRules(defaultRulesYAML)
		if err != nil {
			panic(fmt.Sprintf("signals: embedded rules: %v", err))
		}
		defaultRules = rs
	})
	return defaultRules
}

func (rs *RuleSet) compile() error {
	specs := []struct {
		name string
		src  string
		dst  **regexp.Regexp
	}{
		{"decibel", rs.Patterns.Decibel, &rs.compiled.decibel},
		{"coordinates", rs.Patterns.Coordinates, &rs.compiled.coordinates},
		{"heart_rate", rs.Patterns.HeartRate, &rs.compiled.heartRate},
		{"minutes", rs.Patterns.Minutes, &rs.compiled.minutes},
		{"seconds", rs.Patterns.Seconds, &rs.compiled.seconds},
		{"lux", rs.Patterns.Lux, &rs.compiled.lux},
		{"temperature", rs.Patterns.Temperature, &rs.compiled.temperature},
	}
	for _, s := range specs {
		if s.src == "" {
			return fmt.Errorf("rules: pattern %s is empty", s.name)
		}
		re, err := regexp.Compile(s.src)
		if err != nil {
			return fmt.Errorf("rules: compile %s: %w", s.name, err)
		}
		*s.dst = re
	}
	return nil
}

func (rs *RuleSet) normalize() {
	lowerAll(rs.Vocabulary.Positive)
	lowerAll(rs.Vocabulary.Negative)
	lowerAll(rs.Vocabulary.HighIntent)
	lowerAll(rs.Vocabulary.Social)
	lowerAll(rs.Vocabulary.Relax)
	lowerAll(rs.Vocabulary.Tense)
	lowerAll(rs.Visual.Scene)
	lowerAll(rs.Text.Absent)
	lowerAll(rs.Device.Idle)
	for _, group := range [][]Bucket{rs.Audio.Buckets, rs.Spatial.Buckets, rs.Biometric.Buckets, rs.UserMode.Buckets} {
		for i := range group {
			lowerAll(group[i].Keywords)
		}
	}
}

func (rs *RuleSet) validate() error {
	bands := rs.Biometric.Bands
	if len(bands) == 0 {
		return fmt.Errorf("rules: biometric bands are empty")
	}
	for i, b := range bands {
		last := i == len(bands)-1
		if last && b.Below != nil {
			return fmt.Errorf("rules: last biometric band must be open-ended")
		}
		if !last && b.Below == nil {
			return fmt.Errorf("rules: biometric band %d has no upper bound", i)
		}
	}
	for _, b := range rs.UserMode.Buckets {
		if b.Category == "" {
			return fmt.Errorf("rules: user mode bucket without category")
		}
	}
	return nil
}

// #endregion load

// #region helpers

func lowerAll(words []string) {
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
}

// matchBucket returns the first bucket with a keyword contained in lower.
func matchBucket(lower string, buckets []Bucket) (Bucket, bool) {
	for _, b := range buckets {
		if containsAny(lower, b.Keywords) {
			return b, true
		}
	}
	return Bucket{}, false
}

// matchBand returns the first band whose upper bound exceeds v.
func matchBand(v float64, bands []Band) Band {
	for _, b := range bands {
		if b.Below == nil || v < *b.Below {
			return b
		}
	}
	return bands[len(bands)-1]
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// #endregion helpers
