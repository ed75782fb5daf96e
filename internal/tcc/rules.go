package tcc

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

var ErrInvalidRules = errors.New("invalid tcc rules")

// Rules is the declarative data behind the analyzer: keyword tables,
// technique catalog, homework templates and prompt texts.
type Rules struct {
	SystemPrompt    string         `yaml:"system_prompt"`
	ContextTemplate string         `yaml:"context_template"`
	Cognitive       CognitiveRule  `yaml:"cognitive_markers"`
	Emotions        []EmotionRule  `yaml:"emotions"`
	Homework        []HomeworkRule `yaml:"homework"`
}

type CognitiveRule struct {
	PatternFormat string   `yaml:"pattern_format"`
	Technique     string   `yaml:"technique"`
	Keywords      []string `yaml:"keywords"`
}

// EmotionRule maps an emotional category to its keywords and to the
// techniques suggested once the category is detected.
type EmotionRule struct {
	Category   string   `yaml:"category"`
	Keywords   []string `yaml:"keywords"`
	Techniques []string `yaml:"techniques"`
}

type HomeworkRule struct {
	Technique string `yaml:"technique"`
	Text      string `yaml:"text"`
}

// LoadRules reads rules from path, or the embedded defaults when path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return ParseRules(defaultRulesYAML)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	return ParseRules(data)
}

// DefaultRules returns the embedded rule set. It panics if the embedded file
// is broken, which can only happen at build time.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(err)
	}
	return r
}

func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) validate() error {
	if strings.TrimSpace(r.SystemPrompt) == "" {
		return fmt.Errorf("%w: system_prompt is empty", ErrInvalidRules)
	}
	if strings.TrimSpace(r.ContextTemplate) == "" {
		return fmt.Errorf("%w: context_template is empty", ErrInvalidRules)
	}
	if !strings.Contains(r.Cognitive.PatternFormat, "%s") {
		return fmt.Errorf("%w: cognitive_markers.pattern_format needs a %%s verb", ErrInvalidRules)
	}

	seen := make(map[string]bool, len(r.Emotions))
	for _, e := range r.Emotions {
		if e.Category == "" || len(e.Keywords) == 0 {
			return fmt.Errorf("%w: emotion rule needs a category and keywords", ErrInvalidRules)
		}
		if seen[e.Category] {
			return fmt.Errorf("%w: duplicate emotion category %q", ErrInvalidRules, e.Category)
		}
		seen[e.Category] = true
	}
	return nil
}
