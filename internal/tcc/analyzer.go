// Package tcc holds the rule-based TCC (cognitive-behavioral) annotation
// layer: keyword analysis of client input, technique and homework
// suggestions, prompt construction and the per-process session context.
package tcc

import (
	"fmt"
	"slices"
	"strings"
)

// Emotional categories that drive technique selection and demo responses.
const (
	CategoryAnxiety    = "ansiedade"
	CategoryDepression = "depressão"
	CategoryAnger      = "raiva"
	CategoryStress     = "estresse"
)

// Analysis is the annotation computed for a single client input.
type Analysis struct {
	CognitivePatterns   []string `json:"cognitive_patterns"`
	EmotionalIndicators []string `json:"emotional_indicators"`
	BehavioralConcerns  []string `json:"behavioral_concerns"`
	SuggestedTechniques []string `json:"suggested_techniques"`
	TCCKeywords         []string `json:"tcc_keywords"`
}

func newAnalysis() Analysis {
	return Analysis{
		CognitivePatterns:   []string{},
		EmotionalIndicators: []string{},
		BehavioralConcerns:  []string{},
		SuggestedTechniques: []string{},
		TCCKeywords:         []string{},
	}
}

func (a Analysis) HasEmotion(category string) bool {
	return slices.Contains(a.EmotionalIndicators, category)
}

func (a Analysis) HasKeyword(keyword string) bool {
	return slices.Contains(a.TCCKeywords, keyword)
}

type Analyzer struct {
	rules *Rules
}

func NewAnalyzer(rules *Rules) *Analyzer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Analyzer{rules: rules}
}

func (a *Analyzer) Rules() *Rules {
	return a.rules
}

// Analyze scans text against the rule tables. It is a pure function of its
// input and the rules.
func (a *Analyzer) Analyze(text string) Analysis {
	result := newAnalysis()
	lower := strings.ToLower(text)

	cog := a.rules.Cognitive
	for _, kw := range cog.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			result.CognitivePatterns = append(result.CognitivePatterns, fmt.Sprintf(cog.PatternFormat, kw))
			result.SuggestedTechniques = append(result.SuggestedTechniques, cog.Technique)
		}
	}

	for _, emotion := range a.rules.Emotions {
		for _, kw := range emotion.Keywords {
			if !strings.Contains(lower, strings.ToLower(kw)) {
				continue
			}
			if !result.HasEmotion(emotion.Category) {
				result.EmotionalIndicators = append(result.EmotionalIndicators, emotion.Category)
			}
			result.TCCKeywords = append(result.TCCKeywords, kw)
		}
	}

	for _, emotion := range a.rules.Emotions {
		if result.HasEmotion(emotion.Category) {
			result.SuggestedTechniques = append(result.SuggestedTechniques, emotion.Techniques...)
		}
	}

	return result
}
