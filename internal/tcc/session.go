package tcc

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Concern is one recorded client input with its analysis.
type Concern struct {
	ID         string    `json:"id"`
	Input      string    `json:"input"`
	Analysis   Analysis  `json:"analysis"`
	RecordedAt time.Time `json:"recorded_at"`
}

type SessionSummary struct {
	TechniquesUsed      []string `json:"techniques_used"`
	MainConcerns        []string `json:"main_concerns"`
	HomeworkSuggestions []string `json:"homework_suggestions"`
	ProgressNotes       []string `json:"progress_notes"`
}

// SessionContext accumulates concerns for the lifetime of the process. It is
// shared by every request the instance serves, so all access is locked.
type SessionContext struct {
	mu               sync.RWMutex
	analyzer         *Analyzer
	concerns         []Concern
	currentTechnique string
	now              func() time.Time
}

func NewSessionContext(analyzer *Analyzer) *SessionContext {
	return &SessionContext{
		analyzer: analyzer,
		concerns: make([]Concern, 0),
		now:      time.Now,
	}
}

func (s *SessionContext) Record(input string, analysis Analysis) Concern {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Concern{
		ID:         uuid.New().String(),
		Input:      input,
		Analysis:   analysis,
		RecordedAt: s.now(),
	}
	s.concerns = append(s.concerns, c)

	if len(analysis.SuggestedTechniques) > 0 {
		s.currentTechnique = analysis.SuggestedTechniques[0]
	}
	return c
}

func (s *SessionContext) CurrentTechnique() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTechnique
}

func (s *SessionContext) Concerns() []Concern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.concerns)
}

func (s *SessionContext) Summary() SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	techniques := []string{}
	mainConcerns := make([]string, 0, len(s.concerns))
	for _, c := range s.concerns {
		mainConcerns = append(mainConcerns, c.Input)
		for _, t := range c.Analysis.SuggestedTechniques {
			if !slices.Contains(techniques, t) {
				techniques = append(techniques, t)
			}
		}
	}

	return SessionSummary{
		TechniquesUsed:      techniques,
		MainConcerns:        mainConcerns,
		HomeworkSuggestions: s.analyzer.HomeworkFor(techniques),
		ProgressNotes:       []string{},
	}
}
