package tcc

import "slices"

// Homework returns one exercise per distinct technique in the analysis, in
// catalog order. No techniques means no homework.
func (a *Analyzer) Homework(analysis Analysis) []string {
	return a.HomeworkFor(analysis.SuggestedTechniques)
}

func (a *Analyzer) HomeworkFor(techniques []string) []string {
	homework := []string{}
	for _, rule := range a.rules.Homework {
		if slices.Contains(techniques, rule.Technique) {
			homework = append(homework, rule.Text)
		}
	}
	return homework
}
