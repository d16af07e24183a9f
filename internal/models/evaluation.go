package models

// Score bounds for every rubric criterion.
const (
	MinScore     = 1
	MaxScore     = 5
	NeutralScore = 3
)

// DefaultFeedback is used when the scoring output cannot be read.
const DefaultFeedback = "Unable to parse evaluation"

// Evaluation scores a finished answer against the rubric.
type Evaluation struct {
	Relevance         int    `json:"relevance"`
	Clarity           int    `json:"clarity"`
	ToolEffectiveness int    `json:"toolEffectiveness"`
	Feedback          string `json:"feedback"`
}

// DefaultEvaluation is the neutral evaluation returned when scoring fails.
func DefaultEvaluation() Evaluation {
	return Evaluation{
		Relevance:         NeutralScore,
		Clarity:           NeutralScore,
		ToolEffectiveness: NeutralScore,
		Feedback:          DefaultFeedback,
	}
}

// Valid reports whether every score lies within [MinScore, MaxScore].
func (e Evaluation) Valid() bool {
	for _, s := range []int{e.Relevance, e.Clarity, e.ToolEffectiveness} {
		if s < MinScore || s > MaxScore {
			return false
		}
	}
	return true
}
