// Package advisory defines the optional narrative collaborator that
// supplements rule-based flags with a free-form risk assessment.
package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// TruncationMarker is appended to advisory input that was cut short
const TruncationMarker = "\n\n[Text truncated for analysis...]"

// DefaultConfidence is used when the model omits a confidence score
const DefaultConfidence = 0.5

// KeyRisk is one concern raised by the advisor
type KeyRisk struct {
	Risk   string `json:"risk"`
	Impact string `json:"impact"`
}

// Narrative is the advisor's free-form assessment of a contract
type Narrative struct {
	Summary           string    `json:"summary"`
	KeyRisks          []KeyRisk `json:"key_risks"`
	Recommendations   []string  `json:"recommendations"`
	OverallAssessment string    `json:"overall_assessment"`
	ConfidenceScore   float64   `json:"confidence_score"`
}

// Advisor produces a narrative for a contract. A nil narrative with a nil
// error means the advisor had nothing to say; an error means it failed.
// Either way the caller carries on without a narrative.
type Advisor interface {
	Advise(ctx context.Context, text, title string) (*Narrative, error)
}

// Asker answers free-form contract questions
type Asker interface {
	Ask(ctx context.Context, question, contractContext string) (string, error)
}

// Noop is the advisor used when no model is configured
type Noop struct{}

// Advise always returns no narrative
func (Noop) Advise(context.Context, string, string) (*Narrative, error) {
	return nil, nil
}

// IsNoop reports whether a is the unconfigured advisor
func IsNoop(a Advisor) bool {
	switch a.(type) {
	case nil, Noop, *Noop:
		return true
	}
	return false
}

// ParseNarrative decodes a model response that has already passed schema
// validation. Missing confidence defaults to 0.5 and out-of-range values are
// clamped to [0,1].
func ParseNarrative(data []byte) (*Narrative, error) {
	var raw struct {
		Summary           string    `json:"summary"`
		KeyRisks          []KeyRisk `json:"key_risks"`
		Recommendations   []string  `json:"recommendations"`
		OverallAssessment string    `json:"overall_assessment"`
		ConfidenceScore   *float64  `json:"confidence_score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal narrative: %w", err)
	}

	n := &Narrative{
		Summary:           raw.Summary,
		KeyRisks:          raw.KeyRisks,
		Recommendations:   raw.Recommendations,
		OverallAssessment: raw.OverallAssessment,
		ConfidenceScore:   DefaultConfidence,
	}
	if raw.ConfidenceScore != nil {
		n.ConfidenceScore = clamp01(*raw.ConfidenceScore)
	}
	if n.KeyRisks == nil {
		n.KeyRisks = []KeyRisk{}
	}
	if n.Recommendations == nil {
		n.Recommendations = []string{}
	}
	return n, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultConfidence
	}
	return math.Max(0, math.Min(1, v))
}
