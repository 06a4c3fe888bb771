package advisory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	n, err := Noop{}.Advise(context.Background(), "text", "title")
	assert.NoError(t, err)
	assert.Nil(t, n)

	assert.True(t, IsNoop(Noop{}))
	assert.True(t, IsNoop(&Noop{}))
	assert.True(t, IsNoop(nil))
}

func TestParseNarrative(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantConf float64
	}{
		{"explicit confidence", `{"summary":"s","confidence_score":0.8}`, 0.8},
		{"missing confidence", `{"summary":"s"}`, 0.5},
		{"above range", `{"confidence_score":3}`, 1},
		{"below range", `{"confidence_score":-0.2}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseNarrative([]byte(tt.in))
			require.NoError(t, err)
			assert.InDelta(t, tt.wantConf, n.ConfidenceScore, 1e-9)
			assert.NotNil(t, n.KeyRisks)
			assert.NotNil(t, n.Recommendations)
		})
	}

	_, err := ParseNarrative([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseNarrativeFields(t *testing.T) {
	in := `{
		"summary": "A talent agreement.",
		"key_risks": [{"risk": "Perpetual license", "impact": "Loss of control"}],
		"recommendations": ["Limit the term to two years"],
		"overall_assessment": "Concerning",
		"confidence_score": 0.7
	}`
	n, err := ParseNarrative([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, "A talent agreement.", n.Summary)
	assert.Equal(t, []KeyRisk{{Risk: "Perpetual license", Impact: "Loss of control"}}, n.KeyRisks)
	assert.Equal(t, []string{"Limit the term to two years"}, n.Recommendations)
	assert.Equal(t, "Concerning", n.OverallAssessment)
}

func TestValidateNarrativeJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"full", `{"summary":"s","key_risks":[{"risk":"r","impact":"i"}],"recommendations":["a"],"overall_assessment":"o","confidence_score":0.4}`, false},
		{"empty object", `{}`, false},
		{"extra fields", `{"summary":"s","notes":"x"}`, false},
		{"not an object", `["summary"]`, true},
		{"wrong summary type", `{"summary":42}`, true},
		{"risk missing", `{"key_risks":[{"impact":"i"}]}`, true},
		{"recommendation not string", `{"recommendations":[1]}`, true},
		{"confidence as string", `{"confidence_score":"high"}`, true},
		{"invalid json", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNarrativeJSON([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
