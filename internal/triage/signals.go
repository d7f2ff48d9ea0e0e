package triage

import "strings"

// Severity grades how intense the patient reports their symptoms to be.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityUnknown  Severity = "unknown"
)

// ParseSeverity coerces free text to a Severity. The extraction model is
// instructed to emit mild/moderate/severe but has been observed producing
// low/medium/high; both vocabularies are accepted. Anything else is
// moderate, the conservative middle.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mild", "low":
		return SeverityMild
	case "moderate", "medium":
		return SeverityModerate
	case "severe", "high":
		return SeveritySevere
	case "unknown", "":
		return SeverityUnknown
	default:
		return SeverityModerate
	}
}

// SignalSet is the structured clinical picture extracted from a patient
// message. Absent fields are empty sets, never errors.
type SignalSet struct {
	Symptoms    []string `json:"symptoms"`
	RedFlags    []string `json:"red_flags"`
	RiskFactors []string `json:"risk_factors"`
	Severity    Severity `json:"severity"`
	Duration    string   `json:"duration,omitempty"`
	Note        string   `json:"brief_summary,omitempty"`
}

// DefaultSignals is the conservative substitute used when extraction
// fails: empty sets and unknown severity.
func DefaultSignals() *SignalSet {
	return &SignalSet{
		Symptoms:    []string{},
		RedFlags:    []string{},
		RiskFactors: []string{},
		Severity:    SeverityUnknown,
	}
}

// Normalize lowercases and trims every term, drops empty entries, and
// coerces the severity. Idempotent.
func (s *SignalSet) Normalize() {
	s.Symptoms = normalizeTerms(s.Symptoms)
	s.RedFlags = normalizeTerms(s.RedFlags)
	s.RiskFactors = normalizeTerms(s.RiskFactors)
	s.Severity = ParseSeverity(string(s.Severity))
	s.Duration = strings.TrimSpace(s.Duration)
}

func normalizeTerms(terms []string) []string {
	if terms == nil {
		return nil
	}
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
