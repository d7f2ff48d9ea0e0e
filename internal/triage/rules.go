package triage

import "strings"

// emergencyKeywords is the never-miss list. Matching is substring-based on
// purpose: "sudden sharp chest pain" must still hit "chest pain".
var emergencyKeywords = []string{
	"chest pain",
	"shortness of breath",
	"sob",
	"difficulty breathing",
	"stroke",
	"facial drooping",
	"slurred speech",
	"unconscious",
	"seizure",
	"heavy bleeding",
	"suicidal ideation",
}

// highRiskFactors are the patient groups that escalate a moderate
// presentation to urgent. Matched by exact set membership, unlike the
// keyword scan.
var highRiskFactors = map[string]struct{}{
	"diabetes":          {},
	"heart disease":     {},
	"elderly":           {},
	"infant":            {},
	"immunocompromised": {},
	"hypertension":      {},
}

// EvaluateRules maps a signal set and the prior session level to a
// priority. Pure and deterministic; rules are ordered and the first match
// wins:
//
//  1. prior level is emergency (active latch)
//  2. any symptom or red flag contains an emergency keyword
//  3. severe severity, or moderate severity with a high-risk factor
//  4. mild severity with no high-risk factor -> self-care
//  5. otherwise routine
//
// Unknown severity behaves as moderate. Input is re-normalized locally so
// the evaluation never depends on callers having called Normalize.
func EvaluateRules(sig *SignalSet, prior Level) Level {
	if prior == LevelEmergency {
		return LevelEmergency
	}
	if sig == nil {
		sig = DefaultSignals()
	}

	indicators := make([]string, 0, len(sig.Symptoms)+len(sig.RedFlags))
	for _, t := range sig.Symptoms {
		indicators = append(indicators, strings.ToLower(strings.TrimSpace(t)))
	}
	for _, t := range sig.RedFlags {
		indicators = append(indicators, strings.ToLower(strings.TrimSpace(t)))
	}
	for _, ind := range indicators {
		for _, kw := range emergencyKeywords {
			if strings.Contains(ind, kw) {
				return LevelEmergency
			}
		}
	}

	severity := ParseSeverity(string(sig.Severity))
	if severity == SeverityUnknown {
		severity = SeverityModerate
	}

	highRisk := false
	for _, rf := range sig.RiskFactors {
		if _, ok := highRiskFactors[strings.ToLower(strings.TrimSpace(rf))]; ok {
			highRisk = true
			break
		}
	}

	switch {
	case severity == SeveritySevere:
		return LevelUrgent
	case severity == SeverityModerate && highRisk:
		return LevelUrgent
	case severity == SeverityMild && !highRisk:
		return LevelSelfCare
	default:
		return LevelRoutine
	}
}

// EvaluateLatched wraps EvaluateRules with the latch contract: an
// emergency prior pins the result to emergency, every other prior is
// context only and the current presentation is rated on its own merits.
// A corrupt prior is treated as routine rather than failing the turn.
func EvaluateLatched(sig *SignalSet, prior Level) Level {
	if !prior.Valid() {
		prior = LevelRoutine
	}
	return EvaluateRules(sig, prior)
}
