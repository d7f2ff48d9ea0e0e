// Package triage is the business boundary for MedFlow's clinical intake
// pipeline. It defines the ordered priority levels, the deterministic
// rule evaluator with its sticky session latch, the reconciler that
// merges rule output with model-proposed classifications, the session and
// case store interfaces, and the Service that sequences a patient message
// through extraction, classification, summary, follow-up, and
// consent-gated case persistence.
package triage
