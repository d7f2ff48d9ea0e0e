package triage

import (
	"fmt"
	"strings"
)

// Level is a triage priority. Levels form a total order
// (self-care < routine < urgent < emergency) and are always compared by
// rank, never as strings.
type Level string

const (
	LevelSelfCare  Level = "self-care"
	LevelRoutine   Level = "routine"
	LevelUrgent    Level = "urgent"
	LevelEmergency Level = "emergency"
)

var levelRanks = map[Level]int{
	LevelSelfCare:  0,
	LevelRoutine:   1,
	LevelUrgent:    2,
	LevelEmergency: 3,
}

// Rank returns the position of l in the total order. Unknown levels rank
// below self-care so they can never win a comparison.
func (l Level) Rank() int {
	if r, ok := levelRanks[l]; ok {
		return r
	}
	return -1
}

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	_, ok := levelRanks[l]
	return ok
}

// AtLeast reports whether l is at or above other in the total order.
func (l Level) AtLeast(other Level) bool {
	return l.Rank() >= other.Rank()
}

// MaxLevel returns the higher-ranked of a and b.
func MaxLevel(a, b Level) Level {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseLevel parses a stored or model-produced level string.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown priority level %q", s)
	}
	return l, nil
}

// LevelOrDefault parses s, falling back to routine when it does not name a
// known level. Corrupt session state must never fail an intake.
func LevelOrDefault(s string) Level {
	l, err := ParseLevel(s)
	if err != nil {
		return LevelRoutine
	}
	return l
}
