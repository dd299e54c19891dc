package queue

import "strings"

// statusSynonyms maps caller-facing status names onto queue states.
// Several API clients predate the current vocabulary, so the older names
// stay accepted.
var statusSynonyms = map[string]JobState{
	"queued":     JobStateWaiting,
	"pending":    JobStateWaiting,
	"waiting":    JobStateWaiting,
	"processing": JobStateActive,
	"running":    JobStateActive,
	"active":     JobStateActive,
	"completed":  JobStateCompleted,
	"failed":     JobStateFailed,
	"delayed":    JobStateDelayed,
	"paused":     JobStatePaused,
}

// AllStates is every live queue state, in the order listings report them.
var AllStates = []JobState{
	JobStateActive,
	JobStateWaiting,
	JobStateDelayed,
	JobStatePaused,
	JobStateCompleted,
	JobStateFailed,
}

// ResolveStates maps a caller-facing status filter onto the states it
// selects. Unknown or empty values select all states.
func ResolveStates(status string) []JobState {
	normalized := strings.ToLower(strings.TrimSpace(status))
	if state, ok := statusSynonyms[normalized]; ok {
		return []JobState{state}
	}
	return AllStates
}

// NormalizeLimit clamps a page size to [1,200]. Defaults for omitted
// parameters are applied at the API boundary, not here: an explicit 0
// clamps to 1.
func NormalizeLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > 200 {
		return 200
	}
	return limit
}

// NormalizeOffset clamps a page offset to >= 0.
func NormalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
