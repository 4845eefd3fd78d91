package query

// State is a step of the question pipeline. Terminal states produce an Answer
// or an error; every other state hands over to exactly one successor.
type State int

const (
	StateStart State = iota
	StateGreetingCheck
	StateGreetingReply
	StateFuzzyLookup
	StateExactLookup
	StateGenerate
	StateCacheWrite
	StateExecute
	StateFormatReply
	StateRejectReply
	StateErrorReply
)

var stateNames = map[State]string{
	StateStart:         "start",
	StateGreetingCheck: "greeting_check",
	StateGreetingReply: "greeting_reply",
	StateFuzzyLookup:   "fuzzy_lookup",
	StateExactLookup:   "exact_lookup",
	StateGenerate:      "generate",
	StateCacheWrite:    "cache_write",
	StateExecute:       "execute",
	StateFormatReply:   "format_reply",
	StateRejectReply:   "reject_reply",
	StateErrorReply:    "error_reply",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) Terminal() bool {
	switch s {
	case StateGreetingReply, StateFormatReply, StateRejectReply, StateErrorReply:
		return true
	}
	return false
}

// Source says how the SQL behind an answer was obtained.
type Source string

const (
	SourceGreeting  Source = "greeting"
	SourceFuzzy     Source = "fuzzy"
	SourceExact     Source = "exact"
	SourceGenerated Source = "generated"
	SourceRejected  Source = "rejected"
)
