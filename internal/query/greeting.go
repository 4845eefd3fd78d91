package query

import "strings"

const (
	GreetingMessage      = "Hello! Let's Talk Cricket?"
	InvalidQuestionReply = "Please ask a valid question."
	NoDataMessage        = "No data found for your query."
)

var greetings = []string{"hello", "good morning", "good evening", "hey"}

// IsGreeting reports whether the question contains a greeting anywhere in it,
// so "hey, who won in 2019?" is still a greeting.
func IsGreeting(question string) bool {
	lower := strings.ToLower(question)
	for _, g := range greetings {
		if strings.Contains(lower, g) {
			return true
		}
	}
	return false
}
