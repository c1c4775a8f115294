// Package classify maps raw provider errors to user-facing messages.
package classify

import "strings"

// Category is the user-facing class of a failed generation.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryRateLimit
	CategoryAuth
	CategoryServer
	CategoryNetwork
)

func (c Category) String() string {
	switch c {
	case CategoryRateLimit:
		return "rate_limit"
	case CategoryAuth:
		return "auth"
	case CategoryServer:
		return "server"
	case CategoryNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// User-facing messages shown in place of a response.
const (
	MessageRateLimit = "Rate limit exceeded. Please wait a moment and try again."
	MessageAuth      = "Authentication failed. Please check your API key configuration."
	MessageServer    = "The AI service is temporarily unavailable. Please try again shortly."
	MessageNetwork   = "Network error. Please check your connection and try again."
	MessageUnknown   = "Sorry, something went wrong while generating a response. Please try again."
)

// Checked in order; the first rule with a matching needle wins.
var rules = []struct {
	category Category
	needles  []string
}{
	{CategoryRateLimit, []string{"429", "quota", "Too Many Requests"}},
	{CategoryAuth, []string{"401", "unauthorized"}},
	{CategoryServer, []string{"500", "internal server error"}},
	{CategoryNetwork, []string{"network", "fetch"}},
}

// Categorize returns the category of err. Matching is case-sensitive.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	msg := err.Error()
	for _, rule := range rules {
		for _, needle := range rule.needles {
			if strings.Contains(msg, needle) {
				return rule.category
			}
		}
	}
	return CategoryUnknown
}

// Message returns the user-facing text for a category.
func Message(c Category) string {
	switch c {
	case CategoryRateLimit:
		return MessageRateLimit
	case CategoryAuth:
		return MessageAuth
	case CategoryServer:
		return MessageServer
	case CategoryNetwork:
		return MessageNetwork
	default:
		return MessageUnknown
	}
}

// Classify returns the user-facing message for err. It never fails.
func Classify(err error) string {
	return Message(Categorize(err))
}
