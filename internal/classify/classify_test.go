package classify

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"http 429", errors.New("HTTP error! status: 429 - Rate limit exceeded"), MessageRateLimit},
		{"quota", errors.New("quota exhausted for project"), MessageRateLimit},
		{"too many requests", errors.New("Too Many Requests"), MessageRateLimit},
		{"401", errors.New("HTTP error! status: 401 - bad key"), MessageAuth},
		{"unauthorized", errors.New("request unauthorized"), MessageAuth},
		{"500", errors.New("HTTP error! status: 500 - server down"), MessageServer},
		{"internal server error", errors.New("internal server error"), MessageServer},
		{"fetch failed", errors.New("fetch failed"), MessageNetwork},
		{"network", errors.New("network is unreachable"), MessageNetwork},
		{"unknown", errors.New("totally unknown"), MessageUnknown},
		{"nil", nil, MessageUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	err := errors.New("network hiccup after 429")
	if got := Categorize(err); got != CategoryRateLimit {
		t.Errorf("Expected rate limit to win over network, got %s", got)
	}

	err = errors.New("401 from upstream after 500 retries")
	if got := Categorize(err); got != CategoryAuth {
		t.Errorf("Expected auth to win over server, got %s", got)
	}
}

func TestClassify_CaseSensitive(t *testing.T) {
	// "Unauthorized" with a capital U does not match the lowercase needle.
	if got := Categorize(errors.New("Unauthorized")); got != CategoryUnknown {
		t.Errorf("Expected unknown for capitalised Unauthorized, got %s", got)
	}
	if got := Categorize(errors.New("Network down")); got != CategoryUnknown {
		t.Errorf("Expected unknown for capitalised Network, got %s", got)
	}
}

func TestCategoryString(t *testing.T) {
	tests := map[Category]string{
		CategoryUnknown:   "unknown",
		CategoryRateLimit: "rate_limit",
		CategoryAuth:      "auth",
		CategoryServer:    "server",
		CategoryNetwork:   "network",
		Category(99):      "unknown",
	}
	for c, want := range tests {
		if got := c.String(); got != want {
			t.Errorf("Category(%d).String() = %q, want %q", int(c), got, want)
		}
	}
}
