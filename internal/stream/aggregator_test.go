package stream

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"threex/internal/classify"
)

func newResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func collect() (*[]string, func(string)) {
	var got []string
	return &got, func(s string) { got = append(got, s) }
}

func TestConsumeConcatenatesFragments(t *testing.T) {
	body := "data: {\"success\":true,\"data\":{\"content\":\"Hel\",\"model\":\"m\"}}\n\n" +
		"data: {\"success\":true,\"data\":{\"content\":\"lo\",\"model\":\"m\"}}\n\n" +
		"data: [DONE]\n\n"

	got, onFragment := collect()
	full, err := Consume(newResponse(200, body), onFragment)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if full != "Hello" {
		t.Errorf("Expected 'Hello', got %q", full)
	}
	if len(*got) != 2 || (*got)[0] != "Hel" || (*got)[1] != "lo" {
		t.Errorf("Expected fragments [Hel lo], got %v", *got)
	}
}

func TestConsumeSkipsMalformedFrames(t *testing.T) {
	body := "data: {\"success\":true,\"data\":{\"content\":\"A\"}}\n\n" +
		"data: {not json\n\n" +
		"data: {\"data\":{\"content\":\"missing success\"}}\n\n" +
		": comment line\n" +
		"event: ping\n" +
		"data: {\"success\":true,\"data\":{\"content\":\"B\"}}\n\n" +
		"data: [DONE]\n\n"

	got, onFragment := collect()
	full, err := Consume(newResponse(200, body), onFragment)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if full != "AB" {
		t.Errorf("Expected 'AB', got %q", full)
	}
	if len(*got) != 2 {
		t.Errorf("Expected 2 fragments, got %d", len(*got))
	}
}

func TestConsumeEmptyContentIsNotDelivered(t *testing.T) {
	body := "data: {\"success\":true,\"data\":{\"content\":\"\"}}\n\n" +
		"data: {\"success\":true}\n\n" +
		"data: {\"success\":true,\"data\":{\"content\":\"x\"}}\n\n"

	got, onFragment := collect()
	full, err := Consume(newResponse(200, body), onFragment)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if full != "x" || len(*got) != 1 {
		t.Errorf("Expected one fragment 'x', got %q / %v", full, *got)
	}
}

func TestConsumeStopsAtDone(t *testing.T) {
	body := "data: {\"success\":true,\"data\":{\"content\":\"before\"}}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"success\":true,\"data\":{\"content\":\"after\"}}\n\n"

	full, err := Consume(newResponse(200, body), nil)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if full != "before" {
		t.Errorf("Expected 'before', got %q", full)
	}
}

func TestConsumeEndOfBodyWithoutDone(t *testing.T) {
	body := "data: {\"success\":true,\"data\":{\"content\":\"tail\"}}"

	full, err := Consume(newResponse(200, body), nil)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if full != "tail" {
		t.Errorf("Expected 'tail', got %q", full)
	}
}

func TestConsumeUpstreamError(t *testing.T) {
	body := "data: {\"success\":true,\"data\":{\"content\":\"partial\"}}\n\n" +
		"data: {\"success\":false,\"error\":\"429 quota exceeded\"}\n\n" +
		"data: {\"success\":true,\"data\":{\"content\":\"never\"}}\n\n"

	got, onFragment := collect()
	_, err := Consume(newResponse(200, body), onFragment)

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if upstream.Message != "429 quota exceeded" {
		t.Errorf("Expected upstream message, got %q", upstream.Message)
	}
	if len(*got) != 1 || (*got)[0] != "partial" {
		t.Errorf("Expected only 'partial' delivered, got %v", *got)
	}
}

func TestConsumeUpstreamErrorFallbackMessage(t *testing.T) {
	_, err := Consume(newResponse(200, "data: {\"success\":false}\n\n"), nil)

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if upstream.Message != "upstream request failed" {
		t.Errorf("Expected fallback message, got %q", upstream.Message)
	}
}

func TestConsumeHTTPError(t *testing.T) {
	called := false
	_, err := Consume(newResponse(500, "Internal Server Error"), func(string) { called = true })

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != 500 {
		t.Errorf("Expected status 500, got %d", httpErr.StatusCode)
	}
	want := "HTTP error! status: 500 - Internal Server Error"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
	if called {
		t.Error("Expected no fragments for an HTTP error")
	}
}

func TestConsumeNoBody(t *testing.T) {
	if _, err := Consume(nil, nil); !errors.Is(err, ErrNoBody) {
		t.Errorf("Expected ErrNoBody for nil response, got %v", err)
	}
	resp := &http.Response{StatusCode: 200, Body: http.NoBody}
	if _, err := Consume(resp, nil); !errors.Is(err, ErrNoBody) {
		t.Errorf("Expected ErrNoBody for empty body, got %v", err)
	}
}

func TestConsumeErrorStatusWithoutBody(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   io.ReadCloser
	}{
		{name: "no body", status: http.StatusTooManyRequests, body: http.NoBody},
		{name: "nil body", status: http.StatusUnauthorized, body: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Consume(&http.Response{StatusCode: tt.status, Body: tt.body}, nil)
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("Expected HTTPError, got %v", err)
			}
			if httpErr.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, httpErr.StatusCode)
			}
			if httpErr.Body != "" {
				t.Errorf("Expected empty body text, got %q", httpErr.Body)
			}
		})
	}
}

func TestConsumeEmptyRateLimitResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	calls := 0
	_, err = Consume(resp, func(string) { calls++ })
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", httpErr.StatusCode)
	}
	if calls != 0 {
		t.Errorf("Expected no fragments, got %d", calls)
	}
	if got := classify.Classify(err); got != classify.MessageRateLimit {
		t.Errorf("Expected the rate-limit message, got %q", got)
	}
}

func TestConsumeCRLFLines(t *testing.T) {
	body := "data: {\"success\":true,\"data\":{\"content\":\"a\"}}\r\n\r\n" +
		"data: [DONE]\r\n\r\n"

	full, err := Consume(newResponse(200, body), nil)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if full != "a" {
		t.Errorf("Expected 'a', got %q", full)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec, "gemini-2.5-flash")

	for _, part := range []string{"The ", "3x ", "rule"} {
		if err := w.Content(part); err != nil {
			t.Fatalf("Content failed: %v", err)
		}
	}
	if err := w.Done(); err != nil {
		t.Fatalf("Done failed: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Expected text/plain content type, got %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Expected no-cache, got %q", cc)
	}

	full, err := Consume(rec.Result(), nil)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if full != "The 3x rule" {
		t.Errorf("Expected 'The 3x rule', got %q", full)
	}
}

func TestWriterFailRoundTrip(t *testing.T) {
	var sb strings.Builder
	w := NewRawWriter(&sb, "m")
	_ = w.Content("ok")
	_ = w.Fail("500 Internal Server Error")

	_, err := ConsumeReader(strings.NewReader(sb.String()), nil)
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if upstream.Message != "500 Internal Server Error" {
		t.Errorf("Expected message preserved, got %q", upstream.Message)
	}
	if !strings.HasSuffix(sb.String(), DataPrefix+DoneSentinel+"\n\n") {
		t.Errorf("Expected the failure to end with the done sentinel, got %q", sb.String())
	}
}
