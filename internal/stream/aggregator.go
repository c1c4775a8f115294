// internal/stream/aggregator.go
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrNoBody is returned when a response carries no readable body.
var ErrNoBody = errors.New("response has no readable body")

// fallbackUpstreamMessage is used when a failure frame has no error text.
const fallbackUpstreamMessage = "upstream request failed"

// HTTPError reports a non-2xx response. Body holds the full response text.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d - %s", e.StatusCode, e.Body)
}

// UpstreamError reports an explicit success:false frame.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// Consume reads an SSE-framed chat response, calling onFragment once per
// non-empty content fragment in stream order, and returns the concatenation
// of all fragments. The body is always closed.
//
// A non-2xx status fails with *HTTPError before any fragment is delivered.
// A failure frame aborts with *UpstreamError; fragments already delivered
// stay delivered. Malformed frames are skipped.
func Consume(resp *http.Response, onFragment func(string)) (string, error) {
	if resp == nil {
		return "", ErrNoBody
	}
	empty := resp.Body == nil || resp.Body == http.NoBody
	if !empty {
		defer resp.Body.Close()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body []byte
		if !empty {
			body, _ = io.ReadAll(resp.Body)
		}
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if empty {
		return "", ErrNoBody
	}

	return ConsumeReader(resp.Body, onFragment)
}

// ConsumeReader is Consume without the HTTP envelope. It does not close r.
func ConsumeReader(r io.Reader, onFragment func(string)) (string, error) {
	if r == nil {
		return "", ErrNoBody
	}

	reader := bufio.NewReader(r)
	var full strings.Builder

	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			done, err := handleLine(line, &full, onFragment)
			if err != nil {
				return full.String(), err
			}
			if done {
				return full.String(), nil
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				return full.String(), nil
			}
			return full.String(), fmt.Errorf("read stream: %w", readErr)
		}
	}
}

// handleLine processes one raw line. It reports done when the sentinel is
// seen and an error for failure frames.
func handleLine(line string, full *strings.Builder, onFragment func(string)) (bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, DataPrefix) {
		return false, nil
	}

	frame := DecodeFrame(strings.TrimPrefix(line, DataPrefix))
	switch frame.Kind {
	case FrameDone:
		return true, nil
	case FrameInvalid:
		// Partial or corrupt JSON is expected; skip it.
		return false, nil
	}

	if !frame.Success {
		msg := frame.Error
		if msg == "" {
			msg = fallbackUpstreamMessage
		}
		return false, &UpstreamError{Message: msg}
	}

	if frame.Content == "" {
		return false, nil
	}
	full.WriteString(frame.Content)
	if onFragment != nil {
		onFragment(frame.Content)
	}
	return false, nil
}
