// internal/models/sse.go
package models

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// errStopStream ends readSSE without an error.
var errStopStream = errors.New("stop stream")

// readSSE calls handle with each "data:" payload from an upstream SSE body
// until EOF, "[DONE]", or handle returns errStopStream or another error.
func readSSE(ctx context.Context, body io.Reader, handle func(payload string) error) error {
	reader := bufio.NewReader(body)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, "data:") {
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return nil
			}
			if payload != "" {
				if err := handle(payload); err != nil {
					if errors.Is(err, errStopStream) {
						return nil
					}
					return err
				}
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}

// apiError reads a failed upstream response into an error that keeps the
// status code visible to the error classifier.
func apiError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s API error %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(body)))
}
