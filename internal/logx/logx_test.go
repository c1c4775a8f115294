package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
)

func newCaptureLogger(c *logCapture) pslog.Logger {
	return pslog.NewWithOptions(c, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithSlotAddsFields(t *testing.T) {
	capture := &logCapture{}
	log := WithSlot(newCaptureLogger(capture), 2, "gemini-2.0-flash")
	log.Info("chunk")

	entry := capture.firstEntry(t)
	if entry["slot"] != float64(2) {
		t.Fatalf("expected slot field, got %+v", entry)
	}
	if entry["model"] != "gemini-2.0-flash" {
		t.Fatalf("expected model field, got %+v", entry)
	}
}

func TestWithSlotSkipsEmpty(t *testing.T) {
	capture := &logCapture{}
	log := WithSlot(newCaptureLogger(capture), 0, "")
	log.Info("lane")

	entry := capture.firstEntry(t)
	if _, ok := entry["slot"]; ok {
		t.Fatalf("did not expect slot for index 0")
	}
	if _, ok := entry["model"]; ok {
		t.Fatalf("did not expect model for empty id")
	}
}

func TestWithRequestDeduplicates(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture)
	ctx := ContextWithRequestLogger(context.Background(), logger.With("request", "r1"), "r1")

	WithRequest(ctx, "r1").Info("hello")

	line := capture.buf.String()
	if n := bytes.Count([]byte(line), []byte(`"request"`)); n != 1 {
		t.Fatalf("expected one request field, got %d in %s", n, line)
	}
}

func TestContextWithChat(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	ctx = ContextWithChat(ctx, "chat-1")
	Ctx(ctx).Info("saved")

	entry := capture.firstEntry(t)
	if entry["chat"] != "chat-1" {
		t.Fatalf("expected chat field, got %+v", entry)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
