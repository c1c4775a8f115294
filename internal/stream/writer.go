package stream

import (
	"fmt"
	"io"
	"net/http"
)

// Writer encodes a chat stream for the browser or any Consume caller.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
	model   string
}

// NewWriter sets the streaming headers on w and returns a Writer tagging
// every fragment with model. Headers are written on the first frame.
func NewWriter(w http.ResponseWriter, model string) *Writer {
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher, model: model}
}

// NewRawWriter writes frames to any io.Writer without touching headers.
func NewRawWriter(w io.Writer, model string) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher, model: model}
}

// Content writes a success frame. Empty content is a heartbeat.
func (sw *Writer) Content(text string) error {
	return sw.write(EncodeContent(text, sw.model))
}

// Fail writes a failure frame followed by the terminating sentinel.
func (sw *Writer) Fail(message string) error {
	if err := sw.write(EncodeError(message)); err != nil {
		return err
	}
	return sw.write(DoneSentinel)
}

// Done writes the terminating sentinel.
func (sw *Writer) Done() error {
	return sw.write(DoneSentinel)
}

func (sw *Writer) write(payload string) error {
	if _, err := fmt.Fprintf(sw.w, "%s%s\n\n", DataPrefix, payload); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}
