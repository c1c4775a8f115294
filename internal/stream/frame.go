// Package stream decodes and encodes the chat endpoint's SSE-framed
// response stream.
package stream

import (
	"encoding/json"
	"strings"
)

const (
	// DataPrefix starts every frame line on the wire.
	DataPrefix = "data: "
	// DoneSentinel is the payload that terminates a stream.
	DoneSentinel = "[DONE]"
)

// FrameKind tells what a decoded payload was.
type FrameKind int

const (
	FrameInvalid FrameKind = iota
	FrameData
	FrameDone
)

func (k FrameKind) String() string {
	switch k {
	case FrameData:
		return "data"
	case FrameDone:
		return "done"
	default:
		return "invalid"
	}
}

// Frame is one decoded unit from the wire. It is never stored.
type Frame struct {
	Kind    FrameKind
	Success bool
	Content string
	Model   string
	Error   string
}

// wireFrame mirrors the JSON payload. Pointers let DecodeFrame tell a
// missing field from a zero value.
type wireFrame struct {
	Success *bool     `json:"success"`
	Data    *wireData `json:"data,omitempty"`
	Error   *string   `json:"error,omitempty"`
}

type wireData struct {
	Content *string `json:"content,omitempty"`
	Model   string  `json:"model,omitempty"`
}

// DecodeFrame classifies a payload (the text after "data: "). Anything that
// is not the sentinel or a JSON object with a boolean "success" field is
// FrameInvalid; a type mismatch in a known field is invalid as well.
func DecodeFrame(payload string) Frame {
	if strings.TrimSpace(payload) == DoneSentinel {
		return Frame{Kind: FrameDone}
	}

	var wf wireFrame
	if err := json.Unmarshal([]byte(payload), &wf); err != nil {
		return Frame{Kind: FrameInvalid}
	}
	if wf.Success == nil {
		return Frame{Kind: FrameInvalid}
	}

	frame := Frame{Kind: FrameData, Success: *wf.Success}
	if wf.Data != nil {
		if wf.Data.Content != nil {
			frame.Content = *wf.Data.Content
		}
		frame.Model = wf.Data.Model
	}
	if wf.Error != nil {
		frame.Error = *wf.Error
	}
	return frame
}

// EncodeContent renders a success payload carrying one fragment.
func EncodeContent(content, model string) string {
	return encode(wireFrame{
		Success: boolPtr(true),
		Data:    &wireData{Content: &content, Model: model},
	})
}

// EncodeError renders a failure payload.
func EncodeError(message string) string {
	return encode(wireFrame{
		Success: boolPtr(false),
		Error:   &message,
	})
}

func encode(wf wireFrame) string {
	data, err := json.Marshal(wf)
	if err != nil {
		// Only strings and bools are marshalled; this cannot fail.
		return `{"success":false,"error":"encode failed"}`
	}
	return string(data)
}

func boolPtr(b bool) *bool {
	return &b
}
