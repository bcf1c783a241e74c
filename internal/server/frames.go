package server

import (
	"encoding/json"
	"fmt"

	wberrors "github.com/conneroisu/whiteboard/internal/errors"
)

// Frame types sent by the browser.
const (
	FrameReady    = "ready"
	FramePopState = "popstate"
	FrameNavigate = "navigate"
	FrameMessage  = "message"
)

// Frame types sent to the browser. FrameMessage is also sent, carrying
// relayed broadcasts.
const (
	FramePushState    = "pushState"
	FrameReplaceState = "replaceState"
	FrameTitle        = "title"
	FrameRender       = "render"
	FrameReload       = "reload"
	FrameError        = "error"
)

// Frame is one JSON websocket message in either direction. Which fields are
// set depends on Type.
type Frame struct {
	Type     string          `json:"type"`
	Path     string          `json:"path,omitempty"`
	Title    string          `json:"title,omitempty"`
	URL      string          `json:"url,omitempty"`
	Fragment string          `json:"fragment,omitempty"`
	Trigger  bool            `json:"trigger,omitempty"`
	Replace  bool            `json:"replace,omitempty"`
	Name     string          `json:"name,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	HTML     string          `json:"html,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// decodeFrame parses and checks a frame from the browser.
func decodeFrame(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return f, wberrors.NewFrameError("malformed frame", err)
	}

	switch f.Type {
	case FrameReady, FramePopState:
		if f.Path == "" {
			f.Path = "/"
		}
	case FrameNavigate:
	case FrameMessage:
		if f.Name == "" {
			return f, wberrors.NewFrameError("message frame without name", nil)
		}
	default:
		return f, wberrors.NewFrameError(fmt.Sprintf("unknown frame type %q", f.Type), nil)
	}
	return f, nil
}

// payload decodes the data of a message frame. Absent data is nil.
func (f Frame) payload() (any, error) {
	if len(f.Data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(f.Data, &v); err != nil {
		return nil, wberrors.NewFrameError("malformed message data", err)
	}
	return v, nil
}

func messageFrame(name string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %q message: %w", name, err)
	}
	return Frame{Type: FrameMessage, Name: name, Data: raw}, nil
}

func errorFrame(err error) Frame {
	return Frame{Type: FrameError, Message: err.Error()}
}
