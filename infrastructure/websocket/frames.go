package websocket

import (
	"encoding/json"
	"gym-chat/domain/chat"
	"gym-chat/errors"
)

const (
	FrameInvocation = "invocation"
	FrameEvent      = "event"
	FrameCompletion = "completion"
)

// InboundFrame is the only frame a client sends.
type InboundFrame struct {
	Type         string          `json:"type"`
	InvocationID string          `json:"invocationId"`
	Target       string          `json:"target"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`
}

// EventFrame carries a server-pushed event.
type EventFrame struct {
	Type    string         `json:"type"`
	Target  chat.EventType `json:"target"`
	Payload any            `json:"payload"`
}

// CompletionFrame answers one invocation, with either a result or an error.
type CompletionFrame struct {
	Type         string      `json:"type"`
	InvocationID string      `json:"invocationId"`
	Result       any         `json:"result,omitempty"`
	Error        *FrameError `json:"error,omitempty"`
}

type FrameError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func eventFrame(e chat.Event) EventFrame {
	return EventFrame{Type: FrameEvent, Target: e.Type, Payload: e.Payload}
}

func completionFrame(invocationID string, result any, err error) CompletionFrame {
	frame := CompletionFrame{Type: FrameCompletion, InvocationID: invocationID}
	if err != nil {
		frame.Error = &FrameError{Kind: errors.Kind(err), Message: err.Error()}
		return frame
	}
	frame.Result = result
	return frame
}
