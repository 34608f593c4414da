package events

import "time"

// Event types recorded by the journal.
const (
	TypeModeChanged    = "mode_changed"
	TypeOriginPicked   = "origin_picked"
	TypeOriginFailed   = "origin_write_failed"
	TypeDecodeFailed   = "decode_failed"
	TypeFrameDropped   = "frame_dropped"
	TypeInputClosed    = "input_closed"
	TypeProducerStart  = "producer_started"
	TypeProducerExited = "producer_exited"
	TypeManual         = "manual"
)

type Event struct {
	Type      string    `json:"type"`             // one of the Type* constants
	Source    string    `json:"source"`           // component that raised it
	Detail    string    `json:"detail,omitempty"` // free text, e.g. the error
	Timestamp time.Time `json:"timestamp"`        // when the event occurred
}
