// Package sse implements the relay's event-stream framing.
//
// Every frame is a single line "data: <json>" followed by a blank line. A
// turn is zero or more content frames terminated by exactly one done or error
// frame:
//
//	data: {"content":"Hel"}
//	data: {"content":"lo"}
//	data: {"done":true,"timestamp":"2024-01-01T12:00:00.000Z"}
//
// [Writer] produces frames on the server; [Reader] reassembles them on the
// client regardless of how the transport chunks the bytes.
package sse

import "time"

// TimeFormat is the wire format for timestamps: ISO-8601 UTC with
// millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in [TimeFormat] after converting it to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// payload is the JSON body of one data line. Exactly one of Content, Done or
// Error is meaningful per frame.
type payload struct {
	Content   *string `json:"content,omitempty"`
	Done      bool    `json:"done,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Error     *string `json:"error,omitempty"`
	Details   string  `json:"details,omitempty"`
}
