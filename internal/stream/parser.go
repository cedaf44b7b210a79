package stream

import (
	"encoding/json"
	"strings"
)

// EventType discriminates the records carried by the sandbox framed protocol.
type EventType string

const (
	EventStdout   EventType = "stdout"
	EventStderr   EventType = "stderr"
	EventMetadata EventType = "metadata"
	EventChunk    EventType = "chunk"
	EventComplete EventType = "complete"
)

// Event is one decoded record from a framed stream. Only the fields relevant
// to the record's type are populated; the rest stay zero.
type Event struct {
	Type EventType `json:"type"`

	// stdout/stderr/chunk payload
	Data string `json:"data,omitempty"`

	// metadata
	Size   int64  `json:"size,omitempty"`
	Mime   string `json:"mime,omitempty"`
	Binary bool   `json:"binary,omitempty"`

	// complete
	Bytes int64 `json:"bytes,omitempty"`
}

// recordDelimiter separates records in the framed protocol.
const recordDelimiter = "\n\n"

// dataPrefix is an optional fixed prefix some transports put in front of the
// JSON payload of each record.
const dataPrefix = "data: "

// Parse splits raw framed text into typed events. Blocks that do not decode
// as JSON are dropped; the protocol is best-effort and a garbled frame must
// not abort the rest of the stream.
func Parse(raw string) []Event {
	blocks := strings.Split(raw, recordDelimiter)
	events := make([]Event, 0, len(blocks))
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		block = strings.TrimPrefix(block, dataPrefix)
		var ev Event
		if err := json.Unmarshal([]byte(block), &ev); err != nil {
			continue
		}
		if ev.Type == "" {
			continue
		}
		events = append(events, ev)
	}
	return events
}

// FileContent reconstructs a file read from its framed stream: chunk payloads
// concatenated in arrival order. The metadata and complete records are not
// required to be present.
func FileContent(raw string) string {
	var b strings.Builder
	for _, ev := range Parse(raw) {
		if ev.Type == EventChunk {
			b.WriteString(ev.Data)
		}
	}
	return b.String()
}

// CommandOutput reconstructs the combined stdout/stderr text of an exec
// stream in arrival order.
func CommandOutput(raw string) string {
	var b strings.Builder
	for _, ev := range Parse(raw) {
		if ev.Type == EventStdout || ev.Type == EventStderr {
			b.WriteString(ev.Data)
		}
	}
	return b.String()
}
