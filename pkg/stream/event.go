package stream

import "encoding/json"

// EventType is the "type" field of a streamed frame.
type EventType string

const (
	EventChunk   EventType = "chunk"
	EventSources EventType = "sources"
)

// Event is one decoded `data: {...}` frame. Data is kept raw because its
// shape depends on Type.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Text returns the fragment carried by a chunk event.
func (e Event) Text() (string, bool) {
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", false
	}
	return s, true
}

// Sources returns the citation list carried by a sources event.
func (e Event) Sources() ([]string, bool) {
	var s []string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return nil, false
	}
	return s, true
}
