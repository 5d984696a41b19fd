package event

import (
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/google/uuid"
)

// Event represents something that happened to an approvable request or to
// the user directory. Events are dispatched after the transaction commits.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	RequestType   entity.RequestType     `json:"request_type,omitempty"`
	RequestID     int64                  `json:"request_id,omitempty"`
	ActorID       int64                  `json:"actor_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a request event with a fresh id and correlation id
func NewEvent(eventType Type, requestType entity.RequestType, requestID, actorID int64, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, requestType, requestID, actorID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to an existing correlation
// id, typically the X-Request-ID of the HTTP call that caused it
func NewEventWithCorrelation(eventType Type, requestType entity.RequestType, requestID, actorID int64, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		RequestType:   requestType,
		RequestID:     requestID,
		ActorID:       actorID,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy of the event with an extra payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	cp := *e
	cp.Payload = payload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// GetPayloadInt retrieves an integer value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	b, _ := e.Payload[key].(bool)
	return b
}
