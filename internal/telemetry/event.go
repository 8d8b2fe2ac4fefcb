// Package telemetry defines the telemetry event schema and the fire-and-forget
// emission path used by the HTTP server.
package telemetry

import "time"

// Event is a single telemetry event (game-scoped, optional device/session).
// Serialized as JSON onto the Kafka topic and consumed by the worker.
type Event struct {
	GameID    string            `json:"gameId"`
	DeviceID  string            `json:"deviceId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	EventType string            `json:"eventType"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// NewEvent returns an Event stamped with the current UTC time.
func NewEvent(gameID, deviceID, eventType string, metadata map[string]string) *Event {
	return &Event{
		GameID:    gameID,
		DeviceID:  deviceID,
		EventType: eventType,
		Source:    "gameboard-server",
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}
