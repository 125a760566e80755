package logging

import "time"

// #region event-types
// Domain event types written to event_log.
const (
	EventSEUCreated    = "seu.created"
	EventRawRegistered = "channel.raw_registered"
	EventMetaCreated   = "channel.meta_created"
	EventCubeCreated   = "cube.created"

	DefaultEventLimit = 50
)
// #endregion event-types

// #region event
// Event is a single row in the append-only event_log table.
type Event struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	SEUID     string         `json:"seu_id,omitempty"`
	Payload   map[string]any `json:"payload"`
	EmittedAt time.Time      `json:"emitted_at"`
}
// #endregion event

// #region log-config
// LogConfig selects the level and encoding of the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | console
}
// #endregion log-config
