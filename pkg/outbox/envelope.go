package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef records who rang up the change and at which shop.
type ActorRef struct {
	UserID     int64  `json:"userId"`
	Role       string `json:"role,omitempty"`
	LocationID *int64 `json:"locationId,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published as the
// Pub/Sub message body. Consumers dedupe on EventID.
type PayloadEnvelope struct {
	EventID    string          `json:"eventId"`
	Version    int             `json:"version"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
