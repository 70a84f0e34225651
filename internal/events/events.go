package events

import "context"

// Streams
const (
	StreamAds         = "events:ad"
	StreamConnections = "events:connection"
)

// Event types
const (
	EventAdStatusChanged     = "ad_status_changed"
	EventConnectionVerified  = "connection_verified"
	EventAdminAccessVerified = "admin_access_verified"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// OwnerID extracts the campaign owner the event is addressed to.
func (e Event) OwnerID() string {
	v, _ := e.Payload["owner_user_id"].(string)
	return v
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
