package webhooks

import "time"

// Event types dispatched to subscribers.
const (
	EventBlockSealed   = "block.sealed"
	EventChainInvalid  = "chain.invalid"
	EventEntryAppended = "entry.appended"
)

// Subscription is a receiver URL and the event types it wants. An empty
// Events list receives every event type.
type Subscription struct {
	URL    string   `json:"url"    mapstructure:"url"`
	Events []string `json:"events" mapstructure:"events"`
}

// Wants reports whether the subscription receives events of type eventType.
func (s Subscription) Wants(eventType string) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, e := range s.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// WebhookEvent is the JSON body POSTed to subscribers.
type WebhookEvent struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}
