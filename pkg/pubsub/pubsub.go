package pubsub

import (
	"context"
	"encoding/json"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "cache_status", "schema_graph")
	Type    string          `json:"type"`    // Event type (e.g., "rebuilding", "ready", "cleared")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// Topics published by the cache host.
const (
	TopicCacheStatus = "cache_status"
	TopicSchemaGraph = "schema_graph"
)

// CacheStatus reports the cache lifecycle state to subscribers.
type CacheStatus struct {
	State   string `json:"state"`   // idle, rebuilding, ready, cleared, failed
	Message string `json:"message"` // Human-readable status message
}

// SchemaGraphData summarizes the current schema graph for subscribers.
type SchemaGraphData struct {
	NodeCount int  `json:"node_count"`
	EdgeCount int  `json:"edge_count"`
	Complete  bool `json:"complete"` // True when the graph is fully built
}
