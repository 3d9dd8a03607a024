package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Consumers (stats cache invalidation, NATS fan-out)
// subscribe by type.
const (
	// Social events
	EventEdgeToggled EventType = "social.edge_toggled"

	// Content events
	EventContentCreated   EventType = "content.created"
	EventContentUpdated   EventType = "content.updated"
	EventContentDeleted   EventType = "content.deleted"
	EventContentViewed    EventType = "content.viewed"
	EventContentPublished EventType = "content.publish_toggled"

	// Comment events
	EventCommentCreated EventType = "comment.created"
	EventCommentDeleted EventType = "comment.deleted"

	// Playlist events
	EventPlaylistChanged EventType = "playlist.changed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Social Events
// ═══════════════════════════════════════════════════════════════════════════

// EdgeToggledEvent is emitted after every successful toggle.
// ChannelID is the owner whose statistics are affected: the followed actor
// for FOLLOW, the owner of the liked content for LIKE.
type EdgeToggledEvent struct {
	BaseEvent
	SourceID   string `json:"source_id"`
	TargetID   string `json:"target_id"`
	Kind       string `json:"kind"`
	TargetType string `json:"target_type"`
	IsPresent  bool   `json:"is_present"`
	ChannelID  string `json:"channel_id,omitempty"`
}

// Payload implements Event interface.
func (e EdgeToggledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"source_id":   e.SourceID,
		"target_id":   e.TargetID,
		"kind":        e.Kind,
		"target_type": e.TargetType,
		"is_present":  e.IsPresent,
		"channel_id":  e.ChannelID,
	}
}

// NewEdgeToggledEvent creates a new EdgeToggledEvent.
func NewEdgeToggledEvent(sourceID, targetID, kind, targetType string, isPresent bool, channelID string) EdgeToggledEvent {
	return EdgeToggledEvent{
		BaseEvent:  NewBaseEvent(EventEdgeToggled, targetID),
		SourceID:   sourceID,
		TargetID:   targetID,
		Kind:       kind,
		TargetType: targetType,
		IsPresent:  isPresent,
		ChannelID:  channelID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Content Events
// ═══════════════════════════════════════════════════════════════════════════

// ContentChangedEvent covers create, update, delete, view and publish toggles
// of a content item. The event type tells them apart.
type ContentChangedEvent struct {
	BaseEvent
	ContentID string `json:"content_id"`
	OwnerID   string `json:"owner_id"`
	Kind      string `json:"kind"`
}

// Payload implements Event interface.
func (e ContentChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"content_id": e.ContentID,
		"owner_id":   e.OwnerID,
		"kind":       e.Kind,
	}
}

// NewContentChangedEvent creates a new ContentChangedEvent.
func NewContentChangedEvent(eventType EventType, contentID, ownerID, kind string) ContentChangedEvent {
	return ContentChangedEvent{
		BaseEvent: NewBaseEvent(eventType, contentID),
		ContentID: contentID,
		OwnerID:   ownerID,
		Kind:      kind,
	}
}

// CommentChangedEvent is emitted when a comment is created or deleted.
// ChannelID is the owner of the commented content.
type CommentChangedEvent struct {
	BaseEvent
	CommentID string `json:"comment_id"`
	ContentID string `json:"content_id"`
	AuthorID  string `json:"author_id"`
	ChannelID string `json:"channel_id"`
}

// Payload implements Event interface.
func (e CommentChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"comment_id": e.CommentID,
		"content_id": e.ContentID,
		"author_id":  e.AuthorID,
		"channel_id": e.ChannelID,
	}
}

// NewCommentChangedEvent creates a new CommentChangedEvent.
func NewCommentChangedEvent(eventType EventType, commentID, contentID, authorID, channelID string) CommentChangedEvent {
	return CommentChangedEvent{
		BaseEvent: NewBaseEvent(eventType, commentID),
		CommentID: commentID,
		ContentID: contentID,
		AuthorID:  authorID,
		ChannelID: channelID,
	}
}

// PlaylistChangedEvent is emitted on any playlist mutation.
type PlaylistChangedEvent struct {
	BaseEvent
	PlaylistID string `json:"playlist_id"`
	OwnerID    string `json:"owner_id"`
	Action     string `json:"action"`
	ContentID  string `json:"content_id,omitempty"`
}

// Payload implements Event interface.
func (e PlaylistChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"playlist_id": e.PlaylistID,
		"owner_id":    e.OwnerID,
		"action":      e.Action,
		"content_id":  e.ContentID,
	}
}

// NewPlaylistChangedEvent creates a new PlaylistChangedEvent.
func NewPlaylistChangedEvent(playlistID, ownerID, action, contentID string) PlaylistChangedEvent {
	return PlaylistChangedEvent{
		BaseEvent:  NewBaseEvent(EventPlaylistChanged, playlistID),
		PlaylistID: playlistID,
		OwnerID:    ownerID,
		Action:     action,
		ContentID:  contentID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes event into a transport envelope.
func NewEventEnvelope(event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	env := EventEnvelope{
		ID:          NewID(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if b, ok := event.(interface{ Base() BaseEvent }); ok {
		env.CorrelationID = b.Base().CorrelationID
	}
	return env, nil
}

// Base exposes the embedded BaseEvent.
func (e BaseEvent) Base() BaseEvent {
	return e
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
