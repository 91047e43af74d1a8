package activitymap

import (
	"strings"
	"time"

	"github.com/finguard/finguard-server/auth"
)

const (
	// MetadataKeyResource names the kind of object an event acted on
	MetadataKeyResource = "resource"
	// MetadataKeyResourceID holds the id of that object
	MetadataKeyResourceID = "resource_id"
)

const (
	defaultObjectType = "user"
	defaultActorID    = "anonymous"
)

// Normalized is a flat activity record for log and audit pipelines.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	actorFallback string
	now           func() time.Time
}

// Normalize converts an auth.ActivityEvent into a Normalized record. Events
// that name a resource in their metadata get that resource as object; all
// others are about the user.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	out := Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.UserID), options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: defaultObjectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    channelOf(event.EventType),
		OccurredAt: event.OccurredAt,
	}

	if out.OccurredAt.IsZero() {
		out.OccurredAt = options.now().UTC()
	}

	metadata := cloneMap(event.Metadata)
	if resource, ok := metadata[MetadataKeyResource].(string); ok && resource != "" {
		out.ObjectType = resource
		out.ObjectID, _ = metadata[MetadataKeyResourceID].(string)
		delete(metadata, MetadataKeyResource)
		delete(metadata, MetadataKeyResourceID)
	}

	if len(metadata) > 0 {
		out.Metadata = metadata
	}

	return out
}

// WithActorFallback sets the actor id used when the event has no user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			opts.actorFallback = actorID
		}
	}
}

// WithClock sets the time source for events without a timestamp
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

// channelOf is the event type up to its first dot, "auth.login.success" is
// on the "auth" channel.
func channelOf(eventType auth.ActivityEventType) string {
	channel, _, _ := strings.Cut(string(eventType), ".")
	return channel
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
