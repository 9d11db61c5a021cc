package domain

import (
	"context"
	"time"
)

// InteractionKind names a kind of viewer interaction with a quote.
type InteractionKind string

const (
	InteractionLike InteractionKind = "like"
	InteractionSave InteractionKind = "save"
)

// Valid reports whether k is a known kind.
func (k InteractionKind) Valid() bool {
	return k == InteractionLike || k == InteractionSave
}

// InteractionAction is the direction of a toggle.
type InteractionAction string

const (
	ActionAdd    InteractionAction = "add"
	ActionRemove InteractionAction = "remove"
)

// InteractionStats holds the like/save counts for a quote and, when a viewer
// is known, whether that viewer liked or saved it.
type InteractionStats struct {
	LikesCount  int64
	SavesCount  int64
	LikedByUser bool
	SavedByUser bool
}

// InteractionEvent describes a completed toggle.
type InteractionEvent struct {
	Kind   InteractionKind
	Action InteractionAction
	Target Key
	Viewer string
	Stats  InteractionStats
	At     time.Time
}

// InteractionNotifier receives interaction events after they are stored.
// Implementations should not block for long; errors are logged by the caller.
type InteractionNotifier interface {
	Notify(ctx context.Context, event InteractionEvent) error
}
