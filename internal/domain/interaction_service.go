package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// InteractionService toggles likes and saves on quotes. Toggles are
// idempotent: adding twice or removing something absent both succeed.
type InteractionService struct {
	repo      InteractionRepository
	notifiers []InteractionNotifier
	logger    *slog.Logger
}

// NewInteractionService creates an InteractionService. Notifiers are told
// about every successful toggle.
func NewInteractionService(repo InteractionRepository, logger *slog.Logger, notifiers ...InteractionNotifier) *InteractionService {
	return &InteractionService{
		repo:      repo,
		notifiers: notifiers,
		logger:    logger,
	}
}

// Add records that viewer liked or saved target and returns the refreshed stats.
func (s *InteractionService) Add(ctx context.Context, kind InteractionKind, target, viewer string) (*InteractionStats, error) {
	return s.toggle(ctx, ActionAdd, kind, target, viewer)
}

// Remove withdraws the viewer's like or save and returns the refreshed stats.
func (s *InteractionService) Remove(ctx context.Context, kind InteractionKind, target, viewer string) (*InteractionStats, error) {
	return s.toggle(ctx, ActionRemove, kind, target, viewer)
}

// Stats returns the like/save counts of target and the viewer's own flags.
// An empty viewer yields false flags.
func (s *InteractionService) Stats(ctx context.Context, target, viewer string) (*InteractionStats, error) {
	key, ok := NormalizeKey(target)
	if !ok {
		return nil, fmt.Errorf("%w: quote id is required", ErrInvalidInput)
	}
	return s.stats(ctx, key, strings.TrimSpace(viewer))
}

func (s *InteractionService) toggle(ctx context.Context, action InteractionAction, kind InteractionKind, target, viewer string) (*InteractionStats, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown interaction kind %q", ErrInvalidInput, kind)
	}
	key, ok := NormalizeKey(target)
	if !ok {
		return nil, fmt.Errorf("%w: quote id is required", ErrInvalidInput)
	}
	viewer = strings.TrimSpace(viewer)
	if viewer == "" {
		return nil, fmt.Errorf("%w: viewer is required", ErrInvalidInput)
	}

	var err error
	if action == ActionAdd {
		err = s.repo.AddInteraction(ctx, kind, key, viewer)
	} else {
		err = s.repo.RemoveInteraction(ctx, kind, key, viewer)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s on quote %s: %w", action, kind, key, err)
	}

	stats, err := s.stats(ctx, key, viewer)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, InteractionEvent{
		Kind:   kind,
		Action: action,
		Target: key,
		Viewer: viewer,
		Stats:  *stats,
		At:     time.Now().UTC(),
	})
	return stats, nil
}

func (s *InteractionService) stats(ctx context.Context, key Key, viewer string) (*InteractionStats, error) {
	var (
		stats   InteractionStats
		targets = []Key{key}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.repo.CountInteractions(gctx, InteractionLike, targets)
		if err != nil {
			return fmt.Errorf("count likes: %w", err)
		}
		stats.LikesCount = counts[key]
		return nil
	})
	g.Go(func() error {
		counts, err := s.repo.CountInteractions(gctx, InteractionSave, targets)
		if err != nil {
			return fmt.Errorf("count saves: %w", err)
		}
		stats.SavesCount = counts[key]
		return nil
	})
	if viewer != "" {
		g.Go(func() error {
			set, err := s.repo.ViewerInteractions(gctx, InteractionLike, targets, viewer)
			if err != nil {
				return fmt.Errorf("viewer likes: %w", err)
			}
			stats.LikedByUser = set[key]
			return nil
		})
		g.Go(func() error {
			set, err := s.repo.ViewerInteractions(gctx, InteractionSave, targets, viewer)
			if err != nil {
				return fmt.Errorf("viewer saves: %w", err)
			}
			stats.SavedByUser = set[key]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("interaction stats for quote %s: %w", key, err)
	}
	return &stats, nil
}

func (s *InteractionService) notify(ctx context.Context, event InteractionEvent) {
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			s.logger.Warn("interaction notifier failed",
				"kind", event.Kind,
				"action", event.Action,
				"quoteId", event.Target,
				"error", err,
			)
		}
	}
}
