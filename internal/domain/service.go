package domain

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultStageTimeout bounds each store round trip of feed assembly.
const DefaultStageTimeout = 5 * time.Second

// FeedStores groups the read ports the feed is assembled from.
type FeedStores struct {
	Quotes       QuoteRepository
	Posts        PostRepository
	Books        BookRepository
	Users        UserRepository
	Interactions InteractionRepository
}

// FeedService assembles pages of the public quote feed. Each page joins
// quotes with their posts, books, authors and interaction stats.
type FeedService struct {
	stores       FeedStores
	stageTimeout time.Duration
	pages        singleflight.Group
	logger       *slog.Logger
}

// NewFeedService creates a FeedService. A stageTimeout of zero uses
// DefaultStageTimeout.
func NewFeedService(stores FeedStores, stageTimeout time.Duration, logger *slog.Logger) (*FeedService, error) {
	if stores.Quotes == nil || stores.Posts == nil || stores.Books == nil || stores.Users == nil || stores.Interactions == nil {
		return nil, errors.New("feed service: all stores are required")
	}
	if stageTimeout <= 0 {
		stageTimeout = DefaultStageTimeout
	}
	return &FeedService{
		stores:       stores,
		stageTimeout: stageTimeout,
		logger:       logger,
	}, nil
}

// GetPage returns one page of the feed. Any store failure yields an error
// wrapping ErrFeedUnavailable and no partial page. Identical anonymous
// requests in flight at the same time share one assembly.
func (s *FeedService) GetPage(ctx context.Context, req PageRequest) (*FeedPage, error) {
	req = req.withDefaults()
	s.logger.Debug("GetPage called", "page", req.Page, "pageSize", req.PageSize, "viewer", req.Viewer)

	if req.Viewer != "" {
		return s.assemble(ctx, req)
	}

	// The shared assembly outlives any one caller's cancellation; the stage
	// timeouts still bound it. Each caller waits only on its own context.
	key := strconv.Itoa(req.Page) + ":" + strconv.Itoa(req.PageSize)
	flight := context.WithoutCancel(ctx)
	ch := s.pages.DoChan(key, func() (any, error) {
		return s.assemble(flight, req)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("feed page shared with concurrent request", "page", req.Page, "pageSize", req.PageSize)
		}
		return res.Val.(*FeedPage), nil
	}
}

func (s *FeedService) assemble(ctx context.Context, req PageRequest) (*FeedPage, error) {
	var (
		total  int64
		quotes []Quote
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.stage(gctx, func(ctx context.Context) (err error) {
			total, err = s.stores.Quotes.CountQuotes(ctx)
			if err != nil {
				return fmt.Errorf("count quotes: %w", err)
			}
			return nil
		})
	})
	g.Go(func() error {
		return s.stage(gctx, func(ctx context.Context) (err error) {
			quotes, err = s.stores.Quotes.ListQuotes(ctx, req.offset(), req.PageSize)
			if err != nil {
				return fmt.Errorf("list quotes (offset=%d, limit=%d): %w", req.offset(), req.PageSize, err)
			}
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, s.unavailable(err)
	}

	page := &FeedPage{
		Items:      make([]FeedItem, 0, len(quotes)),
		Pagination: NewPagination(req.Page, req.PageSize, total),
	}
	if len(quotes) == 0 {
		return page, nil
	}

	quoteKeys := NewKeySet()
	bookKeys := NewKeySet()
	for _, q := range quotes {
		quoteKeys.Add(q.QuoteID)
		bookKeys.Add(q.BookID)
	}

	var posts []Post
	if quoteKeys.Len() > 0 {
		err := s.stage(ctx, func(ctx context.Context) (err error) {
			posts, err = s.stores.Posts.FindPostsByQuoteKeys(ctx, quoteKeys.Keys())
			if err != nil {
				return fmt.Errorf("find posts: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, s.unavailable(err)
		}
	}

	userKeys := NewKeySet()
	for _, p := range posts {
		bookKeys.Add(p.BookID)
		userKeys.Add(p.UserID)
	}

	books := make(map[Key]*Book)
	users := make(map[Key]*User)

	g, gctx = errgroup.WithContext(ctx)
	if bookKeys.Len() > 0 {
		g.Go(func() error {
			return s.stage(gctx, func(ctx context.Context) error {
				found, err := s.stores.Books.FindBooksByKeys(ctx, bookKeys.Keys())
				if err != nil {
					return fmt.Errorf("find books: %w", err)
				}
				for i := range found {
					for _, k := range []Key{found[i].Key(), Key(found[i].ObjectID)} {
						if k != "" {
							books[k] = &found[i]
						}
					}
				}
				return nil
			})
		})
	}
	if userKeys.Len() > 0 {
		g.Go(func() error {
			return s.stage(gctx, func(ctx context.Context) error {
				found, err := s.stores.Users.FindUsersByKeys(ctx, userKeys.Keys())
				if err != nil {
					return fmt.Errorf("find users: %w", err)
				}
				for i := range found {
					for _, k := range []Key{found[i].Key(), Key(found[i].ObjectID)} {
						if k != "" {
							users[k] = &found[i]
						}
					}
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.unavailable(err)
	}

	stats, err := s.interactionStats(ctx, quoteKeys.Keys(), req.Viewer)
	if err != nil {
		return nil, s.unavailable(err)
	}

	latest := latestPostByQuote(posts)
	for _, q := range quotes {
		item := FeedItem{Quote: q}
		if q.QuoteID != "" {
			item.Post = latest[q.QuoteID]
			item.Interactions = stats[q.QuoteID]
		}
		if k := item.BookKey(); k != "" {
			item.Book = books[k]
		}
		if item.Post != nil && item.Post.UserID != "" {
			item.User = users[item.Post.UserID]
		}
		page.Items = append(page.Items, item)
	}

	s.logger.Debug("feed page assembled",
		"page", req.Page,
		"items", len(page.Items),
		"posts", len(posts),
		"books", len(books),
		"users", len(users),
	)
	return page, nil
}

// interactionStats counts likes and saves for the targets and, when a viewer
// is present, resolves the viewer's own likes and saves. The four lookups run
// concurrently.
func (s *FeedService) interactionStats(ctx context.Context, targets []Key, viewer string) (map[Key]InteractionStats, error) {
	result := make(map[Key]InteractionStats, len(targets))
	if len(targets) == 0 {
		return result, nil
	}

	var (
		likes, saves   map[Key]int64
		liked, savedBy map[Key]bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.stage(gctx, func(ctx context.Context) (err error) {
			likes, err = s.stores.Interactions.CountInteractions(ctx, InteractionLike, targets)
			if err != nil {
				return fmt.Errorf("count likes: %w", err)
			}
			return nil
		})
	})
	g.Go(func() error {
		return s.stage(gctx, func(ctx context.Context) (err error) {
			saves, err = s.stores.Interactions.CountInteractions(ctx, InteractionSave, targets)
			if err != nil {
				return fmt.Errorf("count saves: %w", err)
			}
			return nil
		})
	})
	if viewer != "" {
		g.Go(func() error {
			return s.stage(gctx, func(ctx context.Context) (err error) {
				liked, err = s.stores.Interactions.ViewerInteractions(ctx, InteractionLike, targets, viewer)
				if err != nil {
					return fmt.Errorf("viewer likes: %w", err)
				}
				return nil
			})
		})
		g.Go(func() error {
			return s.stage(gctx, func(ctx context.Context) (err error) {
				savedBy, err = s.stores.Interactions.ViewerInteractions(ctx, InteractionSave, targets, viewer)
				if err != nil {
					return fmt.Errorf("viewer saves: %w", err)
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, k := range targets {
		result[k] = InteractionStats{
			LikesCount:  likes[k],
			SavesCount:  saves[k],
			LikedByUser: liked[k],
			SavedByUser: savedBy[k],
		}
	}
	return result, nil
}

// stage runs fn under the per-stage timeout.
func (s *FeedService) stage(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *FeedService) unavailable(err error) error {
	s.logger.Error("feed assembly failed", "error", err)
	return fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
}

// latestPostByQuote picks one post per quote key: the most recently created.
// Ties fall back to the higher post id, then the higher object id, so the
// choice does not depend on the order the store returned the posts in.
func latestPostByQuote(posts []Post) map[Key]*Post {
	sorted := make([]*Post, len(posts))
	for i := range posts {
		sorted[i] = &posts[i]
	}
	slices.SortStableFunc(sorted, func(a, b *Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if c := compareKeys(b.PostID, a.PostID); c != 0 {
			return c
		}
		return cmp.Compare(b.ObjectID, a.ObjectID)
	})

	latest := make(map[Key]*Post, len(sorted))
	for _, p := range sorted {
		if p.QuoteID == "" {
			continue
		}
		if _, ok := latest[p.QuoteID]; !ok {
			latest[p.QuoteID] = p
		}
	}
	return latest
}

// compareKeys orders numeric keys numerically and everything else lexically.
// Numeric keys rank above non-numeric ones.
func compareKeys(a, b Key) int {
	an, aok := a.Int64()
	bn, bok := b.Int64()
	switch {
	case aok && bok:
		return cmp.Compare(an, bn)
	case aok:
		return 1
	case bok:
		return -1
	default:
		return cmp.Compare(a, b)
	}
}
