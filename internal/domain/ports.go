package domain

import "context"

// Sequencer issues monotonically increasing integers per named sequence.
type Sequencer interface {
	// NextValue atomically advances the named counter and returns the new
	// value. A counter that does not exist yet is created so that the first
	// value issued is startAt. startAt <= 0 means 1.
	NextValue(ctx context.Context, name string, startAt int64) (int64, error)

	// Ensure creates the named counter so that its first value will be
	// startAt. An existing counter is left untouched.
	Ensure(ctx context.Context, name string, startAt int64) error
}

// QuoteRepository reads feed candidates.
type QuoteRepository interface {
	// ListQuotes returns quotes with non-empty text ordered by creation time
	// descending, then by numeric quote id descending.
	ListQuotes(ctx context.Context, offset, limit int) ([]Quote, error)

	// CountQuotes returns the number of quotes ListQuotes can page through.
	CountQuotes(ctx context.Context) (int64, error)
}

// PostRepository reads the posts that publish quotes.
type PostRepository interface {
	// FindPostsByQuoteKeys returns every post referencing one of the keys,
	// whether the reference is stored as a number or a string.
	FindPostsByQuoteKeys(ctx context.Context, keys []Key) ([]Post, error)
}

// BookRepository reads books by key.
type BookRepository interface {
	FindBooksByKeys(ctx context.Context, keys []Key) ([]Book, error)
}

// UserRepository reads user profiles by key.
type UserRepository interface {
	FindUsersByKeys(ctx context.Context, keys []Key) ([]User, error)
}

// InteractionRepository stores likes and saves keyed by (target, viewer).
type InteractionRepository interface {
	// AddInteraction records the interaction. Recording it twice is not an error.
	AddInteraction(ctx context.Context, kind InteractionKind, target Key, viewer string) error

	// RemoveInteraction deletes the interaction. Removing a missing one is not an error.
	RemoveInteraction(ctx context.Context, kind InteractionKind, target Key, viewer string) error

	// CountInteractions returns the number of interactions per target. Targets
	// without any are absent from the map.
	CountInteractions(ctx context.Context, kind InteractionKind, targets []Key) (map[Key]int64, error)

	// ViewerInteractions returns the subset of targets the viewer interacted with.
	ViewerInteractions(ctx context.Context, kind InteractionKind, targets []Key, viewer string) (map[Key]bool, error)
}

// ContentRepository writes user-created books, quotes and posts.
type ContentRepository interface {
	// FindBookByTitleAuthor returns the book whose title and author match
	// case-insensitively, or ErrNotFound.
	FindBookByTitleAuthor(ctx context.Context, title, author string) (*Book, error)

	// InsertBook, InsertQuote and InsertPost store a new record and set its ObjectID.
	InsertBook(ctx context.Context, book *Book) error
	InsertQuote(ctx context.Context, quote *Quote) error
	InsertPost(ctx context.Context, post *Post) error
}
