package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

var errStoreDown = errors.New("store down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory implementation of every read and write port.
type memStore struct {
	mu           sync.Mutex
	quotes       []Quote
	posts        []Post
	books        []Book
	users        []User
	interactions map[InteractionKind]map[Key]map[string]bool

	failOn string // name of the method that should fail
	calls  map[string]int

	// When listGate is set, ListQuotes signals listStarted and waits for the
	// gate to close or its context to end.
	listGate    chan struct{}
	listStarted chan struct{}
}

var (
	_ QuoteRepository       = (*memStore)(nil)
	_ PostRepository        = (*memStore)(nil)
	_ BookRepository        = (*memStore)(nil)
	_ UserRepository        = (*memStore)(nil)
	_ InteractionRepository = (*memStore)(nil)
	_ ContentRepository     = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		interactions: map[InteractionKind]map[Key]map[string]bool{
			InteractionLike: {},
			InteractionSave: {},
		},
		calls: make(map[string]int),
	}
}

func (m *memStore) stores() FeedStores {
	return FeedStores{Quotes: m, Posts: m, Books: m, Users: m, Interactions: m}
}

func (m *memStore) enter(method string) error {
	m.calls[method]++
	if m.failOn == method {
		return errStoreDown
	}
	return nil
}

func (m *memStore) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// visibleQuotes mirrors the store ordering: created desc, then numeric id desc.
func (m *memStore) visibleQuotes() []Quote {
	var out []Quote
	for _, q := range m.quotes {
		if strings.TrimSpace(q.Content) != "" {
			out = append(out, q)
		}
	}
	slices.SortStableFunc(out, func(a, b Quote) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareKeys(b.QuoteID, a.QuoteID)
	})
	return out
}

func (m *memStore) ListQuotes(ctx context.Context, offset, limit int) ([]Quote, error) {
	if m.listGate != nil {
		select {
		case m.listStarted <- struct{}{}:
		default:
		}
		select {
		case <-m.listGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListQuotes"); err != nil {
		return nil, err
	}
	all := m.visibleQuotes()
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return slices.Clone(all[offset:end]), nil
}

func (m *memStore) CountQuotes(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CountQuotes"); err != nil {
		return 0, err
	}
	return int64(len(m.visibleQuotes())), nil
}

func (m *memStore) FindPostsByQuoteKeys(_ context.Context, keys []Key) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindPostsByQuoteKeys"); err != nil {
		return nil, err
	}
	var out []Post
	for _, p := range m.posts {
		if slices.Contains(keys, p.QuoteID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) FindBooksByKeys(_ context.Context, keys []Key) ([]Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindBooksByKeys"); err != nil {
		return nil, err
	}
	var out []Book
	for _, b := range m.books {
		// Like the Mongo adapter, match the sequence id or the storage id.
		if slices.Contains(keys, b.Key()) || slices.Contains(keys, Key(b.ObjectID)) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) FindUsersByKeys(_ context.Context, keys []Key) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindUsersByKeys"); err != nil {
		return nil, err
	}
	var out []User
	for _, u := range m.users {
		if slices.Contains(keys, u.Key()) || slices.Contains(keys, Key(u.ObjectID)) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) AddInteraction(_ context.Context, kind InteractionKind, target Key, viewer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AddInteraction"); err != nil {
		return err
	}
	byTarget := m.interactions[kind]
	if byTarget[target] == nil {
		byTarget[target] = make(map[string]bool)
	}
	byTarget[target][viewer] = true
	return nil
}

func (m *memStore) RemoveInteraction(_ context.Context, kind InteractionKind, target Key, viewer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RemoveInteraction"); err != nil {
		return err
	}
	delete(m.interactions[kind][target], viewer)
	return nil
}

func (m *memStore) CountInteractions(_ context.Context, kind InteractionKind, targets []Key) (map[Key]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CountInteractions"); err != nil {
		return nil, err
	}
	out := make(map[Key]int64)
	for _, t := range targets {
		if n := len(m.interactions[kind][t]); n > 0 {
			out[t] = int64(n)
		}
	}
	return out, nil
}

func (m *memStore) ViewerInteractions(_ context.Context, kind InteractionKind, targets []Key, viewer string) (map[Key]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ViewerInteractions"); err != nil {
		return nil, err
	}
	out := make(map[Key]bool)
	for _, t := range targets {
		if m.interactions[kind][t][viewer] {
			out[t] = true
		}
	}
	return out, nil
}

func (m *memStore) FindBookByTitleAuthor(_ context.Context, title, author string) (*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindBookByTitleAuthor"); err != nil {
		return nil, err
	}
	for _, b := range m.books {
		if strings.EqualFold(b.Title, title) && strings.EqualFold(b.Author, author) {
			found := b
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) InsertBook(_ context.Context, book *Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertBook"); err != nil {
		return err
	}
	book.ObjectID = "book-" + book.BookID.String()
	m.books = append(m.books, *book)
	return nil
}

func (m *memStore) InsertQuote(_ context.Context, quote *Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertQuote"); err != nil {
		return err
	}
	quote.ObjectID = "quote-" + quote.QuoteID.String()
	m.quotes = append(m.quotes, *quote)
	return nil
}

func (m *memStore) InsertPost(_ context.Context, post *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertPost"); err != nil {
		return err
	}
	post.ObjectID = "post-" + post.PostID.String()
	m.posts = append(m.posts, *post)
	return nil
}

// memSequencer is an in-memory Sequencer.
type memSequencer struct {
	mu       sync.Mutex
	counters map[string]int64
	failOn   string // sequence name that fails
}

var _ Sequencer = (*memSequencer)(nil)

func newMemSequencer() *memSequencer {
	return &memSequencer{counters: make(map[string]int64)}
}

func (s *memSequencer) NextValue(_ context.Context, name string, startAt int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == s.failOn {
		return 0, ErrSequenceUnavailable
	}
	if startAt <= 0 {
		startAt = 1
	}
	cur, ok := s.counters[name]
	if !ok {
		cur = startAt - 1
	}
	cur++
	s.counters[name] = cur
	return cur, nil
}

func (s *memSequencer) Ensure(_ context.Context, name string, startAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if startAt <= 0 {
		startAt = 1
	}
	if _, ok := s.counters[name]; !ok {
		s.counters[name] = startAt - 1
	}
	return nil
}

// recordingNotifier remembers every event it receives.
type recordingNotifier struct {
	mu     sync.Mutex
	events []InteractionEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, event InteractionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}
