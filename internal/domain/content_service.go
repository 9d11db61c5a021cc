package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Sequence names used by creation flows.
const (
	SequenceBooks       = "books"
	SequenceQuotes      = "quotes"
	SequencePosts       = "posts"
	SequenceUserProfile = "userprofile"
)

// KnownSequences lists every sequence the service issues values from.
var KnownSequences = []string{SequenceBooks, SequenceQuotes, SequencePosts, SequenceUserProfile}

const maxPostTitleRunes = 120

// NewBook describes the book a new quote comes from.
type NewBook struct {
	Title       string
	Author      string
	CoverImage  string
	Description string
	Genre       []string
	PageCount   int
}

// NewQuote describes a quote a reader is adding.
type NewQuote struct {
	Text       string
	Author     string
	PageNumber int
	Notes      string
	IsPublic   bool
}

// CreatedQuote is the result of ContentService.CreateQuote.
type CreatedQuote struct {
	Book    Book
	Quote   Quote
	Post    Post
	NewBook bool
}

// ContentService creates user content. Every numeric id it assigns comes from
// the injected Sequencer.
type ContentService struct {
	repo   ContentRepository
	seq    Sequencer
	logger *slog.Logger
}

// NewContentService creates a ContentService.
func NewContentService(repo ContentRepository, seq Sequencer, logger *slog.Logger) *ContentService {
	return &ContentService{
		repo:   repo,
		seq:    seq,
		logger: logger,
	}
}

// CreateQuote stores a quote for creator, reusing the book when one with the
// same title and author exists, and publishes it to the feed as a post. Every
// id is issued before the first write, so a sequence failure leaves nothing
// behind.
func (s *ContentService) CreateQuote(ctx context.Context, creator string, book NewBook, quote NewQuote) (*CreatedQuote, error) {
	creator = strings.TrimSpace(creator)
	book.Title = strings.TrimSpace(book.Title)
	book.Author = strings.TrimSpace(book.Author)
	quote.Text = strings.TrimSpace(quote.Text)

	switch {
	case creator == "":
		return nil, fmt.Errorf("%w: creator is required", ErrInvalidInput)
	case book.Title == "" || book.Author == "":
		return nil, fmt.Errorf("%w: book title and author are required", ErrInvalidInput)
	case quote.Text == "":
		return nil, fmt.Errorf("%w: quote text is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	result := &CreatedQuote{}

	existing, err := s.repo.FindBookByTitleAuthor(ctx, book.Title, book.Author)
	switch {
	case err == nil:
		result.Book = *existing
	case errors.Is(err, ErrNotFound):
		bookID, err := s.seq.NextValue(ctx, SequenceBooks, 1)
		if err != nil {
			return nil, fmt.Errorf("issue book id: %w", err)
		}
		result.Book = newBookRecord(sequenceKey(bookID), creator, book, now)
		result.NewBook = true
	default:
		return nil, fmt.Errorf("find book %q by %q: %w", book.Title, book.Author, err)
	}

	quoteID, err := s.seq.NextValue(ctx, SequenceQuotes, 1)
	if err != nil {
		return nil, fmt.Errorf("issue quote id: %w", err)
	}
	postID, err := s.seq.NextValue(ctx, SequencePosts, 1)
	if err != nil {
		return nil, fmt.Errorf("issue post id: %w", err)
	}

	visibility := "private"
	if quote.IsPublic {
		visibility = "public"
	}
	author := strings.TrimSpace(quote.Author)
	if author == "" {
		author = result.Book.Author
	}

	if result.NewBook {
		if err := s.repo.InsertBook(ctx, &result.Book); err != nil {
			return nil, fmt.Errorf("insert book %s: %w", result.Book.BookID, err)
		}
	}

	result.Quote = Quote{
		QuoteID:    sequenceKey(quoteID),
		BookID:     result.Book.Key(),
		Content:    quote.Text,
		Author:     author,
		PageNumber: quote.PageNumber,
		Notes:      strings.TrimSpace(quote.Notes),
		Visibility: visibility,
		CreatorID:  creator,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.InsertQuote(ctx, &result.Quote); err != nil {
		return nil, fmt.Errorf("insert quote %s: %w", result.Quote.QuoteID, err)
	}

	result.Post = Post{
		PostID:    sequenceKey(postID),
		QuoteID:   result.Quote.QuoteID,
		BookID:    result.Quote.BookID,
		UserID:    Key(creator),
		Title:     truncateRunes(quote.Text, maxPostTitleRunes),
		Type:      PostTypeQuote,
		PhotoLink: result.Book.CoverImage,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertPost(ctx, &result.Post); err != nil {
		return nil, fmt.Errorf("insert post %s: %w", result.Post.PostID, err)
	}

	s.logger.Info("quote created",
		"quoteId", result.Quote.QuoteID,
		"postId", result.Post.PostID,
		"bookId", result.Quote.BookID,
		"newBook", result.NewBook,
		"creator", creator,
	)
	return result, nil
}

func newBookRecord(id Key, creator string, in NewBook, now time.Time) Book {
	return Book{
		BookID:      id,
		Title:       in.Title,
		Author:      in.Author,
		CoverImage:  strings.TrimSpace(in.CoverImage),
		Description: strings.TrimSpace(in.Description),
		Genre:       in.Genre,
		PageCount:   in.PageCount,
		CreatedBy:   creator,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func sequenceKey(v int64) Key {
	return Key(strconv.FormatInt(v, 10))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
