package domain

import "time"

const (
	// DefaultPageSize is used when a request does not name a page size.
	DefaultPageSize = 20

	// MaxPageSize caps the page size a caller may request.
	MaxPageSize = 100
)

// PageRequest selects one page of the public feed.
type PageRequest struct {
	// Page is 1-based. Values below 1 select the first page.
	Page int

	// PageSize defaults to DefaultPageSize and is capped at MaxPageSize.
	PageSize int

	// Viewer is the authenticated caller. Empty for anonymous requests.
	Viewer string
}

func (r PageRequest) withDefaults() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	return r
}

func (r PageRequest) offset() int {
	return (r.Page - 1) * r.PageSize
}

// Pagination describes where a page sits in the whole feed.
type Pagination struct {
	Page       int
	PageSize   int
	Total      int64
	TotalPages int64
}

// NewPagination computes TotalPages as ceil(total/pageSize).
func NewPagination(page, pageSize int, total int64) Pagination {
	var pages int64
	if pageSize > 0 {
		pages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
	}
}

// FeedPage is one assembled page of the feed. It is derived on every request
// and never persisted.
type FeedPage struct {
	Items      []FeedItem
	Pagination Pagination
}

// FeedItem is a quote joined with its post, book, author and interaction
// stats. Post, Book and User are nil when the referenced record is missing.
type FeedItem struct {
	Quote        Quote
	Post         *Post
	Book         *Book
	User         *User
	Interactions InteractionStats
}

// BookKey returns the quote's book reference, or the post's when the quote
// carries none.
func (it FeedItem) BookKey() Key {
	if it.Quote.BookID != "" {
		return it.Quote.BookID
	}
	if it.Post != nil {
		return it.Post.BookID
	}
	return ""
}

// CreatedAt returns the post's creation time, falling back to the quote's.
func (it FeedItem) CreatedAt() time.Time {
	if it.Post != nil && !it.Post.CreatedAt.IsZero() {
		return it.Post.CreatedAt
	}
	return it.Quote.CreatedAt
}

// UpdatedAt returns the post's update time, falling back to the quote's.
func (it FeedItem) UpdatedAt() time.Time {
	if it.Post != nil && !it.Post.UpdatedAt.IsZero() {
		return it.Post.UpdatedAt
	}
	return it.Quote.UpdatedAt
}

// Author returns the quote's attributed author, falling back to the book's
// author and then to the posting user's name.
func (it FeedItem) Author() string {
	switch {
	case it.Quote.Author != "":
		return it.Quote.Author
	case it.Book != nil && it.Book.Author != "":
		return it.Book.Author
	case it.User != nil:
		return it.User.Name
	}
	return ""
}
