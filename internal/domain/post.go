package domain

import "time"

// PostTypeQuote is the type of every post created for a quote.
const PostTypeQuote = "Quote"

// Quote is a passage from a book shared by a reader.
type Quote struct {
	// ObjectID is the storage-assigned opaque id.
	ObjectID string

	// QuoteID is the sequence-assigned id. Empty for legacy records without one.
	QuoteID Key

	// BookID references the quoted book.
	BookID Key

	// Content is the quoted text.
	Content string

	Author     string
	PageNumber int
	Notes      string

	// Visibility is "public" or "private".
	Visibility string

	// CreatorID is the viewer who added the quote, if known.
	CreatorID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Post is the social wrapper that publishes a quote to the feed.
type Post struct {
	// ObjectID is the storage-assigned opaque id.
	ObjectID string

	// PostID is the sequence-assigned id.
	PostID Key

	QuoteID Key
	BookID  Key
	UserID  Key

	Title     string
	Type      string
	PhotoLink string
	Views     int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Book is a catalog entry that quotes reference.
type Book struct {
	// ObjectID is the storage-assigned opaque id.
	ObjectID string

	// BookID is the sequence-assigned id.
	BookID Key

	Title       string
	Author      string
	CoverImage  string
	Description string
	Genre       []string
	PageCount   int
	CreatedBy   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the book's join key, falling back to the opaque id for books
// that never received a sequence value.
func (b *Book) Key() Key {
	if b.BookID != "" {
		return b.BookID
	}
	return Key(b.ObjectID)
}

// User is the public profile of a post author.
type User struct {
	// ObjectID is the storage-assigned opaque id.
	ObjectID string

	// UserID is the key posts use to reference the user.
	UserID Key

	Name  string
	Email string
}

// Key returns the user's join key, falling back to the opaque id.
func (u *User) Key() Key {
	if u.UserID != "" {
		return u.UserID
	}
	return Key(u.ObjectID)
}
