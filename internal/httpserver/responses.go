package httpserver

import (
	"time"

	"github.com/blackmichael/novelle/internal/domain"
)

type envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data"`
	Pagination *pagination `json:"pagination,omitempty"`
}

// pagination carries limit and pages as aliases of pageSize and totalPages
// for clients written against the older response shape.
type pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	Pages      int64 `json:"pages"`
}

type feedItem struct {
	PostObjectID *string          `json:"postObjectId"`
	PostID       *string          `json:"postId"`
	QuoteID      string           `json:"quoteId"`
	QuoteText    string           `json:"quoteText"`
	BookID       *string          `json:"bookId"`
	UserID       *string          `json:"userId"`
	PostTitle    *string          `json:"postTitle"`
	Type         string           `json:"type"`
	PhotoLink    *string          `json:"photoLink"`
	Views        int64            `json:"views"`
	CreatedAt    *time.Time       `json:"createdAt"`
	UpdatedAt    *time.Time       `json:"updatedAt"`
	User         *userSummary     `json:"user"`
	Book         *bookSummary     `json:"book"`
	Quote        quoteSummary     `json:"quote"`
	Interactions interactionStats `json:"interactions"`
}

type userSummary struct {
	UserID string  `json:"userId"`
	Name   *string `json:"name"`
	Email  *string `json:"email"`
}

type bookSummary struct {
	BookID     string  `json:"bookId"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	CoverImage *string `json:"coverImage"`
}

type quoteSummary struct {
	QuoteID    string  `json:"quoteId"`
	Content    string  `json:"content"`
	Author     *string `json:"author"`
	BookID     *string `json:"bookId"`
	PageNumber *int    `json:"pageNumber"`
}

type interactionStats struct {
	LikesCount  int64 `json:"likesCount"`
	SavesCount  int64 `json:"savesCount"`
	LikedByUser bool  `json:"likedByUser"`
	SavedByUser bool  `json:"savedByUser"`
}

type createdQuote struct {
	Quote   quoteRecord `json:"quote"`
	Book    bookRecord  `json:"book"`
	Post    postRecord  `json:"post"`
	NewBook bool        `json:"newBook"`
}

type quoteRecord struct {
	ID         string    `json:"_id"`
	QuoteID    string    `json:"quoteId"`
	BookID     string    `json:"bookId"`
	Content    string    `json:"content"`
	Author     string    `json:"author"`
	PageNumber *int      `json:"pageNumber"`
	Notes      *string   `json:"notes"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"createdAt"`
}

type bookRecord struct {
	ID          string   `json:"_id"`
	BookID      string   `json:"bookId"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	CoverImage  *string  `json:"coverImage"`
	Description *string  `json:"description"`
	Genre       []string `json:"genre"`
	PageCount   *int     `json:"pageCount"`
}

type postRecord struct {
	ID        string    `json:"_id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	QuoteID   string    `json:"quoteId"`
	BookID    string    `json:"bookId"`
	Title     string    `json:"title"`
	PhotoLink *string   `json:"photoLink"`
	Views     int64     `json:"views"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

func toPagination(p domain.Pagination) *pagination {
	return &pagination{
		Page:       p.Page,
		PageSize:   p.PageSize,
		Limit:      p.PageSize,
		Total:      p.Total,
		TotalPages: p.TotalPages,
		Pages:      p.TotalPages,
	}
}

func toInteractionStats(s domain.InteractionStats) interactionStats {
	return interactionStats{
		LikesCount:  s.LikesCount,
		SavesCount:  s.SavesCount,
		LikedByUser: s.LikedByUser,
		SavedByUser: s.SavedByUser,
	}
}

func toFeedItems(items []domain.FeedItem) []feedItem {
	out := make([]feedItem, len(items))
	for i, it := range items {
		out[i] = toFeedItem(it)
	}
	return out
}

func toFeedItem(it domain.FeedItem) feedItem {
	item := feedItem{
		QuoteID:      it.Quote.QuoteID.String(),
		QuoteText:    it.Quote.Content,
		BookID:       keyPtr(it.BookKey()),
		Type:         domain.PostTypeQuote,
		CreatedAt:    timePtr(it.CreatedAt()),
		UpdatedAt:    timePtr(it.UpdatedAt()),
		Interactions: toInteractionStats(it.Interactions),
		Quote: quoteSummary{
			QuoteID:    it.Quote.QuoteID.String(),
			Content:    it.Quote.Content,
			Author:     strPtr(it.Author()),
			BookID:     keyPtr(it.BookKey()),
			PageNumber: intPtr(it.Quote.PageNumber),
		},
	}

	if p := it.Post; p != nil {
		item.PostObjectID = strPtr(p.ObjectID)
		item.PostID = keyPtr(p.PostID)
		item.UserID = keyPtr(p.UserID)
		item.PostTitle = strPtr(p.Title)
		item.PhotoLink = strPtr(p.PhotoLink)
		item.Views = p.Views
		if p.Type != "" {
			item.Type = p.Type
		}
	}
	if b := it.Book; b != nil {
		item.BookID = keyPtr(b.Key())
		item.Quote.BookID = keyPtr(b.Key())
		item.Book = &bookSummary{
			BookID:     b.Key().String(),
			Title:      b.Title,
			Author:     b.Author,
			CoverImage: strPtr(b.CoverImage),
		}
	}
	if u := it.User; u != nil {
		item.UserID = keyPtr(u.Key())
		item.User = &userSummary{
			UserID: u.Key().String(),
			Name:   strPtr(u.Name),
			Email:  strPtr(u.Email),
		}
	}
	return item
}

func toCreatedQuote(c *domain.CreatedQuote) createdQuote {
	return createdQuote{
		NewBook: c.NewBook,
		Book: bookRecord{
			ID:          c.Book.ObjectID,
			BookID:      c.Book.Key().String(),
			Title:       c.Book.Title,
			Author:      c.Book.Author,
			CoverImage:  strPtr(c.Book.CoverImage),
			Description: strPtr(c.Book.Description),
			Genre:       c.Book.Genre,
			PageCount:   intPtr(c.Book.PageCount),
		},
		Quote: quoteRecord{
			ID:         c.Quote.ObjectID,
			QuoteID:    c.Quote.QuoteID.String(),
			BookID:     c.Quote.BookID.String(),
			Content:    c.Quote.Content,
			Author:     c.Quote.Author,
			PageNumber: intPtr(c.Quote.PageNumber),
			Notes:      strPtr(c.Quote.Notes),
			Visibility: c.Quote.Visibility,
			CreatedAt:  c.Quote.CreatedAt,
		},
		Post: postRecord{
			ID:        c.Post.ObjectID,
			PostID:    c.Post.PostID.String(),
			UserID:    c.Post.UserID.String(),
			QuoteID:   c.Post.QuoteID.String(),
			BookID:    c.Post.BookID.String(),
			Title:     c.Post.Title,
			PhotoLink: strPtr(c.Post.PhotoLink),
			Views:     c.Post.Views,
			Type:      c.Post.Type,
			CreatedAt: c.Post.CreatedAt,
		},
	}
}

// The helpers below map zero values to JSON null.

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func keyPtr(k domain.Key) *string {
	return strPtr(k.String())
}

func intPtr(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
