package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/blackmichael/novelle/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// FindBookByTitleAuthor matches title and author exactly, ignoring case,
// under either field-name variant.
func (s *Store) FindBookByTitleAuthor(ctx context.Context, title, author string) (*domain.Book, error) {
	var doc bson.M
	err := s.db.Collection(booksCollection).FindOne(ctx, titleAuthorFilter(title, author)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find book %q by %q: %w", title, author, err)
	}
	book := bookFromDoc(doc)
	return &book, nil
}

// InsertBook writes both field-name variants so older and newer readers
// find the book.
func (s *Store) InsertBook(ctx context.Context, book *domain.Book) error {
	id, ok := book.BookID.Int64()
	if !ok {
		return fmt.Errorf("%w: book id %q is not numeric", domain.ErrInvalidInput, book.BookID)
	}

	doc := bson.D{
		{Key: "BookID", Value: id},
		{Key: "bookId", Value: id},
		{Key: "Title", Value: book.Title},
		{Key: "title", Value: book.Title},
		{Key: "Author", Value: book.Author},
		{Key: "author", Value: book.Author},
		{Key: "CoverImage", Value: book.CoverImage},
		{Key: "coverImage", Value: book.CoverImage},
		{Key: "Description", Value: book.Description},
		{Key: "description", Value: book.Description},
		{Key: "Genre", Value: book.Genre},
		{Key: "PageCount", Value: book.PageCount},
		{Key: "CreatedByUserID", Value: book.CreatedBy},
		{Key: "CreatedAt", Value: book.CreatedAt},
		{Key: "UpdatedAt", Value: book.UpdatedAt},
	}
	res, err := s.db.Collection(booksCollection).InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert book %d: %w", id, err)
	}
	book.ObjectID = insertedID(res)
	return nil
}

// InsertQuote writes the quote under the legacy field names the feed query
// reads first.
func (s *Store) InsertQuote(ctx context.Context, quote *domain.Quote) error {
	id, ok := quote.QuoteID.Int64()
	if !ok {
		return fmt.Errorf("%w: quote id %q is not numeric", domain.ErrInvalidInput, quote.QuoteID)
	}

	doc := bson.D{
		{Key: "QuoteID", Value: id},
		{Key: "BookID", Value: storedKey(quote.BookID)},
		{Key: "QuoteContent", Value: quote.Content},
		{Key: "Author", Value: quote.Author},
		{Key: "PageNumber", Value: quote.PageNumber},
		{Key: "Notes", Value: quote.Notes},
		{Key: "Source", Value: "user"},
		{Key: "CreatedByUserID", Value: quote.CreatorID},
		{Key: "Visibility", Value: quote.Visibility},
		{Key: "CreatedAt", Value: quote.CreatedAt},
		{Key: "UpdatedAt", Value: quote.UpdatedAt},
	}
	res, err := s.db.Collection(quotesCollection).InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert quote %d: %w", id, err)
	}
	quote.ObjectID = insertedID(res)
	return nil
}

// InsertPost writes the post under the legacy field names.
func (s *Store) InsertPost(ctx context.Context, post *domain.Post) error {
	id, ok := post.PostID.Int64()
	if !ok {
		return fmt.Errorf("%w: post id %q is not numeric", domain.ErrInvalidInput, post.PostID)
	}

	doc := bson.D{
		{Key: "PostID", Value: id},
		{Key: "UserID", Value: post.UserID.String()},
		{Key: "QuoteID", Value: storedKey(post.QuoteID)},
		{Key: "BookID", Value: storedKey(post.BookID)},
		{Key: "Title", Value: post.Title},
		{Key: "PhotoLink", Value: post.PhotoLink},
		{Key: "Views", Value: post.Views},
		{Key: "Type", Value: post.Type},
		{Key: "CreatedAt", Value: post.CreatedAt},
		{Key: "UpdatedAt", Value: post.UpdatedAt},
	}
	res, err := s.db.Collection(postsCollection).InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert post %d: %w", id, err)
	}
	post.ObjectID = insertedID(res)
	return nil
}

func titleAuthorFilter(title, author string) bson.D {
	exact := func(s string) primitive.Regex {
		return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}
	}
	return bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "Title", Value: exact(title)}},
			bson.D{{Key: "title", Value: exact(title)}},
		}}},
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "Author", Value: exact(author)}},
			bson.D{{Key: "author", Value: exact(author)}},
		}}},
	}}}
}

// storedKey stores numeric keys as numbers and anything else as a string.
func storedKey(k domain.Key) any {
	if n, ok := k.Int64(); ok {
		return n
	}
	return k.String()
}

func insertedID(res *mongo.InsertOneResult) string {
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(res.InsertedID)
}
