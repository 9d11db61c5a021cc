package mongodb

import (
	"context"
	"fmt"
	"slices"

	"github.com/blackmichael/novelle/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// candidateStages selects quotes that have text under either field name.
// The trimmed text is resolved into a scratch field so one $match covers
// both; a blank legacy field falls through to the camelCase one.
func candidateStages() mongo.Pipeline {
	trimmed := func(field string) bson.D {
		return bson.D{{Key: "$trim", Value: bson.D{{Key: "input", Value: bson.D{{Key: "$convert", Value: bson.D{
			{Key: "input", Value: "$" + field},
			{Key: "to", Value: "string"},
			{Key: "onError", Value: ""},
			{Key: "onNull", Value: ""},
		}}}}}}}
	}

	return mongo.Pipeline{
		{{Key: "$addFields", Value: bson.D{
			{Key: "_text", Value: bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: bson.D{{Key: "$ne", Value: bson.A{trimmed(quoteTextFields[0]), ""}}}},
				{Key: "then", Value: trimmed(quoteTextFields[0])},
				{Key: "else", Value: trimmed(quoteTextFields[1])},
			}}}},
		}}},
		{{Key: "$match", Value: bson.D{
			{Key: "_text", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$nin", Value: bson.A{nil, ""}}}},
		}}},
	}
}

// pageStages orders candidates newest first, by numeric id among equal
// timestamps and by _id as a final tie-break, then cuts one page. Dates
// stored as strings are converted; unparseable values sort last.
func pageStages(offset, limit int) mongo.Pipeline {
	convert := func(fields []string, to string) bson.D {
		return bson.D{{Key: "$convert", Value: bson.D{
			{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$" + fields[0], "$" + fields[1]}}}},
			{Key: "to", Value: to},
			{Key: "onError", Value: nil},
			{Key: "onNull", Value: nil},
		}}}
	}

	return mongo.Pipeline{
		{{Key: "$addFields", Value: bson.D{
			{Key: "_created", Value: convert(createdAtFields, "date")},
			{Key: "_seq", Value: convert(quoteIDFields, "long")},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "_created", Value: -1},
			{Key: "_seq", Value: -1},
			{Key: "_id", Value: -1},
		}}},
		{{Key: "$skip", Value: int64(offset)}},
		{{Key: "$limit", Value: int64(limit)}},
		{{Key: "$project", Value: bson.D{
			{Key: "_text", Value: 0},
			{Key: "_created", Value: 0},
			{Key: "_seq", Value: 0},
		}}},
	}
}

// ListQuotes returns one page of feed candidates.
func (s *Store) ListQuotes(ctx context.Context, offset, limit int) ([]domain.Quote, error) {
	pipeline := append(candidateStages(), pageStages(offset, limit)...)

	var docs []bson.M
	if err := s.aggregate(ctx, quotesCollection, pipeline, &docs); err != nil {
		return nil, fmt.Errorf("list quotes (offset=%d, limit=%d): %w", offset, limit, err)
	}

	quotes := make([]domain.Quote, len(docs))
	for i, doc := range docs {
		quotes[i] = quoteFromDoc(doc)
	}
	return quotes, nil
}

// CountQuotes counts every feed candidate.
func (s *Store) CountQuotes(ctx context.Context) (int64, error) {
	pipeline := append(candidateStages(), bson.D{{Key: "$count", Value: "total"}})

	var result []struct {
		Total int64 `bson:"total"`
	}
	if err := s.aggregate(ctx, quotesCollection, pipeline, &result); err != nil {
		return 0, fmt.Errorf("count quotes: %w", err)
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].Total, nil
}

// FindPostsByQuoteKeys returns posts referencing any of the quote keys.
func (s *Store) FindPostsByQuoteKeys(ctx context.Context, keys []domain.Key) ([]domain.Post, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	var docs []bson.M
	if err := s.find(ctx, postsCollection, anyFieldIn(quoteIDFields, keyValues(keys)), &docs); err != nil {
		return nil, fmt.Errorf("find posts for %d quotes: %w", len(keys), err)
	}

	posts := make([]domain.Post, len(docs))
	for i, doc := range docs {
		posts[i] = postFromDoc(doc)
	}
	return posts, nil
}

// FindBooksByKeys returns books whose id, or opaque _id, matches a key.
func (s *Store) FindBooksByKeys(ctx context.Context, keys []domain.Key) ([]domain.Book, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	values := keyValues(keys)
	filter := anyFieldIn(slices.Concat(bookIDFields, []string{"_id"}), values)

	var docs []bson.M
	if err := s.find(ctx, booksCollection, filter, &docs); err != nil {
		return nil, fmt.Errorf("find books for %d keys: %w", len(keys), err)
	}

	books := make([]domain.Book, len(docs))
	for i, doc := range docs {
		books[i] = bookFromDoc(doc)
	}
	return books, nil
}

// FindUsersByKeys returns users whose id, or opaque _id, matches a key.
func (s *Store) FindUsersByKeys(ctx context.Context, keys []domain.Key) ([]domain.User, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	var docs []bson.M
	if err := s.find(ctx, usersCollection, anyFieldIn(slices.Concat(userIDFields, []string{"_id"}), keyValues(keys)), &docs); err != nil {
		return nil, fmt.Errorf("find users for %d keys: %w", len(keys), err)
	}

	users := make([]domain.User, len(docs))
	for i, doc := range docs {
		users[i] = userFromDoc(doc)
	}
	return users, nil
}

func (s *Store) find(ctx context.Context, collection string, filter any, out any) error {
	cur, err := s.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (s *Store) aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline, out any) error {
	cur, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
