package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/blackmichael/novelle/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	countersCollection = "counters"
	quotesCollection   = "quotes"
	postsCollection    = "posts"
	booksCollection    = "books"
	usersCollection    = "users"
	likesCollection    = "quotelikes"
	savesCollection    = "quotesaves"
)

// Store implements the domain read and write ports on a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var (
	_ domain.QuoteRepository       = (*Store)(nil)
	_ domain.PostRepository        = (*Store)(nil)
	_ domain.BookRepository        = (*Store)(nil)
	_ domain.UserRepository        = (*Store)(nil)
	_ domain.InteractionRepository = (*Store)(nil)
	_ domain.ContentRepository     = (*Store)(nil)
)

// Connect opens a client for uri, verifies the connection, and returns a
// Store on the named database. The caller should call Close when done.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Sequencer returns a Sequencer backed by this store's counters collection.
func (s *Store) Sequencer() *Sequencer {
	return NewSequencer(s.db.Collection(countersCollection))
}

// EnsureIndexes creates the indexes the store relies on. The unique
// (quoteId, userId) indexes are what make interaction toggles idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{likesCollection, mongo.IndexModel{Keys: bson.D{{Key: "quoteId", Value: 1}, {Key: "userId", Value: 1}}, Options: unique}},
		{savesCollection, mongo.IndexModel{Keys: bson.D{{Key: "quoteId", Value: 1}, {Key: "userId", Value: 1}}, Options: unique}},
		{postsCollection, mongo.IndexModel{Keys: bson.D{{Key: "QuoteID", Value: 1}}}},
		{postsCollection, mongo.IndexModel{Keys: bson.D{{Key: "quoteId", Value: 1}}}},
		{booksCollection, mongo.IndexModel{Keys: bson.D{{Key: "BookID", Value: 1}}}},
	}

	for _, spec := range specs {
		if _, err := s.db.Collection(spec.collection).Indexes().CreateOne(ctx, spec.model); err != nil {
			return fmt.Errorf("create index on %s: %w", spec.collection, err)
		}
	}
	return nil
}

func (s *Store) interactionCollection(kind domain.InteractionKind) (*mongo.Collection, error) {
	switch kind {
	case domain.InteractionLike:
		return s.db.Collection(likesCollection), nil
	case domain.InteractionSave:
		return s.db.Collection(savesCollection), nil
	default:
		return nil, fmt.Errorf("%w: unknown interaction kind %q", domain.ErrInvalidInput, kind)
	}
}
