package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/blackmichael/novelle/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sequencer implements domain.Sequencer on a counters collection holding
// one {_id: name, seq: value} document per sequence.
type Sequencer struct {
	counters counterCollection
}

// counterCollection is the part of *mongo.Collection the sequencer uses.
type counterCollection interface {
	FindOneAndUpdate(ctx context.Context, filter, update any, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

var _ counterCollection = (*mongo.Collection)(nil)

var _ domain.Sequencer = (*Sequencer)(nil)

type counterDoc struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

// NewSequencer returns a Sequencer on the given collection.
func NewSequencer(counters counterCollection) *Sequencer {
	return &Sequencer{counters: counters}
}

// NextValue advances the counter with a single findOneAndUpdate. The
// pipeline update seeds a missing counter at startAt-1 before incrementing,
// so creation and increment are the same atomic write.
func (s *Sequencer) NextValue(ctx context.Context, name string, startAt int64) (int64, error) {
	startAt = normalizeStart(startAt)

	v, err := s.advance(ctx, name, startAt)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts raced to create the counter; the loser retries as an update.
		v, err = s.advance(ctx, name, startAt)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return s.current(ctx, name)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: advance %q: %w", domain.ErrSequenceUnavailable, name, err)
	}
	return v, nil
}

// Ensure creates the counter at startAt-1 unless it already exists.
func (s *Sequencer) Ensure(ctx context.Context, name string, startAt int64) error {
	startAt = normalizeStart(startAt)

	_, err := s.counters.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "seq", Value: startAt - 1}}}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: ensure %q: %w", domain.ErrSequenceUnavailable, name, err)
	}
	return nil
}

func (s *Sequencer) advance(ctx context.Context, name string, startAt int64) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDoc
	err := s.counters.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: name}}, incrementPipeline(startAt), opts).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

// current re-reads the counter when the update returned no document. The
// stored value is authoritative; startAt is never assumed.
func (s *Sequencer) current(ctx context.Context, name string) (int64, error) {
	var doc counterDoc
	err := s.counters.FindOne(ctx, bson.D{{Key: "_id", Value: name}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("%w: counter %q not found after update", domain.ErrSequenceUnavailable, name)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read %q: %w", domain.ErrSequenceUnavailable, name, err)
	}
	return doc.Seq, nil
}

func incrementPipeline(startAt int64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "seq", Value: bson.D{{Key: "$add", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$seq", startAt - 1}}},
				int64(1),
			}}}},
		}}},
	}
}

func normalizeStart(startAt int64) int64 {
	if startAt <= 0 {
		return 1
	}
	return startAt
}
