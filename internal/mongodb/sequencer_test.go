package mongodb

import (
	"context"
	"errors"
	"testing"

	"github.com/blackmichael/novelle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var duplicateKey = mongo.WriteException{
	WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}},
}

// scriptedCounters answers each call with the next queued result.
type scriptedCounters struct {
	advances []*mongo.SingleResult
	reads    []*mongo.SingleResult
	ensure   error

	advanceCalls int
	readCalls    int
	lastUpdate   any
}

func counterResult(seq int64) *mongo.SingleResult {
	return mongo.NewSingleResultFromDocument(bson.D{{Key: "_id", Value: "quotes"}, {Key: "seq", Value: seq}}, nil, nil)
}

func failedResult(err error) *mongo.SingleResult {
	return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
}

func (c *scriptedCounters) FindOneAndUpdate(_ context.Context, _, update any, _ ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
	c.lastUpdate = update
	r := c.advances[c.advanceCalls]
	c.advanceCalls++
	return r
}

func (c *scriptedCounters) FindOne(_ context.Context, _ any, _ ...*options.FindOneOptions) *mongo.SingleResult {
	r := c.reads[c.readCalls]
	c.readCalls++
	return r
}

func (c *scriptedCounters) UpdateOne(_ context.Context, _, _ any, _ ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if c.ensure != nil {
		return nil, c.ensure
	}
	return &mongo.UpdateResult{UpsertedCount: 1}, nil
}

func TestNextValue_ReturnsUpdatedValue(t *testing.T) {
	c := &scriptedCounters{advances: []*mongo.SingleResult{counterResult(42)}}

	v, err := NewSequencer(c).NextValue(context.Background(), "quotes", 1)

	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	assert.Zero(t, c.readCalls)
}

func TestNextValue_SeedsFromStartAt(t *testing.T) {
	c := &scriptedCounters{advances: []*mongo.SingleResult{counterResult(1000)}}

	_, err := NewSequencer(c).NextValue(context.Background(), "quotes", 1000)
	require.NoError(t, err)

	assert.Equal(t, incrementPipeline(1000), c.lastUpdate)
}

func TestNextValue_NoDocumentRereadsStoredValue(t *testing.T) {
	c := &scriptedCounters{
		advances: []*mongo.SingleResult{failedResult(mongo.ErrNoDocuments)},
		reads:    []*mongo.SingleResult{counterResult(17)},
	}

	v, err := NewSequencer(c).NextValue(context.Background(), "quotes", 1)

	require.NoError(t, err)
	assert.Equal(t, int64(17), v)
	assert.Equal(t, 1, c.readCalls)
}

func TestNextValue_SecondMissIsUnavailable(t *testing.T) {
	c := &scriptedCounters{
		advances: []*mongo.SingleResult{failedResult(mongo.ErrNoDocuments)},
		reads:    []*mongo.SingleResult{failedResult(mongo.ErrNoDocuments)},
	}

	_, err := NewSequencer(c).NextValue(context.Background(), "quotes", 1)

	require.ErrorIs(t, err, domain.ErrSequenceUnavailable)
	assert.Contains(t, err.Error(), "not found after update")
}

func TestNextValue_RereadFailureIsUnavailable(t *testing.T) {
	c := &scriptedCounters{
		advances: []*mongo.SingleResult{failedResult(mongo.ErrNoDocuments)},
		reads:    []*mongo.SingleResult{failedResult(errors.New("connection reset"))},
	}

	_, err := NewSequencer(c).NextValue(context.Background(), "quotes", 1)

	require.ErrorIs(t, err, domain.ErrSequenceUnavailable)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestNextValue_RetriesOnceAfterDuplicateKey(t *testing.T) {
	c := &scriptedCounters{advances: []*mongo.SingleResult{
		failedResult(duplicateKey),
		counterResult(2),
	}}

	v, err := NewSequencer(c).NextValue(context.Background(), "quotes", 1)

	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.Equal(t, 2, c.advanceCalls)
}

func TestNextValue_RepeatedDuplicateKeyIsUnavailable(t *testing.T) {
	c := &scriptedCounters{advances: []*mongo.SingleResult{
		failedResult(duplicateKey),
		failedResult(duplicateKey),
	}}

	_, err := NewSequencer(c).NextValue(context.Background(), "quotes", 1)

	require.ErrorIs(t, err, domain.ErrSequenceUnavailable)
	assert.Equal(t, 2, c.advanceCalls)
}

func TestNextValue_StoreErrorIsUnavailable(t *testing.T) {
	down := errors.New("server selection timeout")
	c := &scriptedCounters{advances: []*mongo.SingleResult{failedResult(down)}}

	_, err := NewSequencer(c).NextValue(context.Background(), "quotes", 1)

	require.ErrorIs(t, err, domain.ErrSequenceUnavailable)
	assert.ErrorIs(t, err, down)
	assert.Zero(t, c.readCalls)
}

func TestEnsure(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, NewSequencer(&scriptedCounters{}).Ensure(ctx, "quotes", 1))
	assert.NoError(t, NewSequencer(&scriptedCounters{ensure: duplicateKey}).Ensure(ctx, "quotes", 1))

	err := NewSequencer(&scriptedCounters{ensure: errors.New("not primary")}).Ensure(ctx, "quotes", 1)
	assert.ErrorIs(t, err, domain.ErrSequenceUnavailable)
}

func TestNormalizeStart(t *testing.T) {
	assert.Equal(t, int64(1), normalizeStart(0))
	assert.Equal(t, int64(1), normalizeStart(-5))
	assert.Equal(t, int64(1000), normalizeStart(1000))
}
