package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/blackmichael/novelle/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AddInteraction upserts the (quoteId, userId) record. Losing a race to the
// unique index means the record exists, which is the desired outcome.
func (s *Store) AddInteraction(ctx context.Context, kind domain.InteractionKind, target domain.Key, viewer string) error {
	coll, err := s.interactionCollection(kind)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = coll.UpdateOne(ctx,
		bson.D{{Key: "quoteId", Value: target.String()}, {Key: "userId", Value: viewerValue(viewer)}},
		bson.D{
			{Key: "$setOnInsert", Value: bson.D{{Key: "createdAt", Value: now}}},
			{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: now}}},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("add %s for quote %s: %w", kind, target, err)
	}
	return nil
}

// RemoveInteraction deletes the viewer's record for target if there is one.
func (s *Store) RemoveInteraction(ctx context.Context, kind domain.InteractionKind, target domain.Key, viewer string) error {
	coll, err := s.interactionCollection(kind)
	if err != nil {
		return err
	}

	_, err = coll.DeleteMany(ctx, bson.D{
		{Key: "quoteId", Value: target.String()},
		{Key: "userId", Value: bson.D{{Key: "$in", Value: viewerValues(viewer)}}},
	})
	if err != nil {
		return fmt.Errorf("remove %s for quote %s: %w", kind, target, err)
	}
	return nil
}

// CountInteractions groups the records for targets by quoteId.
func (s *Store) CountInteractions(ctx context.Context, kind domain.InteractionKind, targets []domain.Key) (map[domain.Key]int64, error) {
	counts := make(map[domain.Key]int64, len(targets))
	if len(targets) == 0 {
		return counts, nil
	}
	coll, err := s.interactionCollection(kind)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "quoteId", Value: bson.D{{Key: "$in", Value: keyStrings(targets)}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$quoteId"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", kind, err)
	}

	var rows []struct {
		QuoteID string `bson:"_id"`
		Count   int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode %s counts: %w", kind, err)
	}
	for _, row := range rows {
		if k, ok := domain.NormalizeKey(row.QuoteID); ok {
			counts[k] += row.Count
		}
	}
	return counts, nil
}

// ViewerInteractions returns the targets the viewer has a record for.
func (s *Store) ViewerInteractions(ctx context.Context, kind domain.InteractionKind, targets []domain.Key, viewer string) (map[domain.Key]bool, error) {
	found := make(map[domain.Key]bool)
	if len(targets) == 0 || viewer == "" {
		return found, nil
	}
	coll, err := s.interactionCollection(kind)
	if err != nil {
		return nil, err
	}

	cur, err := coll.Find(ctx,
		bson.D{
			{Key: "quoteId", Value: bson.D{{Key: "$in", Value: keyStrings(targets)}}},
			{Key: "userId", Value: bson.D{{Key: "$in", Value: viewerValues(viewer)}}},
		},
		options.Find().SetProjection(bson.D{{Key: "quoteId", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find viewer %s: %w", kind, err)
	}

	var rows []struct {
		QuoteID string `bson:"quoteId"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode viewer %s: %w", kind, err)
	}
	for _, row := range rows {
		if k, ok := domain.NormalizeKey(row.QuoteID); ok {
			found[k] = true
		}
	}
	return found, nil
}

// viewerValue is the form a viewer id is stored in: an ObjectID when it is
// one, otherwise the plain string.
func viewerValue(viewer string) any {
	if oid, err := primitive.ObjectIDFromHex(viewer); err == nil {
		return oid
	}
	return viewer
}

// viewerValues matches a viewer stored either as an ObjectID or a string.
func viewerValues(viewer string) bson.A {
	values := bson.A{viewer}
	if oid, err := primitive.ObjectIDFromHex(viewer); err == nil {
		values = append(values, oid)
	}
	return values
}

// keyStrings returns the string forms of keys. Interaction records store the
// quote key as a string.
func keyStrings(keys []domain.Key) bson.A {
	values := make(bson.A, len(keys))
	for i, k := range keys {
		values[i] = k.String()
	}
	return values
}
