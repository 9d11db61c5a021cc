package mongodb

import (
	"testing"
	"time"

	"github.com/blackmichael/novelle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var created = time.Date(2024, 3, 9, 8, 30, 0, 0, time.UTC)

func TestQuoteFromDoc_LegacyFields(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := bson.M{
		"_id":          oid,
		"QuoteID":      int32(42),
		"BookID":       7.0,
		"QuoteContent": "  So it goes.  ",
		"Author":       "Kurt Vonnegut",
		"PageNumber":   int32(12),
		"CreatedAt":    primitive.NewDateTimeFromTime(created),
	}

	q := quoteFromDoc(doc)

	assert.Equal(t, oid.Hex(), q.ObjectID)
	assert.Equal(t, domain.Key("42"), q.QuoteID)
	assert.Equal(t, domain.Key("7"), q.BookID)
	assert.Equal(t, "So it goes.", q.Content)
	assert.Equal(t, "Kurt Vonnegut", q.Author)
	assert.Equal(t, 12, q.PageNumber)
	assert.Equal(t, created, q.CreatedAt)
}

func TestQuoteFromDoc_CamelCaseFields(t *testing.T) {
	doc := bson.M{
		"quoteId":      "042",
		"bookId":       int64(7),
		"quoteContent": "So it goes.",
		"createdAt":    created.Format(time.RFC3339),
	}

	q := quoteFromDoc(doc)

	assert.Equal(t, domain.Key("42"), q.QuoteID)
	assert.Equal(t, domain.Key("7"), q.BookID)
	assert.Equal(t, "So it goes.", q.Content)
	assert.Equal(t, created, q.CreatedAt)
}

func TestQuoteFromDoc_PrefersLegacyName(t *testing.T) {
	doc := bson.M{"QuoteID": 1, "quoteId": 2, "BookID": nil, "bookId": "9"}

	q := quoteFromDoc(doc)

	assert.Equal(t, domain.Key("1"), q.QuoteID)
	assert.Equal(t, domain.Key("9"), q.BookID, "null legacy value falls through to camelCase")
}

func TestQuoteFromDoc_BlankLegacyTextFallsThrough(t *testing.T) {
	doc := bson.M{"QuoteID": 1, "QuoteContent": "", "quoteContent": "Call me Ishmael."}
	assert.Equal(t, "Call me Ishmael.", quoteFromDoc(doc).Content)

	doc = bson.M{"QuoteID": 2, "QuoteContent": "   ", "quoteContent": "It was a pleasure to burn."}
	assert.Equal(t, "It was a pleasure to burn.", quoteFromDoc(doc).Content)
}

func TestCandidateStages_BlankLegacyTextFallsThrough(t *testing.T) {
	stages := candidateStages()
	require.Len(t, stages, 2)

	text := stages[0][0].Value.(bson.D)[0]
	require.Equal(t, "_text", text.Key)
	cond := text.Value.(bson.D)[0]
	require.Equal(t, "$cond", cond.Key)

	branches := cond.Value.(bson.D)
	ne := branches[0].Value.(bson.D)[0]
	assert.Equal(t, "$ne", ne.Key)
	assert.Equal(t, "", ne.Value.(bson.A)[1])

	inputOf := func(v any) any {
		trim := v.(bson.D)[0].Value.(bson.D)
		conv := trim[0].Value.(bson.D)[0].Value.(bson.D)
		return conv[0].Value
	}
	assert.Equal(t, "$QuoteContent", inputOf(ne.Value.(bson.A)[0]))
	assert.Equal(t, "$QuoteContent", inputOf(branches[1].Value))
	assert.Equal(t, "$quoteContent", inputOf(branches[2].Value))

	match := stages[1][0].Value.(bson.D)[0]
	assert.Equal(t, "_text", match.Key)
}

func TestPostFromDoc(t *testing.T) {
	userOID := primitive.NewObjectID()
	doc := bson.M{
		"PostID":    int64(5),
		"quoteId":   "42",
		"BookID":    "7",
		"userId":    userOID,
		"Title":     "A title",
		"Views":     int32(3),
		"CreatedAt": created,
	}

	p := postFromDoc(doc)

	assert.Equal(t, domain.Key("5"), p.PostID)
	assert.Equal(t, domain.Key("42"), p.QuoteID)
	assert.Equal(t, domain.Key("7"), p.BookID)
	assert.Equal(t, domain.Key(userOID.Hex()), p.UserID)
	assert.Equal(t, "A title", p.Title)
	assert.Equal(t, int64(3), p.Views)
	assert.Equal(t, created, p.CreatedAt)
}

func TestBookFromDoc_GenreForms(t *testing.T) {
	asArray := bookFromDoc(bson.M{"BookID": 1, "Genre": primitive.A{"Fiction", " ", "Satire"}})
	asString := bookFromDoc(bson.M{"bookId": 1, "genre": "Fiction, Satire"})

	assert.Equal(t, []string{"Fiction", "Satire"}, asArray.Genre)
	assert.Equal(t, []string{"Fiction", "Satire"}, asString.Genre)
}

func TestUserFromDoc(t *testing.T) {
	u := userFromDoc(bson.M{"UserID": 3, "username": "ada", "email": "ada@example.com"})

	assert.Equal(t, domain.Key("3"), u.UserID)
	assert.Equal(t, "ada", u.Name)
	assert.Equal(t, "ada@example.com", u.Email)
}

func TestTimeField(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want time.Time
	}{
		{"bson date", primitive.NewDateTimeFromTime(created), created},
		{"rfc3339", "2024-03-09T08:30:00Z", created},
		{"rfc3339 with millis", "2024-03-09T08:30:00.000Z", created},
		{"epoch millis", created.UnixMilli(), created},
		{"garbage", "yesterday", time.Time{}},
		{"missing", nil, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timeField(bson.M{"CreatedAt": tt.in}, createdAtFields...))
		})
	}
}

func TestKeyValues(t *testing.T) {
	oid := primitive.NewObjectID()

	values := keyValues([]domain.Key{"42", "abc", domain.Key(oid.Hex())})

	assert.Equal(t, bson.A{"42", int64(42), "abc", oid.Hex(), oid}, values)
}

func TestAnyFieldIn(t *testing.T) {
	values := bson.A{"1", int64(1)}

	filter := anyFieldIn([]string{"QuoteID", "quoteId"}, values)

	assert.Equal(t, bson.M{"$or": bson.A{
		bson.M{"QuoteID": bson.M{"$in": values}},
		bson.M{"quoteId": bson.M{"$in": values}},
	}}, filter)
}

func TestTitleAuthorFilter_EscapesRegex(t *testing.T) {
	filter := titleAuthorFilter("C++ (2nd ed.)", "Bjarne")

	clauses := filter[0].Value.(bson.A)
	titles := clauses[0].(bson.D)[0].Value.(bson.A)
	re := titles[0].(bson.D)[0].Value.(primitive.Regex)

	assert.Equal(t, `^C\+\+ \(2nd ed\.\)$`, re.Pattern)
	assert.Equal(t, "i", re.Options)
}

func TestStoredKey(t *testing.T) {
	assert.Equal(t, int64(7), storedKey("7"))
	assert.Equal(t, "abc", storedKey("abc"))
}

func TestViewerValues(t *testing.T) {
	oid := primitive.NewObjectID()

	assert.Equal(t, bson.A{"u1"}, viewerValues("u1"))
	assert.Equal(t, bson.A{oid.Hex(), oid}, viewerValues(oid.Hex()))
	assert.Equal(t, oid, viewerValue(oid.Hex()))
	assert.Equal(t, "u1", viewerValue("u1"))
}

func TestIncrementPipeline_SeedsBelowStart(t *testing.T) {
	pipeline := incrementPipeline(5)
	require.Len(t, pipeline, 1)

	set := pipeline[0][0]
	assert.Equal(t, "$set", set.Key)

	seq := set.Value.(bson.D)[0]
	add := seq.Value.(bson.D)[0].Value.(bson.A)
	ifNull := add[0].(bson.D)[0].Value.(bson.A)

	assert.Equal(t, bson.A{"$seq", int64(4)}, ifNull)
	assert.Equal(t, int64(1), add[1])
}

func TestPageStages_SkipAndLimit(t *testing.T) {
	stages := pageStages(40, 20)

	var skip, limit any
	for _, stage := range stages {
		switch stage[0].Key {
		case "$skip":
			skip = stage[0].Value
		case "$limit":
			limit = stage[0].Value
		}
	}
	assert.Equal(t, int64(40), skip)
	assert.Equal(t, int64(20), limit)
}
