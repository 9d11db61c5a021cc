package mongodb

import (
	"strings"
	"time"

	"github.com/blackmichael/novelle/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field name variants, legacy capitalized first. Documents written by older
// imports use the capitalized names; newer writers use camelCase.
var (
	quoteIDFields   = []string{"QuoteID", "quoteId", "quoteID"}
	bookIDFields    = []string{"BookID", "bookId", "bookID"}
	userIDFields    = []string{"UserID", "userId", "userID"}
	postIDFields    = []string{"PostID", "postId", "postID"}
	quoteTextFields = []string{"QuoteContent", "quoteContent"}
	createdAtFields = []string{"CreatedAt", "createdAt"}
	updatedAtFields = []string{"UpdatedAt", "updatedAt"}
)

// quoteFromDoc converts a raw quote document into its canonical form.
func quoteFromDoc(doc bson.M) domain.Quote {
	return domain.Quote{
		ObjectID:   objectIDString(doc),
		QuoteID:    keyField(doc, quoteIDFields...),
		BookID:     keyField(doc, bookIDFields...),
		Content:    stringField(doc, quoteTextFields...),
		Author:     stringField(doc, "Author", "author"),
		PageNumber: intField(doc, "PageNumber", "pageNumber"),
		Notes:      stringField(doc, "Notes", "notes"),
		Visibility: stringField(doc, "Visibility", "visibility"),
		CreatorID:  keyField(doc, "CreatedByUserID", "createdByUserId", "addedByUserId").String(),
		CreatedAt:  timeField(doc, createdAtFields...),
		UpdatedAt:  timeField(doc, updatedAtFields...),
	}
}

// postFromDoc converts a raw post document into its canonical form.
func postFromDoc(doc bson.M) domain.Post {
	return domain.Post{
		ObjectID:  objectIDString(doc),
		PostID:    keyField(doc, postIDFields...),
		QuoteID:   keyField(doc, quoteIDFields...),
		BookID:    keyField(doc, bookIDFields...),
		UserID:    keyField(doc, userIDFields...),
		Title:     stringField(doc, "Title", "title"),
		Type:      stringField(doc, "Type", "type"),
		PhotoLink: stringField(doc, "PhotoLink", "photoLink"),
		Views:     int64(intField(doc, "Views", "views")),
		CreatedAt: timeField(doc, createdAtFields...),
		UpdatedAt: timeField(doc, updatedAtFields...),
	}
}

// bookFromDoc converts a raw book document into its canonical form.
func bookFromDoc(doc bson.M) domain.Book {
	return domain.Book{
		ObjectID:    objectIDString(doc),
		BookID:      keyField(doc, bookIDFields...),
		Title:       stringField(doc, "Title", "title"),
		Author:      stringField(doc, "Author", "author"),
		CoverImage:  stringField(doc, "CoverImage", "coverImage"),
		Description: stringField(doc, "Description", "description"),
		Genre:       stringsField(doc, "Genre", "genre"),
		PageCount:   intField(doc, "PageCount", "pageCount"),
		CreatedBy:   keyField(doc, "CreatedByUserID", "createdBy", "addedByUserId").String(),
		CreatedAt:   timeField(doc, createdAtFields...),
		UpdatedAt:   timeField(doc, updatedAtFields...),
	}
}

// userFromDoc converts a raw user document into its canonical form.
func userFromDoc(doc bson.M) domain.User {
	return domain.User{
		ObjectID: objectIDString(doc),
		UserID:   keyField(doc, userIDFields...),
		Name:     stringField(doc, "Name", "name", "username"),
		Email:    stringField(doc, "Email", "email"),
	}
}

// field returns the first present, non-null value among names.
func field(doc bson.M, names ...string) any {
	for _, name := range names {
		if v, ok := doc[name]; ok && v != nil {
			if _, isNull := v.(primitive.Null); isNull {
				continue
			}
			return v
		}
	}
	return nil
}

func objectIDString(doc bson.M) string {
	switch id := doc["_id"].(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return ""
	}
}

func keyField(doc bson.M, names ...string) domain.Key {
	k, _ := domain.NormalizeKey(plainValue(field(doc, names...)))
	return k
}

// plainValue unwraps BSON-specific scalar types into Go values NormalizeKey
// understands.
func plainValue(v any) any {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case primitive.Decimal128:
		return x.String()
	default:
		return v
	}
}

// stringField returns the first non-blank value among names, so an empty
// legacy field does not hide the camelCase one.
func stringField(doc bson.M, names ...string) string {
	for _, name := range names {
		if v := stringValue(field(doc, name)); v != "" {
			return v
		}
	}
	return ""
}

func stringValue(v any) string {
	switch v := plainValue(v).(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		k, _ := domain.NormalizeKey(v)
		return k.String()
	}
}

func intField(doc bson.M, names ...string) int {
	switch v := field(doc, names...).(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case string:
		k, _ := domain.NormalizeKey(v)
		n, _ := k.Int64()
		return int(n)
	default:
		return 0
	}
}

func stringsField(doc bson.M, names ...string) []string {
	switch v := field(doc, names...).(type) {
	case primitive.A:
		return toStrings(v)
	case []any:
		return toStrings(v)
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

func toStrings(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// timeField reads a timestamp stored as a BSON date, an ISO-8601 string or
// epoch milliseconds.
func timeField(doc bson.M, names ...string) time.Time {
	switch v := field(doc, names...).(type) {
	case primitive.DateTime:
		return v.Time().UTC()
	case time.Time:
		return v.UTC()
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t.UTC()
			}
		}
		return time.Time{}
	case int64:
		return time.UnixMilli(v).UTC()
	case float64:
		return time.UnixMilli(int64(v)).UTC()
	default:
		return time.Time{}
	}
}

// keyValues expands canonical keys into every BSON form a reference may be
// stored as: the string, the number, and for hex strings the ObjectID.
// MongoDB compares numbers across int32, int64 and double, so one int64
// covers every numeric form.
func keyValues(keys []domain.Key) bson.A {
	values := make(bson.A, 0, len(keys)*2)
	for _, k := range keys {
		values = append(values, k.String())
		if n, ok := k.Int64(); ok {
			values = append(values, n)
		}
		if oid, err := primitive.ObjectIDFromHex(k.String()); err == nil {
			values = append(values, oid)
		}
	}
	return values
}

// anyFieldIn matches documents where any of the field-name variants holds
// one of values.
func anyFieldIn(fields []string, values bson.A) bson.M {
	clauses := make(bson.A, 0, len(fields))
	for _, f := range fields {
		clauses = append(clauses, bson.M{f: bson.M{"$in": values}})
	}
	return bson.M{"$or": clauses}
}
