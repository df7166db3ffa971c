package mongo

import (
	"testing"
	"time"

	"resource-api/internal/ports/docstore"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestBuildFilter(t *testing.T) {
	assert.Equal(t, bson.D{}, buildFilter(docstore.SearchRequest{}))

	got := buildFilter(docstore.SearchRequest{
		Query: "ada",
		Filter: docstore.Filter{{
			{Field: "author.id", Op: docstore.OpEq, Value: 3},
			{Field: "rank", Op: docstore.OpGt, Value: 1},
		}},
	})

	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: "ada"}}}},
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "author.id", Value: bson.D{{Key: "$eq", Value: 3}}}},
			bson.D{{Key: "rank", Value: bson.D{{Key: "$gt", Value: 1}}}},
		}}},
	}}}
	assert.Equal(t, want, got)
}

func TestBuildSort(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, buildSort(nil))
	assert.Equal(t,
		bson.D{{Key: "name", Value: -1}, {Key: "rank", Value: 1}},
		buildSort([]docstore.Sort{{Field: "name", Desc: true}, {Field: "rank"}}),
	)
}

func TestFromBSON(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	raw := bson.M{
		"_id":       "7",
		"id":        int32(7),
		"version":   int64(2),
		"createdAt": bson.NewDateTimeFromTime(at),
		"author":    bson.D{{Key: "id", Value: int32(1)}, {Key: "name", Value: "Ada"}},
		"owners":    bson.A{bson.D{{Key: "id", Value: int64(1)}}},
	}

	doc := fromBSON(raw)

	assert.NotContains(t, doc, "_id")
	assert.Equal(t, float64(7), doc["id"])
	assert.Equal(t, float64(2), doc["version"])
	assert.Equal(t, "2025-03-01T10:00:00Z", doc["createdAt"])
	assert.Equal(t, map[string]any{"id": float64(1), "name": "Ada"}, doc["author"])
	assert.Equal(t, []any{map[string]any{"id": float64(1)}}, doc["owners"])
}

func TestToBSONSetsID(t *testing.T) {
	m := toBSON("abc", docstore.Document{"id": "abc", "name": "x"})
	assert.Equal(t, "abc", m["_id"])
	assert.Equal(t, "x", m["name"])
}
