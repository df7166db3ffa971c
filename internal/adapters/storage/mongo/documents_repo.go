package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"resource-api/internal/ports/docstore"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Open conecta y hace ping. El caller cierra con Disconnect.
func Open(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// DocumentsRepo guarda cada índice en una colección; _id es el id del
// documento en formato string.
type DocumentsRepo struct {
	db *mongo.Database
}

func NewDocumentsRepo(db *mongo.Database) *DocumentsRepo {
	return &DocumentsRepo{db: db}
}

func (r *DocumentsRepo) EnsureIndex(ctx context.Context, index string) error {
	// índice de texto comodín para q
	_, err := r.db.Collection(index).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "$**", Value: "text"}},
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure index %s: %w", index, err)
	}
	return nil
}

func (r *DocumentsRepo) Get(ctx context.Context, index, id string) (docstore.Document, error) {
	var raw bson.M
	err := r.db.Collection(index).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, docstore.ErrNotFound
		}
		return nil, err
	}
	return fromBSON(raw), nil
}

func (r *DocumentsRepo) Search(ctx context.Context, index string, req docstore.SearchRequest) (docstore.SearchResult, error) {
	coll := r.db.Collection(index)
	filter := buildFilter(req)

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return docstore.SearchResult{}, err
	}

	size := req.Size
	if size <= 0 {
		size = 20
	}
	opts := options.Find().
		SetSort(buildSort(req.Sort)).
		SetLimit(int64(size)).
		SetSkip(int64(max(req.From, 0)))

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return docstore.SearchResult{}, err
	}
	defer cur.Close(ctx)

	out := docstore.SearchResult{Hits: make([]docstore.Document, 0), Total: int(total)}
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return docstore.SearchResult{}, err
		}
		out.Hits = append(out.Hits, fromBSON(raw))
	}
	return out, cur.Err()
}

func (r *DocumentsRepo) Index(ctx context.Context, index, id string, doc docstore.Document) error {
	_, err := r.db.Collection(index).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		toBSON(id, doc),
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *DocumentsRepo) Update(ctx context.Context, index, id string, partial docstore.Document) error {
	set := bson.M{}
	for k, v := range partial {
		set[k] = v
	}
	if len(set) == 0 {
		// $set vacío no es válido; alcanza con verificar que exista
		_, err := r.Get(ctx, index, id)
		return err
	}

	res, err := r.db.Collection(index).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (r *DocumentsRepo) UpdateByQuery(ctx context.Context, index, field string, refID any, value any) (int, error) {
	res, err := r.db.Collection(index).UpdateMany(ctx,
		bson.D{{Key: field + ".id", Value: refID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: value}}}},
	)
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

func (r *DocumentsRepo) Delete(ctx context.Context, index, id string) error {
	res, err := r.db.Collection(index).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (r *DocumentsRepo) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, readpref.Primary())
}

// ---------------------------------------------------------------------------

var filterOps = map[docstore.Op]string{
	docstore.OpEq:  "$eq",
	docstore.OpNeq: "$ne",
	docstore.OpGt:  "$gt",
	docstore.OpGte: "$gte",
	docstore.OpLt:  "$lt",
	docstore.OpLte: "$lte",
}

func buildFilter(req docstore.SearchRequest) bson.D {
	and := bson.A{}
	if q := strings.TrimSpace(req.Query); q != "" {
		and = append(and, bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: q}}}})
	}
	for _, group := range req.Filter {
		if len(group) == 0 {
			continue
		}
		or := bson.A{}
		for _, cond := range group {
			or = append(or, bson.D{{Key: cond.Field, Value: bson.D{{Key: filterOps[cond.Op], Value: cond.Value}}}})
		}
		and = append(and, bson.D{{Key: "$or", Value: or}})
	}
	if len(and) == 0 {
		return bson.D{}
	}
	return bson.D{{Key: "$and", Value: and}}
}

func buildSort(order []docstore.Sort) bson.D {
	if len(order) == 0 {
		return bson.D{{Key: "_id", Value: 1}}
	}
	out := bson.D{}
	for _, s := range order {
		dir := 1
		if s.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: s.Field, Value: dir})
	}
	return out
}

func toBSON(id string, doc docstore.Document) bson.M {
	out := bson.M{"_id": id}
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// fromBSON quita _id y lleva los tipos BSON a los mismos tipos que produce
// encoding/json, para que el resto del código no distinga de dónde vino.
func fromBSON(raw bson.M) docstore.Document {
	delete(raw, "_id")
	out, _ := plain(raw).(map[string]any)
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		return plainMap(t)
	case map[string]any:
		return plainMap(t)
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case bson.A:
		return plainSlice(t)
	case []any:
		return plainSlice(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case bson.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plain(v)
	}
	return out
}

func plainSlice(a []any) []any {
	out := make([]any, len(a))
	for i, v := range a {
		out[i] = plain(v)
	}
	return out
}
