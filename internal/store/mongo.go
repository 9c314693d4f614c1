package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoIDField          = "_id"
	mongoSeqField         = "_seq"
	mongoCountersCollName = "_counters"
)

// MongoRepo implements DocumentRepo on a MongoDB database, one collection
// per table. Insertion order is kept with a counter document so queries
// return rows in the same order as the SQLite backend.
type MongoRepo struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ DocumentRepo = (*MongoRepo)(nil)

// OpenMongo connects to uri and returns a repo over the named database.
func OpenMongo(ctx context.Context, uri, database string) (*MongoRepo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoRepo{client: client, db: client.Database(database)}, nil
}

// Close disconnects from the server.
func (r *MongoRepo) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoRepo) Query(ctx context.Context, table string, filter Filter) ([]Document, error) {
	if !isDocumentTable(table) {
		return nil, fmt.Errorf("query %s: unknown table", table)
	}

	direction := 1
	if filter.Order == OrderNewest {
		direction = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: mongoSeqField, Value: direction}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := r.db.Collection(table).Find(ctx, mongoFilter(filter.Equals), opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}

	docs := make([]Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, fromBSON(m))
	}
	return docs, nil
}

func (r *MongoRepo) Get(ctx context.Context, table, id string) (Document, error) {
	if !isDocumentTable(table) {
		return nil, fmt.Errorf("get %s: unknown table", table)
	}
	var m bson.M
	err := r.db.Collection(table).FindOne(ctx, bson.M{mongoIDField: id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get %s/%s: %w", table, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	return fromBSON(m), nil
}

func (r *MongoRepo) Create(ctx context.Context, table string, doc Document) (string, error) {
	if !isDocumentTable(table) {
		return "", fmt.Errorf("create %s: unknown table", table)
	}
	id := doc.ID()
	if id == "" {
		id = uuid.New().String()
	}

	seq, err := r.nextSeq(ctx)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", table, err)
	}

	m := toBSON(doc)
	m[mongoIDField] = id
	m[mongoSeqField] = seq
	if _, err := r.db.Collection(table).InsertOne(ctx, m); err != nil {
		return "", fmt.Errorf("create %s: %w", table, err)
	}
	return id, nil
}

func (r *MongoRepo) Upsert(ctx context.Context, table string, doc Document) error {
	if !isDocumentTable(table) {
		return fmt.Errorf("upsert %s: unknown table", table)
	}
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("upsert %s: document has no id", table)
	}

	seq, err := r.nextSeq(ctx)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", table, id, err)
	}

	update := bson.M{
		"$set":         toBSON(doc),
		"$setOnInsert": bson.M{mongoSeqField: seq},
	}
	_, err = r.db.Collection(table).UpdateOne(ctx,
		bson.M{mongoIDField: id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", table, id, err)
	}
	return nil
}

func (r *MongoRepo) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := r.db.Collection(mongoCountersCollName).FindOneAndUpdate(ctx,
		bson.M{mongoIDField: "global_sequence"},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return counter.Value, nil
}

// mongoFilter translates equality filters, mapping the document id onto
// the collection key.
func mongoFilter(equals map[string]any) bson.D {
	keys := make([]string, 0, len(equals))
	for k, v := range equals {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	filter := bson.D{}
	for _, k := range keys {
		key := k
		if k == FieldID {
			key = mongoIDField
		}
		filter = append(filter, bson.E{Key: key, Value: equals[k]})
	}
	return filter
}

func toBSON(doc Document) bson.M {
	m := bson.M{}
	for k, v := range doc {
		if k == FieldID {
			continue
		}
		m[k] = v
	}
	return m
}

// fromBSON unwraps a raw BSON document into plain Go values matching what
// the SQLite backend returns after JSON decoding.
func fromBSON(m bson.M) Document {
	doc := Document{}
	for k, v := range m {
		switch k {
		case mongoSeqField:
			continue
		case mongoIDField:
			doc[FieldID] = fmt.Sprint(v)
		default:
			doc[k] = plainValue(v)
		}
	}
	return doc
}

func plainValue(v any) any {
	switch t := v.(type) {
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plainValue(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
