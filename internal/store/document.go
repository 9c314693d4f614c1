package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqljson"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a document lookup by id finds nothing.
var ErrNotFound = errors.New("document not found")

// FieldID is the document key holding its identifier.
const FieldID = "id"

// Document is an untyped record as stored in a schemaless table.
// Typed records are coerced to and from documents by the domain packages.
type Document map[string]any

// ID returns the document identifier, or "" if it has none.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// Order selects the direction rows are returned in, by insertion sequence.
type Order int

const (
	OrderOldest Order = iota
	OrderNewest
)

// Filter restricts a document query.
type Filter struct {
	Equals map[string]any // top-level field equality; nil values are skipped
	Limit  int            // max results (0 = unlimited)
	Order  Order
}

// DocumentRepo is the generic document repository the quiz core is written
// against. Each operation is a single independent round trip.
type DocumentRepo interface {
	// Query returns the documents of table matching filter, in insertion
	// order (or reverse insertion order for OrderNewest).
	Query(ctx context.Context, table string, filter Filter) ([]Document, error)

	// Get returns the document with the given id or ErrNotFound.
	Get(ctx context.Context, table, id string) (Document, error)

	// Create stores a new document and returns its id. An id is generated
	// when the document has none.
	Create(ctx context.Context, table string, doc Document) (string, error)

	// Upsert merges the fields of doc into the existing document located by
	// doc's id, creating the document when it does not exist.
	Upsert(ctx context.Context, table string, doc Document) error
}

// sqliteDocumentRepo implements DocumentRepo on top of the ent SQL driver,
// keeping each document as JSON in the envelope table's data column.
type sqliteDocumentRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

func (r *sqliteDocumentRepo) Query(ctx context.Context, table string, filter Filter) ([]Document, error) {
	if !isDocumentTable(table) {
		return nil, fmt.Errorf("query %s: unknown table", table)
	}

	selector := entsql.Dialect(dialect.SQLite).
		Select("id", "data").
		From(entsql.Table(table))

	if preds := equalityPredicates(filter.Equals); len(preds) > 0 {
		selector.Where(entsql.And(preds...))
	}
	if filter.Order == OrderNewest {
		selector.OrderBy(entsql.Desc("seq"))
	} else {
		selector.OrderBy(entsql.Asc("seq"))
	}
	if filter.Limit > 0 {
		selector.Limit(filter.Limit)
	}

	query, args := selector.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(&rows)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", table, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return docs, nil
}

func (r *sqliteDocumentRepo) Get(ctx context.Context, table, id string) (Document, error) {
	if !isDocumentTable(table) {
		return nil, fmt.Errorf("get %s: unknown table", table)
	}
	doc, err := getDocument(ctx, r.drv, table, id)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	return doc, nil
}

func (r *sqliteDocumentRepo) Create(ctx context.Context, table string, doc Document) (string, error) {
	if !isDocumentTable(table) {
		return "", fmt.Errorf("create %s: unknown table", table)
	}

	id := doc.ID()
	if id == "" {
		id = uuid.New().String()
	}
	if err := insertDocument(ctx, r.drv, r.seq, table, id, doc); err != nil {
		return "", fmt.Errorf("create %s: %w", table, err)
	}
	return id, nil
}

func (r *sqliteDocumentRepo) Upsert(ctx context.Context, table string, doc Document) error {
	if !isDocumentTable(table) {
		return fmt.Errorf("upsert %s: unknown table", table)
	}
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("upsert %s: document has no id", table)
	}

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("upsert %s: begin: %w", table, err)
	}

	if err := upsertDocument(ctx, tx, r.seq, table, id, doc); err != nil {
		tx.Rollback()
		return fmt.Errorf("upsert %s/%s: %w", table, id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert %s/%s: commit: %w", table, id, err)
	}
	return nil
}

func upsertDocument(ctx context.Context, conn dialect.ExecQuerier, seq *sequenceCounter, table, id string, doc Document) error {
	existing, err := getDocument(ctx, conn, table, id)
	if errors.Is(err, ErrNotFound) {
		return insertDocument(ctx, conn, seq, table, id, doc)
	}
	if err != nil {
		return err
	}

	for k, v := range doc {
		existing[k] = v
	}
	existing[FieldID] = id

	data, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Update(table).
		Set("data", string(data)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	return conn.Exec(ctx, query, args, nil)
}

func insertDocument(ctx context.Context, conn dialect.ExecQuerier, seq *sequenceCounter, table, id string, doc Document) error {
	stored := make(Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored[FieldID] = id

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	seqNum, err := seq.Next(ctx, conn)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query, args := entsql.Dialect(dialect.SQLite).
		Insert(table).
		Columns("id", "seq", "data", "created_at", "updated_at").
		Values(id, seqNum, string(data), now, now).
		Query()
	return conn.Exec(ctx, query, args, nil)
}

func getDocument(ctx context.Context, conn dialect.ExecQuerier, table, id string) (Document, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select("id", "data").
		From(entsql.Table(table)).
		Where(entsql.EQ("id", id)).
		Limit(1).
		Query()

	var rows entsql.Rows
	if err := conn.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanDocument(&rows)
}

func scanDocument(rows *entsql.Rows) (Document, error) {
	var (
		id   string
		data []byte
	)
	if err := rows.Scan(&id, &data); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc := Document{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
	}
	doc[FieldID] = id
	return doc, nil
}

// equalityPredicates builds JSON path predicates for the filter, in a
// stable key order so the generated SQL is deterministic.
func equalityPredicates(equals map[string]any) []*entsql.Predicate {
	keys := make([]string, 0, len(equals))
	for k, v := range equals {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]*entsql.Predicate, 0, len(keys))
	for _, k := range keys {
		if k == FieldID {
			preds = append(preds, entsql.EQ("id", equals[k]))
			continue
		}
		preds = append(preds, sqljson.ValueEQ("data", equals[k], sqljson.Path(k)))
	}
	return preds
}
