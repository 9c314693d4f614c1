package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepo is an in-process DocumentRepo for ephemeral runs and tests.
// Documents pass through a JSON round trip so readers see the same value
// shapes the SQLite backend returns.
type MemoryRepo struct {
	mu     sync.RWMutex
	tables map[string][]memoryRow
	seq    int64
}

type memoryRow struct {
	seq int64
	doc Document
}

var _ DocumentRepo = (*MemoryRepo)(nil)

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{tables: make(map[string][]memoryRow)}
}

func (m *MemoryRepo) Query(_ context.Context, table string, filter Filter) ([]Document, error) {
	if !isDocumentTable(table) {
		return nil, fmt.Errorf("query %s: unknown table", table)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.tables[table]
	var docs []Document
	for i := range rows {
		row := rows[i]
		if filter.Order == OrderNewest {
			row = rows[len(rows)-1-i]
		}
		if !matches(row.doc, filter.Equals) {
			continue
		}
		docs = append(docs, copyDocument(row.doc))
		if filter.Limit > 0 && len(docs) == filter.Limit {
			break
		}
	}
	return docs, nil
}

func (m *MemoryRepo) Get(_ context.Context, table, id string) (Document, error) {
	if !isDocumentTable(table) {
		return nil, fmt.Errorf("get %s: unknown table", table)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.indexOf(table, id); i >= 0 {
		return copyDocument(m.tables[table][i].doc), nil
	}
	return nil, fmt.Errorf("get %s/%s: %w", table, id, ErrNotFound)
}

func (m *MemoryRepo) Create(_ context.Context, table string, doc Document) (string, error) {
	if !isDocumentTable(table) {
		return "", fmt.Errorf("create %s: unknown table", table)
	}
	stored, err := normalize(doc)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", table, err)
	}
	id := stored.ID()
	if id == "" {
		id = uuid.New().String()
	}
	stored[FieldID] = id

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(table, id) >= 0 {
		return "", fmt.Errorf("create %s: duplicate id %q", table, id)
	}
	m.seq++
	m.tables[table] = append(m.tables[table], memoryRow{seq: m.seq, doc: stored})
	return id, nil
}

func (m *MemoryRepo) Upsert(_ context.Context, table string, doc Document) error {
	if !isDocumentTable(table) {
		return fmt.Errorf("upsert %s: unknown table", table)
	}
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("upsert %s: document has no id", table)
	}
	patch, err := normalize(doc)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", table, id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(table, id); i >= 0 {
		for k, v := range patch {
			m.tables[table][i].doc[k] = v
		}
		return nil
	}
	m.seq++
	m.tables[table] = append(m.tables[table], memoryRow{seq: m.seq, doc: patch})
	return nil
}

func (m *MemoryRepo) indexOf(table, id string) int {
	for i, row := range m.tables[table] {
		if row.doc.ID() == id {
			return i
		}
	}
	return -1
}

func matches(doc Document, equals map[string]any) bool {
	for k, want := range equals {
		if want == nil {
			continue
		}
		got, ok := doc[k]
		if !ok {
			return false
		}
		norm, err := normalizeValue(want)
		if err != nil || !reflect.DeepEqual(got, norm) {
			return false
		}
	}
	return true
}

func normalize(doc Document) (Document, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	out := Document{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(b, &out)
	return out, err
}

func copyDocument(doc Document) Document {
	out, err := normalize(doc)
	if err != nil {
		return doc
	}
	return out
}
