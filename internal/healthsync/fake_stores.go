// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

import (
	"context"
	"strings"
	"sync"

	"github.com/haruka-katayama/FitAI-v2/healthsync"
)

// FakeDocumentStore is an in-memory document store for scenario tests.
// This is NOT part of the SDK - it only exists so flows can be exercised
// without a PostgreSQL instance.
type FakeDocumentStore struct {
	mu   sync.Mutex
	docs map[string]healthsync.Row

	// Unavailable makes every call fail with ErrStoreUnavailable.
	Unavailable bool
	// ExistsErr is returned from Exists when set (a transient failure that
	// is not an availability signal).
	ExistsErr error
	// ExistsAlwaysFalse makes the existence pre-check miss even for stored
	// documents, to drive the check-then-write race path.
	ExistsAlwaysFalse bool

	ExistsCalls int
	PutCalls    int
	GetCalls    int
	QueryCalls  int
}

func NewFakeDocumentStore() *FakeDocumentStore {
	return &FakeDocumentStore{docs: make(map[string]healthsync.Row)}
}

func docKey(collection, userID, docID string) string {
	return collection + "/" + userID + "/" + docID
}

// Seed stores a document directly, bypassing counters.
func (f *FakeDocumentStore) Seed(collection, userID, docID string, attrs healthsync.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[docKey(collection, userID, docID)] = attrs
}

// DocCount reports how many documents a collection holds for a user.
func (f *FakeDocumentStore) DocCount(collection, userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for key := range f.docs {
		if strings.HasPrefix(key, collection+"/"+userID+"/") {
			n++
		}
	}
	return n
}

func (f *FakeDocumentStore) Exists(_ context.Context, collection, userID, docID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExistsCalls++
	if f.Unavailable {
		return false, healthsync.ErrStoreUnavailable
	}
	if f.ExistsErr != nil {
		return false, f.ExistsErr
	}
	if f.ExistsAlwaysFalse {
		return false, nil
	}
	_, ok := f.docs[docKey(collection, userID, docID)]
	return ok, nil
}

func (f *FakeDocumentStore) PutIfAbsent(_ context.Context, collection, userID, docID string, attrs healthsync.Row) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls++
	if f.Unavailable {
		return false, healthsync.ErrStoreUnavailable
	}
	key := docKey(collection, userID, docID)
	if _, ok := f.docs[key]; ok {
		return false, nil
	}
	f.docs[key] = attrs
	return true, nil
}

func (f *FakeDocumentStore) Get(_ context.Context, collection, userID, docID string) (healthsync.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++
	if f.Unavailable {
		return nil, healthsync.ErrStoreUnavailable
	}
	return f.docs[docKey(collection, userID, docID)], nil
}

func (f *FakeDocumentStore) QueryRange(_ context.Context, collection, userID, field, from, to string) ([]healthsync.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QueryCalls++
	if f.Unavailable {
		return nil, healthsync.ErrStoreUnavailable
	}
	var out []healthsync.Row
	for key, attrs := range f.docs {
		if !strings.HasPrefix(key, collection+"/"+userID+"/") {
			continue
		}
		v, _ := attrs[field].(string)
		if v >= from && v <= to {
			out = append(out, attrs)
		}
	}
	return out, nil
}

// FakeQuery is one recorded query/exec call.
type FakeQuery struct {
	SQL    string
	Params []healthsync.Param
}

// FakeQueryResponse is one scripted Query result, consumed FIFO.
type FakeQueryResponse struct {
	Rows []healthsync.Row
	Err  error
}

type storedRow struct {
	values   healthsync.Row
	insertID string
}

// FakeAnalyticalStore is an in-memory analytical store for scenario tests.
// Inserts deduplicate on insert identity the way the streaming backend does;
// DeleteWhere understands the two rollup predicates used by the service and
// actually removes matching rows, so overwrite flows see real state changes.
type FakeAnalyticalStore struct {
	mu      sync.Mutex
	tables  map[string][]storedRow
	seenIDs map[string]map[string]bool

	// Unavailable makes every call fail with ErrStoreUnavailable.
	Unavailable bool
	// InsertErr fails every InsertRows call when set.
	InsertErr error
	// RowErrorsNext is attached to the next InsertRows result, once.
	RowErrorsNext []healthsync.RowError
	// QueryResponses are consumed one per Query call, in order. When the
	// queue is empty a Query returns no rows.
	QueryResponses []FakeQueryResponse
	// ExecAffected is returned as the affected-row count of every Exec.
	ExecAffected int64
	// ExecErr fails every Exec call when set.
	ExecErr error

	InsertCalls int
	QueryLog    []FakeQuery
	ExecLog     []FakeQuery
	DeleteLog   []FakeQuery
}

func NewFakeAnalyticalStore() *FakeAnalyticalStore {
	return &FakeAnalyticalStore{
		tables:  make(map[string][]storedRow),
		seenIDs: make(map[string]map[string]bool),
	}
}

// Rows returns the stored rows of a table, in insertion order.
func (f *FakeAnalyticalStore) Rows(table string) []healthsync.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]healthsync.Row, 0, len(f.tables[table]))
	for _, r := range f.tables[table] {
		out = append(out, r.values)
	}
	return out
}

// ScriptQuery appends one scripted Query response.
func (f *FakeAnalyticalStore) ScriptQuery(rows []healthsync.Row, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QueryResponses = append(f.QueryResponses, FakeQueryResponse{Rows: rows, Err: err})
}

func (f *FakeAnalyticalStore) InsertRows(_ context.Context, table string, rows []healthsync.Row, insertIDs []string) (*healthsync.InsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InsertCalls++
	if f.Unavailable {
		return nil, healthsync.ErrStoreUnavailable
	}
	if f.InsertErr != nil {
		return nil, f.InsertErr
	}

	seen := f.seenIDs[table]
	if seen == nil {
		seen = make(map[string]bool)
		f.seenIDs[table] = seen
	}
	for i, row := range rows {
		id := ""
		if insertIDs != nil {
			id = insertIDs[i]
		}
		// A row whose identity was already streamed is silently absorbed,
		// like the backend's insert-ID dedup.
		if id != "" && seen[id] {
			continue
		}
		if id != "" {
			seen[id] = true
		}
		f.tables[table] = append(f.tables[table], storedRow{values: row, insertID: id})
	}

	result := &healthsync.InsertResult{OK: true, Inserted: len(rows)}
	if f.RowErrorsNext != nil {
		result.OK = false
		result.RowErrors = f.RowErrorsNext
		result.Inserted = len(rows) - len(f.RowErrorsNext)
		f.RowErrorsNext = nil
	}
	return result, nil
}

func (f *FakeAnalyticalStore) Query(_ context.Context, sql string, params []healthsync.Param) ([]healthsync.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return nil, healthsync.ErrStoreUnavailable
	}
	f.QueryLog = append(f.QueryLog, FakeQuery{SQL: sql, Params: params})
	if len(f.QueryResponses) == 0 {
		return nil, nil
	}
	resp := f.QueryResponses[0]
	f.QueryResponses = f.QueryResponses[1:]
	return resp.Rows, resp.Err
}

func (f *FakeAnalyticalStore) QueryWithFallback(ctx context.Context, primarySQL, fallbackSQL string, params []healthsync.Param) ([]healthsync.Row, error) {
	rows, err := f.Query(ctx, primarySQL, params)
	if err == nil {
		return rows, nil
	}
	if !healthsync.IsSchemaMismatch(err) {
		return nil, err
	}
	return f.Query(ctx, fallbackSQL, params)
}

func (f *FakeAnalyticalStore) Exec(_ context.Context, sql string, params []healthsync.Param) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return 0, healthsync.ErrStoreUnavailable
	}
	f.ExecLog = append(f.ExecLog, FakeQuery{SQL: sql, Params: params})
	if f.ExecErr != nil {
		return 0, f.ExecErr
	}
	return f.ExecAffected, nil
}

func (f *FakeAnalyticalStore) DeleteWhere(_ context.Context, table, predicate string, params []healthsync.Param) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return 0, healthsync.ErrStoreUnavailable
	}
	f.DeleteLog = append(f.DeleteLog, FakeQuery{SQL: predicate, Params: params})

	userID, keys := deleteParams(params)
	column := "measured_at"
	if strings.Contains(predicate, "date IN") {
		column = "date"
	}
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}

	var kept []storedRow
	var deleted int64
	for _, r := range f.tables[table] {
		rowUser, _ := r.values["user_id"].(string)
		rowKey, _ := r.values[column].(string)
		if rowUser == userID && keySet[rowKey] {
			deleted++
			if r.insertID != "" {
				delete(f.seenIDs[table], r.insertID)
			}
			continue
		}
		kept = append(kept, r)
	}
	f.tables[table] = kept
	return deleted, nil
}

func deleteParams(params []healthsync.Param) (userID string, keys []string) {
	for _, p := range params {
		switch p.Name {
		case "user_id":
			userID, _ = p.Value.(string)
		case "keys":
			keys, _ = p.Value.([]string)
		}
	}
	return userID, keys
}
