// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

import "context"

// Row is a generic record shape shared with both store adapters. Keys are the
// durable column/attribute names from the store schemas; renaming one is a
// breaking change that requires a migration (see QueryWithFallback).
type Row = map[string]any

// RecordClass selects the identity and storage policy for an incoming record.
type RecordClass string

const (
	ClassMeal          RecordClass = "meal"
	ClassActivityDaily RecordClass = "activity_daily"
	ClassBody          RecordClass = "body"
	ClassProfile       RecordClass = "profile"
)

// EventRecord is a discrete, immutable health event (a meal entry).
// OccurredAt is the client-local ISO-8601 timestamp exactly as submitted; it is
// never reparsed to UTC. OccurredDate and CreatedAt are server-assigned.
type EventRecord struct {
	UserID        string   `json:"user_id"`
	OccurredAt    string   `json:"occurred_at"`
	OccurredDate  string   `json:"occurred_date"`
	Text          string   `json:"text"`
	Calories      *float64 `json:"calories,omitempty"`
	Category      string   `json:"category,omitempty"`
	ContentDigest string   `json:"content_digest,omitempty"`
	NoteDigest    string   `json:"note_digest,omitempty"`
	Source        string   `json:"source,omitempty"`
	FileName      string   `json:"file_name,omitempty"`
	Mime          string   `json:"mime,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
}

// ActivityDay is one day of device activity metrics for a user.
type ActivityDay struct {
	Date          string `json:"date"` // "YYYY-MM-DD"
	StepsTotal    int64  `json:"steps_total"`
	CaloriesTotal int64  `json:"calories_total"`
	SleepLine     string `json:"sleep_line"`
	SpO2Line      string `json:"spo2_line"`
}

// ActivityReading is a raw, untyped day of device telemetry as delivered by an
// upstream sync. Numeric fields are strings because device payloads are
// best-effort; parsing failures coerce to zero instead of rejecting the day.
type ActivityReading struct {
	Date          string `json:"date"`
	StepsTotal    string `json:"steps_total"`
	CaloriesTotal string `json:"calories_total"`
	SleepLine     string `json:"sleep_line"`
	SpO2Line      string `json:"spo2_line"`
}

// BodyMeasurement is one timestamped body-scale measurement. Weight and
// fat-percentage readings sharing a timestamp are merged into a single row
// before storage. Raw preserves the source readings as a JSON string.
type BodyMeasurement struct {
	MeasuredAt    string   `json:"measured_at"` // "2006-01-02T15:04:05"
	WeightKg      *float64 `json:"weight,omitempty"`
	FatPercentage *float64 `json:"fat_percentage,omitempty"`
	Raw           string   `json:"raw,omitempty"`
}

// ScaleReading is a single raw body-scale API item. Tag identifies the metric
// type: "6021" is weight in kg, "6022" is body fat percentage.
type ScaleReading struct {
	Timestamp string `json:"date"` // "yyyymmddHHMMSS"
	Tag       string `json:"tag"`
	Value     string `json:"keydata"`
}

// ParamKind is the declared type of a query parameter. Adapters map kinds to
// the store's native typed parameters; array kinds carry slice values.
type ParamKind int

const (
	ParamString ParamKind = iota
	ParamInt64
	ParamFloat64
	ParamDate
	ParamTimestamp
	ParamStringArray
	ParamDateArray
)

// Param is a typed named query parameter. Values are never interpolated into
// query text.
type Param struct {
	Name  string
	Kind  ParamKind
	Value any
}

func StringParam(name, value string) Param {
	return Param{Name: name, Kind: ParamString, Value: value}
}

func DateParam(name, value string) Param {
	return Param{Name: name, Kind: ParamDate, Value: value}
}

func StringArrayParam(name string, values []string) Param {
	return Param{Name: name, Kind: ParamStringArray, Value: values}
}

func DateArrayParam(name string, values []string) Param {
	return Param{Name: name, Kind: ParamDateArray, Value: values}
}

// RowError is one per-row diagnostic from an analytical insert. Rows whose
// reason indicates duplication are filtered out by the adapter and never
// surface here.
type RowError struct {
	Index   int
	Reason  string
	Message string
}

// InsertResult reports the outcome of a batched analytical insert.
type InsertResult struct {
	OK        bool
	Inserted  int
	RowErrors []RowError
}

// DocumentStore is the narrow contract against the per-user document store.
// Implementations signal missing connectivity/configuration with
// ErrStoreUnavailable so callers can degrade instead of failing.
type DocumentStore interface {
	// Exists reports whether a document is present at the given key.
	Exists(ctx context.Context, collection, userID, docID string) (bool, error)

	// PutIfAbsent writes a document unless the key is already taken, and
	// reports whether a write happened. Writing the same key twice is safe:
	// event documents are keyed by content fingerprint, so concurrent writers
	// can only store equivalent content.
	PutIfAbsent(ctx context.Context, collection, userID, docID string, attrs Row) (bool, error)

	// Get returns the document attributes, or (nil, nil) when absent.
	Get(ctx context.Context, collection, userID, docID string) (Row, error)

	// QueryRange streams documents whose indexed attribute falls inclusively
	// between from and to, ordered by that attribute.
	QueryRange(ctx context.Context, collection, userID, field, from, to string) ([]Row, error)
}

// AnalyticalStore is the narrow contract against the columnar store.
type AnalyticalStore interface {
	// InsertRows performs a batched insert with store-side deduplication keyed
	// by the caller-supplied per-row insert identities. A row the store reports
	// as already present counts as success. insertIDs may be nil when no
	// dedup identity applies (profile inserts).
	InsertRows(ctx context.Context, table string, rows []Row, insertIDs []string) (*InsertResult, error)

	// Query runs a parameterized SQL query and returns all rows.
	Query(ctx context.Context, sql string, params []Param) ([]Row, error)

	// QueryWithFallback runs primary; when the failure is schema-shaped (an
	// unknown column/field) it runs fallback once with the same parameters.
	// Any other failure propagates unchanged.
	QueryWithFallback(ctx context.Context, primarySQL, fallbackSQL string, params []Param) ([]Row, error)

	// Exec runs a DML statement and returns the number of affected rows.
	Exec(ctx context.Context, sql string, params []Param) (int64, error)

	// DeleteWhere deletes rows from table matching the predicate and returns
	// the number of deleted rows. Predicates are statically defined by the
	// caller; only parameter values vary per call.
	DeleteWhere(ctx context.Context, table, predicate string, params []Param) (int64, error)
}

// StoreOutcome is the per-store portion of an ingestion result.
type StoreOutcome struct {
	OK          bool       `json:"ok"`
	Unavailable bool       `json:"unavailable,omitempty"`
	Skipped     bool       `json:"skipped,omitempty"`
	Error       string     `json:"error,omitempty"`
	RowErrors   []RowError `json:"row_errors,omitempty"`
}

// IngestResult aggregates the outcome of ingesting one event record.
type IngestResult struct {
	OK              bool         `json:"ok"`
	Fingerprint     string       `json:"fingerprint,omitempty"`
	Inserted        bool         `json:"inserted"`
	DocumentSkipped bool         `json:"document_skipped,omitempty"`
	Violations      []string     `json:"violations,omitempty"`
	RequestID       string       `json:"request_id"`
	Document        StoreOutcome `json:"document"`
	Analytical      StoreOutcome `json:"analytical"`
}

// UpsertResult reports a rollup replace operation.
type UpsertResult struct {
	OK            bool       `json:"ok"`
	DeletedCount  int64      `json:"deleted_count"`
	InsertedCount int        `json:"inserted_count"`
	Reason        string     `json:"reason,omitempty"`
	RunID         string     `json:"run_id"`
	RowErrors     []RowError `json:"row_errors,omitempty"`
}

// Profile upsert methods.
const (
	MethodInsert    = "insert"
	MethodUpdate    = "update"
	MethodNoChanges = "no_changes"
)

// ProfileUpsertResult reports a profile merge.
type ProfileUpsertResult struct {
	OK            bool   `json:"ok"`
	Method        string `json:"method,omitempty"`
	UpdatedFields int    `json:"updated_fields,omitempty"`
	UpdatedRows   int64  `json:"updated_rows,omitempty"`
	Reason        string `json:"reason,omitempty"`
}
