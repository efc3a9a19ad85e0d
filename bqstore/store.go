// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package bqstore implements the analytical-store contract on BigQuery.
// Inserts go through the streaming API with caller-supplied insert IDs so the
// backend deduplicates rows by identity; queries and DML use typed named
// parameters.
package bqstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/haruka-katayama/FitAI-v2/healthsync"
)

// Store is a BigQuery-backed analytical store. A nil *Store is a valid
// "unavailable" store whose methods fail with ErrStoreUnavailable.
type Store struct {
	client *bigquery.Client
	logger *slog.Logger
}

// Open creates a BigQuery client for the project. An empty projectID means
// the analytical store is not configured and Open returns (nil, nil); the
// coordinator treats a missing analytical store as fatal to writes.
func Open(ctx context.Context, projectID string, logger *slog.Logger) (*Store, error) {
	if projectID == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bqstore: connect: %w", err)
	}
	return &Store{client: client, logger: logger}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// tableRef resolves a fully qualified "project.dataset.table" name.
func (s *Store) tableRef(qualified string) (*bigquery.Table, error) {
	parts := strings.Split(qualified, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("bqstore: table %q is not project.dataset.table", qualified)
	}
	return s.client.DatasetInProject(parts[0], parts[1]).Table(parts[2]), nil
}

// rowSaver carries one row with its dedup identity. An empty insertID lets
// the backend assign one, which disables identity-based deduplication.
type rowSaver struct {
	row      healthsync.Row
	insertID string
}

func (r *rowSaver) Save() (map[string]bigquery.Value, string, error) {
	values := make(map[string]bigquery.Value, len(r.row))
	for k, v := range r.row {
		values[k] = v
	}
	return values, r.insertID, nil
}

// InsertRows streams rows into the table. Per-row failures whose reason
// indicates the identity already exists are treated as successes; any other
// per-row failure surfaces in the result and marks it not OK.
func (s *Store) InsertRows(ctx context.Context, table string, rows []healthsync.Row, insertIDs []string) (*healthsync.InsertResult, error) {
	if s == nil || s.client == nil {
		return nil, healthsync.ErrStoreUnavailable
	}
	if len(rows) == 0 {
		return &healthsync.InsertResult{OK: true}, nil
	}
	if insertIDs != nil && len(insertIDs) != len(rows) {
		return nil, fmt.Errorf("%w: %d rows but %d insert ids", healthsync.ErrBadRecord, len(rows), len(insertIDs))
	}

	ref, err := s.tableRef(table)
	if err != nil {
		return nil, err
	}

	savers := make([]*rowSaver, len(rows))
	for i, row := range rows {
		saver := &rowSaver{row: row}
		if insertIDs != nil {
			saver.insertID = insertIDs[i]
		}
		savers[i] = saver
	}

	inserter := ref.Inserter()
	inserter.IgnoreUnknownValues = true
	err = inserter.Put(ctx, savers)
	if err == nil {
		return &healthsync.InsertResult{OK: true, Inserted: len(rows)}, nil
	}

	var multi bigquery.PutMultiError
	if !errors.As(err, &multi) {
		return nil, fmt.Errorf("bqstore: insert into %s: %w", table, err)
	}

	result := &healthsync.InsertResult{Inserted: len(rows)}
	for _, rowErr := range multi {
		duplicate := true
		for _, e := range rowErr.Errors {
			var bqErr *bigquery.Error
			if errors.As(e, &bqErr) && healthsync.IsDuplicateReason(bqErr.Reason) {
				continue
			}
			duplicate = false
			reason, message := describeRowError(e)
			result.RowErrors = append(result.RowErrors, healthsync.RowError{
				Index:   rowErr.RowIndex,
				Reason:  reason,
				Message: message,
			})
		}
		if !duplicate {
			result.Inserted--
		}
	}
	result.OK = len(result.RowErrors) == 0
	return result, nil
}

func describeRowError(err error) (reason, message string) {
	var bqErr *bigquery.Error
	if errors.As(err, &bqErr) {
		return bqErr.Reason, bqErr.Message
	}
	return "unknown", err.Error()
}

// Query runs a parameterized query and returns all result rows.
func (s *Store) Query(ctx context.Context, sql string, params []healthsync.Param) ([]healthsync.Row, error) {
	if s == nil || s.client == nil {
		return nil, healthsync.ErrStoreUnavailable
	}

	q := s.client.Query(sql)
	queryParams, err := toQueryParameters(params)
	if err != nil {
		return nil, err
	}
	q.Parameters = queryParams

	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}

	var out []healthsync.Row
	for {
		var values map[string]bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bqstore: read row: %w", err)
		}
		row := make(healthsync.Row, len(values))
		for k, v := range values {
			row[k] = normalizeValue(v)
		}
		out = append(out, row)
	}
	return out, nil
}

// QueryWithFallback runs primarySQL; if it fails against a missing
// column/field, it runs fallbackSQL once with the same parameters. Non-schema
// failures propagate unchanged.
func (s *Store) QueryWithFallback(ctx context.Context, primarySQL, fallbackSQL string, params []healthsync.Param) ([]healthsync.Row, error) {
	rows, err := s.Query(ctx, primarySQL, params)
	if err == nil {
		return rows, nil
	}
	if !healthsync.IsSchemaMismatch(err) {
		return nil, err
	}
	s.logger.Warn("query hit missing column, retrying with fallback", "error", err)
	return s.Query(ctx, fallbackSQL, params)
}

// Exec runs a DML statement and returns the number of affected rows.
func (s *Store) Exec(ctx context.Context, sql string, params []healthsync.Param) (int64, error) {
	if s == nil || s.client == nil {
		return 0, healthsync.ErrStoreUnavailable
	}

	q := s.client.Query(sql)
	queryParams, err := toQueryParameters(params)
	if err != nil {
		return 0, err
	}
	q.Parameters = queryParams

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("bqstore: run dml: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("bqstore: wait dml: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("bqstore: dml failed: %w", err)
	}
	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return stats.NumDMLAffectedRows, nil
	}
	return 0, nil
}

// DeleteWhere deletes rows matching the predicate. The predicate text is a
// static caller constant; only parameter values vary per call.
func (s *Store) DeleteWhere(ctx context.Context, table, predicate string, params []healthsync.Param) (int64, error) {
	if s == nil || s.client == nil {
		return 0, healthsync.ErrStoreUnavailable
	}
	sql := fmt.Sprintf("DELETE FROM `%s` WHERE %s", table, predicate)
	return s.Exec(ctx, sql, params)
}

// toQueryParameters maps typed params to BigQuery named parameters. Dates
// become civil dates so the backend binds them as DATE, not STRING.
func toQueryParameters(params []healthsync.Param) ([]bigquery.QueryParameter, error) {
	out := make([]bigquery.QueryParameter, 0, len(params))
	for _, p := range params {
		value, err := parameterValue(p)
		if err != nil {
			return nil, err
		}
		out = append(out, bigquery.QueryParameter{Name: p.Name, Value: value})
	}
	return out, nil
}

func parameterValue(p healthsync.Param) (any, error) {
	switch p.Kind {
	case healthsync.ParamDate:
		str, ok := p.Value.(string)
		if !ok {
			return nil, fmt.Errorf("bqstore: date param %s: want string, got %T", p.Name, p.Value)
		}
		d, err := civil.ParseDate(str)
		if err != nil {
			return nil, fmt.Errorf("bqstore: date param %s: %w", p.Name, err)
		}
		return d, nil
	case healthsync.ParamDateArray:
		strs, ok := p.Value.([]string)
		if !ok {
			return nil, fmt.Errorf("bqstore: date array param %s: want []string, got %T", p.Name, p.Value)
		}
		dates := make([]civil.Date, len(strs))
		for i, str := range strs {
			d, err := civil.ParseDate(str)
			if err != nil {
				return nil, fmt.Errorf("bqstore: date array param %s[%d]: %w", p.Name, i, err)
			}
			dates[i] = d
		}
		return dates, nil
	default:
		return p.Value, nil
	}
}

// normalizeValue flattens BigQuery-native result values into the shared row
// vocabulary: dates and timestamps become strings, numerics stay as-is.
func normalizeValue(v bigquery.Value) any {
	switch t := v.(type) {
	case civil.Date:
		return t.String()
	case civil.DateTime:
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return t
	}
}
