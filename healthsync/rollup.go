// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Delete predicates for the rollup record classes. Statically defined; only
// parameter values vary per call.
const (
	activityDeletePredicate = "user_id = @user_id AND date IN UNNEST(@keys)"
	bodyDeletePredicate     = "user_id = @user_id AND FORMAT_TIMESTAMP('%Y-%m-%dT%H:%M:%S', measured_at) IN UNNEST(@keys)"

	scaleTimestampLayout = "20060102150405"
	measuredAtLayout     = "2006-01-02T15:04:05"
)

// UpsertActivityDays replaces the stored daily device metrics for every date
// present in the batch: existing rows for (user, date) are deleted, then the
// fresh rows are inserted with "user|date" insert identities. The delete and
// insert are not one atomic transaction; a concurrent reader can observe a
// transient absence for the affected dates. Legitimate traffic runs one sync
// per user per cycle, so concurrent upserts for the same keys are out of
// scope.
func (s *Service) UpsertActivityDays(ctx context.Context, userID string, days []ActivityDay) (*UpsertResult, error) {
	runID := uuid.New().String()
	if s.analytical == nil {
		return &UpsertResult{OK: false, RunID: runID, Reason: "analytical store unavailable"}, nil
	}

	ingestedAt := formatTimestamp(s.nowUTC())

	// Collapse the batch to one row per date; the last occurrence wins, as it
	// is the most recent reading from the device API.
	byDate := make(map[string]ActivityDay)
	for _, d := range days {
		if d.Date == "" {
			continue
		}
		byDate[d.Date] = d
	}
	if len(byDate) == 0 {
		return &UpsertResult{OK: true, RunID: runID, Reason: "no data to insert"}, nil
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	rows := make([]Row, 0, len(dates))
	insertIDs := make([]string, 0, len(dates))
	for _, date := range dates {
		d := byDate[date]
		rows = append(rows, Row{
			"user_id":        userID,
			"date":           d.Date,
			"steps_total":    d.StepsTotal,
			"calories_total": d.CaloriesTotal,
			"sleep_line":     d.SleepLine,
			"spo2_line":      d.SpO2Line,
			"ingested_at":    ingestedAt,
		})
		insertIDs = append(insertIDs, userID+"|"+d.Date)
	}

	return s.replaceRows(ctx, runID, userID, s.config.Tables.ActivityDaily,
		activityDeletePredicate, DateArrayParam("keys", dates), rows, insertIDs)
}

// UpsertBodyMeasurements replaces the stored body-scale rows for every
// timestamp present in the batch. Readings sharing a timestamp are merged
// into one row first, so weight and fat percentage measured together always
// land together.
func (s *Service) UpsertBodyMeasurements(ctx context.Context, userID string, measurements []BodyMeasurement) (*UpsertResult, error) {
	runID := uuid.New().String()
	if s.analytical == nil {
		return &UpsertResult{OK: false, RunID: runID, Reason: "analytical store unavailable"}, nil
	}

	ingestedAt := formatTimestamp(s.nowUTC())

	merged := mergeBodyMeasurements(measurements)
	if len(merged) == 0 {
		return &UpsertResult{OK: true, RunID: runID, Reason: "no data to insert"}, nil
	}

	keys := make([]string, 0, len(merged))
	rows := make([]Row, 0, len(merged))
	insertIDs := make([]string, 0, len(merged))
	for _, m := range merged {
		var weight, fat any
		if m.WeightKg != nil {
			weight = *m.WeightKg
		}
		if m.FatPercentage != nil {
			fat = *m.FatPercentage
		}
		keys = append(keys, m.MeasuredAt)
		rows = append(rows, Row{
			"user_id":        userID,
			"measured_at":    m.MeasuredAt,
			"weight":         weight,
			"fat_percentage": fat,
			"raw":            m.Raw,
			"ingested_at":    ingestedAt,
		})
		insertIDs = append(insertIDs, userID+"|"+m.MeasuredAt)
	}

	return s.replaceRows(ctx, runID, userID, s.config.Tables.BodyComposition,
		bodyDeletePredicate, StringArrayParam("keys", keys), rows, insertIDs)
}

// replaceRows is the shared delete-then-insert step of the rollup engines.
func (s *Service) replaceRows(ctx context.Context, runID, userID, table, predicate string, keys Param, rows []Row, insertIDs []string) (*UpsertResult, error) {
	start := s.now()
	deleted, err := s.analytical.DeleteWhere(ctx, table, predicate,
		[]Param{StringParam("user_id", userID), keys})
	s.observeStage(ctx, MetricsOpRollup, MetricsStageRollupDelete, start, len(rows), err != nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("Rollup delete failed",
			"run_id", runID, "user_id", userID, "table", table, "error", err)
		return &UpsertResult{OK: false, RunID: runID, Reason: fmt.Sprintf("delete failed: %v", err)}, nil
	}

	start = s.now()
	res, err := s.analytical.InsertRows(ctx, table, rows, insertIDs)
	s.observeStage(ctx, MetricsOpRollup, MetricsStageRollupInsert, start, len(rows), err != nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("Rollup insert failed",
			"run_id", runID, "user_id", userID, "table", table, "deleted", deleted, "error", err)
		return &UpsertResult{OK: false, RunID: runID, DeletedCount: deleted, Reason: fmt.Sprintf("insert failed: %v", err)}, nil
	}

	result := &UpsertResult{
		OK:            res.OK,
		RunID:         runID,
		DeletedCount:  deleted,
		InsertedCount: res.Inserted,
		RowErrors:     res.RowErrors,
	}
	s.logger.Debug("Rollup replace complete",
		"run_id", runID, "user_id", userID, "table", table,
		"deleted", deleted, "inserted", res.Inserted, "ok", res.OK)
	return result, nil
}

// ActivityDaysFromReadings converts raw device telemetry into typed daily
// rows. Metric fields that fail numeric parsing default to zero: device data
// is best-effort telemetry, not validated user input.
func ActivityDaysFromReadings(readings []ActivityReading) []ActivityDay {
	days := make([]ActivityDay, 0, len(readings))
	for _, r := range readings {
		if r.Date == "" {
			continue
		}
		days = append(days, ActivityDay{
			Date:          r.Date,
			StepsTotal:    coerceInt(r.StepsTotal),
			CaloriesTotal: coerceInt(r.CaloriesTotal),
			SleepLine:     r.SleepLine,
			SpO2Line:      r.SpO2Line,
		})
	}
	return days
}

// BodyMeasurementsFromReadings converts raw scale API items into merged body
// measurements: readings of different metric types sharing one timestamp
// become a single row. Items with missing timestamps or unparseable values
// are skipped; the row for a timestamp survives as long as it has at least
// one usable value.
func BodyMeasurementsFromReadings(readings []ScaleReading) []BodyMeasurement {
	type accum struct {
		m   BodyMeasurement
		raw []ScaleReading
	}
	byTimestamp := make(map[string]*accum)

	for _, r := range readings {
		if r.Timestamp == "" || r.Value == "" {
			continue
		}
		t, err := time.Parse(scaleTimestampLayout, r.Timestamp)
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(r.Value, 64)
		if err != nil {
			continue
		}
		if r.Tag != "6021" && r.Tag != "6022" {
			continue
		}

		key := t.Format(measuredAtLayout)
		a, ok := byTimestamp[key]
		if !ok {
			a = &accum{m: BodyMeasurement{MeasuredAt: key}}
			byTimestamp[key] = a
		}
		if r.Tag == "6021" {
			v := value
			a.m.WeightKg = &v
		} else {
			v := value
			a.m.FatPercentage = &v
		}
		a.raw = append(a.raw, r)
	}

	keys := make([]string, 0, len(byTimestamp))
	for k := range byTimestamp {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]BodyMeasurement, 0, len(keys))
	for _, k := range keys {
		a := byTimestamp[k]
		if raw, err := json.Marshal(a.raw); err == nil {
			a.m.Raw = string(raw)
		}
		out = append(out, a.m)
	}
	return out
}

// mergeBodyMeasurements collapses a batch to one row per timestamp, merging
// non-nil fields so partial rows for the same instant combine instead of
// clobbering each other.
func mergeBodyMeasurements(measurements []BodyMeasurement) []BodyMeasurement {
	byTimestamp := make(map[string]BodyMeasurement)
	for _, m := range measurements {
		if m.MeasuredAt == "" {
			continue
		}
		cur, ok := byTimestamp[m.MeasuredAt]
		if !ok {
			byTimestamp[m.MeasuredAt] = m
			continue
		}
		if m.WeightKg != nil {
			cur.WeightKg = m.WeightKg
		}
		if m.FatPercentage != nil {
			cur.FatPercentage = m.FatPercentage
		}
		if m.Raw != "" {
			cur.Raw = m.Raw
		}
		byTimestamp[m.MeasuredAt] = cur
	}

	keys := make([]string, 0, len(byTimestamp))
	for k := range byTimestamp {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]BodyMeasurement, 0, len(keys))
	for _, k := range keys {
		out = append(out, byTimestamp[k])
	}
	return out
}

// coerceInt parses a device metric as an integer, accepting float-formatted
// values and defaulting to zero on failure.
func coerceInt(v string) int64 {
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}
