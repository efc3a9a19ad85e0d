// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// profileDocID is the fixed document id of a user's latest profile.
const profileDocID = "latest"

// profileField maps one document attribute to its analytical column. The
// table is enumerated statically so the merge can build parameterized
// assignment clauses without ever interpolating user-controlled values into
// query text.
type profileField struct {
	key    string
	column string
	kind   ParamKind
}

var profileFields = []profileField{
	{"age", "age", ParamInt64},
	{"sex", "sex", ParamString},
	{"height_cm", "height_cm", ParamFloat64},
	{"weight_kg", "weight_kg", ParamFloat64},
	{"target_weight_kg", "target_weight_kg", ParamFloat64},
	{"goal", "goal", ParamString},
	{"smoking_status", "smoking_status", ParamString},
	{"alcohol_habit", "alcohol_habit", ParamString},
	{"past_history", "past_history", ParamString},
	{"medications", "medications", ParamString},
	{"allergies", "allergies", ParamString},
	{"notes", "notes", ParamString},
	{"updated_at", "updated_at", ParamTimestamp},
}

// UpsertProfile propagates the user's latest profile document into the
// analytical store. With no existing analytical row it inserts a full row;
// otherwise it issues a minimal UPDATE containing only the non-null mapped
// fields. Absent fields in the document never overwrite previously stored
// values.
func (s *Service) UpsertProfile(ctx context.Context, userID string) (*ProfileUpsertResult, error) {
	if s.docs == nil {
		return &ProfileUpsertResult{OK: false, Reason: "document store unavailable"}, nil
	}
	if s.analytical == nil {
		return &ProfileUpsertResult{OK: false, Reason: "analytical store unavailable"}, nil
	}

	start := s.now()
	doc, err := s.docs.Get(ctx, s.config.Tables.ProfileCollection, userID, profileDocID)
	s.observeStage(ctx, MetricsOpProfile, MetricsStageProfileRead, start, 1, err != nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("Profile document read failed", "user_id", userID, "error", err)
		return &ProfileUpsertResult{OK: false, Reason: fmt.Sprintf("profile read failed: %v", err)}, nil
	}
	if len(doc) == 0 {
		return &ProfileUpsertResult{OK: false, Reason: "no profile document"}, nil
	}

	values := s.profileValues(doc)
	table := s.config.Tables.Profiles

	start = s.now()
	result, err := s.mergeProfile(ctx, table, userID, values)
	s.observeStage(ctx, MetricsOpProfile, MetricsStageProfileMerge, start, 1, err != nil || !result.OK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("Profile merge failed", "user_id", userID, "error", err)
		return &ProfileUpsertResult{OK: false, Reason: err.Error()}, nil
	}

	s.logger.Debug("Profile upsert complete",
		"user_id", userID, "method", result.Method, "updated_fields", result.UpdatedFields)
	return result, nil
}

func (s *Service) mergeProfile(ctx context.Context, table, userID string, values map[string]any) (*ProfileUpsertResult, error) {
	countRows, err := s.analytical.Query(ctx,
		"SELECT COUNT(*) AS count FROM `"+table+"` WHERE user_id = @user_id",
		[]Param{StringParam("user_id", userID)})
	if err != nil {
		return nil, fmt.Errorf("profile existence check failed: %w", err)
	}
	exists := len(countRows) > 0 && asInt64(countRows[0]["count"]) > 0

	if !exists {
		row := Row{"user_id": userID}
		for _, f := range profileFields {
			row[f.column] = values[f.key]
		}
		res, err := s.analytical.InsertRows(ctx, table, []Row{row}, nil)
		if err != nil {
			return nil, fmt.Errorf("profile insert failed: %w", err)
		}
		if !res.OK {
			return &ProfileUpsertResult{OK: false, Method: MethodInsert, Reason: "profile insert reported row errors"}, nil
		}
		return &ProfileUpsertResult{OK: true, Method: MethodInsert}, nil
	}

	assignments, params := buildProfileAssignments(values)
	if len(assignments) == 0 {
		return &ProfileUpsertResult{OK: true, Method: MethodNoChanges}, nil
	}

	params = append(params, StringParam("user_id", userID))
	sql := "UPDATE `" + table + "` SET " + strings.Join(assignments, ", ") + " WHERE user_id = @user_id"
	affected, err := s.analytical.Exec(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("profile update failed: %w", err)
	}

	return &ProfileUpsertResult{
		OK:            true,
		Method:        MethodUpdate,
		UpdatedFields: len(assignments),
		UpdatedRows:   affected,
	}, nil
}

// buildProfileAssignments produces parameterized SET clauses for every
// non-nil value, iterating the static field table. Timestamp columns wrap
// their string parameter in TIMESTAMP() because the value travels as a
// string.
func buildProfileAssignments(values map[string]any) ([]string, []Param) {
	var assignments []string
	var params []Param
	n := 0
	for _, f := range profileFields {
		value := values[f.key]
		if value == nil {
			continue
		}
		name := fmt.Sprintf("param_%d", n)
		if f.kind == ParamTimestamp {
			assignments = append(assignments, fmt.Sprintf("%s = TIMESTAMP(@%s)", f.column, name))
			params = append(params, StringParam(name, fmt.Sprintf("%v", value)))
		} else {
			assignments = append(assignments, fmt.Sprintf("%s = @%s", f.column, name))
			params = append(params, Param{Name: name, Kind: f.kind, Value: value})
		}
		n++
	}
	return assignments, params
}

// profileValues extracts and normalizes the mapped fields from a profile
// document. Missing attributes stay nil so the merge never writes them.
func (s *Service) profileValues(doc Row) map[string]any {
	values := make(map[string]any, len(profileFields))
	for _, f := range profileFields {
		switch f.key {
		case "past_history":
			values[f.key] = pastHistoryString(doc[f.key])
		case "updated_at":
			values[f.key] = formatTimestamp(s.parseProfileTimestamp(doc[f.key]))
		default:
			values[f.key] = normalizeProfileValue(doc[f.key], f.kind)
		}
	}
	return values
}

// pastHistoryString joins a list-valued medical history into one
// comma-separated string; string values pass through. Nil stays nil.
func pastHistoryString(v any) any {
	switch h := v.(type) {
	case nil:
		return nil
	case string:
		return h
	case []string:
		return strings.Join(h, ",")
	case []any:
		parts := make([]string, 0, len(h))
		for _, item := range h {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", h)
	}
}

// parseProfileTimestamp parses a document updated_at value. A trailing "Z"
// UTC suffix is normalized to an explicit offset before parsing; unparseable
// or absent values fall back to the merge-time clock rather than failing the
// whole merge.
func (s *Service) parseProfileTimestamp(v any) time.Time {
	str, ok := v.(string)
	if !ok || str == "" {
		return s.nowUTC()
	}
	if strings.HasSuffix(str, "Z") {
		str = strings.TrimSuffix(str, "Z") + "+00:00"
	}
	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return s.nowUTC()
	}
	return t.UTC()
}

// normalizeProfileValue coerces a document attribute toward its column kind.
// JSON decoding yields float64 for every number, so integer columns convert
// explicitly; anything that cannot be coerced stays as-is and is surfaced by
// the store.
func normalizeProfileValue(v any, kind ParamKind) any {
	if v == nil {
		return nil
	}
	if kind == ParamInt64 {
		switch n := v.(type) {
		case float64:
			return int64(n)
		case int:
			return int64(n)
		case int64:
			return n
		}
	}
	return v
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
