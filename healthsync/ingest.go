// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// IngestEvent ingests one discrete event record for a user.
//
// Flow: validate → normalize server-assigned fields → fingerprint → document
// existence pre-check (skip when already recorded) → document write keyed by
// the fingerprint + analytical insert with the fingerprint as row identity.
//
// The existence pre-check followed by the write is not atomic; two concurrent
// requests for the same fingerprint may both observe "absent" and both write.
// That race is benign: the document write is a full overwrite of the same key
// with equivalent content, and the analytical store's own row-identity dedup
// is the authoritative guard on that path.
//
// Validation failures and store failures are reported in the result, not as a
// Go error; the error return is reserved for context cancellation.
func (s *Service) IngestEvent(ctx context.Context, userID string, rec EventRecord) (*IngestResult, error) {
	requestID := uuid.New().String()
	rec.UserID = userID

	start := s.now()
	violations := s.validateEvent(&rec)
	s.observeStage(ctx, MetricsOpIngest, MetricsStageValidate, start, 1, len(violations) > 0)
	if len(violations) > 0 {
		s.logger.Warn("Event record rejected by validation",
			"request_id", requestID, "user_id", userID, "violations", violations)
		return resultInvalid(requestID, violations), nil
	}

	// Server-assigned fields: occurred_date is always recomputed here, never
	// trusted from the client.
	serverTime := s.nowUTC()
	rec.OccurredDate = OccurredDateOf(rec.OccurredAt, s.now())
	rec.CreatedAt = formatTimestamp(serverTime)

	start = s.now()
	fingerprint := Fingerprint(&rec)
	s.observeStage(ctx, MetricsOpIngest, MetricsStageFingerprint, start, 1, false)

	s.logger.Debug("Starting event ingestion",
		"request_id", requestID, "user_id", userID,
		"occurred_date", rec.OccurredDate, "source", rec.Source,
		"fingerprint", fingerprint)

	if s.analytical == nil {
		s.logger.Error("Analytical store not configured; event ingestion failed",
			"request_id", requestID, "user_id", userID, "fingerprint", fingerprint)
		return resultAnalyticalUnavailable(requestID, fingerprint), nil
	}

	collection := s.config.Tables.MealsCollection
	docAvailable := s.docs != nil

	// Dedup pre-check. This is an optimization: the fingerprint-keyed write
	// below and the analytical row identity are the correctness boundary.
	if docAvailable {
		start = s.now()
		exists, err := s.docs.Exists(ctx, collection, userID, fingerprint)
		s.observeStage(ctx, MetricsOpIngest, MetricsStageDocumentCheck, start, 1, err != nil)
		switch {
		case err == nil && exists:
			s.logger.Debug("Event already recorded, skipping",
				"request_id", requestID, "user_id", userID, "fingerprint", fingerprint)
			return resultSkipped(requestID, fingerprint), nil
		case errors.Is(err, ErrStoreUnavailable):
			docAvailable = false
			s.logger.Warn("Document store unavailable; proceeding analytical-only",
				"request_id", requestID, "user_id", userID)
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Proceed to the write: a failed pre-check must not block an
			// otherwise-idempotent ingestion.
			s.logger.Warn("Document existence check failed; continuing",
				"request_id", requestID, "user_id", userID, "error", err)
		}
	}

	result := &IngestResult{
		RequestID:   requestID,
		Fingerprint: fingerprint,
	}

	if docAvailable {
		start = s.now()
		written, err := s.docs.PutIfAbsent(ctx, collection, userID, fingerprint, eventDocument(&rec))
		s.observeStage(ctx, MetricsOpIngest, MetricsStageDocumentWrite, start, 1, err != nil)
		switch {
		case errors.Is(err, ErrStoreUnavailable):
			result.Document = outcomeUnavailable()
			s.logger.Warn("Document store unavailable during write; degraded",
				"request_id", requestID, "user_id", userID)
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.Document = outcomeError(err)
			s.logger.Error("Document write failed",
				"request_id", requestID, "user_id", userID, "fingerprint", fingerprint, "error", err)
		case !written:
			// Lost the check-then-write race to an equivalent writer.
			result.Document = StoreOutcome{OK: true, Skipped: true}
			result.DocumentSkipped = true
		default:
			result.Document = outcomeOK()
		}
	} else {
		result.Document = outcomeUnavailable()
	}

	start = s.now()
	insertRes, err := s.analytical.InsertRows(ctx, s.config.Tables.Meals,
		[]Row{eventAnalyticalRow(&rec)}, []string{fingerprint})
	s.observeStage(ctx, MetricsOpIngest, MetricsStageAnalyticalInsert, start, 1, err != nil)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Analytical = outcomeError(err)
		s.logger.Error("Analytical insert failed",
			"request_id", requestID, "user_id", userID, "fingerprint", fingerprint, "error", err)
	default:
		result.Analytical = outcomeFromInsert(insertRes)
		for _, re := range insertRes.RowErrors {
			s.logger.Error("Analytical insert row error",
				"request_id", requestID, "user_id", userID,
				"row", re.Index, "reason", re.Reason, "message", re.Message)
		}
	}

	docOK := result.Document.OK || result.Document.Unavailable
	result.OK = docOK && result.Analytical.OK
	result.Inserted = result.Analytical.OK && !result.DocumentSkipped

	if result.OK {
		s.logger.Debug("Event ingestion complete",
			"request_id", requestID, "user_id", userID,
			"fingerprint", fingerprint, "inserted", result.Inserted,
			"document_skipped", result.DocumentSkipped)
	}
	return result, nil
}

// eventDocument is the document-store shape of an event record.
func eventDocument(rec *EventRecord) Row {
	doc := Row{
		"user_id":       rec.UserID,
		"occurred_at":   rec.OccurredAt,
		"occurred_date": rec.OccurredDate,
		"text":          rec.Text,
		"source":        rec.Source,
		"created_at":    rec.CreatedAt,
	}
	if rec.Calories != nil {
		doc["calories"] = *rec.Calories
	}
	if rec.Category != "" {
		doc["category"] = rec.Category
	}
	if rec.ContentDigest != "" {
		doc["content_digest"] = rec.ContentDigest
	}
	if rec.NoteDigest != "" {
		doc["note_digest"] = rec.NoteDigest
	}
	if rec.FileName != "" {
		doc["file_name"] = rec.FileName
	}
	if rec.Mime != "" {
		doc["mime"] = rec.Mime
	}
	return doc
}

// eventAnalyticalRow is the analytical-store shape of an event record. All
// columns are present so absent optionals land as NULL, and ingested_at is
// pinned to created_at so retries of the same logical event differ only in
// fields excluded from its identity.
func eventAnalyticalRow(rec *EventRecord) Row {
	var calories any
	if rec.Calories != nil {
		calories = *rec.Calories
	}
	return Row{
		"user_id":        rec.UserID,
		"occurred_at":    rec.OccurredAt,
		"occurred_date":  rec.OccurredDate,
		"text":           rec.Text,
		"calories":       calories,
		"category":       rec.Category,
		"content_digest": rec.ContentDigest,
		"note_digest":    rec.NoteDigest,
		"source":         rec.Source,
		"file_name":      rec.FileName,
		"mime":           rec.Mime,
		"created_at":     rec.CreatedAt,
		"ingested_at":    rec.CreatedAt,
	}
}
