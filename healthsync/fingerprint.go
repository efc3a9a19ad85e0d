// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fields that vary across retries of the same logical event. They never
// participate in content identity.
var volatileFields = map[string]struct{}{
	"ingested_at": {},
	"created_at":  {},
	"file_name":   {},
	"mime":        {},
	"updated_at":  {},
}

// Fingerprint derives the stable content identity of an event record: the hex
// SHA-256 of the canonical JSON serialization of its reduced view. Two
// submissions with identical reduced-view fields always produce the same
// digest and are treated as one logical event.
func Fingerprint(rec *EventRecord) string {
	return canonicalDigest(reducedView(rec))
}

// FingerprintRow derives the content identity for a generic analytical row
// of the given class. Meal rows use the event reduced view; every other class
// hashes the full row minus the volatile fields.
func FingerprintRow(class RecordClass, row Row) string {
	if class == ClassMeal {
		return canonicalDigest(reducedViewFromRow(row))
	}
	reduced := make(map[string]any, len(row))
	for k, v := range row {
		if _, volatile := volatileFields[k]; volatile {
			continue
		}
		reduced[k] = v
	}
	return canonicalDigest(reduced)
}

// reducedView is the dedup-relevant subset of an event record. Absent optional
// fields serialize as empty strings so that "field absent" and "field empty"
// hash identically.
func reducedView(rec *EventRecord) map[string]string {
	return map[string]string{
		"user_id":         rec.UserID,
		"occurred_date":   rec.OccurredDate,
		"occurred_minute": truncateToMinute(rec.OccurredAt),
		"text":            rec.Text,
		"content_digest":  rec.ContentDigest,
		"note_digest":     rec.NoteDigest,
	}
}

func reducedViewFromRow(row Row) map[string]string {
	return map[string]string{
		"user_id":         stringAttr(row, "user_id"),
		"occurred_date":   stringAttr(row, "occurred_date"),
		"occurred_minute": truncateToMinute(stringAttr(row, "occurred_at")),
		"text":            stringAttr(row, "text"),
		"content_digest":  stringAttr(row, "content_digest"),
		"note_digest":     stringAttr(row, "note_digest"),
	}
}

// truncateToMinute keeps the first 16 characters of an ISO-8601 timestamp
// ("YYYY-MM-DDTHH:MM") so retries differing only in seconds collapse to one
// identity.
func truncateToMinute(iso string) string {
	if len(iso) > 16 {
		return iso[:16]
	}
	return iso
}

// canonicalDigest hashes the canonical JSON form of v: keys sorted (Go map
// marshaling), compact separators, HTML escaping off so non-ASCII text and
// characters like '<' pass through byte-identical across processes.
func canonicalDigest(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		// Only reachable with non-serializable values, which the reduced
		// views cannot contain.
		panic(err)
	}
	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:])
}

func stringAttr(row Row, key string) string {
	if v, ok := row[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
