// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMaxTextLen bounds the free-text field of an event record.
	DefaultMaxTextLen = 1000

	dateLayout = "2006-01-02"
)

// validateEvent checks an event record before any I/O and returns the list of
// violated constraints. Invalid records never reach either store.
func (s *Service) validateEvent(rec *EventRecord) []string {
	var violations []string

	if strings.TrimSpace(rec.UserID) == "" {
		violations = append(violations, "missing required field: user_id")
	}
	if strings.TrimSpace(rec.OccurredAt) == "" {
		violations = append(violations, "missing required field: occurred_at")
	} else if !hasDatePrefix(rec.OccurredAt) {
		violations = append(violations, "occurred_at must begin with a YYYY-MM-DD date")
	}
	if strings.TrimSpace(rec.Text) == "" {
		violations = append(violations, "missing required field: text")
	}

	maxText := s.config.MaxTextLen
	if maxText <= 0 {
		maxText = DefaultMaxTextLen
	}
	if len([]rune(rec.Text)) > maxText {
		violations = append(violations, fmt.Sprintf("text is too long (max %d characters)", maxText))
	}

	return violations
}

// hasDatePrefix reports whether the first ten characters of an ISO-8601
// timestamp parse as a calendar date. The remainder is deliberately not
// validated: occurred_at is stored exactly as the client submitted it.
func hasDatePrefix(iso string) bool {
	if len(iso) < len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, iso[:len(dateLayout)])
	return err == nil
}

// OccurredDateOf derives the date key from a client-submitted timestamp: its
// first ten characters. An empty timestamp falls back to today in the server's
// local zone, matching the text write path's behavior for omitted times.
func OccurredDateOf(iso string, now time.Time) string {
	if iso == "" {
		return now.Format(dateLayout)
	}
	if len(iso) < len(dateLayout) {
		return iso
	}
	return iso[:len(dateLayout)]
}
