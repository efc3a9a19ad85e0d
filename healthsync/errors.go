// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

import (
	"errors"
	"strings"
)

// Error sentinels for outcome mapping
var (
	// ErrStoreUnavailable marks a backing store with no configured client.
	// Document-store unavailability degrades ingestion to analytical-only;
	// analytical-store unavailability is fatal to writes.
	ErrStoreUnavailable = errors.New("store_unavailable")

	// ErrBadRecord marks input that failed validation before any I/O.
	ErrBadRecord = errors.New("bad_record")
)

// IsSchemaMismatch reports whether a query failure is schema-shaped, i.e. the
// statement referenced a column or field the store does not currently have.
// Only these failures are eligible for the fallback-query path; anything else
// must propagate unchanged.
func IsSchemaMismatch(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unrecognized name") {
		return true
	}
	if strings.Contains(msg, "no such field") {
		return true
	}
	return strings.Contains(msg, "column") && strings.Contains(msg, "not found")
}

// IsDuplicateReason reports whether a per-row insert error reason indicates
// the row identity already exists. Such rows are successes, not failures.
func IsDuplicateReason(reason string) bool {
	r := strings.ToLower(reason)
	return r == "duplicate" || strings.Contains(r, "already exists")
}
