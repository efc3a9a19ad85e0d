// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

// resultInvalid creates an ingest result for a record rejected by validation
func resultInvalid(requestID string, violations []string) *IngestResult {
	return &IngestResult{
		OK:         false,
		RequestID:  requestID,
		Violations: violations,
	}
}

// resultSkipped creates an ingest result for an already-recorded event
func resultSkipped(requestID, fingerprint string) *IngestResult {
	return &IngestResult{
		OK:              true,
		RequestID:       requestID,
		Fingerprint:     fingerprint,
		Inserted:        false,
		DocumentSkipped: true,
		Document:        StoreOutcome{OK: true, Skipped: true},
		Analytical:      StoreOutcome{OK: true, Skipped: true},
	}
}

// resultAnalyticalUnavailable creates an ingest result when the authoritative
// store has no configured client
func resultAnalyticalUnavailable(requestID, fingerprint string) *IngestResult {
	return &IngestResult{
		OK:          false,
		RequestID:   requestID,
		Fingerprint: fingerprint,
		Analytical:  StoreOutcome{Unavailable: true, Error: ErrStoreUnavailable.Error()},
	}
}

// outcomeOK creates a per-store success outcome
func outcomeOK() StoreOutcome {
	return StoreOutcome{OK: true}
}

// outcomeUnavailable creates the degraded-mode document outcome; it is not a
// failure and does not affect the aggregate ok flag
func outcomeUnavailable() StoreOutcome {
	return StoreOutcome{Unavailable: true}
}

// outcomeError creates a per-store failure outcome
func outcomeError(err error) StoreOutcome {
	return StoreOutcome{OK: false, Error: err.Error()}
}

// outcomeFromInsert maps an analytical insert result onto a store outcome,
// carrying the store's raw per-row diagnostics on failure
func outcomeFromInsert(res *InsertResult) StoreOutcome {
	if res.OK {
		return StoreOutcome{OK: true}
	}
	return StoreOutcome{OK: false, RowErrors: res.RowErrors}
}
