// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

import (
	"errors"
	"log/slog"
	"time"
)

// ServiceConfig holds configuration for the ingestion service
type ServiceConfig struct {
	AppName    string      // Application name for log correlation
	Tables     TableConfig // Table/collection names per record class (required for writes)
	MaxTextLen int         // Maximum event text length in characters (0 = DefaultMaxTextLen)

	// Clock is the injected time source; nil means time.Now. All
	// server-assigned timestamps (created_at, ingested_at, merge-time
	// fallbacks) come from here.
	Clock func() time.Time

	// Metrics optionally observes per-stage timings.
	Metrics StageMetricsRecorder
}

// Service is the ingestion/dedup/upsert core. It owns no transport and no
// retry policy: callers hand it fully-parsed records, and idempotency — not
// retry suppression — is the correctness mechanism.
//
// Both store handles are optional. A nil document store degrades ingestion to
// analytical-only writes; a nil analytical store fails writes, because that
// store is authoritative for reporting queries.
type Service struct {
	docs       DocumentStore
	analytical AnalyticalStore
	logger     *slog.Logger
	config     *ServiceConfig
	now        func() time.Time
}

// NewService creates the ingestion service. docs and analytical may be nil to
// represent unconfigured stores; operations then follow the degraded-mode
// rules instead of failing at construction, so the process can always start.
func NewService(docs DocumentStore, analytical AnalyticalStore, config *ServiceConfig, logger *slog.Logger) (*Service, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.AppName != "" {
		logger = logger.With("app", config.AppName)
	}

	now := config.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		docs:       docs,
		analytical: analytical,
		logger:     logger,
		config:     config,
		now:        now,
	}, nil
}

// DocumentAvailable reports whether the document store is configured.
func (s *Service) DocumentAvailable() bool {
	return s.docs != nil
}

// AnalyticalAvailable reports whether the analytical store is configured.
func (s *Service) AnalyticalAvailable() bool {
	return s.analytical != nil
}

// nowUTC returns the injected clock's time in UTC, truncated to seconds. One
// value is captured per operation so every row written by that operation
// carries the same server timestamp.
func (s *Service) nowUTC() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

func formatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
