// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

import (
	"context"
	"time"
)

const (
	MetricsOpIngest  = "ingest"
	MetricsOpRollup  = "rollup"
	MetricsOpProfile = "profile"

	// Ingest stages.
	MetricsStageValidate         = "validate"
	MetricsStageFingerprint      = "fingerprint"
	MetricsStageDocumentCheck    = "doc_check"
	MetricsStageDocumentWrite    = "doc_write"
	MetricsStageAnalyticalInsert = "analytical_insert"

	// Rollup stages.
	MetricsStageRollupDelete = "delete"
	MetricsStageRollupInsert = "insert"

	// Profile stages.
	MetricsStageProfileRead  = "read"
	MetricsStageProfileMerge = "merge"
)

type StageTiming struct {
	Operation string
	Stage     string
	Duration  time.Duration
	Count     int
	Error     bool
}

type StageMetricsRecorder interface {
	ObserveStage(ctx context.Context, timing StageTiming)
}

type StageMetricsRecorderFunc func(ctx context.Context, timing StageTiming)

func (f StageMetricsRecorderFunc) ObserveStage(ctx context.Context, timing StageTiming) {
	f(ctx, timing)
}

// observeStage records one stage timing when a recorder is configured.
func (s *Service) observeStage(ctx context.Context, op, stage string, start time.Time, count int, failed bool) {
	if s == nil || s.config == nil || s.config.Metrics == nil {
		return
	}
	s.config.Metrics.ObserveStage(ctx, StageTiming{
		Operation: op,
		Stage:     stage,
		Duration:  time.Since(start),
		Count:     count,
		Error:     failed,
	})
}
