// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("🩺 healthsync - Idempotent Health Signal Ingestion")
	fmt.Println("==================================================")
	fmt.Println()
	fmt.Println("healthsync deduplicates and stores health signals across a per-user")
	fmt.Println("document store and an analytical columnar store, with content-addressed")
	fmt.Println("fingerprints, delete-then-insert rollups, and field-level profile merges.")
	fmt.Println()

	fmt.Println("📦 Packages:")
	fmt.Println()
	fmt.Println("  healthsync/  - fingerprinting, validation, ingestion, rollup and profile engines")
	fmt.Println("  docstore/    - document store adapter (PostgreSQL JSONB)")
	fmt.Println("  bqstore/     - analytical store adapter (BigQuery)")
	fmt.Println()

	fmt.Println("📚 Available Examples:")
	fmt.Println()
	fmt.Println("1. 🔄 Sync Job Example (examples/syncjob/)")
	fmt.Println("   End-to-end pipeline: meal ingestion with duplicate detection,")
	fmt.Println("   activity and body-scale rollups, profile propagation, stats readback")
	fmt.Println("   Run: cd examples/syncjob && go run . -config config.yaml")
	fmt.Println()
}
