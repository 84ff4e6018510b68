// Package store persists the sets the cleaning and enrichment engines run
// against: the identifier history, the root set, the phone directory and
// the phone blocklist. Two drivers are provided, PostgreSQL and SQLite.
package store

import (
	"context"
	"time"
)

// ChunkResult reports one committed directory chunk.
type ChunkResult struct {
	Identifiers int64 `json:"identifiers"`
	Phones      int64 `json:"phones"`
}

// BlocklistStats summarizes the blocklist table.
type BlocklistStats struct {
	Total      int64 `json:"total"`
	AddedToday int64 `json:"added_today"`
}

// Store defines the persistence interface for the lead-base engines.
type Store interface {
	// History
	LoadHistory(ctx context.Context) ([]string, error)
	AddHistoryBatch(ctx context.Context, ids []string, batchTag string) (int64, error)
	DeleteHistoryBatch(ctx context.Context, batchTag string) ([]string, error)

	// Root set
	LoadRoot(ctx context.Context) ([]string, error)
	AddRootBatch(ctx context.Context, ids []string, sourceFile, batchTag string) (int64, error)

	// Phone directory
	SaveDirectoryChunk(ctx context.Context, year int, chunk map[string][]string) (ChunkResult, error)
	LookupPhones(ctx context.Context, ids []string, years []int) (map[string][]string, error)
	DirectoryCount(ctx context.Context) (int64, error)

	// Blocklist
	AddBlocklistPhones(ctx context.Context, phones []string) (int64, error)
	FindBlockedPhones(ctx context.Context, phones []string) ([]string, error)
	GetBlocklistStats(ctx context.Context) (BlocklistStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// startOfToday returns midnight UTC of the current day, the cutoff for
// the blocklist "added today" counter.
func startOfToday() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
