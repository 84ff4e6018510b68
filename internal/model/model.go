// Package model holds the shared domain types of the lead-base toolkit:
// merge strategies, credential modes, queue items and run summaries.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Strategy controls how incoming directory phones are merged into the
// phone columns a row already has.
type Strategy int

const (
	// StrategyOverwrite replaces every phone cell with the directory phones.
	StrategyOverwrite Strategy = iota
	// StrategyAppend keeps existing phones in place and fills empty cells
	// with directory phones not already present.
	StrategyAppend
	// StrategyIgnore writes directory phones only when the row has none.
	StrategyIgnore
)

// ParseStrategy maps a config or flag value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "overwrite":
		return StrategyOverwrite, nil
	case "append":
		return StrategyAppend, nil
	case "ignore":
		return StrategyIgnore, nil
	default:
		return 0, eris.Errorf("model: unknown enrichment strategy %q", s)
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategyOverwrite:
		return "overwrite"
	case StrategyAppend:
		return "append"
	case StrategyIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// CredentialMode selects which API credential pair serves each
// consultation batch.
type CredentialMode int

const (
	// ModePrimary uses the primary credentials for every batch.
	ModePrimary CredentialMode = iota
	// ModeSecondary uses the secondary credentials for every batch.
	ModeSecondary
	// ModeAlternate alternates credentials by batch index parity.
	ModeAlternate
	// ModeDual splits each batch in half and queries both credentials
	// concurrently.
	ModeDual
)

// ParseCredentialMode maps a config or flag value to a CredentialMode.
func ParseCredentialMode(s string) (CredentialMode, error) {
	switch s {
	case "primary":
		return ModePrimary, nil
	case "secondary":
		return ModeSecondary, nil
	case "alternate":
		return ModeAlternate, nil
	case "dual":
		return ModeDual, nil
	default:
		return 0, eris.Errorf("model: unknown credential mode %q", s)
	}
}

func (m CredentialMode) String() string {
	switch m {
	case ModePrimary:
		return "primary"
	case ModeSecondary:
		return "secondary"
	case ModeAlternate:
		return "alternate"
	case ModeDual:
		return "dual"
	default:
		return "unknown"
	}
}

// Enrichment status cell values.
const (
	StatusEnriched = "Enriched"
	StatusPoor     = "Poor"
)

// Consultation result cell values.
const (
	ResultAvailable = "available"
	ResultClient    = "client"
)

// QueueStatus is the lifecycle state of a queued consultation file.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueCancelled  QueueStatus = "cancelled"
)

// QueueItem is one spreadsheet waiting for, undergoing, or done with
// remote consultation.
type QueueItem struct {
	ID         string      `json:"id"`
	Path       string      `json:"path"`
	Status     QueueStatus `json:"status"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	StartedAt  time.Time   `json:"started_at,omitzero"`
	FinishedAt time.Time   `json:"finished_at,omitzero"`
	Error      string      `json:"error,omitempty"`
}

// CleanSummary reports what one cleaning run did to one spreadsheet.
type CleanSummary struct {
	File               string
	TotalRows          int
	Duplicates         int
	RemovedByRoot      int
	RemovedByCNAE      int
	RemovedByBlocklist int
	PhonesCleaned      int
	FinalRows          int
	NewIdentifiers     int
}

// CleanRun reports one whole cleaning run: per-file summaries plus the
// single history batch the run persisted at the end. One run writes at
// most one batch tag, so deleting that tag reverses the entire run.
type CleanRun struct {
	Files           []CleanSummary
	NewIdentifiers  int
	HistoryBatchTag string
	HistoryInserted int64
}

// EnrichSummary reports what one enrichment run did to one spreadsheet.
// Poor counts every row whose status ended up Poor; NotFound is the
// subset whose identifier had no directory entry at all.
type EnrichSummary struct {
	File      string
	TotalRows int
	Enriched  int
	Poor      int
	NotFound  int
	Elapsed   time.Duration
}

// LoadSummary reports one bulk directory load.
type LoadSummary struct {
	File        string
	Rows        int
	Identifiers int64
	Phones      int64
	Chunks      int
	FailedRows  int
}

// ConsultSummary reports one remote consultation run over one spreadsheet.
type ConsultSummary struct {
	File      string
	TotalRows int
	Skipped   int
	Consulted int
	Available int
	Clients   int
	Batches   int
	Abandoned int
}

// FeedSummary reports one root or blocklist feed run.
type FeedSummary struct {
	File     string
	Scanned  int
	Valid    int
	Inserted int64
	BatchTag string
}
