package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/model"
	"github.com/leadops/leadbase-cli/internal/normalize"
	"github.com/leadops/leadbase-cli/internal/sheet"
)

// RootStore is the slice of the store the root feeder needs.
type RootStore interface {
	AddRootBatch(ctx context.Context, ids []string, sourceFile, batchTag string) (int64, error)
}

// RootFeed ingests client spreadsheets into the root set. Only complete
// documents (11 or 14 digits) qualify; everything else is skipped.
type RootFeed struct {
	store     RootStore
	chunkSize int
}

// NewRootFeed creates a root feeder. chunkSize <= 0 uses the default.
func NewRootFeed(st RootStore, chunkSize int) *RootFeed {
	if chunkSize <= 0 {
		chunkSize = defaultRootChunk
	}
	return &RootFeed{store: st, chunkSize: chunkSize}
}

// FeedFile scans one spreadsheet and persists its valid identifiers under
// a fresh root-feed batch tag.
func (r *RootFeed) FeedFile(ctx context.Context, path string) (model.FeedSummary, error) {
	summary := model.FeedSummary{
		File:     path,
		BatchTag: fmt.Sprintf("root-feed-%d", time.Now().UnixMilli()),
	}

	s, err := sheet.Open(path)
	if err != nil {
		return summary, err
	}

	idCol := s.HeaderIndex("cnpj")
	if idCol < 0 {
		idCol = s.HeaderIndex("chave")
	}
	if idCol < 0 {
		// Headerless client lists are common; fall back to the first
		// column. Open consumed the first row as a header, so put it
		// back before scanning or its identifier would be lost.
		idCol = 0
		if len(s.Header) > 0 {
			s.Rows = append([][]string{s.Header}, s.Rows...)
		}
	}

	seen := make(map[string]struct{})
	var pending []string
	source := filepath.Base(path)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := r.store.AddRootBatch(ctx, pending, source, summary.BatchTag)
		if err != nil {
			return eris.Wrapf(err, "loader: root feed %s", source)
		}
		summary.Inserted += n
		pending = pending[:0]
		return nil
	}

	for i := range s.Rows {
		if i%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return summary, eris.Wrap(err, "loader: cancelled")
			}
		}
		summary.Scanned++

		id, ok := normalize.RootIdentifier(s.Cell(i, idCol))
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		summary.Valid++
		pending = append(pending, id)

		if len(pending) >= r.chunkSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}
	if err := flush(); err != nil {
		return summary, err
	}

	zap.L().Info("loader: root feed done",
		zap.String("file", path),
		zap.String("batch_tag", summary.BatchTag),
		zap.Int("scanned", summary.Scanned),
		zap.Int("valid", summary.Valid),
		zap.Int64("inserted", summary.Inserted))
	return summary, nil
}
