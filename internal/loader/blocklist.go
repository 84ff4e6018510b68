package loader

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/model"
	"github.com/leadops/leadbase-cli/internal/normalize"
	"github.com/leadops/leadbase-cli/internal/sheet"
)

// BlocklistStore is the slice of the store the blocklist feeder needs.
type BlocklistStore interface {
	AddBlocklistPhones(ctx context.Context, phones []string) (int64, error)
}

// BlocklistFeed ingests do-not-call exports into the phone blocklist.
// Every cell of every row is scanned; anything with at least 8 digits
// counts as a phone.
type BlocklistFeed struct {
	store     BlocklistStore
	chunkSize int
}

// NewBlocklistFeed creates a blocklist feeder. chunkSize <= 0 uses the
// default.
func NewBlocklistFeed(st BlocklistStore, chunkSize int) *BlocklistFeed {
	if chunkSize <= 0 {
		chunkSize = defaultBlocklistSize
	}
	return &BlocklistFeed{store: st, chunkSize: chunkSize}
}

// FeedFile scans one export and persists its phones with insert-ignore.
func (b *BlocklistFeed) FeedFile(ctx context.Context, path string) (model.FeedSummary, error) {
	summary := model.FeedSummary{File: path}

	s, err := sheet.Open(path)
	if err != nil {
		return summary, err
	}

	seen := make(map[string]struct{})
	var pending []string

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := b.store.AddBlocklistPhones(ctx, pending)
		if err != nil {
			return eris.Wrap(err, "loader: blocklist feed")
		}
		summary.Inserted += n
		pending = pending[:0]
		return nil
	}

	for i, row := range s.Rows {
		if i%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return summary, eris.Wrap(err, "loader: cancelled")
			}
			zap.L().Debug("loader: blocklist scan",
				zap.String("file", path), zap.Int("row", i))
		}
		summary.Scanned++

		for _, cell := range row {
			p, ok := normalize.Phone(cell)
			if !ok {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			summary.Valid++
			pending = append(pending, p)

			if len(pending) >= b.chunkSize {
				if err := flush(); err != nil {
					return summary, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return summary, err
	}

	zap.L().Info("loader: blocklist feed done",
		zap.String("file", path),
		zap.Int("rows", summary.Scanned),
		zap.Int("phones", summary.Valid),
		zap.Int64("inserted", summary.Inserted))
	return summary, nil
}
