// Package loader bulk-ingests spreadsheets into the persisted sets: the
// phone directory, the root identifier set and the phone blocklist.
package loader

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/model"
	"github.com/leadops/leadbase-cli/internal/normalize"
	"github.com/leadops/leadbase-cli/internal/progress"
	"github.com/leadops/leadbase-cli/internal/sheet"
	"github.com/leadops/leadbase-cli/internal/store"
)

const (
	defaultChunkSize     = 5000
	defaultRootChunk     = 5000
	defaultBlocklistSize = 50000
)

// DirectoryStore is the slice of the store the directory loader needs.
type DirectoryStore interface {
	SaveDirectoryChunk(ctx context.Context, year int, chunk map[string][]string) (store.ChunkResult, error)
	DirectoryCount(ctx context.Context) (int64, error)
}

// Directory loads identifier-to-phones spreadsheets into the directory in
// transactional chunks. A failing chunk is rolled back and skipped; the
// remaining chunks still commit.
type Directory struct {
	store     DirectoryStore
	chunkSize int
	reporter  progress.Reporter
}

// NewDirectory creates a directory loader. chunkSize <= 0 uses the default.
func NewDirectory(st DirectoryStore, chunkSize int, reporter progress.Reporter) *Directory {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if reporter == nil {
		reporter = progress.ZapReporter{Op: "dirload"}
	}
	return &Directory{store: st, chunkSize: chunkSize, reporter: reporter}
}

// LoadFiles ingests each spreadsheet under the given load year. A file
// that cannot be opened is logged and skipped.
func (d *Directory) LoadFiles(ctx context.Context, paths []string, year int) ([]model.LoadSummary, error) {
	if year <= 0 {
		return nil, eris.New("loader: load year is required")
	}

	var summaries []model.LoadSummary
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summaries, eris.Wrap(err, "loader: cancelled")
		}

		summary, err := d.loadFile(ctx, path, year)
		if err != nil {
			zap.L().Error("loader: file failed, skipping",
				zap.String("file", path), zap.Error(err))
			continue
		}
		summaries = append(summaries, summary)
	}

	if total, err := d.store.DirectoryCount(ctx); err == nil {
		zap.L().Info("loader: directory size", zap.Int64("identifiers", total))
	}
	return summaries, nil
}

func (d *Directory) loadFile(ctx context.Context, path string, year int) (model.LoadSummary, error) {
	summary := model.LoadSummary{File: path}

	s, err := sheet.Open(path)
	if err != nil {
		return summary, err
	}
	summary.Rows = len(s.Rows)

	idCol := s.HeaderIndex("cnpj")
	if idCol < 0 {
		idCol = s.HeaderIndex("chave")
	}
	if idCol < 0 {
		return summary, eris.Errorf("loader: %s has no identifier column", path)
	}

	// Phones come from the fone columns when the layout has them, and
	// from every non-identifier column otherwise.
	phoneCols := s.PhoneColumns()
	if len(phoneCols) == 0 {
		for i := range s.Header {
			if i != idCol {
				phoneCols = append(phoneCols, i)
			}
		}
	}

	chunk := make(map[string][]string, d.chunkSize)
	flush := func() {
		if len(chunk) == 0 {
			return
		}
		res, err := d.store.SaveDirectoryChunk(ctx, year, chunk)
		if err != nil {
			zap.L().Error("loader: chunk failed, rows lost",
				zap.String("file", path),
				zap.Int("chunk_rows", len(chunk)),
				zap.Error(err))
			summary.FailedRows += len(chunk)
		} else {
			summary.Identifiers += res.Identifiers
			summary.Phones += res.Phones
		}
		summary.Chunks++
		chunk = make(map[string][]string, d.chunkSize)
	}

	for i := range s.Rows {
		if i%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return summary, eris.Wrap(err, "loader: cancelled")
			}
			d.reporter.Progress(progress.Update{FileID: path, Current: i, Total: len(s.Rows)})
		}

		id, ok := normalize.Identifier(s.Cell(i, idCol))
		if !ok {
			continue
		}
		for _, col := range phoneCols {
			if p, ok := normalize.Phone(s.Cell(i, col)); ok {
				chunk[id] = append(chunk[id], p)
			}
		}
		if _, present := chunk[id]; !present {
			chunk[id] = nil
		}

		if len(chunk) >= d.chunkSize {
			flush()
		}
	}
	flush()

	zap.L().Info("loader: file done",
		zap.String("file", path),
		zap.Int("rows", summary.Rows),
		zap.Int64("identifiers", summary.Identifiers),
		zap.Int64("phones", summary.Phones),
		zap.Int("chunks", summary.Chunks),
		zap.Int("failed_rows", summary.FailedRows))
	return summary, nil
}

const progressEvery = 2000
