// Package enrich fills the phone columns of lead spreadsheets from the
// persisted phone directory.
package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/model"
	"github.com/leadops/leadbase-cli/internal/normalize"
	"github.com/leadops/leadbase-cli/internal/progress"
	"github.com/leadops/leadbase-cli/internal/sheet"
)

const defaultBatchSize = 2000

// Directory is the slice of the store the enricher needs.
type Directory interface {
	LookupPhones(ctx context.Context, ids []string, years []int) (map[string][]string, error)
}

// Options configures one enrichment run.
type Options struct {
	BatchSize int
	Strategy  model.Strategy
	Years     []int // empty = whole directory
	Backup    bool
}

// Engine enriches spreadsheets in identifier batches.
type Engine struct {
	dir      Directory
	reporter progress.Reporter
}

// New creates an enrichment engine.
func New(dir Directory, reporter progress.Reporter) *Engine {
	if reporter == nil {
		reporter = progress.ZapReporter{Op: "enrich"}
	}
	return &Engine{dir: dir, reporter: reporter}
}

// EnrichFiles runs EnrichFile over each path. A file that fails is logged
// and skipped; the run continues.
func (e *Engine) EnrichFiles(ctx context.Context, paths []string, opts Options) ([]model.EnrichSummary, error) {
	var summaries []model.EnrichSummary
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summaries, eris.Wrap(err, "enrich: cancelled")
		}

		summary, err := e.EnrichFile(ctx, path, opts)
		if err != nil {
			zap.L().Error("enrich: file failed, skipping",
				zap.String("file", path), zap.Error(err))
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// EnrichFile enriches a single spreadsheet: every row's identifier is
// looked up in the directory, phone cells are merged per the strategy and
// the status column is set to Enriched or Poor.
func (e *Engine) EnrichFile(ctx context.Context, path string, opts Options) (model.EnrichSummary, error) {
	summary := model.EnrichSummary{File: path}
	started := time.Now()

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	s, err := sheet.Open(path)
	if err != nil {
		return summary, err
	}
	summary.TotalRows = len(s.Rows)

	idCol := s.HeaderIndex("cnpj")
	if idCol < 0 {
		idCol = s.HeaderIndex("chave")
	}
	if idCol < 0 {
		return summary, eris.Errorf("enrich: %s has no identifier column", path)
	}

	phoneCols := s.PhoneColumns()
	if len(phoneCols) == 0 {
		return summary, eris.Errorf("enrich: %s has no phone columns", path)
	}
	statusCol := s.EnsureColumn("status")

	for start := 0; start < len(s.Rows); start += batchSize {
		if err := ctx.Err(); err != nil {
			return summary, eris.Wrap(err, "enrich: cancelled")
		}
		end := min(start+batchSize, len(s.Rows))

		// Identifiers of the batch, digit form, deduplicated, invalid
		// rows excluded.
		idByRow := make(map[int]string, end-start)
		seen := make(map[string]struct{}, end-start)
		var ids []string
		for i := start; i < end; i++ {
			id, ok := normalize.Identifier(s.Cell(i, idCol))
			if !ok {
				continue
			}
			idByRow[i] = id
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}

		phonesByID, err := e.dir.LookupPhones(ctx, ids, opts.Years)
		if err != nil {
			return summary, eris.Wrap(err, "enrich: directory lookup")
		}

		for i := start; i < end; i++ {
			id, ok := idByRow[i]
			incoming := phonesByID[id]
			if !ok || len(incoming) == 0 {
				s.SetCell(i, statusCol, model.StatusPoor)
				summary.Poor++
				summary.NotFound++
				continue
			}

			existing := make([]string, len(phoneCols))
			for j, col := range phoneCols {
				existing[j] = s.Cell(i, col)
			}
			merged, wrote := MergePhones(existing, incoming, len(phoneCols), opts.Strategy)
			if !wrote {
				// Nothing written this pass (ignore with phones present,
				// append with every column full): the row stays untouched.
				s.SetCell(i, statusCol, model.StatusPoor)
				summary.Poor++
				continue
			}
			for j, col := range phoneCols {
				s.SetCell(i, col, merged[j])
			}
			s.SetCell(i, statusCol, model.StatusEnriched)
			summary.Enriched++
		}

		eta := progress.Estimate(len(s.Rows), end, time.Since(started))
		e.reporter.Progress(progress.Update{
			FileID:  path,
			Current: end,
			Total:   len(s.Rows),
			ETA:     progress.FormatETA(eta),
		})
	}

	if opts.Backup {
		if _, err := sheet.Backup(path, "preenrich"); err != nil {
			return summary, err
		}
	}
	if err := s.SaveAtomic(path); err != nil {
		return summary, err
	}

	summary.Elapsed = time.Since(started)
	zap.L().Info("enrich: file done",
		zap.String("file", path),
		zap.Int("total", summary.TotalRows),
		zap.Int("enriched", summary.Enriched),
		zap.Int("poor", summary.Poor),
		zap.Int("not_found", summary.NotFound),
		zap.Duration("elapsed", summary.Elapsed))
	return summary, nil
}
