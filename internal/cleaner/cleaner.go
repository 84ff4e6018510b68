// Package cleaner removes already-worked, client-owned and prohibited rows
// from lead spreadsheets before they go to the dialer.
package cleaner

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/history"
	"github.com/leadops/leadbase-cli/internal/model"
	"github.com/leadops/leadbase-cli/internal/normalize"
	"github.com/leadops/leadbase-cli/internal/progress"
	"github.com/leadops/leadbase-cli/internal/sheet"
)

// progressEvery is how many rows pass between progress events and
// cancellation checks.
const progressEvery = 2000

// Backend is the slice of the store the cleaner needs.
type Backend interface {
	LoadRoot(ctx context.Context) ([]string, error)
	FindBlockedPhones(ctx context.Context, phones []string) ([]string, error)
}

// Options selects which filters a cleaning run applies.
//
// The root set comes from one of two sources per run: the persisted root
// table (UseRoot) or a column of a local spreadsheet (RootFile plus
// RootFileColumn). Setting both is an error. RootMatchColumn names the
// column of the cleaned file matched against the root set; empty means
// the identifier column.
type Options struct {
	CheckHistory       bool
	SaveToHistory      bool
	Backup             bool
	UseRoot            bool
	RootFile           string
	RootFileColumn     string
	RootMatchColumn    string
	CleanPhones        bool
	CheckBlocklist     bool
	ProhibitedCNAEs    []string
	BlocklistBatchSize int
}

// DBOnlyOptions returns the reduced filter set of the database-only run:
// history dedup alone, no root check and no phone hygiene.
func DBOnlyOptions(saveToHistory, backup bool) Options {
	return Options{CheckHistory: true, SaveToHistory: saveToHistory, Backup: backup}
}

// Engine cleans spreadsheets against the history, root and blocklist sets.
type Engine struct {
	history  *history.Cache
	store    Backend
	reporter progress.Reporter
}

// New creates a cleaning engine. The history cache must already be loaded.
func New(hist *history.Cache, store Backend, reporter progress.Reporter) *Engine {
	if reporter == nil {
		reporter = progress.ZapReporter{Op: "clean"}
	}
	return &Engine{history: hist, store: store, reporter: reporter}
}

// CleanFiles cleans each spreadsheet and then persists the run's new
// identifiers once, under a single batch tag, judged against the history
// as it stood when the run started. A file that fails is logged and
// skipped; the run continues.
func (e *Engine) CleanFiles(ctx context.Context, paths []string, opts Options) (model.CleanRun, error) {
	var run model.CleanRun

	rootSet, err := e.loadRootSet(ctx, opts)
	if err != nil {
		return run, err
	}

	seenRun := make(map[string]struct{})
	var newIDs []string
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return run, eris.Wrap(err, "cleaner: cancelled")
		}

		summary, fileNew, err := e.cleanFile(ctx, path, rootSet, opts)
		if err != nil {
			zap.L().Error("cleaner: file failed, skipping",
				zap.String("file", path), zap.Error(err))
			continue
		}
		run.Files = append(run.Files, summary)

		for _, id := range fileNew {
			if _, dup := seenRun[id]; !dup {
				seenRun[id] = struct{}{}
				newIDs = append(newIDs, id)
			}
		}
	}
	run.NewIdentifiers = len(newIDs)

	if opts.SaveToHistory && len(newIDs) > 0 {
		tag, inserted, err := e.history.AddBatch(ctx, newIDs)
		if err != nil {
			return run, err
		}
		run.HistoryBatchTag = tag
		run.HistoryInserted = inserted
	}
	return run, nil
}

// loadRootSet builds the exclusion set from the configured source. Keys
// are digit forms when the value has digits, trimmed raw text otherwise,
// so formatted spreadsheet cells still match table identifiers.
func (e *Engine) loadRootSet(ctx context.Context, opts Options) (map[string]struct{}, error) {
	if opts.UseRoot && opts.RootFile != "" {
		return nil, eris.New("cleaner: root table and root file are mutually exclusive")
	}

	switch {
	case opts.RootFile != "":
		s, err := sheet.Open(opts.RootFile)
		if err != nil {
			return nil, eris.Wrap(err, "cleaner: open root file")
		}
		col := 0
		if opts.RootFileColumn != "" {
			if col = s.HeaderIndex(opts.RootFileColumn); col < 0 {
				return nil, eris.Errorf("cleaner: root file has no %q column", opts.RootFileColumn)
			}
		} else if col = s.HeaderIndex("cnpj"); col < 0 {
			if col = s.HeaderIndex("chave"); col < 0 {
				col = 0
			}
		}
		set := make(map[string]struct{}, len(s.Rows))
		for i := range s.Rows {
			if key := rootKey(s.Cell(i, col)); key != "" {
				set[key] = struct{}{}
			}
		}
		zap.L().Info("cleaner: root set loaded from file",
			zap.String("file", opts.RootFile), zap.Int("identifiers", len(set)))
		return set, nil

	case opts.UseRoot:
		ids, err := e.store.LoadRoot(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "cleaner: load root set")
		}
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[rootKey(id)] = struct{}{}
		}
		zap.L().Info("cleaner: root set loaded", zap.Int("identifiers", len(set)))
		return set, nil

	default:
		return nil, nil
	}
}

// rootKey canonicalizes a root-match value: the digit form when the value
// carries digits, otherwise the trimmed text itself.
func rootKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if d := normalize.Digits(raw); d != "" {
		return d
	}
	return raw
}

func (e *Engine) cleanFile(ctx context.Context, path string, rootSet map[string]struct{}, opts Options) (model.CleanSummary, []string, error) {
	summary := model.CleanSummary{File: path}

	s, err := sheet.Open(path)
	if err != nil {
		return summary, nil, err
	}
	summary.TotalRows = len(s.Rows)

	idCol := s.HeaderIndex("cnpj")
	if idCol < 0 {
		idCol = s.HeaderIndex("chave")
	}
	if idCol < 0 {
		return summary, nil, eris.Errorf("cleaner: %s has no identifier column", path)
	}

	matchCol := idCol
	if opts.RootMatchColumn != "" {
		if matchCol = s.HeaderIndex(opts.RootMatchColumn); matchCol < 0 {
			return summary, nil, eris.Errorf("cleaner: %s has no %q column", path, opts.RootMatchColumn)
		}
	}

	cnaeCol := -1
	if len(opts.ProhibitedCNAEs) > 0 {
		cnaeCol = s.HeaderIndex("cnae")
		if cnaeCol < 0 {
			cnaeCol = s.HeaderIndex("livre3")
		}
	}
	prohibited := make(map[string]struct{}, len(opts.ProhibitedCNAEs))
	for _, c := range opts.ProhibitedCNAEs {
		prohibited[normalize.Digits(c)] = struct{}{}
	}

	nameCol := s.HeaderIndex("nome")
	phoneCols := s.PhoneColumns()

	// First pass: drop rows by history, root and activity code, in that
	// precedence. The root and activity checks apply even to rows whose
	// identifier does not parse.
	seenThisFile := make(map[string]struct{})
	var newIDs []string
	var kept [][]string
	for i, row := range s.Rows {
		if i%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return summary, nil, eris.Wrap(err, "cleaner: cancelled")
			}
			e.reporter.Progress(progress.Update{FileID: path, Current: i, Total: len(s.Rows)})
		}

		raw := ""
		if idCol < len(row) {
			raw = row[idCol]
		}
		id, okID := normalize.Identifier(raw)

		if opts.CheckHistory && okID {
			if _, dup := seenThisFile[id]; dup || e.history.Contains(id) {
				summary.Duplicates++
				continue
			}
		}
		if rootSet != nil && matchCol < len(row) {
			if _, inRoot := rootSet[rootKey(row[matchCol])]; inRoot {
				summary.RemovedByRoot++
				continue
			}
		}
		if cnaeCol >= 0 && cnaeCol < len(row) {
			if _, bad := prohibited[normalize.Digits(row[cnaeCol])]; bad {
				summary.RemovedByCNAE++
				continue
			}
		}

		if okID {
			if _, seen := seenThisFile[id]; !seen {
				seenThisFile[id] = struct{}{}
				if !e.history.Contains(id) {
					newIDs = append(newIDs, id)
				}
			}
		}
		kept = append(kept, row)
	}

	if opts.CheckBlocklist {
		kept, err = e.dropBlockedRows(ctx, kept, phoneCols, opts.BlocklistBatchSize, &summary)
		if err != nil {
			return summary, nil, err
		}
	}

	s.Rows = kept

	if opts.CleanPhones {
		for i := range s.Rows {
			for _, col := range phoneCols {
				if d := normalize.Digits(s.Cell(i, col)); len(d) == 10 {
					s.SetCell(i, col, "")
					summary.PhonesCleaned++
				}
			}
		}
	}

	if nameCol >= 0 {
		for i := range s.Rows {
			if v := s.Cell(i, nameCol); v != "" {
				s.SetCell(i, nameCol, normalize.CleanName(v))
			}
		}
	}

	summary.FinalRows = len(s.Rows)
	summary.NewIdentifiers = len(newIDs)

	if opts.Backup {
		if _, err := sheet.Backup(path, "preclean"); err != nil {
			return summary, nil, err
		}
	}
	if err := s.SaveAtomic(path); err != nil {
		return summary, nil, err
	}

	zap.L().Info("cleaner: file done",
		zap.String("file", path),
		zap.Int("total", summary.TotalRows),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("removed_by_root", summary.RemovedByRoot),
		zap.Int("removed_by_cnae", summary.RemovedByCNAE),
		zap.Int("removed_by_blocklist", summary.RemovedByBlocklist),
		zap.Int("phones_cleaned", summary.PhonesCleaned),
		zap.Int("final", summary.FinalRows))
	return summary, newIDs, nil
}

// dropBlockedRows removes rows where any phone cell is on the blocklist,
// querying the store in batches.
func (e *Engine) dropBlockedRows(ctx context.Context, rows [][]string, phoneCols []int, batchSize int, summary *model.CleanSummary) ([][]string, error) {
	if len(phoneCols) == 0 || len(rows) == 0 {
		return rows, nil
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	// Collect each row's phone digit forms.
	rowPhones := make([][]string, len(rows))
	var all []string
	for i, row := range rows {
		for _, col := range phoneCols {
			if col >= len(row) {
				continue
			}
			if d, ok := normalize.Phone(row[col]); ok {
				rowPhones[i] = append(rowPhones[i], d)
				all = append(all, d)
			}
		}
	}

	blocked := make(map[string]struct{})
	for start := 0; start < len(all); start += batchSize {
		end := min(start+batchSize, len(all))
		hits, err := e.store.FindBlockedPhones(ctx, all[start:end])
		if err != nil {
			return nil, eris.Wrap(err, "cleaner: blocklist check")
		}
		for _, p := range hits {
			blocked[p] = struct{}{}
		}
	}
	if len(blocked) == 0 {
		return rows, nil
	}

	var kept [][]string
	for i, row := range rows {
		hit := false
		for _, p := range rowPhones[i] {
			if _, bad := blocked[p]; bad {
				hit = true
				break
			}
		}
		if hit {
			summary.RemovedByBlocklist++
			continue
		}
		kept = append(kept, row)
	}
	return kept, nil
}
