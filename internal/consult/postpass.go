package consult

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/model"
	"github.com/leadops/leadbase-cli/internal/sheet"
)

// ExtractClients pulls every row marked as an existing client out of the
// given sheets into one consolidated workbook at outPath. The header of
// the first sheet is reused. Source files are not modified.
func (e *Engine) ExtractClients(ctx context.Context, paths []string, outPath string) (int, error) {
	out := &sheet.Sheet{Name: "clients"}
	total := 0

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return total, eris.Wrap(err, "consult: cancelled")
		}
		s, err := sheet.Open(path)
		if err != nil {
			return total, eris.Wrapf(err, "consult: open %s", path)
		}
		resultCol, err := e.resultColumn(s, path)
		if err != nil {
			return total, err
		}
		if out.Header == nil {
			out.Header = append([]string(nil), s.Header...)
		}
		for i := range s.Rows {
			if s.Cell(i, resultCol) == model.ResultClient {
				out.Rows = append(out.Rows, append([]string(nil), s.Rows[i]...))
				total++
			}
		}
	}

	if err := out.Save(outPath); err != nil {
		return total, eris.Wrap(err, "consult: save extracted clients")
	}
	zap.L().Info("consult: clients extracted",
		zap.Int("rows", total), zap.String("out", outPath))
	return total, nil
}

// KeepAvailable rewrites the sheet keeping only rows marked available,
// with the verdict cleared so the file is ready for the dialer. A backup
// copy is left beside the original.
func (e *Engine) KeepAvailable(ctx context.Context, path string) (kept, removed int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, eris.Wrap(err, "consult: cancelled")
	}
	s, err := sheet.Open(path)
	if err != nil {
		return 0, 0, eris.Wrap(err, "consult: open sheet")
	}
	resultCol, err := e.resultColumn(s, path)
	if err != nil {
		return 0, 0, err
	}

	filtered := s.Rows[:0:0]
	for i := range s.Rows {
		if s.Cell(i, resultCol) != model.ResultAvailable {
			removed++
			continue
		}
		row := s.Rows[i]
		if resultCol < len(row) {
			row[resultCol] = ""
		}
		filtered = append(filtered, row)
		kept++
	}
	s.Rows = filtered

	if _, err := sheet.Backup(path, "prefilter"); err != nil {
		return kept, removed, eris.Wrap(err, "consult: backup sheet")
	}
	if err := s.SaveAtomic(path); err != nil {
		return kept, removed, eris.Wrap(err, "consult: save sheet")
	}
	zap.L().Info("consult: kept available rows",
		zap.String("file", path), zap.Int("kept", kept), zap.Int("removed", removed))
	return kept, removed, nil
}
