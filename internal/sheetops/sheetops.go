// Package sheetops has the standalone spreadsheet manipulations that do
// not touch the database: merging, shuffling, splitting and phone-cell
// compaction.
package sheetops

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/normalize"
	"github.com/leadops/leadbase-cli/internal/sheet"
)

// TakeStrategy selects how many rows Merge takes from each input file.
type TakeStrategy int

const (
	// TakeFull takes every row.
	TakeFull TakeStrategy = iota
	// TakeHalf takes the first half of each file.
	TakeHalf
	// TakeCustom takes at most MergeOptions.CustomRows from each file.
	TakeCustom
)

// ParseTakeStrategy maps a flag value to a TakeStrategy.
func ParseTakeStrategy(s string) (TakeStrategy, error) {
	switch s {
	case "full":
		return TakeFull, nil
	case "half":
		return TakeHalf, nil
	case "custom":
		return TakeCustom, nil
	default:
		return 0, eris.Errorf("sheetops: unknown take strategy %q", s)
	}
}

// MergeOptions configures a merge run.
type MergeOptions struct {
	Take       TakeStrategy
	CustomRows int
	// DedupColumn names the identifier column rows are deduplicated on.
	// Empty disables deduplication.
	DedupColumn string
	// Segment splits the merged output into four parts when it exceeds
	// SegmentThreshold rows.
	Segment          bool
	SegmentThreshold int
}

const defaultSegmentThreshold = 1_000_000

// MergeResult reports what one merge produced.
type MergeResult struct {
	Rows       int
	Duplicates int
	Outputs    []string
}

// Merge concatenates the data rows of the inputs into outPath, using the
// header of the first file. With segmentation on, an output above the
// threshold is written as four part files instead.
func Merge(ctx context.Context, paths []string, outPath string, opts MergeOptions) (MergeResult, error) {
	var res MergeResult
	if len(paths) == 0 {
		return res, eris.New("sheetops: merge needs at least one input")
	}
	if opts.SegmentThreshold <= 0 {
		opts.SegmentThreshold = defaultSegmentThreshold
	}

	out := &sheet.Sheet{Name: "Plan1"}
	seen := make(map[string]struct{})

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "sheetops: cancelled")
		}
		s, err := sheet.Open(path)
		if err != nil {
			return res, eris.Wrapf(err, "sheetops: open %s", path)
		}
		if out.Header == nil {
			out.Header = append([]string(nil), s.Header...)
		}

		dedupCol := -1
		if opts.DedupColumn != "" {
			dedupCol = s.HeaderIndex(opts.DedupColumn)
		}

		take := len(s.Rows)
		switch opts.Take {
		case TakeHalf:
			take = (len(s.Rows) + 1) / 2
		case TakeCustom:
			if opts.CustomRows > 0 {
				take = min(take, opts.CustomRows)
			}
		}

		for i := 0; i < take; i++ {
			if dedupCol >= 0 {
				key := normalize.Digits(s.Cell(i, dedupCol))
				if key != "" {
					if _, dup := seen[key]; dup {
						res.Duplicates++
						continue
					}
					seen[key] = struct{}{}
				}
			}
			out.Rows = append(out.Rows, s.Rows[i])
		}
	}
	res.Rows = len(out.Rows)

	if opts.Segment && len(out.Rows) > opts.SegmentThreshold {
		outputs, err := writeParts(out, outPath, 4)
		if err != nil {
			return res, err
		}
		res.Outputs = outputs
	} else {
		if err := out.Save(outPath); err != nil {
			return res, eris.Wrap(err, "sheetops: save merged sheet")
		}
		res.Outputs = []string{outPath}
	}

	zap.L().Info("sheetops: merge done",
		zap.Int("inputs", len(paths)),
		zap.Int("rows", res.Rows),
		zap.Int("duplicates", res.Duplicates),
		zap.Strings("outputs", res.Outputs))
	return res, nil
}

// Shuffle randomizes the order of the data rows in place. The header is
// untouched.
func Shuffle(path string) error {
	s, err := sheet.Open(path)
	if err != nil {
		return eris.Wrap(err, "sheetops: open sheet")
	}

	rand.Shuffle(len(s.Rows), func(i, j int) {
		s.Rows[i], s.Rows[j] = s.Rows[j], s.Rows[i]
	})

	if err := s.SaveAtomic(path); err != nil {
		return eris.Wrap(err, "sheetops: save shuffled sheet")
	}
	zap.L().Info("sheetops: sheet shuffled",
		zap.String("file", path), zap.Int("rows", len(s.Rows)))
	return nil
}

// Split writes the sheet as sequential part files of at most rowsPerPart
// data rows each, every part carrying the original header. Returns the
// part paths.
func Split(path string, rowsPerPart int) ([]string, error) {
	if rowsPerPart <= 0 {
		return nil, eris.New("sheetops: rows per part must be positive")
	}
	s, err := sheet.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheetops: open sheet")
	}

	parts := (len(s.Rows) + rowsPerPart - 1) / rowsPerPart
	if parts <= 1 {
		return []string{path}, nil
	}

	outputs := make([]string, 0, parts)
	for p := 0; p < parts; p++ {
		lo := p * rowsPerPart
		hi := min(lo+rowsPerPart, len(s.Rows))
		part := &sheet.Sheet{Name: s.Name, Header: s.Header, Rows: s.Rows[lo:hi]}
		partPath := partPath(path, p+1)
		if err := part.Save(partPath); err != nil {
			return outputs, eris.Wrapf(err, "sheetops: save part %d", p+1)
		}
		outputs = append(outputs, partPath)
	}

	zap.L().Info("sheetops: sheet split",
		zap.String("file", path), zap.Int("parts", parts))
	return outputs, nil
}

// AdjustPhones compacts the phone columns of every row: digit-only values
// shifted left, remaining cells blanked.
func AdjustPhones(path string) (int, error) {
	s, err := sheet.Open(path)
	if err != nil {
		return 0, eris.Wrap(err, "sheetops: open sheet")
	}
	phoneCols := s.PhoneColumns()
	if len(phoneCols) == 0 {
		return 0, eris.Errorf("sheetops: %s has no phone columns", path)
	}

	adjusted := 0
	for i := range s.Rows {
		var phones []string
		for _, col := range phoneCols {
			if p, ok := normalize.Phone(s.Cell(i, col)); ok {
				phones = append(phones, p)
			}
		}
		changed := false
		for slot, col := range phoneCols {
			want := ""
			if slot < len(phones) {
				want = phones[slot]
			}
			if s.Cell(i, col) != want {
				s.SetCell(i, col, want)
				changed = true
			}
		}
		if changed {
			adjusted++
		}
	}

	if err := s.SaveAtomic(path); err != nil {
		return adjusted, eris.Wrap(err, "sheetops: save adjusted sheet")
	}
	zap.L().Info("sheetops: phones adjusted",
		zap.String("file", path), zap.Int("rows_changed", adjusted))
	return adjusted, nil
}

func writeParts(s *sheet.Sheet, outPath string, n int) ([]string, error) {
	per := (len(s.Rows) + n - 1) / n
	outputs := make([]string, 0, n)
	for p := 0; p < n; p++ {
		lo := p * per
		if lo >= len(s.Rows) {
			break
		}
		hi := min(lo+per, len(s.Rows))
		part := &sheet.Sheet{Name: s.Name, Header: s.Header, Rows: s.Rows[lo:hi]}
		path := partPath(outPath, p+1)
		if err := part.Save(path); err != nil {
			return outputs, eris.Wrapf(err, "sheetops: save segment %d", p+1)
		}
		outputs = append(outputs, path)
	}
	return outputs, nil
}

func partPath(path string, n int) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + fmt.Sprintf("_part%d%s", n, ext)
}
