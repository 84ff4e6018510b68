// Package sheet reads and writes the tabular files every engine works on.
// XLSX and CSV inputs share one in-memory representation, so the cleaning,
// enrichment and consultation code never cares which format a vendor sent.
package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/leadops/leadbase-cli/internal/normalize"
)

// Format identifies the on-disk encoding of a sheet.
type Format int

const (
	FormatXLSX Format = iota
	FormatCSV
)

// Sheet is one spreadsheet loaded in memory: a header row plus data rows.
type Sheet struct {
	Path   string
	Name   string
	Header []string
	Rows   [][]string

	format Format
}

var phoneHeaderRe = regexp.MustCompile(`^fone\d+$`)

// Open loads an XLSX or CSV file, keyed by extension.
func Open(path string) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return openXLSX(path)
	case ".csv":
		return openCSV(path)
	default:
		return nil, eris.Errorf("sheet: unsupported file type %q", filepath.Ext(path))
	}
}

// Format returns the encoding the sheet was loaded from.
func (s *Sheet) Format() Format {
	return s.format
}

func openXLSX(path string) (*Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sheet: open xlsx %s", filepath.Base(path))
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("sheet: %s has no sheets", filepath.Base(path))
	}

	ws := f.Sheets[0]
	out := &Sheet{Path: path, Name: ws.Name, format: FormatXLSX}
	for i, row := range ws.Rows {
		cells := rowToStrings(row)
		if i == 0 {
			out.Header = cells
			continue
		}
		out.Rows = append(out.Rows, cells)
	}
	if out.Header == nil {
		return nil, eris.Errorf("sheet: %s is empty", filepath.Base(path))
	}
	return out, nil
}

func openCSV(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sheet: open csv %s", filepath.Base(path))
	}
	defer f.Close()

	delim, err := sniffDelimiter(f)
	if err != nil {
		return nil, eris.Wrapf(err, "sheet: sniff delimiter %s", filepath.Base(path))
	}

	r := csv.NewReader(f)
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	out := &Sheet{Path: path, Name: strings.TrimSuffix(filepath.Base(path), ".csv"), format: FormatCSV}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "sheet: read csv %s", filepath.Base(path))
		}
		if out.Header == nil {
			out.Header = record
			continue
		}
		out.Rows = append(out.Rows, record)
	}
	if out.Header == nil {
		return nil, eris.Errorf("sheet: %s is empty", filepath.Base(path))
	}
	return out, nil
}

// sniffDelimiter picks ';' or ',' by counting occurrences in the first
// line, then rewinds the file.
func sniffDelimiter(f *os.File) (rune, error) {
	buf := make([]byte, 4096)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return 0, err
	}
	line := string(buf[:n])
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	if strings.Count(line, ";") >= strings.Count(line, ",") {
		return ';', nil
	}
	return ',', nil
}

// Save writes the sheet back in its source format.
func (s *Sheet) Save(path string) error {
	switch s.format {
	case FormatCSV:
		return s.saveCSV(path)
	default:
		return s.saveXLSX(path)
	}
}

// SaveAtomic writes to a temp file in the target directory and renames it
// over the destination, so a crash mid-write never leaves a torn file.
func (s *Sheet) SaveAtomic(path string) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", filepath.Base(path), time.Now().UnixNano()))

	if err := s.Save(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return eris.Wrapf(err, "sheet: rename %s", filepath.Base(path))
	}
	return nil
}

func (s *Sheet) saveXLSX(path string) error {
	f := xlsx.NewFile()
	name := s.Name
	if name == "" {
		name = "Sheet1"
	}
	ws, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrap(err, "sheet: add sheet")
	}

	writeRow := func(cells []string) {
		row := ws.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	writeRow(s.Header)
	for _, r := range s.Rows {
		writeRow(r)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "sheet: save xlsx %s", filepath.Base(path))
	}
	return nil
}

func (s *Sheet) saveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "sheet: create csv %s", filepath.Base(path))
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(s.Header); err != nil {
		return eris.Wrap(err, "sheet: write csv header")
	}
	for _, r := range s.Rows {
		if err := w.Write(r); err != nil {
			return eris.Wrap(err, "sheet: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "sheet: flush csv %s", filepath.Base(path))
	}
	return nil
}

// Backup copies the file alongside itself with a timestamped name before
// any destructive rewrite. Returns the backup path.
func Backup(path, label string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "sheet: backup open %s", filepath.Base(path))
	}
	defer src.Close()

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	backupPath := filepath.Join(filepath.Dir(path),
		fmt.Sprintf("%s_%s_%s%s", base, label, time.Now().Format("20060102-150405"), ext))

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", eris.Wrap(err, "sheet: backup create")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(backupPath)
		return "", eris.Wrap(err, "sheet: backup copy")
	}
	return backupPath, nil
}

// HeaderIndex returns the column index whose folded header matches name,
// or -1. Matching ignores case, surrounding space and accents.
func (s *Sheet) HeaderIndex(name string) int {
	want := normalize.FoldHeader(name)
	for i, h := range s.Header {
		if normalize.FoldHeader(h) == want {
			return i
		}
	}
	return -1
}

// RequireColumn is HeaderIndex with a typed error for callers that skip
// files missing a mandatory column.
func (s *Sheet) RequireColumn(name string) (int, error) {
	if i := s.HeaderIndex(name); i >= 0 {
		return i, nil
	}
	return -1, eris.Errorf("sheet: %s has no %q column", filepath.Base(s.Path), name)
}

// PhoneColumns returns the indexes of the fone1..foneN columns in header
// order.
func (s *Sheet) PhoneColumns() []int {
	var cols []int
	for i, h := range s.Header {
		if phoneHeaderRe.MatchString(normalize.FoldHeader(h)) {
			cols = append(cols, i)
		}
	}
	return cols
}

// EnsureColumn returns the index of the named column, appending it (and
// padding every row) when absent.
func (s *Sheet) EnsureColumn(name string) int {
	if i := s.HeaderIndex(name); i >= 0 {
		return i
	}
	s.Header = append(s.Header, name)
	idx := len(s.Header) - 1
	for i := range s.Rows {
		for len(s.Rows[i]) <= idx {
			s.Rows[i] = append(s.Rows[i], "")
		}
	}
	return idx
}

// Cell returns the value at (row, col), tolerating ragged rows.
func (s *Sheet) Cell(row, col int) string {
	if row < 0 || row >= len(s.Rows) || col < 0 || col >= len(s.Rows[row]) {
		return ""
	}
	return s.Rows[row][col]
}

// SetCell writes the value at (row, col), padding the row when needed.
func (s *Sheet) SetCell(row, col int, v string) {
	if row < 0 || row >= len(s.Rows) || col < 0 {
		return
	}
	for len(s.Rows[row]) <= col {
		s.Rows[row] = append(s.Rows[row], "")
	}
	s.Rows[row][col] = v
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		cells[i] = c.String()
	}
	return cells
}
