package sheetops

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadops/leadbase-cli/internal/sheet"
)

func writeSheet(t *testing.T, dir, name string, header []string, rows [][]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	s := &sheet.Sheet{Name: "Plan1", Header: header, Rows: rows}
	require.NoError(t, s.Save(path))
	return path
}

func TestMerge_FullWithDedup(t *testing.T) {
	dir := t.TempDir()
	a := writeSheet(t, dir, "a.xlsx",
		[]string{"nome", "cnpj"},
		[][]string{
			{"ACME", "12345678000195"},
			{"BETA", "98765432000110"},
		})
	b := writeSheet(t, dir, "b.xlsx",
		[]string{"nome", "cnpj"},
		[][]string{
			{"ACME AGAIN", "12.345.678/0001-95"}, // same identifier, formatted
			{"GAMMA", "11222333000181"},
		})

	out := filepath.Join(dir, "merged.xlsx")
	res, err := Merge(context.Background(), []string{a, b}, out,
		MergeOptions{DedupColumn: "cnpj"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, []string{out}, res.Outputs)

	got, err := sheet.Open(out)
	require.NoError(t, err)
	require.Len(t, got.Rows, 3)
	assert.Equal(t, "GAMMA", got.Cell(2, 0))
}

func TestMerge_TakeStrategies(t *testing.T) {
	dir := t.TempDir()
	rows := make([][]string, 10)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("row%d", i)}
	}
	path := writeSheet(t, dir, "a.xlsx", []string{"nome"}, rows)

	half, err := Merge(context.Background(), []string{path},
		filepath.Join(dir, "half.xlsx"), MergeOptions{Take: TakeHalf})
	require.NoError(t, err)
	assert.Equal(t, 5, half.Rows)

	custom, err := Merge(context.Background(), []string{path},
		filepath.Join(dir, "custom.xlsx"), MergeOptions{Take: TakeCustom, CustomRows: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, custom.Rows)
}

func TestMerge_Segmentation(t *testing.T) {
	dir := t.TempDir()
	rows := make([][]string, 10)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("row%d", i)}
	}
	path := writeSheet(t, dir, "a.xlsx", []string{"nome"}, rows)

	out := filepath.Join(dir, "merged.xlsx")
	res, err := Merge(context.Background(), []string{path}, out,
		MergeOptions{Segment: true, SegmentThreshold: 8})
	require.NoError(t, err)

	require.Len(t, res.Outputs, 4)
	assert.Equal(t, filepath.Join(dir, "merged_part1.xlsx"), res.Outputs[0])

	total := 0
	for _, p := range res.Outputs {
		s, err := sheet.Open(p)
		require.NoError(t, err)
		total += len(s.Rows)
	}
	assert.Equal(t, 10, total)
}

func TestParseTakeStrategy(t *testing.T) {
	got, err := ParseTakeStrategy("half")
	require.NoError(t, err)
	assert.Equal(t, TakeHalf, got)

	_, err = ParseTakeStrategy("most")
	require.Error(t, err)
}

func TestShuffle_KeepsAllRows(t *testing.T) {
	dir := t.TempDir()
	rows := make([][]string, 50)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("row%d", i)}
	}
	path := writeSheet(t, dir, "a.xlsx", []string{"nome"}, rows)

	require.NoError(t, Shuffle(path))

	got, err := sheet.Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"nome"}, got.Header)

	values := make(map[string]bool, len(got.Rows))
	for i := range got.Rows {
		values[got.Cell(i, 0)] = true
	}
	assert.Len(t, values, 50)
}

func TestSplit(t *testing.T) {
	dir := t.TempDir()
	rows := make([][]string, 7)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("row%d", i)}
	}
	path := writeSheet(t, dir, "a.xlsx", []string{"nome"}, rows)

	parts, err := Split(path, 3)
	require.NoError(t, err)
	require.Len(t, parts, 3)

	last, err := sheet.Open(parts[2])
	require.NoError(t, err)
	assert.Equal(t, []string{"nome"}, last.Header)
	require.Len(t, last.Rows, 1)
	assert.Equal(t, "row6", last.Cell(0, 0))
}

func TestSplit_SinglePart(t *testing.T) {
	dir := t.TempDir()
	path := writeSheet(t, dir, "a.xlsx", []string{"nome"}, [][]string{{"only"}})

	parts, err := Split(path, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, parts)
}

func TestAdjustPhones(t *testing.T) {
	dir := t.TempDir()
	path := writeSheet(t, dir, "a.xlsx",
		[]string{"nome", "fone1", "fone2", "fone3"},
		[][]string{
			{"ACME", "", "(11) 98765-4321", "123"},
			{"BETA", "21999990000", "", "31888887777"},
		})

	adjusted, err := AdjustPhones(path)
	require.NoError(t, err)
	assert.Equal(t, 2, adjusted)

	got, err := sheet.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "11987654321", got.Cell(0, 1))
	assert.Equal(t, "", got.Cell(0, 2))
	assert.Equal(t, "", got.Cell(0, 3))
	assert.Equal(t, "21999990000", got.Cell(1, 1))
	assert.Equal(t, "31888887777", got.Cell(1, 2))
	assert.Equal(t, "", got.Cell(1, 3))
}

func TestAdjustPhones_NoPhoneColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeSheet(t, dir, "a.xlsx", []string{"nome"}, [][]string{{"ACME"}})

	_, err := AdjustPhones(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no phone columns")
}
