package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leadops/leadbase-cli/internal/model"
)

func TestMergePhones_Overwrite(t *testing.T) {
	existing := []string{"1133334444", "1155556666", ""}
	incoming := []string{"11987654321", "21999990000"}

	got, wrote := MergePhones(existing, incoming, 3, model.StrategyOverwrite)
	assert.True(t, wrote)
	assert.Equal(t, []string{"11987654321", "21999990000", ""}, got)
}

func TestMergePhones_Overwrite_TruncatesToSlots(t *testing.T) {
	incoming := []string{"1", "2", "3", "4"}

	got, wrote := MergePhones(nil, incoming, 2, model.StrategyOverwrite)
	assert.True(t, wrote)
	assert.Equal(t, []string{"1", "2"}, got)
}

func TestMergePhones_Append_FillsEmptySlots(t *testing.T) {
	existing := []string{"1133334444", "", "1177778888"}
	incoming := []string{"11987654321", "21999990000"}

	got, wrote := MergePhones(existing, incoming, 3, model.StrategyAppend)
	assert.True(t, wrote)
	// existing phones keep their positions; the empty middle slot is filled
	assert.Equal(t, []string{"1133334444", "11987654321", "1177778888"}, got)
}

func TestMergePhones_Append_SkipsDuplicates(t *testing.T) {
	existing := []string{"(11) 3333-4444", "", ""}
	incoming := []string{"1133334444", "21999990000"}

	got, wrote := MergePhones(existing, incoming, 3, model.StrategyAppend)
	assert.True(t, wrote)
	// 1133334444 already present via its digit form
	assert.Equal(t, []string{"(11) 3333-4444", "21999990000", ""}, got)
}

func TestMergePhones_Append_NoRoom(t *testing.T) {
	existing := []string{"1133334444", "1155556666"}
	incoming := []string{"21999990000"}

	got, wrote := MergePhones(existing, incoming, 2, model.StrategyAppend)
	assert.False(t, wrote)
	assert.Equal(t, []string{"1133334444", "1155556666"}, got)
}

func TestMergePhones_Ignore_WithExisting(t *testing.T) {
	existing := []string{"", "1155556666"}
	incoming := []string{"21999990000"}

	got, wrote := MergePhones(existing, incoming, 2, model.StrategyIgnore)
	assert.False(t, wrote)
	assert.Equal(t, []string{"", "1155556666"}, got)
}

func TestMergePhones_Ignore_AllEmpty(t *testing.T) {
	existing := []string{"", ""}
	incoming := []string{"21999990000"}

	got, wrote := MergePhones(existing, incoming, 2, model.StrategyIgnore)
	assert.True(t, wrote)
	assert.Equal(t, []string{"21999990000", ""}, got)
}

func TestMergePhones_NoIncoming(t *testing.T) {
	existing := []string{"1133334444"}

	got, wrote := MergePhones(existing, nil, 1, model.StrategyOverwrite)
	assert.False(t, wrote)
	assert.Equal(t, []string{""}, got)

	got, wrote = MergePhones(existing, nil, 1, model.StrategyAppend)
	assert.False(t, wrote)
	assert.Equal(t, []string{"1133334444"}, got)
}

func TestMergePhones_ZeroSlots(t *testing.T) {
	got, wrote := MergePhones(nil, []string{"1"}, 0, model.StrategyOverwrite)
	assert.False(t, wrote)
	assert.Nil(t, got)
}
