package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Strategy
	}{
		{"overwrite", StrategyOverwrite},
		{"append", StrategyAppend},
		{"ignore", StrategyIgnore},
	} {
		got, err := ParseStrategy(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.in, got.String())
	}

	_, err := ParseStrategy("merge")
	assert.Error(t, err)
}

func TestParseCredentialMode(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want CredentialMode
	}{
		{"primary", ModePrimary},
		{"secondary", ModeSecondary},
		{"alternate", ModeAlternate},
		{"dual", ModeDual},
	} {
		got, err := ParseCredentialMode(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.in, got.String())
	}

	_, err := ParseCredentialMode("both")
	assert.Error(t, err)
}
