// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package types

import (
	"testing"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankOrderConstants_Valid(t *testing.T) {
	assert.True(t, RankOrderScoreDesc.Valid())
	assert.True(t, RankOrderDistanceAsc.Valid())
	assert.False(t, RankOrder("best").Valid())
}

func TestParseRankOrder(t *testing.T) {
	tests := []struct {
		in   string
		want RankOrder
	}{
		{"", RankOrderScoreDesc},
		{"score_desc", RankOrderScoreDesc},
		{"DISTANCE_ASC", RankOrderDistanceAsc},
		{"  distance_asc ", RankOrderDistanceAsc},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRankOrder(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRankOrder_Invalid(t *testing.T) {
	_, err := ParseRankOrder("ascending")
	require.Error(t, err)
	assert.True(t, sageerr.IsInvalidInput(err))
}
