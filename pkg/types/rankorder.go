// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package types

import (
	"strings"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// RankOrder selects how suggestions are ordered before they are returned.
type RankOrder string

const (
	// RankOrderScoreDesc sorts by rounded score, highest first. Since the
	// score is a distance this puts the weakest matches first; it is kept
	// for parity with existing consumers.
	RankOrderScoreDesc RankOrder = "score_desc"
	// RankOrderDistanceAsc keeps the index order, closest match first.
	RankOrderDistanceAsc RankOrder = "distance_asc"
)

// Valid reports whether o is a recognized rank order.
func (o RankOrder) Valid() bool {
	switch o {
	case RankOrderScoreDesc, RankOrderDistanceAsc:
		return true
	default:
		return false
	}
}

// ParseRankOrder parses a case-insensitive string into a RankOrder.
// An empty string selects RankOrderScoreDesc.
func ParseRankOrder(s string) (RankOrder, error) {
	if strings.TrimSpace(s) == "" {
		return RankOrderScoreDesc, nil
	}
	o := RankOrder(strings.ToLower(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"invalid rank order: %q", s)
	}
	return o, nil
}
