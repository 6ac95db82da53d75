// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

// Package access provides the rank and command authorization model for the
// dedicated server.
//
// Three ranks are recognized, strictly ordered: Operator, Admin, Player.
// Operator membership is not stored as Admin membership but always implies
// it for every check. Command authorization is evaluated in a fixed order:
// globally disabled commands deny everyone, operators pass everything else,
// admins are filtered by the restricted and allowed sets, and ordinary
// players only pass commands in the player-allowed set.
package access

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Rank is a player's authorization tier.
type Rank int

// Ranks, lowest to highest.
const (
	RankPlayer Rank = iota
	RankAdmin
	RankOperator
)

// String returns the lowercase rank name.
func (r Rank) String() string {
	switch r {
	case RankOperator:
		return "operator"
	case RankAdmin:
		return "admin"
	default:
		return "player"
	}
}

// patternSet matches command names against a mix of exact names and glob
// patterns (e.g. "debug_*").
type patternSet struct {
	exact    map[string]struct{}
	patterns []glob.Glob
	size     int
}

func compilePatternSet(entries []string) (*patternSet, error) {
	ps := &patternSet{exact: make(map[string]struct{})}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ps.size++
		if !strings.ContainsAny(entry, "*?[") {
			ps.exact[entry] = struct{}{}
			continue
		}
		g, err := glob.Compile(entry)
		if err != nil {
			return nil, oops.Code("ACCESS_BAD_PATTERN").
				With("pattern", entry).
				Wrap(err)
		}
		ps.patterns = append(ps.patterns, g)
	}
	return ps, nil
}

func (ps *patternSet) Match(command string) bool {
	if _, ok := ps.exact[command]; ok {
		return true
	}
	for _, g := range ps.patterns {
		if g.Match(command) {
			return true
		}
	}
	return false
}

func (ps *patternSet) Empty() bool {
	return ps.size == 0
}
