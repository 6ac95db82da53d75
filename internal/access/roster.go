// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package access

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Roster is the on-disk shape of the mutable rank rosters.
type Roster struct {
	Operators []string `yaml:"operators"`
	Admins    []string `yaml:"admins"`
	Banned    []string `yaml:"banned"`
}

func rosterFromSets(operators, admins, banned map[string]struct{}) Roster {
	toSlice := func(set map[string]struct{}) []string {
		out := make([]string, 0, len(set))
		for id := range set {
			out = append(out, id)
		}
		sort.Strings(out)
		return out
	}
	return Roster{
		Operators: toSlice(operators),
		Admins:    toSlice(admins),
		Banned:    toSlice(banned),
	}
}

// LoadRoster reads a roster file. A missing file yields an empty roster.
func LoadRoster(path string) (Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Roster{}, nil
		}
		return Roster{}, oops.Code("ACCESS_ROSTER_READ_FAILED").
			With("path", path).
			Wrap(err)
	}

	var roster Roster
	if err := yaml.Unmarshal(raw, &roster); err != nil {
		return Roster{}, oops.Code("ACCESS_ROSTER_PARSE_FAILED").
			With("path", path).
			Wrap(err)
	}
	return roster, nil
}

// SaveRoster writes a roster file atomically (temp file + rename) so a
// crash mid-write cannot truncate the rosters.
func SaveRoster(path string, roster Roster) error {
	raw, err := yaml.Marshal(roster)
	if err != nil {
		return oops.Code("ACCESS_ROSTER_ENCODE_FAILED").Wrap(err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".roster-*.yaml")
	if err != nil {
		return oops.Code("ACCESS_ROSTER_WRITE_FAILED").
			With("path", path).
			Wrap(err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()        //nolint:errcheck // already failing
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return oops.Code("ACCESS_ROSTER_WRITE_FAILED").
			With("path", path).
			Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return oops.Code("ACCESS_ROSTER_WRITE_FAILED").
			With("path", path).
			Wrap(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return oops.Code("ACCESS_ROSTER_WRITE_FAILED").
			With("path", path).
			Wrap(err)
	}
	return nil
}
