// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package access

import (
	"log/slog"
	"sync"

	"github.com/samber/oops"
)

// Config carries the static authorization policy: command sets and console
// gates. Rank rosters are loaded separately because they are mutable at
// runtime.
type Config struct {
	// ConsoleForOperators/Admins/Players gate who may open the remote
	// console at all, independent of per-command checks.
	ConsoleForOperators bool
	ConsoleForAdmins    bool
	ConsoleForPlayers   bool

	// AllowedCommands is the admin whitelist. RestrictedCommands denies
	// admins even when a command is allowed. PlayerAllowedCommands is the
	// whitelist for ordinary players. GlobalDisabledCommands denies every
	// rank, operators included. All four accept glob patterns.
	AllowedCommands        []string
	RestrictedCommands     []string
	PlayerAllowedCommands  []string
	GlobalDisabledCommands []string
}

// Manager answers rank and command authorization queries and owns the
// mutable operator/admin/ban rosters.
type Manager struct {
	mu        sync.RWMutex
	operators map[string]struct{}
	admins    map[string]struct{}
	banned    map[string]struct{}

	allowed        *patternSet
	restricted     *patternSet
	playerAllowed  *patternSet
	globalDisabled *patternSet

	consoleForOperators bool
	consoleForAdmins    bool
	consoleForPlayers   bool

	rosterPath string
}

// ManagerOption configures a Manager during construction.
type ManagerOption func(*Manager) error

// WithRosterFile loads the rank rosters from a YAML file and persists every
// roster mutation back to it. A missing file starts with empty rosters.
func WithRosterFile(path string) ManagerOption {
	return func(m *Manager) error {
		roster, err := LoadRoster(path)
		if err != nil {
			return err
		}
		m.rosterPath = path
		m.applyRoster(roster)
		return nil
	}
}

// WithRoster seeds the rank rosters without file persistence.
func WithRoster(roster Roster) ManagerOption {
	return func(m *Manager) error {
		m.applyRoster(roster)
		return nil
	}
}

// NewManager creates a Manager from the static policy config.
// Returns an error if any command pattern fails to compile.
func NewManager(cfg Config, opts ...ManagerOption) (*Manager, error) {
	allowed, err := compilePatternSet(cfg.AllowedCommands)
	if err != nil {
		return nil, err
	}
	restricted, err := compilePatternSet(cfg.RestrictedCommands)
	if err != nil {
		return nil, err
	}
	playerAllowed, err := compilePatternSet(cfg.PlayerAllowedCommands)
	if err != nil {
		return nil, err
	}
	globalDisabled, err := compilePatternSet(cfg.GlobalDisabledCommands)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		operators:           make(map[string]struct{}),
		admins:              make(map[string]struct{}),
		banned:              make(map[string]struct{}),
		allowed:             allowed,
		restricted:          restricted,
		playerAllowed:       playerAllowed,
		globalDisabled:      globalDisabled,
		consoleForOperators: cfg.ConsoleForOperators,
		consoleForAdmins:    cfg.ConsoleForAdmins,
		consoleForPlayers:   cfg.ConsoleForPlayers,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) applyRoster(roster Roster) {
	m.operators = make(map[string]struct{}, len(roster.Operators))
	for _, id := range roster.Operators {
		m.operators[id] = struct{}{}
	}
	m.admins = make(map[string]struct{}, len(roster.Admins))
	for _, id := range roster.Admins {
		m.admins[id] = struct{}{}
	}
	m.banned = make(map[string]struct{}, len(roster.Banned))
	for _, id := range roster.Banned {
		m.banned[id] = struct{}{}
	}
}

// IsOperator reports operator membership.
func (m *Manager) IsOperator(identity string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.operators[identity]
	return ok
}

// IsAdmin reports effective admin membership. Operators are always
// effective admins even when not stored in the admin roster.
func (m *Manager) IsAdmin(identity string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.operators[identity]; ok {
		return true
	}
	_, ok := m.admins[identity]
	return ok
}

// IsBanned reports ban membership.
func (m *Manager) IsBanned(identity string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.banned[identity]
	return ok
}

// RankOf returns the effective rank of an identity.
func (m *Manager) RankOf(identity string) Rank {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.operators[identity]; ok {
		return RankOperator
	}
	if _, ok := m.admins[identity]; ok {
		return RankAdmin
	}
	return RankPlayer
}

// AddOperator grants operator rank.
func (m *Manager) AddOperator(identity string) {
	m.mu.Lock()
	m.operators[identity] = struct{}{}
	m.mu.Unlock()
	m.persist()
}

// RemoveOperator revokes operator rank.
func (m *Manager) RemoveOperator(identity string) {
	m.mu.Lock()
	delete(m.operators, identity)
	m.mu.Unlock()
	m.persist()
}

// AddAdmin grants admin rank.
func (m *Manager) AddAdmin(identity string) {
	m.mu.Lock()
	m.admins[identity] = struct{}{}
	m.mu.Unlock()
	m.persist()
}

// RemoveAdmin revokes admin rank. Fails while the identity is still an
// operator, because operator membership implies admin for every check and
// a silent removal would have no effect.
func (m *Manager) RemoveAdmin(identity string) error {
	m.mu.Lock()
	if _, ok := m.operators[identity]; ok {
		m.mu.Unlock()
		return oops.Code("ACCESS_STILL_OPERATOR").
			With("identity", identity).
			Errorf("cannot remove admin status while %s is an operator", identity)
	}
	delete(m.admins, identity)
	m.mu.Unlock()
	m.persist()
	return nil
}

// Ban adds an identity to the ban roster and atomically demotes it out of
// the operator and admin rosters.
func (m *Manager) Ban(identity string) {
	m.mu.Lock()
	m.banned[identity] = struct{}{}
	delete(m.operators, identity)
	delete(m.admins, identity)
	m.mu.Unlock()
	m.persist()
}

// Unban removes an identity from the ban roster.
func (m *Manager) Unban(identity string) {
	m.mu.Lock()
	delete(m.banned, identity)
	m.mu.Unlock()
	m.persist()
}

// CanUseCommand authorizes one console command for one identity.
//
// Evaluation order: globally disabled commands deny every rank; operators
// pass everything else; admins are denied restricted commands and otherwise
// need the allowed set; players need the player-allowed set.
func (m *Manager) CanUseCommand(identity, command string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.globalDisabled.Match(command) {
		return false
	}
	if _, ok := m.operators[identity]; ok {
		return true
	}
	if _, ok := m.admins[identity]; ok {
		if m.restricted.Match(command) {
			return false
		}
		return m.allowed.Match(command)
	}
	return m.playerAllowed.Match(command)
}

// CanUseConsole authorizes opening the remote console at all. Requires a
// remote (non-local) connection; the local console needs no gate. Ordinary
// players additionally need a non-empty player command whitelist, otherwise
// the console would be an empty shell.
func (m *Manager) CanUseConsole(identity string, isLocalConn bool) bool {
	if isLocalConn {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.operators[identity]; ok && m.consoleForOperators {
		return true
	}
	if m.consoleForAdmins {
		if _, ok := m.operators[identity]; ok {
			return true
		}
		if _, ok := m.admins[identity]; ok {
			return true
		}
	}
	return m.consoleForPlayers && !m.playerAllowed.Empty()
}

// Snapshot returns a copy of the current rank rosters.
func (m *Manager) Snapshot() Roster {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return rosterFromSets(m.operators, m.admins, m.banned)
}

// persist writes the rosters back to disk when a roster file is configured.
// Best effort: a write failure is logged, never raised to the caller, so a
// full disk cannot break an in-memory ban.
func (m *Manager) persist() {
	if m.rosterPath == "" {
		return
	}
	if err := SaveRoster(m.rosterPath, m.Snapshot()); err != nil {
		slog.Error("failed to persist rank roster",
			"path", m.rosterPath,
			"error", err,
		)
	}
}
