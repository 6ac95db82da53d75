// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package server

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/driftsea/driftsea/internal/player"
	"github.com/driftsea/driftsea/internal/protocol"
)

// console intercepts remote console lines. Lines pass the permission
// manager, then either execute on the server (roster management and
// configured server-authority commands) or are relayed back to the invoking
// client as exec_console, so the command runs with that player's local
// context.
type console struct {
	s               *Server
	serverAuthority []glob.Glob
}

func newConsole(s *Server) (*console, error) {
	patterns := make([]glob.Glob, 0, len(s.cfg.Commands.ServerAuthority))
	for _, raw := range s.cfg.Commands.ServerAuthority {
		g, err := glob.Compile(raw)
		if err != nil {
			return nil, oops.Code("CONSOLE_BAD_PATTERN").
				With("pattern", raw).
				Wrap(err)
		}
		patterns = append(patterns, g)
	}
	return &console{s: s, serverAuthority: patterns}, nil
}

func (c *console) isServerAuthority(command string) bool {
	for _, g := range c.serverAuthority {
		if g.Match(command) {
			return true
		}
	}
	return false
}

// reply surfaces a status line on the invoker's own console.
func (c *console) reply(p *player.Player, text string) {
	c.s.mux.SendToClient(p.Conn, protocol.CmdExecConsole, "echo "+text)
}

// submit processes one remote console line. Permission denials are not
// handler errors; they are answered on the invoker's console (or silently
// dropped when the invoker may not open the console at all).
func (c *console) submit(p *player.Player, line string) error {
	if !p.IsAuthenticated {
		slog.Warn("dropping console line from unauthenticated connection",
			"conn_id", p.ClientID,
		)
		return nil
	}

	identity := p.EffectiveIdentity()
	if !c.s.access.CanUseConsole(identity, p.Conn.IsLocal()) {
		slog.Info("dropping console line: console access denied",
			"conn_id", p.ClientID,
			"identity", identity,
		)
		return nil
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	fields := strings.Fields(line)
	command, args := fields[0], fields[1:]

	if !c.s.access.CanUseCommand(identity, command) {
		c.reply(p, fmt.Sprintf("Unknown or disallowed command: %s", command))
		return nil
	}

	if c.s.cfg.Console.LogActions {
		slog.Info("console action",
			"identity", identity,
			"session_id", p.SessionID.String(),
			"command", command,
			"args", strings.Join(args, " "),
		)
	}

	if c.isServerAuthority(command) {
		c.execute(p, command, args)
		return nil
	}

	// Relay back to the same connection so the command executes with the
	// invoking player's local context.
	c.s.mux.SendToClient(p.Conn, protocol.CmdExecConsole, line)
	return nil
}

// execute runs a server-authority command. Rank roster commands are handled
// here; everything else goes to the host's world executor.
func (c *console) execute(p *player.Player, command string, args []string) {
	switch command {
	case "op", "deop", "admin", "deadmin", "ban", "unban", "kick":
		c.executeRoster(p, command, args)
	default:
		if c.s.world == nil {
			slog.Warn("no world executor installed; dropping server-authority command",
				"command", command,
			)
			c.reply(p, fmt.Sprintf("Command %s is unavailable on this server.", command))
			return
		}
		if err := c.s.world.Execute(p.EffectiveIdentity(), command, args); err != nil {
			slog.Error("server-authority command failed",
				"command", command,
				"identity", p.EffectiveIdentity(),
				"error", err,
			)
			c.reply(p, fmt.Sprintf("Command %s failed: %v", command, err))
		}
	}
}

func (c *console) executeRoster(p *player.Player, command string, args []string) {
	if len(args) < 1 {
		c.reply(p, fmt.Sprintf("Usage: %s <identity>", command))
		return
	}
	target := args[0]

	switch command {
	case "op":
		c.s.access.AddOperator(target)
		c.reply(p, fmt.Sprintf("%s is now an operator.", target))
	case "deop":
		c.s.access.RemoveOperator(target)
		c.reply(p, fmt.Sprintf("%s is no longer an operator.", target))
	case "admin":
		c.s.access.AddAdmin(target)
		c.reply(p, fmt.Sprintf("%s is now an admin.", target))
	case "deadmin":
		if err := c.s.access.RemoveAdmin(target); err != nil {
			c.reply(p, fmt.Sprintf("Cannot remove admin: %s is still an operator.", target))
			return
		}
		c.reply(p, fmt.Sprintf("%s is no longer an admin.", target))
	case "ban":
		c.s.access.Ban(target)
		if online, ok := c.s.players.FindByIdentity(target); ok {
			c.s.disconnect(online.Conn, "You have been banned from this server.")
		}
		c.reply(p, fmt.Sprintf("%s is banned.", target))
	case "unban":
		c.s.access.Unban(target)
		c.reply(p, fmt.Sprintf("%s is unbanned.", target))
	case "kick":
		online, ok := c.s.players.FindByIdentity(target)
		if !ok {
			c.reply(p, fmt.Sprintf("%s is not online.", target))
			return
		}
		c.s.disconnect(online.Conn, "You have been kicked from this server.")
		c.reply(p, fmt.Sprintf("%s was kicked.", target))
	}
}
