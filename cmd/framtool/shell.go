// go-fram
// Copyright (c) 2025 The go-fram Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-fram.
//
// go-fram is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-fram is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-fram; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// runShell reads commands until quit, EOF or ctx is cancelled. Command
// errors are printed and the shell keeps running.
func runShell(ctx context.Context, a *app) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("fram@0x%02X> ", a.mem.Addr()),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("help"),
			readline.PcItem("info"),
			readline.PcItem("read"),
			readline.PcItem("write"),
			readline.PcItem("fill"),
			readline.PcItem("dump"),
			readline.PcItem("restore"),
			readline.PcItem("detect"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	a.out = rl.Stdout()
	return shellLoop(ctx, a, rl.Readline, rl.Stderr())
}

// shellLoop drives the command loop with lines from readLine
func shellLoop(ctx context.Context, a *app, readLine func() (string, error), errOut io.Writer) error {
	_, _ = fmt.Fprint(a.out, "Commands:\n"+commandHelp)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := readLine()
		if err != nil {
			// Interrupt clears the line, EOF leaves
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			return nil
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		switch strings.ToLower(args[0]) {
		case "help", "?":
			_, _ = fmt.Fprint(a.out, commandHelp)
		case "quit", "exit", "q":
			return nil
		case "shell":
			_, _ = fmt.Fprintln(errOut, "Already in the shell")
		default:
			if err := a.exec(ctx, args); err != nil {
				_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			}
		}
	}
}
