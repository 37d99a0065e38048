// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"os"

	"github.com/bureau-foundation/actormesh/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := process.SignalContext()
	defer stop()
	return root(ctx, os.Stdout, os.Stderr).execute(os.Args[1:])
}

// root builds the command tree. Commands write results to stdout and
// help to stderr.
func root(ctx context.Context, stdout, stderr io.Writer) *command {
	return &command{
		name:    "vat",
		summary: "Run and inspect actor mesh vats",
		description: "vat runs an actor mesh node (a vat) that remote peers can join over\n" +
			"an authenticated WebSocket handshake, and provides client commands to\n" +
			"join and inspect running vats.",
		stderr: stderr,
		subcommands: []*command{
			serveCommand(ctx, stdout),
			keygenCommand(stdout),
			joinCommand(ctx, stdout),
			treeCommand(ctx, stdout),
			versionCommand(stdout),
		},
	}
}
