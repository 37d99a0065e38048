// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/actormesh/lib/ref"
	"github.com/bureau-foundation/actormesh/mesh"
	"github.com/bureau-foundation/actormesh/transport"
)

func treeCommand(ctx context.Context, stdout io.Writer) *command {
	var plain bool
	var timeout time.Duration
	return &command{
		name:        "tree",
		summary:     "Show a running vat's actor hierarchy",
		description: "Fetch the actor directory from the vat at ENDPOINT and render the\nsupervision hierarchy from the root down.",
		usage:       "vat tree [flags] ENDPOINT",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tree", pflag.ContinueOnError)
			flagSet.BoolVar(&plain, "plain", false, "render without styling")
			flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one ENDPOINT argument, got %d", len(args))
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			infos, err := transport.FetchActors(ctx, http.DefaultClient, args[0])
			if err != nil {
				return err
			}
			if plain {
				fmt.Fprint(stdout, mesh.FormatTree(infos))
				return nil
			}
			fmt.Fprintln(stdout, renderTree(infos))
			return nil
		},
	}
}

var (
	nameStyle    = lipgloss.NewStyle().Bold(true)
	addressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	trapStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	queueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// renderTree draws the hierarchy with lipgloss. Entries whose boss is
// not in the snapshot become extra roots.
func renderTree(infos []mesh.ActorInfo) string {
	byAddress := make(map[ref.Address]mesh.ActorInfo, len(infos))
	for _, info := range infos {
		byAddress[info.Address] = info
	}
	hierarchy := mesh.HierarchyOf(infos)
	visited := make(map[ref.Address]bool, len(infos))

	var build func(address ref.Address) *tree.Tree
	build = func(address ref.Address) *tree.Tree {
		visited[address] = true
		node := tree.Root(actorLabel(byAddress[address]))
		for _, child := range hierarchy[address] {
			if visited[child] {
				continue
			}
			node.Child(build(child))
		}
		return node
	}

	forest := tree.New().Enumerator(tree.RoundedEnumerator)
	for _, info := range infos {
		_, bossLive := byAddress[info.Boss]
		if info.Boss == info.Address || !bossLive {
			forest.Child(build(info.Address))
		}
	}
	return forest.String()
}

func actorLabel(info mesh.ActorInfo) string {
	label := nameStyle.Render(info.Name) + " " + addressStyle.Render(info.Address.Short())
	if info.Trap {
		label += " " + trapStyle.Render("[trap]")
	}
	if info.Queued > 0 {
		label += " " + queueStyle.Render(fmt.Sprintf("%d/%d queued", info.Queued, info.Capacity))
	}
	return label
}
