// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bureau-foundation/actormesh/lib/ref"
)

// ActorInfo is a point-in-time view of one directory entry.
type ActorInfo struct {
	Address  ref.Address `cbor:"address"`
	Boss     ref.Address `cbor:"boss"`
	Proc     ref.Address `cbor:"proc"`
	Name     string      `cbor:"name"`
	Trap     bool        `cbor:"trap"`
	Task     bool        `cbor:"task"`
	Started  time.Time   `cbor:"started"`
	Queued   int         `cbor:"queued"`
	Capacity int         `cbor:"capacity"`
}

// Snapshot returns every live entry sorted by address.
func (v *Vat) Snapshot() []ActorInfo {
	v.mu.RLock()
	infos := make([]ActorInfo, 0, len(v.directory))
	for _, actor := range v.directory {
		infos = append(infos, ActorInfo{
			Address:  actor.address,
			Boss:     actor.boss.address,
			Proc:     actor.proc,
			Name:     actor.name,
			Trap:     actor.trap,
			Task:     actor.scope != nil,
			Started:  actor.started,
			Queued:   len(actor.mailbox),
			Capacity: cap(actor.mailbox),
		})
	}
	v.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Address.String() < infos[j].Address.String()
	})
	return infos
}

// Hierarchy maps each boss to its live children, derived from the
// directory's boss pointers. The root's self-loop is excluded and
// children are sorted.
func (v *Vat) Hierarchy() map[ref.Address][]ref.Address {
	return HierarchyOf(v.Snapshot())
}

// HierarchyOf derives the boss -> children map from a snapshot.
func HierarchyOf(infos []ActorInfo) map[ref.Address][]ref.Address {
	hierarchy := make(map[ref.Address][]ref.Address)
	for _, info := range infos {
		if info.Boss == info.Address {
			continue
		}
		hierarchy[info.Boss] = append(hierarchy[info.Boss], info.Address)
	}
	for _, children := range hierarchy {
		sort.Slice(children, func(i, j int) bool {
			return children[i].String() < children[j].String()
		})
	}
	return hierarchy
}

// FormatTree renders the live hierarchy from the root down, one actor
// per line.
func (v *Vat) FormatTree() string {
	return FormatTree(v.Snapshot())
}

// FormatTree renders a snapshot as an indented tree. Entries whose boss
// is not in the snapshot are rendered as additional roots.
func FormatTree(infos []ActorInfo) string {
	byAddress := make(map[ref.Address]ActorInfo, len(infos))
	for _, info := range infos {
		byAddress[info.Address] = info
	}
	hierarchy := HierarchyOf(infos)

	var builder strings.Builder
	visited := make(map[ref.Address]bool, len(infos))
	var render func(address ref.Address, prefix string, last, top bool)
	render = func(address ref.Address, prefix string, last, top bool) {
		if visited[address] {
			return
		}
		visited[address] = true

		info := byAddress[address]
		line := fmt.Sprintf("%s %s", info.Name, address.Short())
		if info.Trap {
			line += " [trap]"
		}
		childPrefix := prefix
		switch {
		case top:
			builder.WriteString(line + "\n")
		case last:
			builder.WriteString(prefix + "└── " + line + "\n")
			childPrefix += "    "
		default:
			builder.WriteString(prefix + "├── " + line + "\n")
			childPrefix += "│   "
		}
		children := hierarchy[address]
		for i, child := range children {
			render(child, childPrefix, i == len(children)-1, false)
		}
	}

	for _, info := range infos {
		_, bossLive := byAddress[info.Boss]
		if info.Boss == info.Address || !bossLive {
			render(info.Address, "", true, true)
		}
	}
	return builder.String()
}
