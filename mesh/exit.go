// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/lib/ref"
)

// ExitType is the message type of the notice a trapping boss receives
// when a child exits.
const ExitType = "mesh.exit"

// Exit describes a child's exit, decoded from an Exit notice.
type Exit struct {
	Child  ref.Address
	Proc   ref.Address
	Name   string
	Reason string
}

// Failed reports whether the child crashed. Normal exits are only
// reported for children spawned with Monitor.
func (e Exit) Failed() bool { return e.Reason != "" }

func exitMessage(child *Actor, crash *ActorCrashedError) *document.Message {
	notice := document.New(ExitType).
		With("child", child.address).
		With("proc", child.proc).
		With("name", child.name)
	if crash != nil {
		notice.With("reason", crash.Err.Error())
	}
	return notice
}

// ParseExit decodes msg if it is an Exit notice.
func ParseExit(msg *document.Message) (Exit, bool) {
	if msg == nil || msg.Type != ExitType {
		return Exit{}, false
	}
	child, err := msg.Address("child")
	if err != nil {
		return Exit{}, false
	}
	exit := Exit{Child: child, Name: msg.Text("name"), Reason: msg.Text("reason")}
	if proc, err := msg.Address("proc"); err == nil {
		exit.Proc = proc
	}
	return exit, true
}
