// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/bureau-foundation/actormesh/lib/version"
)

func versionCommand(stdout io.Writer) *command {
	return &command{
		name:    "version",
		summary: "Print version information",
		run: func(args []string) error {
			fmt.Fprintf(stdout, "vat %s\n", version.Full())
			return nil
		},
	}
}
