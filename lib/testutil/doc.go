// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the mesh's tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so that a broken actor fails the test instead of hanging it.
// They are the only place tests use real wall-clock timeouts; the code
// under test runs on lib/clock.
//
// [UniqueID] returns monotonically increasing names for actors and
// messages that must be distinguishable across subtests.
//
// [Logger] returns an slog.Logger that only reports errors, so test
// output stays readable unless something goes wrong.
package testutil
