// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the mesh's injectable time source.
//
// Anything that stamps or waits on time goes through a [Clock]:
// provenance facts, heartbeat acknowledgements, supervisor restart
// backoff, and client heartbeat tickers. Production wiring passes
// [Real]; tests pass [Fake] and drive time explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	supervisor := actor.NewSupervisor(actor.SupervisorConfig{Clock: c, ...})
//	// ... child crashes, supervisor schedules a restart ...
//	c.WaitForTimers(1)
//	c.Advance(time.Second)
//
// Network deadlines on WebSocket connections are the exception: the
// connection API takes absolute wall-clock times, so they use
// time.Now directly.
package clock
