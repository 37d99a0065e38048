// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Vat runs and inspects actor mesh vats.
//
//	vat serve [--config FILE] [--listen ADDR]
//	vat keygen [--config FILE]
//	vat join [--anonymous] [--pin KEY] [--to TARGET --type TYPE --attr K=V] ENDPOINT
//	vat tree [--plain] ENDPOINT
//	vat version
//
// serve loads the vat keypair from the state directory (creating it on
// first run, sealed with age when a sealing identity is configured),
// starts the built-in services under a supervisor, records provenance
// to the journal, and accepts peers on the join endpoint until SIGINT
// or SIGTERM.
package main
