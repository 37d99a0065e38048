// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the vat's configuration file.
//
// Configuration comes from a single file named by either the
// ACTORMESH_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no per-field environment
// override: the file is the whole truth, layered over [Default].
//
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas (tidwall/jsonc); everything else is YAML. Both
// formats share the same field names.
//
// Path fields (state_dir, provenance.journal, log.file,
// key.sealing_identity_file) expand ${VAR} and ${VAR:-default}.
// ${STATE_DIR} refers to the configured state directory. Relative
// paths other than state_dir resolve against it.
package config
