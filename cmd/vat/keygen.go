// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/actormesh/lib/config"
	"github.com/bureau-foundation/actormesh/lib/identity"
)

func keygenCommand(stdout io.Writer) *command {
	var configPath, keyDir string
	return &command{
		name:    "keygen",
		summary: "Create or show the vat keypair",
		description: "Create the vat keypair in the state directory if it does not exist,\n" +
			"then print its identity URI and public key. The same keypair\n" +
			"identifies this vat when serving and this operator when joining.",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "config file (default: $ACTORMESH_CONFIG, then built-in defaults)")
			flagSet.StringVar(&keyDir, "key-dir", "", "key directory (default: <state_dir>/key)")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			cfg, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			if keyDir == "" {
				keyDir = cfg.KeyDir()
			}
			var sealing *age.X25519Identity
			if cfg.Key.SealingIdentityFile != "" {
				sealing, err = identity.ReadSealingIdentity(cfg.Key.SealingIdentityFile)
				if err != nil {
					return err
				}
			}
			return keygen(stdout, keyDir, sealing)
		},
	}
}

func keygen(stdout io.Writer, keyDir string, sealing *age.X25519Identity) error {
	id, created, err := identity.LoadOrGenerate(keyDir, sealing)
	if err != nil {
		return err
	}
	state := "existing"
	if created {
		state = "generated"
	}
	fmt.Fprintf(stdout, "%s keypair in %s\n", state, keyDir)
	fmt.Fprintf(stdout, "identity:   %s\n", id.URI())
	fmt.Fprintf(stdout, "public key: %s\n", identity.EncodePublicKey(id.PublicKey()))
	return nil
}
