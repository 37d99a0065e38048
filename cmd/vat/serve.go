// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"filippo.io/age"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/actormesh/lib/config"
	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/lib/identity"
	"github.com/bureau-foundation/actormesh/lib/process"
	"github.com/bureau-foundation/actormesh/lib/provenance"
	"github.com/bureau-foundation/actormesh/lib/version"
	"github.com/bureau-foundation/actormesh/mesh"
	"github.com/bureau-foundation/actormesh/transport"
)

// listenerFailedType is sent to the root when the join listener stops
// on its own.
const listenerFailedType = "vat.listener_failed"

func serveCommand(ctx context.Context, stdout io.Writer) *command {
	var configPath, listen string
	return &command{
		name:    "serve",
		summary: "Run a vat and accept peers",
		description: "Run a vat: load or create its keypair, start the built-in services,\n" +
			"and accept peers on the join endpoint until interrupted.",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "config file (default: $ACTORMESH_CONFIG, then built-in defaults)")
			flagSet.StringVar(&listen, "listen", "", "override the configured listen address")
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
			if listen != "" {
				cfg.Listen = listen
			}
			if err := cfg.EnsurePaths(); err != nil {
				return err
			}
			level, _ := cfg.LogLevel()
			logger, closer, err := process.NewLogger(process.LoggerOptions{
				Level:  level,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			})
			if err != nil {
				return err
			}
			defer closer.Close()
			return serveVat(ctx, cfg, logger, nil)
		},
	}
}

// serveVat runs a vat configured by cfg until ctx is cancelled. ready,
// when non-nil, is called once the join endpoint is listening.
func serveVat(ctx context.Context, cfg *config.Config, logger *slog.Logger, ready func(endpoint string, vat *mesh.Vat)) error {
	logger.Info("starting vat", version.Attrs()...)

	var sealing *age.X25519Identity
	if cfg.Key.SealingIdentityFile != "" {
		var err error
		sealing, err = identity.ReadSealingIdentity(cfg.Key.SealingIdentityFile)
		if err != nil {
			return err
		}
	}
	id, created, err := identity.LoadOrGenerate(cfg.KeyDir(), sealing)
	if err != nil {
		return fmt.Errorf("loading vat key: %w", err)
	}
	if created {
		logger.Info("generated vat keypair", "key_dir", cfg.KeyDir(), "sealed", sealing != nil)
	}

	var sinks []provenance.Sink
	if cfg.Provenance.Journal != "" {
		journal, err := provenance.OpenJournal(provenance.JournalConfig{
			Path:        cfg.Provenance.Journal,
			Compression: cfg.Compression(),
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		defer journal.Close()
		sinks = append(sinks, journal)
	}
	if cfg.Provenance.Log {
		sinks = append(sinks, provenance.LogSink{Logger: logger, Level: slog.LevelDebug})
	}

	vat, err := mesh.New(mesh.Config{
		Identity:        id,
		MailboxCapacity: cfg.Vat.MailboxCapacity,
		CallTimeout:     cfg.Vat.CallTimeout,
		RootTrap:        cfg.Vat.RootTrap,
		RootName:        "vat",
		Provenance:      provenance.Multi(sinks...),
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	handler, err := transport.NewJoinHandler(transport.JoinConfig{
		Vat:              vat,
		AllowAnonymous:   cfg.Join.Anonymous,
		HandshakeTimeout: cfg.Join.HandshakeTimeout,
		JoinRate:         cfg.Join.Rate,
		JoinBurst:        cfg.Join.Burst,
		MaxFrameSize:     cfg.Join.MaxFrameSize,
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	listener, err := transport.Listen(cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Listen, err)
	}
	defer listener.Close()

	return vat.Run(ctx, func(ctx context.Context) error {
		services, err := spawnServices(ctx, vat)
		if err != nil {
			return err
		}
		go func() {
			err := listener.Serve(ctx, handler)
			if err == nil {
				err = errors.New("listener closed")
			}
			if ctx.Err() == nil {
				vat.Send(ctx, vat.URI(), document.New(listenerFailedType).With("error", err.Error()))
			}
		}()
		logger.Info("vat listening",
			"vat", vat.URI().String(),
			"public_key", identity.EncodePublicKey(id.PublicKey()),
			"endpoint", listener.URL(),
			"services", services.String(),
		)
		if ready != nil {
			ready(listener.URL(), vat)
		}
		return superviseRoot(ctx, logger)
	})
}

// superviseRoot is the root actor's loop: it logs failed top-level
// actors and stops the vat if the listener dies.
func superviseRoot(ctx context.Context, logger *slog.Logger) error {
	for {
		msg, err := mesh.Receive(ctx)
		if err != nil {
			return err
		}
		if msg.Type == listenerFailedType {
			return fmt.Errorf("join listener: %s", msg.Text("error"))
		}
		if exit, ok := mesh.ParseExit(msg); ok && exit.Failed() {
			logger.Error("top-level actor failed",
				"actor", exit.Child.String(),
				"name", exit.Name,
				"reason", exit.Reason,
			)
		}
	}
}
