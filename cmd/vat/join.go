// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/actormesh/lib/config"
	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/lib/identity"
	"github.com/bureau-foundation/actormesh/lib/ref"
	"github.com/bureau-foundation/actormesh/transport"
)

type joinOptions struct {
	configPath  string
	keyDir      string
	anonymous   bool
	pin         string
	to          string
	messageType string
	attributes  []string
	heartbeat   bool
	timeout     time.Duration
}

func joinCommand(ctx context.Context, stdout io.Writer) *command {
	var options joinOptions
	return &command{
		name:    "join",
		summary: "Join a vat and optionally send one request",
		description: "Join the vat at ENDPOINT as a bridged peer, print the welcome, and\n" +
			"optionally send one request and print the reply. TARGET is an actor\n" +
			"address or the name of a live actor in the remote vat.",
		usage: "vat join [flags] ENDPOINT",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("join", pflag.ContinueOnError)
			flagSet.StringVar(&options.configPath, "config", "", "config file used to locate the key directory")
			flagSet.StringVar(&options.keyDir, "key-dir", "", "key directory (default: <state_dir>/key)")
			flagSet.BoolVar(&options.anonymous, "anonymous", false, "join without an identity")
			flagSet.StringVar(&options.pin, "pin", "", "require the vat's public key to equal this key")
			flagSet.StringVar(&options.to, "to", "", "send a request to TARGET and print the reply")
			flagSet.StringVar(&options.messageType, "type", "echo", "request message type")
			flagSet.StringArrayVar(&options.attributes, "attr", nil, "request attribute as key=value (repeatable)")
			flagSet.BoolVar(&options.heartbeat, "heartbeat", false, "measure one heartbeat round trip")
			flagSet.DurationVar(&options.timeout, "timeout", 10*time.Second, "overall timeout")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one ENDPOINT argument, got %d", len(args))
			}
			return runJoin(ctx, stdout, args[0], options)
		},
	}
}

func runJoin(ctx context.Context, stdout io.Writer, endpoint string, options joinOptions) error {
	ctx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	var sessionOptions transport.SessionOptions
	if options.pin != "" {
		pinned, err := identity.ParsePublicKey(options.pin)
		if err != nil {
			return fmt.Errorf("--pin: %w", err)
		}
		sessionOptions.PinnedVatKey = pinned
	}
	request, err := buildRequest(options.messageType, options.attributes)
	if err != nil {
		return err
	}

	var session *transport.Session
	if options.anonymous {
		session, err = transport.JoinAnonymous(ctx, endpoint, sessionOptions)
	} else {
		id, loadErr := loadJoinIdentity(options)
		if loadErr != nil {
			return loadErr
		}
		session, err = transport.Join(ctx, endpoint, id, sessionOptions)
	}
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Fprintf(stdout, "joined %s\n", session.Vat())
	fmt.Fprintf(stdout, "address: %s\n", session.Address())
	for _, address := range session.Directory() {
		fmt.Fprintf(stdout, "  %s\n", address)
	}

	if options.heartbeat {
		sent := time.Now()
		if _, err := session.Heartbeat(ctx); err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
		fmt.Fprintf(stdout, "heartbeat: %s\n", time.Since(sent).Round(time.Microsecond))
	}

	if options.to == "" {
		return nil
	}
	target, err := resolveTarget(ctx, endpoint, options.to)
	if err != nil {
		return err
	}
	request.ReplyTo = []ref.Address{session.Address()}
	if err := session.Send(ctx, target, request); err != nil {
		return err
	}
	for {
		response, err := session.Receive(ctx)
		if err != nil {
			return fmt.Errorf("waiting for reply from %s: %w", target.Short(), err)
		}
		if response.IsResponseTo != request.ID {
			continue
		}
		printMessage(stdout, response)
		return nil
	}
}

func loadJoinIdentity(options joinOptions) (*identity.Identity, error) {
	cfg, err := config.LoadOrDefault(options.configPath)
	if err != nil {
		return nil, err
	}
	keyDir := options.keyDir
	if keyDir == "" {
		keyDir = cfg.KeyDir()
	}
	var unsealing age.Identity
	if cfg.Key.SealingIdentityFile != "" {
		sealing, err := identity.ReadSealingIdentity(cfg.Key.SealingIdentityFile)
		if err != nil {
			return nil, err
		}
		unsealing = sealing
	}
	id, err := identity.Load(keyDir, unsealing)
	if err != nil {
		return nil, fmt.Errorf("loading join key (run 'vat keygen' first): %w", err)
	}
	return id, nil
}

// buildRequest turns key=value flags into a request message.
func buildRequest(messageType string, attributes []string) (*document.Message, error) {
	request := document.New(messageType)
	for _, attribute := range attributes {
		key, value, ok := strings.Cut(attribute, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--attr %q: want key=value", attribute)
		}
		request.With(key, value)
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}
	return request, nil
}

// resolveTarget accepts an address or the name of a live actor in the
// remote vat.
func resolveTarget(ctx context.Context, endpoint, target string) (ref.Address, error) {
	if strings.HasPrefix(target, "vat:") {
		return ref.Parse(target)
	}
	infos, err := transport.FetchActors(ctx, http.DefaultClient, endpoint)
	if err != nil {
		return ref.Address{}, fmt.Errorf("resolving %q: %w", target, err)
	}
	var matches []ref.Address
	for _, info := range infos {
		if info.Name == target {
			matches = append(matches, info.Address)
		}
	}
	switch len(matches) {
	case 0:
		return ref.Address{}, fmt.Errorf("no live actor named %q", target)
	case 1:
		return matches[0], nil
	default:
		return ref.Address{}, fmt.Errorf("%d live actors are named %q; use an address", len(matches), target)
	}
}

func printMessage(w io.Writer, msg *document.Message) {
	fmt.Fprintf(w, "%s (reply to %s)\n", msg.Type, msg.IsResponseTo)
	keys := make([]string, 0, len(msg.Attributes))
	for key := range msg.Attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := fmt.Sprint(msg.Attributes[key])
		if strings.Contains(value, "\n") {
			fmt.Fprintf(w, "  %s:\n    %s\n", key, strings.ReplaceAll(strings.TrimRight(value, "\n"), "\n", "\n    "))
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", key, value)
	}
}
