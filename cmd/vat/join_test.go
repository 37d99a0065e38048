// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/bureau-foundation/actormesh/lib/document"
)

func TestBuildRequest(t *testing.T) {
	request, err := buildRequest("echo", []string{"text=a=b", "empty="})
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if request.Type != "echo" {
		t.Errorf("Type = %q", request.Type)
	}
	if request.Text("text") != "a=b" {
		t.Errorf("text = %q, want everything after the first '='", request.Text("text"))
	}
	if value, ok := request.Attributes["empty"]; !ok || value != "" {
		t.Errorf("empty = %v (%v)", value, ok)
	}

	for _, attribute := range []string{"novalue", "=x"} {
		if _, err := buildRequest("echo", []string{attribute}); err == nil {
			t.Errorf("buildRequest accepted %q", attribute)
		}
	}
	if _, err := buildRequest("", nil); err == nil {
		t.Error("buildRequest accepted an empty type")
	}
}

func TestPrintMessage(t *testing.T) {
	msg := document.New("vat.info.response").
		With("vat", "vat:abc").
		With("tree", "root\n  child\n")
	msg.IsResponseTo = "req-1"

	var out bytes.Buffer
	printMessage(&out, msg)
	want := "vat.info.response (reply to req-1)\n" +
		"  tree:\n" +
		"    root\n" +
		"      child\n" +
		"  vat: vat:abc\n"
	if out.String() != want {
		t.Errorf("printMessage:\ngot:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestResolveTarget(t *testing.T) {
	cfg := testConfig(t)
	running := startServe(t, cfg)
	echo := waitForActor(t, running.vat, "echo")
	ctx := context.Background()

	resolved, err := resolveTarget(ctx, running.endpoint, "echo")
	if err != nil {
		t.Fatalf("resolveTarget(echo): %v", err)
	}
	if resolved != echo {
		t.Errorf("resolveTarget(echo) = %v, want %v", resolved, echo)
	}

	resolved, err = resolveTarget(ctx, running.endpoint, echo.String())
	if err != nil || resolved != echo {
		t.Errorf("resolveTarget(address) = %v, %v", resolved, err)
	}

	if _, err := resolveTarget(ctx, running.endpoint, "nobody"); err == nil || !strings.Contains(err.Error(), "no live actor") {
		t.Errorf("resolveTarget(nobody) = %v", err)
	}
	if _, err := resolveTarget(ctx, running.endpoint, "vat:nope"); err == nil {
		t.Error("resolveTarget accepted a malformed address")
	}
}
