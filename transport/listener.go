// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Listener accepts join connections on a TCP address.
type Listener struct {
	listener net.Listener
	server   *http.Server
}

// Listen opens a TCP listener on address (e.g. ":7891" or
// "127.0.0.1:0" for a random port).
func Listen(address string) (*Listener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &Listener{
		listener: listener,
		// Upgraded connections clear these deadlines; they only bound
		// plain HTTP requests such as /debug/actors.
		server: &http.Server{
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      time.Minute,
		},
	}, nil
}

// Serve dispatches connections to handler until ctx is cancelled or
// Close is called.
func (l *Listener) Serve(ctx context.Context, handler http.Handler) error {
	l.server.Handler = handler
	stop := context.AfterFunc(ctx, func() { l.server.Close() })
	defer stop()

	err := l.server.Serve(l.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Address returns the bound address in "host:port" form.
func (l *Listener) Address() string {
	return l.listener.Addr().String()
}

// URL returns the ws:// base URL peers pass to Join.
func (l *Listener) URL() string {
	return "ws://" + l.Address()
}

// Close stops accepting connections and closes active ones.
func (l *Listener) Close() error {
	err := l.server.Close()
	if closeErr := l.listener.Close(); err == nil && !errors.Is(closeErr, net.ErrClosed) {
		err = closeErr
	}
	return err
}
