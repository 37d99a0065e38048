// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"golang.org/x/term"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	Level slog.Level

	// Format is "json", "text", or "auto". Auto picks text when Output
	// is a terminal.
	Format string

	// File, when set, is opened for append and receives every record as
	// JSON regardless of Format.
	File string

	// Output is the primary destination. Nil means os.Stderr.
	Output io.Writer
}

// NewLogger builds the process logger. The returned closer releases the
// log file and must be called before exit.
func NewLogger(options LoggerOptions) (*slog.Logger, io.Closer, error) {
	output := options.Output
	if output == nil {
		output = os.Stderr
	}
	handlerOptions := &slog.HandlerOptions{Level: options.Level}

	var primary slog.Handler
	switch options.Format {
	case "json":
		primary = slog.NewJSONHandler(output, handlerOptions)
	case "text":
		primary = slog.NewTextHandler(output, handlerOptions)
	case "", "auto":
		if isTerminal(output) {
			primary = slog.NewTextHandler(output, handlerOptions)
		} else {
			primary = slog.NewJSONHandler(output, handlerOptions)
		}
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", options.Format)
	}

	if options.File == "" {
		return slog.New(primary), nopCloser{}, nil
	}
	file, err := os.OpenFile(options.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	handler := slogmulti.Fanout(primary, slog.NewJSONHandler(file, handlerOptions))
	return slog.New(handler), file, nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
