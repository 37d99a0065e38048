// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package provenance

import (
	"context"
	"log/slog"
)

// LogSink writes each fact as a log record at the given level.
type LogSink struct {
	Logger *slog.Logger
	Level  slog.Level
}

// Record logs fact.
func (s LogSink) Record(fact Fact) {
	attributes := []slog.Attr{
		slog.String("subject", fact.Subject.String()),
		slog.Time("at", fact.Time),
	}
	if !fact.Object.IsZero() {
		attributes = append(attributes, slog.String("object", fact.Object.String()))
	}
	for key, value := range fact.Detail {
		attributes = append(attributes, slog.String(key, value))
	}
	s.Logger.LogAttrs(context.Background(), s.Level, string(fact.Kind), attributes...)
}
