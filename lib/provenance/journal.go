// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package provenance

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/actormesh/lib/codec"
	"github.com/bureau-foundation/actormesh/lib/ref"
)

// maxRecordSize bounds the decompressed size claimed by a journal
// record. A fact is a few hundred bytes; anything near this is damage.
const maxRecordSize = 1 << 20

// journalRecord is one item in the journal's CBOR sequence. Payload is
// the CBOR encoding of a journalEntry, compressed per Compression.
type journalRecord struct {
	Compression Compression `cbor:"compression"`
	Size        int         `cbor:"size"`
	Payload     []byte      `cbor:"payload"`
}

// journalEntry is the encoded form of a Fact. Time is unix nanoseconds
// so sub-second ordering survives the round trip.
type journalEntry struct {
	Kind    Kind              `cbor:"kind"`
	Subject ref.Address       `cbor:"subject"`
	Object  ref.Address       `cbor:"object,omitempty"`
	Time    int64             `cbor:"time"`
	Detail  map[string]string `cbor:"detail,omitempty"`
}

// JournalConfig configures OpenJournal.
type JournalConfig struct {
	// Path is the journal file. It is created if missing and appended
	// to otherwise.
	Path string

	// Compression applies to each record's payload independently.
	// Records that do not shrink are stored uncompressed.
	Compression Compression

	// Logger receives write failures. Nil discards them.
	Logger *slog.Logger
}

// Journal is a Sink that appends facts to a file.
type Journal struct {
	mu          sync.Mutex
	file        *os.File
	encoder     *codec.Encoder
	compression Compression
	logger      *slog.Logger
	closed      bool
}

// OpenJournal opens (or creates) the journal file for appending.
func OpenJournal(config JournalConfig) (*Journal, error) {
	if config.Path == "" {
		return nil, errors.New("journal path is required")
	}
	if config.Compression > CompressionZstd {
		return nil, fmt.Errorf("unsupported journal compression %s", config.Compression)
	}
	file, err := os.OpenFile(config.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening provenance journal: %w", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Journal{
		file:        file,
		encoder:     codec.NewEncoder(file),
		compression: config.Compression,
		logger:      logger,
	}, nil
}

// Record appends fact. Failures are logged and the fact is dropped.
func (j *Journal) Record(fact Fact) {
	if err := j.append(fact); err != nil {
		j.logger.Error("provenance journal write failed",
			"kind", string(fact.Kind),
			"subject", fact.Subject.String(),
			"error", err,
		)
	}
}

func (j *Journal) append(fact Fact) error {
	payload, err := codec.Marshal(journalEntry{
		Kind:    fact.Kind,
		Subject: fact.Subject,
		Object:  fact.Object,
		Time:    fact.Time.UnixNano(),
		Detail:  fact.Detail,
	})
	if err != nil {
		return fmt.Errorf("encoding fact: %w", err)
	}

	record := journalRecord{Compression: j.compression, Size: len(payload)}
	record.Payload, err = compress(payload, j.compression)
	if errors.Is(err, errIncompressible) {
		record.Compression = CompressionNone
		record.Payload = payload
	} else if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return os.ErrClosed
	}
	return j.encoder.Encode(record)
}

// Close flushes and closes the journal file. Facts recorded after
// Close are logged as failures.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.file.Sync(); err != nil {
		j.file.Close()
		return fmt.Errorf("syncing provenance journal: %w", err)
	}
	return j.file.Close()
}

// ReadJournal decodes every fact in a journal stream, in append order.
// A truncated final record (a crash mid-write) ends the read without
// error; any other damage is reported.
func ReadJournal(r io.Reader) ([]Fact, error) {
	decoder := codec.NewDecoder(r)
	var facts []Fact
	for index := 0; ; index++ {
		var record journalRecord
		err := decoder.Decode(&record)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return facts, nil
		}
		if err != nil {
			return facts, fmt.Errorf("journal record %d: %w", index, err)
		}
		if record.Size < 0 || record.Size > maxRecordSize {
			return facts, fmt.Errorf("journal record %d: size %d out of range", index, record.Size)
		}
		payload, err := decompress(record.Payload, record.Compression, record.Size)
		if err != nil {
			return facts, fmt.Errorf("journal record %d: %w", index, err)
		}
		var entry journalEntry
		if err := codec.Unmarshal(payload, &entry); err != nil {
			return facts, fmt.Errorf("journal record %d: decoding fact: %w", index, err)
		}
		facts = append(facts, Fact{
			Kind:    entry.Kind,
			Subject: entry.Subject,
			Object:  entry.Object,
			Time:    time.Unix(0, entry.Time),
			Detail:  entry.Detail,
		})
	}
}

// ReadJournalFile reads the journal at path.
func ReadJournalFile(path string) ([]Fact, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening provenance journal: %w", err)
	}
	defer file.Close()
	return ReadJournal(file)
}
