// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/actormesh/lib/codec"
	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/lib/ref"
)

// FrameType identifies a protocol frame.
type FrameType string

const (
	// FrameHandshake: vat -> peer. Challenge, Signature, Identity,
	// PublicKey.
	FrameHandshake FrameType = "handshake"

	// FrameResponse: peer -> vat. Challenge and Signature.
	FrameResponse FrameType = "response"

	// FrameWelcome: vat -> peer. Address is the peer's bridged address;
	// Directory summarizes the vat's live actors.
	FrameWelcome FrameType = "welcome"

	// FrameMessage: either direction. To and Message.
	FrameMessage FrameType = "message"

	// FrameHeartbeat: peer -> vat. ID is optional and echoed.
	FrameHeartbeat FrameType = "heartbeat"

	// FrameHeartbeatAck: vat -> peer. ID from the heartbeat and
	// Timestamp in Unix nanoseconds.
	FrameHeartbeatAck FrameType = "heartbeat_ack"

	// FrameError: either direction. Error describes the problem.
	FrameError FrameType = "error"
)

// Frame is the unit of the join protocol. Which fields are set depends
// on Type.
type Frame struct {
	Type      FrameType         `cbor:"type"`
	Challenge []byte            `cbor:"challenge,omitempty"`
	Signature []byte            `cbor:"signature,omitempty"`
	Identity  ref.Address       `cbor:"identity,omitempty"`
	PublicKey []byte            `cbor:"public_key,omitempty"`
	Address   ref.Address       `cbor:"address,omitempty"`
	Directory []ref.Address     `cbor:"directory,omitempty"`
	To        ref.Address       `cbor:"to,omitempty"`
	Message   *document.Message `cbor:"message,omitempty"`
	ID        string            `cbor:"id,omitempty"`
	Timestamp int64             `cbor:"timestamp,omitempty"`
	Error     string            `cbor:"error,omitempty"`
}

// DefaultMaxFrameSize bounds a single incoming frame.
const DefaultMaxFrameSize = 1 << 20

// writeTimeout bounds each frame write so a stalled peer cannot wedge
// the bridge.
const writeTimeout = 10 * time.Second

// frameConn serializes frames onto a WebSocket. Writes may come from
// several goroutines; reads must come from one.
type frameConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newFrameConn(conn *websocket.Conn, maxFrameSize int64) *frameConn {
	conn.SetReadLimit(maxFrameSize)
	return &frameConn{conn: conn}
}

func (c *frameConn) write(frame Frame) error {
	data, err := codec.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", frame.Type, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	// Socket deadlines are enforced by the kernel against wall time,
	// not lib/clock.
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("writing %s frame: %w", frame.Type, err)
	}
	return nil
}

// read returns the next frame. Connection failures are returned as is;
// undecodable input is a *MalformedFrameError.
func (c *frameConn) read() (Frame, error) {
	kind, data, err := c.conn.ReadMessage()
	if err != nil {
		if err == websocket.ErrReadLimit {
			return Frame{}, &MalformedFrameError{Reason: "frame exceeds size limit", Err: err}
		}
		return Frame{}, err
	}
	if kind != websocket.BinaryMessage {
		return Frame{}, &MalformedFrameError{Reason: "text message where a binary frame was expected"}
	}
	var frame Frame
	if err := codec.Unmarshal(data, &frame); err != nil {
		return Frame{}, &MalformedFrameError{Reason: "undecodable frame", Err: err}
	}
	if frame.Type == "" {
		return Frame{}, &MalformedFrameError{Reason: "frame has no type"}
	}
	return frame, nil
}

// fail sends an error frame and closes the connection with code.
func (c *frameConn) fail(code int, reason string) {
	c.write(Frame{Type: FrameError, Error: reason})
	c.close(code, reason)
}

// close sends a close message (best effort) and closes the socket.
func (c *frameConn) close(code int, reason string) error {
	// Close reasons are limited to 123 bytes by the protocol.
	if len(reason) > 123 {
		reason = reason[:123]
	}
	c.writeMu.Lock()
	// Wall time: a socket deadline.
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *frameConn) setDeadline(deadline time.Time) {
	c.conn.SetReadDeadline(deadline)
	c.conn.SetWriteDeadline(deadline)
}
