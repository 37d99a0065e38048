// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/actormesh/lib/clock"
	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/lib/identity"
	"github.com/bureau-foundation/actormesh/lib/netutil"
	"github.com/bureau-foundation/actormesh/lib/ref"
	"github.com/bureau-foundation/actormesh/mesh"
)

// SessionOptions configures the joining side of a session.
type SessionOptions struct {
	// PinnedVatKey, when set, must equal the vat's public key or the
	// join fails before any response is sent.
	PinnedVatKey ed25519.PublicKey

	// HeartbeatInterval sends a heartbeat this often and closes the
	// session when one goes unanswered for a full interval. Zero
	// disables heartbeats.
	HeartbeatInterval time.Duration

	// HandshakeTimeout bounds dialing plus the handshake. Zero means
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// MaxFrameSize bounds incoming frames. Zero means
	// DefaultMaxFrameSize.
	MaxFrameSize int64

	// ReceiveQueue is how many delivered messages may wait for Receive.
	// The session fails with ErrReceiveQueueFull when one more arrives.
	// Zero means DefaultReceiveQueue.
	ReceiveQueue int

	// Dialer opens the WebSocket. Nil uses websocket.DefaultDialer.
	Dialer *websocket.Dialer

	Clock  clock.Clock
	Logger *slog.Logger
}

// DefaultReceiveQueue is the default SessionOptions.ReceiveQueue.
const DefaultReceiveQueue = 1024

// Session is a joined connection to a remote vat. Messages sent
// through it arrive at actors in that vat; messages addressed to the
// session's bridged address arrive on Receive.
type Session struct {
	frames    *frameConn
	vat       ref.Address
	vatKey    ed25519.PublicKey
	address   ref.Address
	directory []ref.Address
	clock     clock.Clock
	logger    *slog.Logger

	incoming chan *document.Message
	closing  chan struct{}
	done     chan struct{}
	err      error

	closeOnce sync.Once

	mu      sync.Mutex
	pending map[string]chan time.Time
}

// Join dials the vat at endpoint (a ws:// or http:// base URL) and
// joins as id.
func Join(ctx context.Context, endpoint string, id *identity.Identity, options SessionOptions) (*Session, error) {
	if id == nil {
		return nil, errors.New("join requires an identity; use JoinAnonymous to join without one")
	}
	return join(ctx, endpoint, "/join/"+identity.EncodePublicKey(id.PublicKey()), id, options)
}

// JoinAnonymous joins the vat at endpoint without an identity. The vat
// must allow anonymous joins.
func JoinAnonymous(ctx context.Context, endpoint string, options SessionOptions) (*Session, error) {
	return join(ctx, endpoint, "/join", nil, options)
}

func join(ctx context.Context, endpoint, path string, id *identity.Identity, options SessionOptions) (*Session, error) {
	if options.HandshakeTimeout == 0 {
		options.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if options.MaxFrameSize == 0 {
		options.MaxFrameSize = DefaultMaxFrameSize
	}
	if options.ReceiveQueue <= 0 {
		options.ReceiveQueue = DefaultReceiveQueue
	}
	if options.Dialer == nil {
		options.Dialer = websocket.DefaultDialer
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	url, err := websocketURL(endpoint, path)
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := context.WithTimeout(ctx, options.HandshakeTimeout)
	defer cancel()
	conn, response, err := options.Dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		if response != nil {
			defer response.Body.Close()
			return nil, fmt.Errorf("joining %s: HTTP %d: %s", url, response.StatusCode,
				strings.TrimSpace(netutil.ErrorBody(response.Body)))
		}
		return nil, fmt.Errorf("joining %s: %w", url, err)
	}

	frames := newFrameConn(conn, options.MaxFrameSize)
	// The handshake deadline is a socket deadline, so it uses wall
	// time rather than options.Clock.
	frames.setDeadline(time.Now().Add(options.HandshakeTimeout))
	vatURI, vatKey, err := answerChallenge(frames, id, options.PinnedVatKey)
	if err != nil {
		frames.close(websocket.ClosePolicyViolation, "handshake failed")
		return nil, err
	}

	welcome, err := frames.read()
	if err != nil {
		frames.conn.Close()
		return nil, &HandshakeError{Reason: "reading welcome", Err: err}
	}
	switch welcome.Type {
	case FrameWelcome:
	case FrameError:
		frames.conn.Close()
		return nil, &HandshakeError{Reason: "vat refused: " + welcome.Error}
	default:
		frames.conn.Close()
		return nil, &HandshakeError{Reason: fmt.Sprintf("expected %s frame, got %s", FrameWelcome, welcome.Type)}
	}
	if welcome.Address.Vat() != vatURI {
		frames.conn.Close()
		return nil, &HandshakeError{Reason: fmt.Sprintf("welcome address %s is not in vat %s", welcome.Address, vatURI)}
	}
	frames.setDeadline(time.Time{})

	s := &Session{
		frames:    frames,
		vat:       vatURI,
		vatKey:    vatKey,
		address:   welcome.Address,
		directory: welcome.Directory,
		clock:     options.Clock,
		logger:    options.Logger.With("vat", vatURI.Short(), "address", welcome.Address.String()),
		incoming:  make(chan *document.Message, options.ReceiveQueue),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		pending:   make(map[string]chan time.Time),
	}
	go s.readLoop()
	if options.HeartbeatInterval > 0 {
		go s.heartbeatLoop(options.HeartbeatInterval)
	}
	return s, nil
}

func websocketURL(endpoint, path string) (string, error) {
	endpoint = strings.TrimSuffix(endpoint, "/")
	switch {
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = "ws://" + strings.TrimPrefix(endpoint, "http://")
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = "wss://" + strings.TrimPrefix(endpoint, "https://")
	default:
		return "", fmt.Errorf("endpoint %q must be a ws, wss, http, or https URL", endpoint)
	}
	return endpoint + path, nil
}

// Address is this session's address inside the remote vat.
func (s *Session) Address() ref.Address { return s.address }

// Vat is the remote vat's verified identity.
func (s *Session) Vat() ref.Address { return s.vat }

// VatKey is the remote vat's verified public key.
func (s *Session) VatKey() ed25519.PublicKey { return s.vatKey }

// Directory returns the addresses the vat advertised at join time.
func (s *Session) Directory() []ref.Address {
	return append([]ref.Address(nil), s.directory...)
}

// Done is closed when the connection has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns why the session ended, or nil while it is open.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Send delivers msg to the actor at to in the remote vat. Delivery is
// asynchronous: an unknown target is reported by the vat as an error
// frame, which the session logs.
func (s *Session) Send(ctx context.Context, to ref.Address, msg *document.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("sending to %s: %w", to, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.closed(); err != nil {
		return err
	}
	return s.frames.write(Frame{Type: FrameMessage, To: to, Message: msg})
}

// Receive returns the next message addressed to this session. The
// read loop never waits for Receive, so heartbeats are answered while
// messages queue; a queue that fills ends the session.
func (s *Session) Receive(ctx context.Context) (*document.Message, error) {
	select {
	case msg := <-s.incoming:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		select {
		case msg := <-s.incoming:
			return msg, nil
		default:
			return nil, s.closed()
		}
	}
}

// Heartbeat sends one heartbeat and returns the vat's timestamp from
// the matching acknowledgement.
func (s *Session) Heartbeat(ctx context.Context) (time.Time, error) {
	id := uuid.NewString()
	reply := make(chan time.Time, 1)
	s.mu.Lock()
	s.pending[id] = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.closed(); err != nil {
		return time.Time{}, err
	}
	if err := s.frames.write(Frame{Type: FrameHeartbeat, ID: id}); err != nil {
		return time.Time{}, err
	}
	select {
	case stamp := <-reply:
		return stamp, nil
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case <-s.done:
		return time.Time{}, s.closed()
	}
}

// Close ends the session and waits for the read loop to stop.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.frames.close(websocket.CloseNormalClosure, "")
	})
	<-s.done
	return nil
}

// closed returns ErrSessionClosed (with the cause) once the session
// has ended.
func (s *Session) closed() error {
	select {
	case <-s.done:
		if s.err == nil || netutil.IsExpectedCloseError(s.err) {
			return ErrSessionClosed
		}
		return fmt.Errorf("%w: %w", ErrSessionClosed, s.err)
	default:
		return nil
	}
}

func (s *Session) readLoop() {
	err := s.read()
	select {
	case <-s.closing:
		err = nil
	default:
	}
	s.err = err
	close(s.done)
	s.frames.conn.Close()
}

func (s *Session) read() error {
	for {
		frame, err := s.frames.read()
		if err != nil {
			return err
		}
		switch frame.Type {
		case FrameMessage:
			if frame.Message == nil {
				return &MalformedFrameError{Reason: "message frame without a message"}
			}
			select {
			case s.incoming <- frame.Message:
			default:
				return fmt.Errorf("%w: %d messages unread", ErrReceiveQueueFull, cap(s.incoming))
			}
		case FrameHeartbeatAck:
			s.mu.Lock()
			reply := s.pending[frame.ID]
			s.mu.Unlock()
			if reply != nil {
				select {
				case reply <- time.Unix(0, frame.Timestamp):
				default:
				}
			}
		case FrameError:
			s.logger.Warn("vat reported error", "error", frame.Error, "message_id", frame.ID)
		default:
			return &MalformedFrameError{Reason: fmt.Sprintf("unexpected %s frame from vat", frame.Type)}
		}
	}
}

// heartbeatLoop keeps the session alive and closes it when the vat
// stops answering.
func (s *Session) heartbeatLoop(interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-s.done:
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-s.clock.After(interval):
				cancel()
			case <-ctx.Done():
			}
		}()
		_, err := s.Heartbeat(ctx)
		cancel()
		if err != nil {
			if s.Err() == nil {
				s.logger.Warn("heartbeat unanswered, closing session", "error", err)
				s.frames.close(websocket.CloseGoingAway, "heartbeat timeout")
			}
			return
		}
	}
}

// FetchActors retrieves the directory snapshot from a vat's debug
// endpoint. endpoint is the same base URL Join takes.
func FetchActors(ctx context.Context, client *http.Client, endpoint string) ([]mesh.ActorInfo, error) {
	url := strings.TrimSuffix(endpoint, "/") + "/debug/actors"
	url = strings.Replace(url, "ws://", "http://", 1)
	url = strings.Replace(url, "wss://", "https://", 1)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d: %s", url, response.StatusCode,
			strings.TrimSpace(netutil.ErrorBody(response.Body)))
	}
	var infos []mesh.ActorInfo
	if err := netutil.DecodeResponse(response.Body, &infos); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	return infos, nil
}
