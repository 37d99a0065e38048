// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/bureau-foundation/actormesh/lib/codec"
	"github.com/bureau-foundation/actormesh/lib/identity"
	"github.com/bureau-foundation/actormesh/lib/ref"
	"github.com/bureau-foundation/actormesh/mesh"
)

// SessionState is where a join session is in its lifecycle.
type SessionState int

const (
	// AwaitingHandshake: upgraded, challenge outstanding.
	AwaitingHandshake SessionState = iota
	// Authenticated: the response verified, peer actor not yet running.
	Authenticated
	// Bridging: the peer actor is relaying frames.
	Bridging
	// Closed: the connection is gone. Closed sessions are removed from
	// [JoinHandler.Sessions].
	Closed
)

func (s SessionState) String() string {
	switch s {
	case AwaitingHandshake:
		return "awaiting_handshake"
	case Authenticated:
		return "authenticated"
	case Bridging:
		return "bridging"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Join modes recorded on sessions and peer facts.
const (
	ModeAuthenticated = "authenticated"
	ModeAnonymous     = "anonymous"
)

// SessionInfo describes one live join session.
type SessionInfo struct {
	ID      string
	Mode    string
	Remote  string
	Peer    ref.Address
	State   SessionState
	Started time.Time
}

type session struct {
	info SessionInfo
}

// JoinConfig configures a JoinHandler.
type JoinConfig struct {
	// Vat admits the peers. It must be running before peers connect.
	Vat *mesh.Vat

	// AllowAnonymous enables GET /join. Disabled, the route answers
	// 404 and only key-authenticated joins are possible.
	AllowAnonymous bool

	// HandshakeTimeout bounds the handshake. Zero means
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// JoinRate limits join attempts per second across all clients.
	// Zero disables the limit.
	JoinRate float64

	// JoinBurst is the burst allowed above JoinRate. Zero means 1.
	JoinBurst int

	// MaxFrameSize bounds incoming frames. Zero means
	// DefaultMaxFrameSize.
	MaxFrameSize int64

	// CheckOrigin is passed to the WebSocket upgrader. Nil accepts
	// every origin: joins are authenticated by key, not by origin.
	CheckOrigin func(*http.Request) bool

	Logger *slog.Logger
}

// JoinHandler serves the vat's join endpoints:
//
//	GET /join/{key}     authenticated join; key is the peer's encoded public key
//	GET /join           anonymous join, when enabled
//	GET /debug/actors   CBOR snapshot of the actor directory
type JoinHandler struct {
	vat              *mesh.Vat
	allowAnonymous   bool
	handshakeTimeout time.Duration
	maxFrameSize     int64
	limiter          *rate.Limiter
	upgrader         websocket.Upgrader
	mux              *http.ServeMux
	logger           *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewJoinHandler validates config and builds the handler.
func NewJoinHandler(config JoinConfig) (*JoinHandler, error) {
	if config.Vat == nil {
		return nil, errors.New("join handler requires a vat")
	}
	if config.HandshakeTimeout < 0 {
		return nil, fmt.Errorf("handshake timeout %s is negative", config.HandshakeTimeout)
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.JoinRate < 0 || config.JoinBurst < 0 {
		return nil, fmt.Errorf("join rate %g/s burst %d must not be negative", config.JoinRate, config.JoinBurst)
	}
	if config.MaxFrameSize < 0 {
		return nil, fmt.Errorf("max frame size %d is negative", config.MaxFrameSize)
	}
	if config.MaxFrameSize == 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = func(*http.Request) bool { return true }
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	limit := rate.Inf
	if config.JoinRate > 0 {
		limit = rate.Limit(config.JoinRate)
	}
	burst := config.JoinBurst
	if burst == 0 {
		burst = 1
	}

	handler := &JoinHandler{
		vat:              config.Vat,
		allowAnonymous:   config.AllowAnonymous,
		handshakeTimeout: config.HandshakeTimeout,
		maxFrameSize:     config.MaxFrameSize,
		limiter:          rate.NewLimiter(limit, burst),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: config.HandshakeTimeout,
			CheckOrigin:      config.CheckOrigin,
		},
		mux:      http.NewServeMux(),
		logger:   config.Logger,
		sessions: make(map[string]*session),
	}
	handler.mux.HandleFunc("GET /join/{key}", handler.serveAuthenticated)
	handler.mux.HandleFunc("GET /join", handler.serveAnonymous)
	handler.mux.HandleFunc("GET /debug/actors", handler.serveActors)
	return handler, nil
}

func (h *JoinHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Sessions returns the live sessions ordered by start time.
func (h *JoinHandler) Sessions() []SessionInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	infos := make([]SessionInfo, 0, len(h.sessions))
	for _, s := range h.sessions {
		infos = append(infos, s.info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Started.Before(infos[j].Started)
	})
	return infos
}

func (h *JoinHandler) serveAuthenticated(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		http.Error(w, "too many join attempts", http.StatusTooManyRequests)
		return
	}
	publicKey, err := identity.ParsePublicKey(r.PathValue("key"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.join(w, r, ModeAuthenticated, publicKey)
}

func (h *JoinHandler) serveAnonymous(w http.ResponseWriter, r *http.Request) {
	if !h.allowAnonymous {
		http.NotFound(w, r)
		return
	}
	if !h.limiter.Allow() {
		http.Error(w, "too many join attempts", http.StatusTooManyRequests)
		return
	}
	h.join(w, r, ModeAnonymous, nil)
}

func (h *JoinHandler) serveActors(w http.ResponseWriter, r *http.Request) {
	data, err := codec.Marshal(h.vat.Snapshot())
	if err != nil {
		http.Error(w, fmt.Sprintf("encoding snapshot: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.Write(data)
}

// join upgrades the request, runs the handshake, and on success admits
// the peer as an actor. It returns when the peer actor has finished.
func (h *JoinHandler) join(w http.ResponseWriter, r *http.Request, mode string, publicKey ed25519.PublicKey) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("join upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	frames := newFrameConn(conn, h.maxFrameSize)
	current := h.openSession(mode, r.RemoteAddr)
	defer h.closeSession(current)
	logger := h.logger.With("session", current.info.ID, "mode", mode, "remote", r.RemoteAddr)

	// Socket deadline: wall time, not the vat clock.
	frames.setDeadline(time.Now().Add(h.handshakeTimeout))
	if err := challengePeer(frames, h.vat.Identity(), publicKey); err != nil {
		logger.Warn("join handshake failed", "error", err)
		frames.fail(websocket.ClosePolicyViolation, err.Error())
		return
	}
	frames.setDeadline(time.Time{})

	var address ref.Address
	if publicKey != nil {
		address, err = identity.PeerAddress(h.vat.URI(), publicKey)
		if err != nil {
			frames.fail(websocket.CloseInternalServerErr, "deriving peer address")
			return
		}
	} else {
		address = h.vat.URI().MustChild(ref.KindAnonymous, uuid.NewString())
	}
	h.setSession(current, Authenticated, address)

	finished := make(chan struct{})
	_, err = h.vat.Spawn(r.Context(), h.bridge(frames, current, finished), mesh.SpawnOptions{
		Name:    "peer " + address.Short(),
		Address: address,
	})
	if err != nil {
		logger.Warn("admitting peer failed", "peer", address.String(), "error", err)
		switch {
		case errors.Is(err, mesh.ErrAddressInUse):
			frames.fail(websocket.ClosePolicyViolation, "peer is already connected")
		default:
			frames.fail(websocket.CloseTryAgainLater, "vat is not accepting peers")
		}
		return
	}
	<-finished
}

func (h *JoinHandler) openSession(mode, remote string) *session {
	s := &session{info: SessionInfo{
		ID:      uuid.NewString(),
		Mode:    mode,
		Remote:  remote,
		State:   AwaitingHandshake,
		Started: h.vat.Clock().Now(),
	}}
	h.mu.Lock()
	h.sessions[s.info.ID] = s
	h.mu.Unlock()
	return s
}

func (h *JoinHandler) setSession(s *session, state SessionState, peer ref.Address) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.info.State = state
	s.info.Peer = peer
}

func (h *JoinHandler) closeSession(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.info.State = Closed
	delete(h.sessions, s.info.ID)
}
