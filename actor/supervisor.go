// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package actor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bureau-foundation/actormesh/lib/clock"
	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/lib/provenance"
	"github.com/bureau-foundation/actormesh/lib/ref"
	"github.com/bureau-foundation/actormesh/mesh"
)

// Message types a supervisor answers or sends itself.
const (
	// ChildrenType asks a supervisor for its current children. The
	// response carries a "children" attribute mapping name to address.
	ChildrenType = "supervisor.children"

	// ChildrenResponseType is the response to ChildrenType.
	ChildrenResponseType = "supervisor.children.response"

	restartType = "supervisor.restart"
)

// RestartPolicy decides whether an exited child is started again.
type RestartPolicy int

const (
	// Permanent children are always restarted.
	Permanent RestartPolicy = iota
	// Transient children are restarted only after a failure.
	Transient
	// Temporary children are never restarted.
	Temporary
)

func (p RestartPolicy) String() string {
	switch p {
	case Permanent:
		return "permanent"
	case Transient:
		return "transient"
	case Temporary:
		return "temporary"
	default:
		return "unknown(" + strconv.Itoa(int(p)) + ")"
	}
}

// Child is one entry of a supervisor's fixed membership.
type Child struct {
	Name            string
	Start           mesh.Func
	Restart         RestartPolicy
	MailboxCapacity int
}

// SupervisorConfig configures a Supervisor. Zero durations and counts
// take the defaults noted on each field.
type SupervisorConfig struct {
	Children []Child

	// InitialBackoff is the delay before a child's first restart
	// (default 100ms). Each consecutive restart doubles it, up to
	// MaxBackoff (default 10s).
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxRestarts is how many restarts across all children are allowed
	// within IntensityWindow (defaults 3 and 5s). One more fails the
	// supervisor with ErrRestartIntensity.
	MaxRestarts     uint32
	IntensityWindow time.Duration

	// Clock drives backoff timers. Nil means the real clock.
	Clock clock.Clock
}

// Supervisor runs a fixed set of named children and restarts them.
type Supervisor struct {
	children       []Child
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxRestarts    uint32
	window         time.Duration
	clock          clock.Clock
}

// NewSupervisor validates config.
func NewSupervisor(config SupervisorConfig) (*Supervisor, error) {
	seen := make(map[string]bool, len(config.Children))
	for _, child := range config.Children {
		if child.Name == "" {
			return nil, errors.New("supervisor child has no name")
		}
		if seen[child.Name] {
			return nil, fmt.Errorf("supervisor child %q is listed twice", child.Name)
		}
		if child.Start == nil {
			return nil, fmt.Errorf("supervisor child %q has no start function", child.Name)
		}
		if child.Restart < Permanent || child.Restart > Temporary {
			return nil, fmt.Errorf("supervisor child %q has restart policy %s", child.Name, child.Restart)
		}
		seen[child.Name] = true
	}
	supervisor := &Supervisor{
		children:       config.Children,
		initialBackoff: config.InitialBackoff,
		maxBackoff:     config.MaxBackoff,
		maxRestarts:    config.MaxRestarts,
		window:         config.IntensityWindow,
		clock:          config.Clock,
	}
	if supervisor.initialBackoff <= 0 {
		supervisor.initialBackoff = 100 * time.Millisecond
	}
	if supervisor.maxBackoff <= 0 {
		supervisor.maxBackoff = 10 * time.Second
	}
	if supervisor.maxBackoff < supervisor.initialBackoff {
		supervisor.maxBackoff = supervisor.initialBackoff
	}
	if supervisor.maxRestarts == 0 {
		supervisor.maxRestarts = 3
	}
	if supervisor.window <= 0 {
		supervisor.window = 5 * time.Second
	}
	if supervisor.clock == nil {
		supervisor.clock = clock.Real()
	}
	return supervisor, nil
}

// Spawn starts the supervisor in vat as a trapping child of the actor
// ctx belongs to, or of the root.
func (s *Supervisor) Spawn(ctx context.Context, vat *mesh.Vat, name string) (ref.Address, error) {
	return vat.Spawn(ctx, s.Run, mesh.SpawnOptions{Name: name, Trap: true})
}

// childState tracks one child across incarnations.
type childState struct {
	child    Child
	address  ref.Address
	started  time.Time
	attempts int
	running  bool
}

// Run is the supervisor's mesh.Func. The actor running it must trap.
func (s *Supervisor) Run(ctx context.Context) error {
	self := mesh.Current(ctx)
	if self == nil {
		return mesh.ErrNoActor
	}
	if !self.Trap() {
		return fmt.Errorf("supervisor %s must be spawned with Trap", self.Address().Short())
	}
	vat := self.Vat()
	logger := vat.Logger().With("supervisor", self.Address().String())

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        self.Address().String(),
		MaxRequests: 1,
		Interval:    s.window,
		Timeout:     s.window,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures > s.maxRestarts
		},
	})

	states := make(map[string]*childState, len(s.children))
	byAddress := make(map[ref.Address]*childState, len(s.children))
	for _, child := range s.children {
		state := &childState{child: child}
		if err := s.start(ctx, state, 0); err != nil {
			return err
		}
		states[child.Name] = state
		byAddress[state.address] = state
	}

	for {
		msg, err := mesh.Receive(ctx)
		if err != nil {
			return err
		}

		if exit, ok := mesh.ParseExit(msg); ok {
			state := byAddress[exit.Child]
			if state == nil || !state.running {
				continue
			}
			state.running = false
			if !s.shouldRestart(state.child.Restart, exit) {
				logger.Info("child exited, not restarting",
					"child", state.child.Name,
					"policy", state.child.Restart.String(),
					"reason", exit.Reason,
				)
				continue
			}

			// Every restart counts against the intensity limit.
			breaker.Execute(func() (any, error) {
				return nil, fmt.Errorf("child %q exited: %s", state.child.Name, exit.Reason)
			})
			if breaker.State() == gobreaker.StateOpen {
				return fmt.Errorf("supervisor %s: child %q: %w", self.Address().Short(), state.child.Name, ErrRestartIntensity)
			}

			if s.clock.Now().Sub(state.started) >= s.maxBackoff {
				state.attempts = 0
			}
			state.attempts++
			delay := s.backoff(state.attempts)
			logger.Warn("child exited, restarting",
				"child", state.child.Name,
				"reason", exit.Reason,
				"attempt", state.attempts,
				"backoff", delay,
			)
			s.scheduleRestart(ctx, self.Address(), state.child.Name, delay)
			continue
		}

		switch msg.Type {
		case restartType:
			state := states[msg.Text("child")]
			if state == nil || state.running {
				continue
			}
			if err := s.start(ctx, state, state.attempts); err != nil {
				return err
			}
		case ChildrenType:
			if err := s.answerChildren(ctx, msg, states); err != nil {
				return err
			}
		default:
			logger.Debug("ignoring message", "type", msg.Type, "id", msg.ID)
		}
	}
}

func (s *Supervisor) shouldRestart(policy RestartPolicy, exit mesh.Exit) bool {
	switch policy {
	case Permanent:
		return true
	case Transient:
		return exit.Failed()
	default:
		return false
	}
}

// backoff returns the delay before restart number attempt (1-based).
func (s *Supervisor) backoff(attempt int) time.Duration {
	delay := s.initialBackoff
	for i := 1; i < attempt && delay < s.maxBackoff; i++ {
		delay *= 2
	}
	return min(delay, s.maxBackoff)
}

// start spawns state's child, at its existing address when restarting.
func (s *Supervisor) start(ctx context.Context, state *childState, restarts int) error {
	address, err := mesh.Spawn(ctx, state.child.Start, mesh.SpawnOptions{
		Name:            state.child.Name,
		Monitor:         true,
		Address:         state.address,
		MailboxCapacity: state.child.MailboxCapacity,
	})
	if err != nil {
		return fmt.Errorf("starting child %q: %w", state.child.Name, err)
	}
	state.address = address
	state.started = s.clock.Now()
	state.running = true

	detail := map[string]string{
		"name":   state.child.Name,
		"policy": state.child.Restart.String(),
	}
	if restarts > 0 {
		detail["restart"] = strconv.Itoa(restarts)
	}
	vat := mesh.Current(ctx).Vat()
	vat.Emit(provenance.Supervises, mesh.Self(ctx), address, detail)
	return nil
}

// scheduleRestart delivers a restart request to the supervisor itself
// after delay, so queries and other exits are handled meanwhile.
func (s *Supervisor) scheduleRestart(ctx context.Context, self ref.Address, name string, delay time.Duration) {
	timer := s.clock.After(delay)
	go func() {
		select {
		case <-timer:
		case <-ctx.Done():
			return
		}
		// Fails only when the supervisor itself is gone.
		_ = mesh.Send(ctx, self, document.New(restartType).With("child", name))
	}()
}

func (s *Supervisor) answerChildren(ctx context.Context, request *document.Message, states map[string]*childState) error {
	children := make(map[string]any, len(states))
	for name, state := range states {
		if state.running {
			children[name] = state.address.String()
		}
	}
	return reply(ctx, request, document.Reply(request, ChildrenResponseType).With("children", children))
}

// ChildrenOf asks the supervisor at address for its running children.
func ChildrenOf(ctx context.Context, vat *mesh.Vat, supervisor ref.Address) (map[string]ref.Address, error) {
	response, err := vat.Call(ctx, supervisor, document.New(ChildrenType))
	if err != nil {
		return nil, err
	}
	raw, ok := response.Attributes["children"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("supervisor %s answered without a children map", supervisor.Short())
	}
	children := make(map[string]ref.Address, len(raw))
	for name, value := range raw {
		text, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("supervisor %s child %q has a %T address", supervisor.Short(), name, value)
		}
		address, err := ref.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("supervisor %s child %q: %w", supervisor.Short(), name, err)
		}
		children[name] = address
	}
	return children, nil
}
