// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/barcoin/sentimo/pkg/coinwire"
)

// State is the aggregator's command state. Closed sessions are history,
// not a state: once a session ends the aggregator is back at NoSession.
type State int

const (
	StateNoSession State = iota
	StateActive
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateNoSession:
		return "no_session"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// InvalidTransitionError reports a command rejected because of the current
// state. The command is a no-op; nothing changed.
type InvalidTransitionError struct {
	Command string
	State   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s while %s", e.Command, e.State)
}

// Metrics counts what the pipeline saw but did not apply, alongside what
// it did. Counters are process-lifetime, not per-session.
type Metrics struct {
	CoinsApplied    uint64    `json:"coins_applied"`
	DroppedInactive uint64    `json:"dropped_inactive"`
	SyntaxErrors    uint64    `json:"syntax_errors"`
	SemanticErrors  uint64    `json:"semantic_errors"`
	IgnoredFrames   uint64    `json:"ignored_frames"`
	LastCoinAt      time.Time `json:"last_coin_at,omitzero"`
}

// Snapshot is a consistent copy of the aggregator's state for consumers.
type Snapshot struct {
	State   State   `json:"state"`
	Session Session `json:"session,omitzero"`
	Metrics Metrics `json:"metrics"`

	// CoinsPerMinute is the open session's processing rate.
	CoinsPerMinute float64 `json:"coins_per_minute"`
}

// Aggregator is the session state machine. All mutation goes through its
// mutex, so Apply and the command methods may be called from the pipeline
// goroutine while Snapshot is called from any number of readers.
type Aggregator struct {
	logger *slog.Logger
	saver  Saver
	now    func() time.Time
	newID  func() string

	mu      sync.Mutex
	state   State
	session Session
	tally   *Tally
	metrics Metrics
}

// NewAggregator creates an aggregator that hands finalized sessions to
// saver. A nil saver is allowed; finalized sessions are then only returned
// to the caller of stop.
func NewAggregator(saver Saver, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		logger: logger,
		saver:  saver,
		now:    time.Now,
		newID:  uuid.NewString,
		state:  StateNoSession,
		tally:  NewTally(),
	}
}

// Start opens a new session with a zeroed tally. Only one session may be
// open at a time.
func (a *Aggregator) Start() (Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateNoSession {
		return Session{}, &InvalidTransitionError{Command: "start", State: a.state}
	}

	a.session = Session{
		ID:        a.newID(),
		StartTime: a.now(),
		Status:    StatusActive,
	}
	a.tally.Reset()
	a.state = StateActive
	a.logger.Info("session started", "session", a.session.ID)
	return a.sessionLocked(), nil
}

// Pause stops applying events without closing the session.
func (a *Aggregator) Pause() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateActive {
		return &InvalidTransitionError{Command: "pause", State: a.state}
	}
	a.state = StatePaused
	a.session.Status = StatusPaused
	a.logger.Info("session paused", "session", a.session.ID)
	return nil
}

// Resume continues a paused session.
func (a *Aggregator) Resume() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StatePaused {
		return &InvalidTransitionError{Command: "resume", State: a.state}
	}
	a.state = StateActive
	a.session.Status = StatusActive
	a.logger.Info("session resumed", "session", a.session.ID)
	return nil
}

// Reset zeroes the tally but keeps the session open under the same id and
// start time. A paused session resumes counting.
func (a *Aggregator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateActive && a.state != StatePaused {
		return &InvalidTransitionError{Command: "reset", State: a.state}
	}
	a.tally.Reset()
	a.state = StateActive
	a.session.Status = StatusActive
	a.logger.Info("session reset", "session", a.session.ID)
	return nil
}

// Stop finalizes the open session and hands it to the persistence
// collaborator. On a save failure the session is still closed in memory
// and returned alongside a *StorageError; the caller owns the retry, and
// future sessions are not blocked.
func (a *Aggregator) Stop(ctx context.Context) (Session, error) {
	return a.close(ctx, "stop", StatusCompleted)
}

// EmergencyStop closes immediately from any state, flagging the session
// Aborted. With no session open it is a no-op.
func (a *Aggregator) EmergencyStop(ctx context.Context) (Session, error) {
	a.mu.Lock()
	if a.state == StateNoSession {
		a.mu.Unlock()
		return Session{}, nil
	}
	a.mu.Unlock()
	a.logger.Warn("emergency stop")
	return a.close(ctx, "emergency_stop", StatusAborted)
}

func (a *Aggregator) close(ctx context.Context, command string, status Status) (Session, error) {
	a.mu.Lock()
	if a.state != StateActive && a.state != StatePaused {
		state := a.state
		a.mu.Unlock()
		return Session{}, &InvalidTransitionError{Command: command, State: state}
	}

	a.session.EndTime = a.now()
	a.session.Status = status
	a.session.Tally = a.tally.Snapshot()
	final := a.session

	a.state = StateNoSession
	a.session = Session{}
	a.tally.Reset()
	saver := a.saver
	a.mu.Unlock()

	a.logger.Info("session closed",
		"session", final.ID,
		"status", final.Status.String(),
		"coins", final.Tally.Coins,
		"value", final.Tally.Pesos())

	if saver == nil {
		return final, nil
	}
	if err := saver.SaveSession(ctx, final); err != nil {
		a.logger.Error("session save failed", "session", final.ID, "error", err)
		return final, &StorageError{SessionID: final.ID, Err: err}
	}
	return final, nil
}

// Apply counts one validated coin event. While paused or with no session
// open, the event is dropped and only the dropped counter moves.
func (a *Aggregator) Apply(ev *coinwire.CoinEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateActive {
		a.metrics.DroppedInactive++
		return
	}
	a.tally.Add(ev.Denomination)
	a.metrics.CoinsApplied++
	a.metrics.LastCoinAt = ev.Timestamp
}

// RecordDecodeError counts a rejected frame by failure class.
func (a *Aggregator) RecordDecodeError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var syntaxErr *coinwire.SyntaxError
	var semanticErr *coinwire.SemanticError
	switch {
	case errors.As(err, &semanticErr):
		a.metrics.SemanticErrors++
	case errors.As(err, &syntaxErr):
		a.metrics.SyntaxErrors++
	default:
		a.metrics.SyntaxErrors++
	}
}

// RecordIgnored counts a well-formed frame of a non-coin type.
func (a *Aggregator) RecordIgnored() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics.IgnoredFrames++
}

// Snapshot copies the current state out. The copy is consistent: tally
// counts and derived totals come from a single critical section, never a
// torn read.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		State:   a.state,
		Metrics: a.metrics,
	}
	if a.state != StateNoSession {
		snap.Session = a.sessionLocked()
		if elapsed := a.now().Sub(a.session.StartTime); elapsed > 0 {
			snap.CoinsPerMinute = float64(snap.Session.Tally.Coins) / elapsed.Minutes()
		}
	}
	return snap
}

// sessionLocked copies the open session with the live tally attached.
// Callers hold a.mu.
func (a *Aggregator) sessionLocked() Session {
	sess := a.session
	sess.Tally = a.tally.Snapshot()
	return sess
}
