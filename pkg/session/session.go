// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

// Package session turns the stream of validated coin events into running
// counts and finalized session records. The Aggregator is the only writer
// of the tally; consumers read consistent snapshots.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Status is a session's lifecycle status.
type Status int

const (
	StatusActive Status = iota + 1
	StatusPaused
	StatusCompleted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalJSON renders the status by name so dashboard clients never see
// bare enum values.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "active":
		return StatusActive, nil
	case "paused":
		return StatusPaused, nil
	case "completed":
		return StatusCompleted, nil
	case "aborted":
		return StatusAborted, nil
	default:
		return 0, fmt.Errorf("unknown session status %q", s)
	}
}

// Session is one counting session. While open the tally field carries a
// copy of the running tally; once the status is Completed or Aborted the
// record is final and never changes.
type Session struct {
	ID        string        `json:"id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time,omitzero"`
	Status    Status        `json:"status"`
	Tally     TallySnapshot `json:"tally"`
}

// Saver persists finalized sessions. Implementations must be idempotent
// under retry with the same session id.
type Saver interface {
	SaveSession(ctx context.Context, sess Session) error
}

// StorageError wraps a Saver failure surfaced from a stop command. The
// session is already closed in memory when this is returned; the caller
// owns retrying the save.
type StorageError struct {
	SessionID string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("save session %s: %v", e.SessionID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
