// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package counter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barcoin/sentimo/pkg/coinwire"
	"github.com/barcoin/sentimo/pkg/link"
	"github.com/barcoin/sentimo/pkg/session"
)

// chanDriver delivers frames pushed by the test and times out otherwise,
// so the pipeline sees the same cadence as a quiet serial port.
type chanDriver struct {
	frames  chan []byte
	openErr error
}

func newChanDriver() *chanDriver {
	return &chanDriver{frames: make(chan []byte, 64)}
}

func (d *chanDriver) Open() error { return d.openErr }

func (d *chanDriver) ReadFrame() ([]byte, error) {
	select {
	case frame := <-d.frames:
		return frame, nil
	case <-time.After(time.Millisecond):
		return nil, link.ErrTimeout
	}
}

func (d *chanDriver) Close() error { return nil }

func (d *chanDriver) pushCoin(denom coinwire.Denomination) {
	d.frames <- coinwire.EncodeCoinFrame(denom, time.Now(), 1)
}

type memorySaver struct {
	mu    sync.Mutex
	saved []session.Session
}

func (m *memorySaver) SaveSession(ctx context.Context, sess session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, sess)
	return nil
}

func (m *memorySaver) sessions() []session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]session.Session(nil), m.saved...)
}

func startCounter(t *testing.T, drv link.Driver, saver session.Saver) *Counter {
	t.Helper()
	ctr := New(Config{
		Driver:  drv,
		Saver:   saver,
		Backoff: link.BackoffConfig{Initial: time.Millisecond, Max: time.Millisecond, MaxAttempts: 2},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctr.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("pipeline did not stop")
		}
	})
	return ctr
}

func TestCounterEndToEnd(t *testing.T) {
	drv := newChanDriver()
	saver := &memorySaver{}
	ctr := startCounter(t, drv, saver)
	ctx := context.Background()

	started, err := ctr.Issue(ctx, CmdStart)
	require.NoError(t, err)
	require.NotEmpty(t, started.ID)

	drv.pushCoin(coinwire.OnePiso)
	drv.pushCoin(coinwire.FivePiso)
	drv.pushCoin(coinwire.TwentyFiveSentimo)
	drv.pushCoin(coinwire.OnePiso)

	require.Eventually(t, func() bool {
		return ctr.Snapshot().Metrics.CoinsApplied == 4
	}, 2*time.Second, time.Millisecond)

	final, err := ctr.Issue(ctx, CmdStop)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, final.Status)
	assert.Equal(t, uint64(4), final.Tally.Coins)
	assert.Equal(t, int64(725), final.Tally.Centavos)

	saved := saver.sessions()
	require.Len(t, saved, 1)
	assert.Equal(t, started.ID, saved[0].ID)
}

func TestCounterRejectsMalformedAndForeignFrames(t *testing.T) {
	drv := newChanDriver()
	ctr := startCounter(t, drv, nil)
	ctx := context.Background()

	_, err := ctr.Issue(ctx, CmdStart)
	require.NoError(t, err)

	drv.frames <- []byte(`not json at all`)
	drv.frames <- []byte(`{"type":"coin_detected","denomination":0.33,"timestamp":"2025-06-01T18:30:00","sensor_id":1}`)
	drv.frames <- []byte(`{"type":"jam_detected","timestamp":"2025-06-01T18:30:00","location":"input"}`)
	drv.pushCoin(coinwire.TenPiso)

	require.Eventually(t, func() bool {
		m := ctr.Snapshot().Metrics
		return m.CoinsApplied == 1 && m.SyntaxErrors == 1 && m.SemanticErrors == 1 && m.IgnoredFrames == 1
	}, 2*time.Second, time.Millisecond)

	snap := ctr.Snapshot()
	assert.Equal(t, int64(1000), snap.Session.Tally.Centavos)
}

func TestCounterPauseStopsCounting(t *testing.T) {
	drv := newChanDriver()
	ctr := startCounter(t, drv, nil)
	ctx := context.Background()

	_, err := ctr.Issue(ctx, CmdStart)
	require.NoError(t, err)
	_, err = ctr.Issue(ctx, CmdPause)
	require.NoError(t, err)

	drv.pushCoin(coinwire.TwentyPiso)
	require.Eventually(t, func() bool {
		return ctr.Snapshot().Metrics.DroppedInactive == 1
	}, 2*time.Second, time.Millisecond)
	assert.Zero(t, ctr.Snapshot().Session.Tally.Coins)

	_, err = ctr.Issue(ctx, CmdResume)
	require.NoError(t, err)
	drv.pushCoin(coinwire.TwentyPiso)
	require.Eventually(t, func() bool {
		return ctr.Snapshot().Session.Tally.Coins == 1
	}, 2*time.Second, time.Millisecond)
}

func TestCounterInvalidCommandSurfaces(t *testing.T) {
	ctr := startCounter(t, newChanDriver(), nil)

	_, err := ctr.Issue(context.Background(), CmdPause)
	var invalid *session.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "pause", invalid.Command)
}

func TestCounterSubscribePushesOnChange(t *testing.T) {
	drv := newChanDriver()
	ctr := startCounter(t, drv, nil)

	snaps, cancel := ctr.Subscribe()
	defer cancel()

	_, err := ctr.Issue(context.Background(), CmdStart)
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-snaps:
			if snap.State == session.StateActive {
				return
			}
		case <-deadline:
			t.Fatal("no active snapshot pushed")
		}
	}
}

func TestCounterIssueAfterShutdownReturnsErrStopped(t *testing.T) {
	ctr := New(Config{
		Driver:  newChanDriver(),
		Backoff: link.BackoffConfig{Initial: time.Millisecond, Max: time.Millisecond, MaxAttempts: 2},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctr.Run(ctx) }()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}

	// A background context must not block forever on the dead arbiter.
	_, err := ctr.Issue(context.Background(), CmdStart)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestCounterSurvivesLinkExhaustion(t *testing.T) {
	drv := newChanDriver()
	drv.openErr = assert.AnError
	ctr := startCounter(t, drv, nil)
	ctx := context.Background()

	// A session opened before the link dies must still be stoppable.
	_, err := ctr.Issue(ctx, CmdStart)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := ctr.Snapshot()
		return snap.Connection == link.StateErrored && snap.LinkError != ""
	}, 2*time.Second, time.Millisecond)

	final, err := ctr.Issue(ctx, CmdStop)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, final.Status)
}
