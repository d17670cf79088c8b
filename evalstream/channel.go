package evalstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/programme-lv/contest-client/subm"
)

// ErrJudgeTimeout is the cause of a channel closed by the judge timeout
var ErrJudgeTimeout = errors.New("no final judging update before timeout")

// ErrMalformed marks an inbound message that is not a LiveUpdate.
// The channel skips such messages and keeps reading.
var ErrMalformed = errors.New("malformed live update")

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is one open live channel of a single submission
type Conn interface {
	// Read blocks until the next update. io.EOF means the server
	// closed the channel normally.
	Read(ctx context.Context) (subm.LiveUpdate, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, submissionID string) (Conn, error)
}

// DialerFunc adapts a function to Dialer
type DialerFunc func(ctx context.Context, submissionID string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, submissionID string) (Conn, error) {
	return f(ctx, submissionID)
}

type Snapshot struct {
	Handle string
	State  State
	Latest *subm.LiveUpdate
	Err    error
}

func (s Snapshot) IsConnected() bool {
	return s.State == StateConnected
}

// Observer is called after every state transition and every accepted
// update, with the channel's current snapshot. upd is nil for plain
// transitions. Observers must not call back into the Channel.
type Observer func(snap Snapshot, upd *subm.LiveUpdate)

type Option func(*Channel)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithJudgeTimeout bounds the time between opening the channel and the
// final update. Zero disables the bound.
func WithJudgeTimeout(d time.Duration) Option {
	return func(c *Channel) {
		c.judgeTimeout = d
	}
}

// Channel tracks the live judging updates of the current submission handle.
// At most one connection is connecting or connected at any time.
type Channel struct {
	dialer       Dialer
	observer     Observer
	logger       *slog.Logger
	judgeTimeout time.Duration

	// serializes handle switches and teardown
	switchMu sync.Mutex
	// serializes observer calls so that they see snapshots in order
	notifyMu sync.Mutex

	mu     sync.Mutex
	epoch  uint64
	snap   Snapshot
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

func NewChannel(dialer Dialer, observer Observer, opts ...Option) *Channel {
	c := &Channel{
		dialer:   dialer,
		observer: observer,
		logger: slog.Default().With(
			"module",
			"evalstream",
		),
		snap: Snapshot{State: StateIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Channel) snapshotLocked() Snapshot {
	snap := c.snap
	if snap.Latest != nil {
		latest := snap.Latest.Clone()
		snap.Latest = &latest
	}
	return snap
}

// SetHandle switches the channel to a new submission. The previous
// connection is closed and its reader has exited before the new one is
// dialed. An empty handle leaves the channel idle.
func (c *Channel) SetHandle(handle string) {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	active := c.snap.State == StateConnecting || c.snap.State == StateConnected
	if handle != "" && handle == c.snap.Handle && active {
		c.mu.Unlock()
		return
	}
	c.epoch++
	epoch := c.epoch
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	c.mu.Lock()
	if handle == "" {
		c.snap = Snapshot{State: StateIdle}
	} else {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		c.snap = Snapshot{Handle: handle, State: StateConnecting}
		c.cancel, c.done = cancel, done
		go c.run(ctx, epoch, handle, done)
	}
	c.mu.Unlock()

	c.notify(nil)
}

// Close tears the channel down. No observer calls happen afterwards.
func (c *Channel) Close() {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.epoch++
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.snap = Snapshot{State: StateClosed}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (c *Channel) run(ctx context.Context, epoch uint64, handle string, done chan struct{}) {
	defer close(done)
	logger := c.logger.With("submission_id", handle)

	if c.judgeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, c.judgeTimeout, ErrJudgeTimeout)
		defer cancel()
	}

	conn, err := c.dialer.Dial(ctx, handle)
	if err != nil {
		c.finish(ctx, epoch, logger, err)
		return
	}
	defer conn.Close()

	if !c.update(epoch, func(s *Snapshot) { s.State = StateConnected }, nil) {
		return
	}
	logger.Debug("live channel connected")

	for {
		upd, err := conn.Read(ctx)
		if errors.Is(err, ErrMalformed) {
			logger.Warn("skipping malformed live update", "error", err)
			continue
		}
		if err != nil {
			c.finish(ctx, epoch, logger, err)
			return
		}
		if upd.SubmissionID != handle {
			logger.Debug("dropping update of another submission", "other", upd.SubmissionID)
			continue
		}
		latest := upd.Clone()
		if !c.update(epoch, func(s *Snapshot) { s.Latest = &latest }, &upd) {
			return
		}
		if upd.IsFinal() {
			logger.Debug("final judging update received", "status", upd.FinalStatus, "score", upd.Score)
			c.finish(ctx, epoch, logger, nil)
			return
		}
	}
}

func (c *Channel) finish(ctx context.Context, epoch uint64, logger *slog.Logger, err error) {
	var chanErr error
	switch {
	case err == nil, errors.Is(err, io.EOF):
	case errors.Is(context.Cause(ctx), ErrJudgeTimeout):
		logger.Warn("judging timed out", "timeout", c.judgeTimeout)
		chanErr = srvcerror.ErrJudgeTimeout().SetDebug(ErrJudgeTimeout)
	case ctx.Err() != nil:
		// local teardown, the epoch check below drops it
	default:
		logger.Warn("live channel failed", "error", err)
		chanErr = srvcerror.ErrChannelFailed().SetDebug(err)
	}
	c.update(epoch, func(s *Snapshot) {
		s.State = StateClosed
		s.Err = chanErr
	}, nil)
}

// update applies fn if epoch is still current and notifies the observer
func (c *Channel) update(epoch uint64, fn func(s *Snapshot), upd *subm.LiveUpdate) bool {
	c.mu.Lock()
	if c.closed || epoch != c.epoch {
		c.mu.Unlock()
		return false
	}
	fn(&c.snap)
	c.mu.Unlock()

	c.notify(upd)
	return true
}

func (c *Channel) notify(upd *subm.LiveUpdate) {
	if c.observer == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.observer(snap, upd)
}
