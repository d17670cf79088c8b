package submsrvc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/programme-lv/contest-client/cqs"
	"github.com/programme-lv/contest-client/evalstream"
	"github.com/programme-lv/contest-client/logger"
	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/programme-lv/contest-client/subm"
)

// ErrClosed is returned by Submit after Close
var ErrClosed = errors.New("submission coordinator closed")

const genericSubmitMsg = "Failed to submit code."

type Submitter interface {
	Submit(ctx context.Context, req subm.Request) (subm.SubmitResponse, error)
}

// UpdateSink receives every live update accepted for the current submission
type UpdateSink interface {
	HandleLiveUpdate(submitted subm.Submitted, upd subm.LiveUpdate)
}

type RequestValidator interface {
	Struct(s any) error
}

// State is what the submit view renders
type State struct {
	IsSubmitting    bool
	SubmissionError string
	SubmissionID    string
	LatestUpdate    *subm.LiveUpdate
	IsJudging       bool
	JudgingError    error
}

// Coordinator drives one submit flow at a time: it sends the solution,
// follows the judging of the returned submission over a live channel
// and forwards the updates to the sink.
type Coordinator struct {
	submitter Submitter
	channel   *evalstream.Channel
	sink      UpdateSink
	validator RequestValidator
	logger    *slog.Logger
	now       func() time.Time

	chanOpts []evalstream.Option

	// serializes channel handle switches of competing submits
	switchMu sync.Mutex

	mu         sync.Mutex
	gen        uint64
	closed     bool
	submitting bool
	submitErr  error
	submitted  *subm.Submitted
	latest     *subm.LiveUpdate
	chanSnap   evalstream.Snapshot

	publishMu sync.Mutex
	subs      map[chan State]struct{}
	// closed by Close, ends the Watch goroutines
	done chan struct{}
}

func New(submitter Submitter, dialer evalstream.Dialer, opts ...Option) *Coordinator {
	c := &Coordinator{
		submitter: submitter,
		logger: slog.Default().With(
			"module",
			"submsrvc",
		),
		now:  time.Now,
		subs: make(map[chan State]struct{}),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	chanOpts := append([]evalstream.Option{evalstream.WithLogger(c.logger)}, c.chanOpts...)
	c.channel = evalstream.NewChannel(dialer, c.onChannel, chanOpts...)
	return c
}

// Submit sends req and, on success, starts following its judging.
// Any previous submission stops being followed immediately. The returned
// error is the one exposed as SubmissionError.
func (c *Coordinator) Submit(ctx context.Context, req subm.Request) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.gen++
	gen := c.gen
	c.submitting = true
	c.submitErr = nil
	c.submitted = nil
	c.latest = nil
	c.chanSnap = evalstream.Snapshot{}
	c.mu.Unlock()
	c.publish()

	c.setHandle(gen, "")

	log := logger.FromContext(ctx).With("contest_id", req.ContestID, "case_id", req.CaseID)

	if c.validator != nil {
		if err := c.validator.Struct(req); err != nil {
			log.Debug("submission rejected by validation", "error", err)
			return c.fail(gen, srvcerror.ErrInvalidSubmission(err.Error()).SetDebug(err))
		}
	}

	resp, err := c.submitter.Submit(ctx, req)
	if err != nil {
		log.Warn("submit failed", "error", err)
		return c.fail(gen, err)
	}
	if resp.SubmissionID == "" {
		return c.fail(gen, srvcerror.ErrSubmitFailed().SetDebug(errors.New("empty submission id in response")))
	}

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		log.Debug("discarding superseded submit response", "submission_id", resp.SubmissionID)
		return nil
	}
	submitted := subm.NewSubmitted(req, resp, c.now())
	c.submitted = &submitted
	c.mu.Unlock()

	log.Info("submission accepted", "submission_id", resp.SubmissionID)
	c.setHandle(gen, resp.SubmissionID)

	c.mu.Lock()
	if gen == c.gen {
		c.submitting = false
	}
	c.mu.Unlock()
	c.publish()
	return nil
}

// SubmitCmd exposes Submit as a command handler
func (c *Coordinator) SubmitCmd() cqs.CmdHandler[subm.Request] {
	return cqs.CmdFunc[subm.Request](c.Submit)
}

func (c *Coordinator) fail(gen uint64, err error) error {
	var srvcErr *srvcerror.Error
	if !errors.As(err, &srvcErr) {
		err = srvcerror.ErrSubmitFailed().SetDebug(err)
	}

	c.mu.Lock()
	current := gen == c.gen && !c.closed
	if current {
		c.submitting = false
		c.submitErr = err
	}
	c.mu.Unlock()

	if current {
		c.publish()
	}
	return err
}

// setHandle points the channel at handle unless gen was superseded
func (c *Coordinator) setHandle(gen uint64, handle string) {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.mu.Lock()
	current := gen == c.gen && !c.closed
	c.mu.Unlock()
	if !current {
		return
	}
	c.channel.SetHandle(handle)
}

func (c *Coordinator) onChannel(snap evalstream.Snapshot, upd *subm.LiveUpdate) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var handle string
	if c.submitted != nil {
		handle = c.submitted.SubmissionID
	}
	if snap.Handle != handle {
		c.mu.Unlock()
		return
	}
	c.chanSnap = snap

	var forward *subm.Submitted
	if upd != nil && upd.SubmissionID == handle && handle != "" {
		latest := upd.Clone()
		c.latest = &latest
		submitted := *c.submitted
		forward = &submitted
	}
	sink := c.sink
	c.mu.Unlock()

	if forward != nil && sink != nil {
		sink.HandleLiveUpdate(*forward, upd.Clone())
	}
	c.publish()
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Coordinator) stateLocked() State {
	st := State{
		IsSubmitting: c.submitting,
		IsJudging:    !c.submitting && c.submitted != nil && c.chanSnap.IsConnected(),
		JudgingError: c.chanSnap.Err,
	}
	if c.submitErr != nil {
		st.SubmissionError = srvcerror.UserMessage(c.submitErr, genericSubmitMsg)
	}
	if c.submitted != nil {
		st.SubmissionID = c.submitted.SubmissionID
	}
	if c.latest != nil {
		latest := c.latest.Clone()
		st.LatestUpdate = &latest
	}
	return st
}

// Submitted returns the metadata of the followed submission
func (c *Coordinator) Submitted() (subm.Submitted, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitted == nil {
		return subm.Submitted{}, false
	}
	return *c.submitted, true
}

// Watch streams states until ctx is done or the coordinator is closed.
// A receiver that falls behind only sees the latest state.
func (c *Coordinator) Watch(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	c.publishMu.Lock()
	c.mu.Lock()
	closed := c.closed
	st := c.stateLocked()
	c.mu.Unlock()
	if closed {
		c.publishMu.Unlock()
		close(ch)
		return ch
	}
	ch <- st
	c.subs[ch] = struct{}{}
	c.publishMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
		}
		c.publishMu.Lock()
		defer c.publishMu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}()
	return ch
}

func (c *Coordinator) publish() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	st := c.stateLocked()
	c.mu.Unlock()

	for ch := range c.subs {
		select {
		case <-ch: // drop old state
		default:
		}
		ch <- st
	}
}

// Close stops following the current submission. Responses of submits
// still in flight are discarded.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	c.mu.Unlock()
	close(c.done)

	c.channel.Close()

	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
}
