package mockbackend

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/programme-lv/contest-client/subm"
	"golang.org/x/exp/rand"
)

// Judge simulates the evaluation of submissions. Every submission goes
// Pending, then Judging once per finished test, then to its verdict.
// The updates of a run are kept so that late listeners get all of them.
type Judge struct {
	logger *slog.Logger
	store  *Store
	delay  time.Duration

	mu   sync.Mutex
	runs map[string]*run

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type run struct {
	events []subm.LiveUpdate
	done   bool
	// closed and replaced whenever events or done change
	changed chan struct{}
}

func NewJudge(store *Store, stageDelay time.Duration, logger *slog.Logger) *Judge {
	if logger == nil {
		logger = slog.Default().With("module", "judge")
	}
	if stageDelay < 0 {
		stageDelay = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Judge{
		logger: logger,
		store:  store,
		delay:  stageDelay,
		runs:   make(map[string]*run),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins judging a stored submission in the background
func (j *Judge) Start(sb Submission) {
	j.mu.Lock()
	j.runs[sb.SubmissionID] = &run{changed: make(chan struct{})}
	j.mu.Unlock()

	j.wg.Add(1)
	go j.simulate(sb)
}

// Close stops all runs and waits for them
func (j *Judge) Close() {
	j.cancel()
	j.wg.Wait()
}

// Listen streams the updates of a submission from the first one.
// The channel is closed after the final update or when ctx is done.
// Submissions judged before the judge started yield one final update.
func (j *Judge) Listen(ctx context.Context, submissionID string) (<-chan subm.LiveUpdate, error) {
	j.mu.Lock()
	r, ok := j.runs[submissionID]
	j.mu.Unlock()

	if !ok {
		sb, found := j.store.Submission(submissionID)
		if !found {
			return nil, srvcerror.ErrNotFound("submission")
		}
		ch := make(chan subm.LiveUpdate, 1)
		ch <- subm.LiveUpdate{
			SubmissionID: sb.SubmissionID,
			CaseID:       sb.CaseID,
			Score:        sb.Score,
			FinalStatus:  sb.Status,
			Testcases:    []subm.TestcaseResult{},
		}
		close(ch)
		return ch, nil
	}

	out := make(chan subm.LiveUpdate)
	go func() {
		defer close(out)
		next := 0
		for {
			j.mu.Lock()
			events := r.events[next:]
			done := r.done
			changed := r.changed
			j.mu.Unlock()

			for _, ev := range events {
				select {
				case out <- ev.Clone():
				case <-ctx.Done():
					return
				}
				next++
			}
			if done {
				return
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (j *Judge) emit(sb Submission, status subm.Status, score float64, tests []subm.TestcaseResult) {
	upd := subm.LiveUpdate{
		SubmissionID: sb.SubmissionID,
		CaseID:       sb.CaseID,
		Score:        score,
		FinalStatus:  status,
		Testcases:    append([]subm.TestcaseResult{}, tests...),
	}
	j.store.SetResult(sb.SubmissionID, status, score)

	j.mu.Lock()
	defer j.mu.Unlock()
	r := j.runs[sb.SubmissionID]
	r.events = append(r.events, upd)
	if upd.IsFinal() {
		r.done = true
	}
	close(r.changed)
	r.changed = make(chan struct{})
}

func (j *Judge) abort(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	r := j.runs[id]
	if r.done {
		return
	}
	r.done = true
	close(r.changed)
	r.changed = make(chan struct{})
}

func (j *Judge) sleep(d time.Duration) bool {
	if d <= 0 {
		return j.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-j.ctx.Done():
		return false
	}
}

// jitter is the stage delay plus up to one more stage delay
func (j *Judge) jitter() time.Duration {
	ms := int(j.delay / time.Millisecond)
	return j.delay + time.Duration(rand.Intn(ms+1))*time.Millisecond
}

func (j *Judge) simulate(sb Submission) {
	defer j.wg.Done()
	log := j.logger.With("submission_id", sb.SubmissionID)

	verdict := verdictOf(sb.Code)
	numTests := j.store.TestCount(sb.CaseID)
	log.Debug("judging", "verdict", verdict, "tests", numTests)

	j.emit(sb, subm.StatusPending, 0, nil)
	if !j.sleep(j.delay) {
		j.abort(sb.SubmissionID)
		return
	}

	if verdict == subm.StatusCompileError || verdict == subm.StatusInternalError {
		j.emit(sb, verdict, 0, nil)
		return
	}

	org, err := newResultOrganizer(numTests)
	if err != nil {
		log.Error("failed to create organizer", "error", err)
		j.emit(sb, subm.StatusInternalError, 0, nil)
		return
	}

	failAt := 0
	if verdict != subm.StatusAccepted {
		failAt = (numTests + 1) / 2
	}

	// tests run concurrently and finish in any order
	results := make(chan subm.TestcaseResult, numTests)
	for n := 1; n <= numTests; n++ {
		j.wg.Add(1)
		go func(n int) {
			defer j.wg.Done()
			if !j.sleep(j.jitter()) {
				return
			}
			results <- testResult(n, n == failAt, verdict)
		}(n)
	}

	var finished []subm.TestcaseResult
	for !org.HasFinished() {
		select {
		case res := <-results:
			ready, err := org.Add(res)
			if err != nil {
				log.Error("failed to add test result", "error", err)
				continue
			}
			for _, r := range ready {
				finished = append(finished, r)
				j.emit(sb, subm.StatusJudging, score(finished, numTests), finished)
			}
		case <-j.ctx.Done():
			j.abort(sb.SubmissionID)
			return
		}
	}

	final := score(finished, numTests)
	j.emit(sb, verdict, final, finished)
	log.Info("judged", "verdict", verdict, "score", final)
}

func testResult(n int, failed bool, verdict subm.Status) subm.TestcaseResult {
	a, b := n*7, n*11
	res := subm.TestcaseResult{
		Number:         n,
		Verdict:        "Passed",
		Input:          fmt.Sprintf("%d %d", a, b),
		ExpectedOutput: fmt.Sprintf("%d", a+b),
		ActualOutput:   fmt.Sprintf("%d", a+b),
		TimeMs:         float64(5 + rand.Intn(50)),
		MemoryKb:       1024 + rand.Intn(4096),
	}
	if failed {
		res.Verdict = string(verdict)
		res.ActualOutput = fmt.Sprintf("%d", a+b+1)
		if verdict == subm.StatusRuntimeError {
			stderr := "panic: index out of range"
			res.Stderr = &stderr
			res.ActualOutput = ""
		}
	}
	return res
}

func score(tests []subm.TestcaseResult, numTests int) float64 {
	if numTests == 0 {
		return 0
	}
	passed := 0
	for _, t := range tests {
		if t.Verdict == "Passed" {
			passed++
		}
	}
	return float64(passed) * 100 / float64(numTests)
}

var verdictMarker = regexp.MustCompile(`(?i)verdict:\s*([A-Za-z ]+)`)

// verdictOf picks the simulated verdict from a "verdict: Wrong Answer" or
// "verdict: WA" marker in the source. Without one the code is accepted.
func verdictOf(code string) subm.Status {
	m := verdictMarker.FindStringSubmatch(code)
	if m == nil {
		return subm.StatusAccepted
	}
	want := strings.TrimSpace(m[1])
	for _, s := range []subm.Status{
		subm.StatusAccepted,
		subm.StatusWrongAnswer,
		subm.StatusTimeLimit,
		subm.StatusMemoryLimit,
		subm.StatusRuntimeError,
		subm.StatusCompileError,
		subm.StatusInternalError,
	} {
		if strings.EqualFold(want, string(s)) || strings.EqualFold(want, s.Short()) {
			return s
		}
	}
	return subm.StatusAccepted
}
