package submhist

import (
	"log/slog"
	"time"

	"github.com/programme-lv/contest-client/contest"
	"github.com/programme-lv/contest-client/subm"
)

// Reconcile folds a live update into a contest history. An entry with the
// same submission id gets the update's status and score in place; otherwise
// a new entry is synthesized and put in front. entries is not modified.
func Reconcile(
	entries []subm.HistoryEntry,
	upd subm.LiveUpdate,
	submitted subm.Submitted,
	cases []contest.Case,
	now time.Time,
) []subm.HistoryEntry {
	res := cloneEntries(entries)
	for i := range res {
		if res[i].SubmissionID == upd.SubmissionID {
			res[i].Status = upd.FinalStatus
			res[i].Score = upd.Score
			return res
		}
	}

	caseID := upd.CaseID
	if caseID == "" {
		caseID = submitted.CaseID
	}
	var caseCode string
	if c, ok := contest.FindCase(cases, caseID); ok {
		caseCode = c.ProblemCode
	}

	entry := subm.HistoryEntry{
		SubmissionID: upd.SubmissionID,
		ContestID:    submitted.ContestID,
		CaseID:       caseID,
		CaseCode:     caseCode,
		Status:       upd.FinalStatus,
		Score:        upd.Score,
		SubmitTime:   now,
		LanguageID:   submitted.LanguageID,
	}
	return append([]subm.HistoryEntry{entry}, res...)
}

// CaseLookup resolves the known cases of a contest without blocking
type CaseLookup interface {
	Cases(contestID string) []contest.Case
}

type CaseLookupFunc func(contestID string) []contest.Case

func (f CaseLookupFunc) Cases(contestID string) []contest.Case {
	return f(contestID)
}

// StaticCases maps contest ids to their cases
type StaticCases map[string][]contest.Case

func (s StaticCases) Cases(contestID string) []contest.Case {
	return s[contestID]
}

type ReconcilerOption func(*Reconciler)

func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.now = now
	}
}

func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// Reconciler applies live updates to the history cache
type Reconciler struct {
	cache  *Cache
	cases  CaseLookup
	now    func() time.Time
	logger *slog.Logger
}

func NewReconciler(cache *Cache, cases CaseLookup, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		cache: cache,
		cases: cases,
		now:   time.Now,
		logger: slog.Default().With(
			"module",
			"submhist",
		),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) Apply(contestID string, upd subm.LiveUpdate, submitted subm.Submitted, cases []contest.Case) {
	if contestID == "" || upd.SubmissionID == "" {
		return
	}
	now := r.now()
	r.cache.update(contestID, false, func(entries []subm.HistoryEntry) []subm.HistoryEntry {
		return Reconcile(entries, upd, submitted, cases, now)
	})
	r.logger.Debug("reconciled live update",
		"contest_id", contestID,
		"submission_id", upd.SubmissionID,
		"status", upd.FinalStatus)
}

// HandleLiveUpdate reconciles an update of a submission made through the coordinator
func (r *Reconciler) HandleLiveUpdate(submitted subm.Submitted, upd subm.LiveUpdate) {
	var cases []contest.Case
	if r.cases != nil {
		cases = r.cases.Cases(submitted.ContestID)
	}
	r.Apply(submitted.ContestID, upd, submitted, cases)
}
