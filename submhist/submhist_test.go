package submhist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/programme-lv/contest-client/contest"
	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/programme-lv/contest-client/subm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

var testCases = []contest.Case{
	{CaseID: "P1", ProblemCode: "A"},
	{CaseID: "P2", ProblemCode: "B"},
}

func newTestReconciler(cache *Cache) *Reconciler {
	return NewReconciler(cache, StaticCases{"C1": testCases},
		WithClock(func() time.Time { return testNow }))
}

func assertUniqueIDs(t *testing.T, entries []subm.HistoryEntry) {
	t.Helper()
	seen := map[string]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.SubmissionID], "duplicate submission %s", e.SubmissionID)
		seen[e.SubmissionID] = true
	}
}

func TestReconcileUpdatesInPlace(t *testing.T) {
	cache := NewCache()
	cache.update("C1", true, func([]subm.HistoryEntry) []subm.HistoryEntry {
		return []subm.HistoryEntry{{
			SubmissionID: "S1", ContestID: "C1", CaseID: "P1", CaseCode: "A",
			Status: subm.StatusPending, Score: 0, LanguageID: 71,
			SubmitTime: testNow.Add(-time.Minute),
		}}
	})
	r := newTestReconciler(cache)

	upd := subm.LiveUpdate{
		SubmissionID: "S1",
		FinalStatus:  subm.StatusAccepted,
		Score:        100,
		Testcases:    []subm.TestcaseResult{{Number: 1, Verdict: "Passed"}},
	}
	r.HandleLiveUpdate(subm.Submitted{SubmissionID: "S1", ContestID: "C1", CaseID: "P1"}, upd)

	got := cache.Get("C1")
	require.Len(t, got, 1)
	assert.Equal(t, subm.HistoryEntry{
		SubmissionID: "S1", ContestID: "C1", CaseID: "P1", CaseCode: "A",
		Status: subm.StatusAccepted, Score: 100, LanguageID: 71,
		SubmitTime: testNow.Add(-time.Minute),
	}, got[0])
}

func TestReconcileSynthesizesEntry(t *testing.T) {
	cache := NewCache()
	r := newTestReconciler(cache)

	submitted := subm.Submitted{SubmissionID: "S2", ContestID: "C1", CaseID: "P1", LanguageID: 62}
	r.HandleLiveUpdate(submitted, subm.LiveUpdate{
		SubmissionID: "S2",
		CaseID:       "P2",
		FinalStatus:  subm.StatusWrongAnswer,
		Score:        40,
	})

	got := cache.Get("C1")
	require.Len(t, got, 1)
	assert.Equal(t, subm.HistoryEntry{
		SubmissionID: "S2", ContestID: "C1", CaseID: "P2", CaseCode: "B",
		Status: subm.StatusWrongAnswer, Score: 40, LanguageID: 62,
		SubmitTime: testNow,
	}, got[0])
}

func TestReconcileFallsBackToSubmittedCase(t *testing.T) {
	got := Reconcile(nil,
		subm.LiveUpdate{SubmissionID: "S3", FinalStatus: subm.StatusJudging},
		subm.Submitted{ContestID: "C1", CaseID: "P1", LanguageID: 54},
		testCases, testNow)
	require.Len(t, got, 1)
	assert.Equal(t, "P1", got[0].CaseID)
	assert.Equal(t, "A", got[0].CaseCode)

	got = Reconcile(nil,
		subm.LiveUpdate{SubmissionID: "S4", CaseID: "P9", FinalStatus: subm.StatusJudging},
		subm.Submitted{ContestID: "C1"},
		testCases, testNow)
	require.Len(t, got, 1)
	assert.Equal(t, "P9", got[0].CaseID)
	assert.Empty(t, got[0].CaseCode)
}

func TestReconcilePrependsNew(t *testing.T) {
	entries := []subm.HistoryEntry{
		{SubmissionID: "S3", Status: subm.StatusAccepted},
		{SubmissionID: "S2", Status: subm.StatusWrongAnswer},
		{SubmissionID: "S1", Status: subm.StatusAccepted},
	}
	got := Reconcile(entries,
		subm.LiveUpdate{SubmissionID: "S4", FinalStatus: subm.StatusJudging},
		subm.Submitted{ContestID: "C1", CaseID: "P1"},
		testCases, testNow)

	require.Len(t, got, 4)
	assert.Equal(t, "S4", got[0].SubmissionID)
	for i, e := range entries {
		assert.Equal(t, e, got[i+1])
	}
	// input untouched
	assert.Len(t, entries, 3)
}

func TestReconcileIsIdempotent(t *testing.T) {
	cache := NewCache()
	r := newTestReconciler(cache)
	submitted := subm.Submitted{SubmissionID: "S1", ContestID: "C1", CaseID: "P1", LanguageID: 71}
	upd := subm.LiveUpdate{SubmissionID: "S1", FinalStatus: subm.StatusJudging, Score: 20}

	r.HandleLiveUpdate(submitted, upd)
	once := cache.Get("C1")
	r.HandleLiveUpdate(submitted, upd)
	assert.Equal(t, once, cache.Get("C1"))
}

func TestReconcileLeavesOtherContests(t *testing.T) {
	cache := NewCache()
	cache.update("C2", true, func([]subm.HistoryEntry) []subm.HistoryEntry {
		return []subm.HistoryEntry{{SubmissionID: "X1", Status: subm.StatusAccepted}}
	})
	r := newTestReconciler(cache)
	r.HandleLiveUpdate(subm.Submitted{ContestID: "C1"}, subm.LiveUpdate{SubmissionID: "S1", FinalStatus: subm.StatusJudging})

	assert.Equal(t, []subm.HistoryEntry{{SubmissionID: "X1", Status: subm.StatusAccepted}}, cache.Get("C2"))
	assert.Len(t, cache.Get("C1"), 1)
}

func TestReconcileIgnoresMissingContest(t *testing.T) {
	cache := NewCache()
	r := newTestReconciler(cache)
	r.HandleLiveUpdate(subm.Submitted{}, subm.LiveUpdate{SubmissionID: "S1"})
	_, ok := cache.Lookup("")
	assert.False(t, ok)
}

func TestCacheGetReturnsCopy(t *testing.T) {
	cache := NewCache()
	assert.Equal(t, []subm.HistoryEntry{}, cache.Get("C1"))
	_, ok := cache.Lookup("C1")
	assert.False(t, ok)

	cache.update("C1", false, func([]subm.HistoryEntry) []subm.HistoryEntry {
		return []subm.HistoryEntry{{SubmissionID: "S1"}}
	})
	got := cache.Get("C1")
	got[0].SubmissionID = "mutated"
	assert.Equal(t, "S1", cache.Get("C1")[0].SubmissionID)
}

func TestCacheWatch(t *testing.T) {
	cache := NewCache()
	ctx, cancel := context.WithCancel(context.Background())
	ch := cache.Watch(ctx)

	r := newTestReconciler(cache)
	r.HandleLiveUpdate(subm.Submitted{ContestID: "C1"}, subm.LiveUpdate{SubmissionID: "S1"})

	select {
	case id := <-ch:
		assert.Equal(t, "C1", id)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, time.Millisecond)
}

func TestMerge(t *testing.T) {
	cached := []subm.HistoryEntry{
		{SubmissionID: "S4", Status: subm.StatusJudging, CaseID: "P1"},
		{SubmissionID: "S3", Status: subm.StatusAccepted, Score: 100},
		{SubmissionID: "S2", Status: subm.StatusJudging},
	}
	fetched := []subm.HistoryEntry{
		{SubmissionID: "S3", Status: subm.StatusJudging, CaseCode: "A"},
		{SubmissionID: "S2", Status: subm.StatusWrongAnswer, Score: 40},
		{SubmissionID: "S2", Status: subm.StatusWrongAnswer, Score: 40},
		{SubmissionID: "S1", Status: subm.StatusAccepted},
	}

	got := Merge(cached, fetched)
	assertUniqueIDs(t, got)
	require.Len(t, got, 4)
	assert.Equal(t, "S4", got[0].SubmissionID)
	assert.Equal(t, subm.HistoryEntry{SubmissionID: "S3", Status: subm.StatusAccepted, Score: 100, CaseCode: "A"}, got[1])
	assert.Equal(t, subm.HistoryEntry{SubmissionID: "S2", Status: subm.StatusWrongAnswer, Score: 40}, got[2])
	assert.Equal(t, "S1", got[3].SubmissionID)
}

type fakeFetcher struct {
	calls   atomic.Int32
	entries []subm.HistoryEntry
	err     error
	release chan struct{}
	gotArgs chan [2]string
}

func (f *fakeFetcher) ListContestSubmissions(ctx context.Context, contestID string, classID string) ([]subm.HistoryEntry, error) {
	f.calls.Add(1)
	if f.gotArgs != nil {
		f.gotArgs <- [2]string{contestID, classID}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]subm.HistoryEntry(nil), f.entries...), nil
}

func TestLoaderFetchesOnce(t *testing.T) {
	fetcher := &fakeFetcher{
		entries: []subm.HistoryEntry{{SubmissionID: "S1", Status: subm.StatusAccepted}},
		gotArgs: make(chan [2]string, 4),
	}
	cache := NewCache()
	l := NewLoader(cache, fetcher)

	got, err := l.Get(context.Background(), "C1", "K1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, [2]string{"C1", "K1"}, <-fetcher.gotArgs)

	got, err = l.Get(context.Background(), "C1", "K1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestLoaderCollapsesConcurrentLoads(t *testing.T) {
	fetcher := &fakeFetcher{
		entries: []subm.HistoryEntry{{SubmissionID: "S1"}},
		release: make(chan struct{}),
	}
	l := NewLoader(NewCache(), fetcher)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Get(context.Background(), "C1", "")
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestLoaderCallerCancelDoesNotFailOthers(t *testing.T) {
	fetcher := &fakeFetcher{
		entries: []subm.HistoryEntry{{SubmissionID: "S1"}},
		release: make(chan struct{}),
	}
	cache := NewCache()
	l := NewLoader(cache, fetcher)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := l.Get(ctxA, "C1", "")
		errA <- err
	}()
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		entries []subm.HistoryEntry
		err     error
	}
	resB := make(chan result, 1)
	go func() {
		entries, err := l.Get(context.Background(), "C1", "")
		resB <- result{entries, err}
	}()
	time.Sleep(10 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(fetcher.release)
	res := <-resB
	require.NoError(t, res.err)
	assert.Len(t, res.entries, 1)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	got, ok := cache.Lookup("C1")
	require.True(t, ok)
	assert.Len(t, got, 1)
}

func TestLoaderFailureLeavesKeyUnpopulated(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("503 service unavailable")}
	cache := NewCache()
	l := NewLoader(cache, fetcher)

	_, err := l.Get(context.Background(), "C1", "")
	require.Error(t, err)
	assert.True(t, srvcerror.HasCode(err, srvcerror.ErrCodeHistoryFetchFailed))
	assert.Equal(t, "Could not load submission history.", err.Error())
	_, ok := cache.Lookup("C1")
	assert.False(t, ok)

	fetcher.err = nil
	fetcher.entries = []subm.HistoryEntry{{SubmissionID: "S1"}}
	got, err := l.Get(context.Background(), "C1", "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestLoadDoesNotClobberReconciliation(t *testing.T) {
	// the fetch was issued before S2 was judged and returns it as pending
	fetcher := &fakeFetcher{
		entries: []subm.HistoryEntry{
			{SubmissionID: "S2", ContestID: "C1", CaseID: "P2", CaseCode: "B", Status: subm.StatusPending},
			{SubmissionID: "S1", ContestID: "C1", Status: subm.StatusAccepted},
		},
		release: make(chan struct{}),
	}
	cache := NewCache()
	l := NewLoader(cache, fetcher)
	r := newTestReconciler(cache)

	done := make(chan error, 1)
	go func() {
		_, err := l.Get(context.Background(), "C1", "")
		done <- err
	}()
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)

	submitted := subm.Submitted{SubmissionID: "S2", ContestID: "C1", CaseID: "P2", LanguageID: 62}
	r.HandleLiveUpdate(submitted, subm.LiveUpdate{SubmissionID: "S2", FinalStatus: subm.StatusAccepted, Score: 100})
	r.HandleLiveUpdate(submitted, subm.LiveUpdate{SubmissionID: "S3", CaseID: "P1", FinalStatus: subm.StatusJudging})

	close(fetcher.release)
	require.NoError(t, <-done)

	got := cache.Get("C1")
	assertUniqueIDs(t, got)
	require.Len(t, got, 3)
	assert.Equal(t, "S3", got[0].SubmissionID)
	assert.Equal(t, "S2", got[1].SubmissionID)
	assert.Equal(t, subm.StatusAccepted, got[1].Status)
	assert.Equal(t, 100.0, got[1].Score)
	assert.Equal(t, "S1", got[2].SubmissionID)

	// loaded now, no refetch
	_, err := l.Get(context.Background(), "C1", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestRefreshMergesFinalStatus(t *testing.T) {
	fetcher := &fakeFetcher{entries: []subm.HistoryEntry{{SubmissionID: "S1", Status: subm.StatusJudging}}}
	cache := NewCache()
	l := NewLoader(cache, fetcher)

	_, err := l.Get(context.Background(), "C1", "")
	require.NoError(t, err)

	fetcher.entries = []subm.HistoryEntry{{SubmissionID: "S1", Status: subm.StatusTimeLimit, Score: 30}}
	got, err := l.Refresh(context.Background(), "C1", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, subm.StatusTimeLimit, got[0].Status)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestUniqueAcrossMixedOperations(t *testing.T) {
	fetcher := &fakeFetcher{}
	for i := 0; i < 5; i++ {
		fetcher.entries = append(fetcher.entries, subm.HistoryEntry{
			SubmissionID: fmt.Sprintf("S%d", i%3),
			Status:       subm.StatusAccepted,
		})
	}
	cache := NewCache()
	l := NewLoader(cache, fetcher)
	r := newTestReconciler(cache)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			upd := subm.LiveUpdate{SubmissionID: fmt.Sprintf("S%d", i%6), FinalStatus: subm.StatusJudging}
			r.HandleLiveUpdate(subm.Submitted{ContestID: "C1"}, upd)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = l.Refresh(context.Background(), "C1", "")
		}()
	}
	wg.Wait()
	assertUniqueIDs(t, cache.Get("C1"))
}

func TestLoaderQuery(t *testing.T) {
	fetcher := &fakeFetcher{
		entries: []subm.HistoryEntry{{SubmissionID: "S1", Status: subm.StatusAccepted}},
		gotArgs: make(chan [2]string, 1),
	}
	q := NewLoader(NewCache(), fetcher).Query()

	got, err := q.Handle(context.Background(), HistoryQuery{ContestID: "C1", ClassID: "K1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, [2]string{"C1", "K1"}, <-fetcher.gotArgs)
}
