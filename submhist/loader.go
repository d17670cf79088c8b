package submhist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/programme-lv/contest-client/cqs"
	"github.com/programme-lv/contest-client/logger"
	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/programme-lv/contest-client/subm"
	"golang.org/x/sync/singleflight"
)

// Fetcher lists the viewer's submissions of a contest, optionally scoped to a class
type Fetcher interface {
	ListContestSubmissions(ctx context.Context, contestID string, classID string) ([]subm.HistoryEntry, error)
}

// Loader seeds the cache with the backend history on first use of a contest id
type Loader struct {
	cache   *Cache
	fetcher Fetcher
	sfGroup singleflight.Group
}

func NewLoader(cache *Cache, fetcher Fetcher) *Loader {
	return &Loader{cache: cache, fetcher: fetcher}
}

// Get returns the contest history, fetching it once if the cache has not
// been loaded for this contest. Concurrent first loads share one fetch.
func (l *Loader) Get(ctx context.Context, contestID string, classID string) ([]subm.HistoryEntry, error) {
	if l.cache.isLoaded(contestID) {
		return l.cache.Get(contestID), nil
	}

	err := l.shared(ctx, contestID, func(fetchCtx context.Context) error {
		// another caller may have loaded it while we were waiting
		if l.cache.isLoaded(contestID) {
			return nil
		}
		return l.fetch(fetchCtx, contestID, classID)
	})
	if err != nil {
		return nil, err
	}
	return l.cache.Get(contestID), nil
}

// shared runs fn once per key for all concurrent callers. The fetch does
// not inherit the cancellation of whichever caller started it; each caller
// stops waiting only when its own ctx ends.
func (l *Loader) shared(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	fetchCtx := context.WithoutCancel(ctx)
	ch := l.sfGroup.DoChan(key, func() (interface{}, error) {
		return nil, fn(fetchCtx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HistoryQuery selects the history of a contest, optionally within a class
type HistoryQuery struct {
	ContestID string
	ClassID   string
}

// Query exposes Get as a query handler
func (l *Loader) Query() cqs.QueryHandler[HistoryQuery, []subm.HistoryEntry] {
	return cqs.QueryFunc[HistoryQuery, []subm.HistoryEntry](func(ctx context.Context, q HistoryQuery) ([]subm.HistoryEntry, error) {
		return l.Get(ctx, q.ContestID, q.ClassID)
	})
}

// Refresh re-fetches the contest history and merges it into the cache
func (l *Loader) Refresh(ctx context.Context, contestID string, classID string) ([]subm.HistoryEntry, error) {
	err := l.shared(ctx, "refresh:"+contestID, func(fetchCtx context.Context) error {
		return l.fetch(fetchCtx, contestID, classID)
	})
	if err != nil {
		return nil, err
	}
	return l.cache.Get(contestID), nil
}

func (l *Loader) fetch(ctx context.Context, contestID string, classID string) error {
	log := logger.FromContext(ctx).With("contest_id", contestID)

	fetched, err := l.fetcher.ListContestSubmissions(ctx, contestID, classID)
	if err != nil {
		log.Warn("failed to load submission history", "error", err)
		return srvcerror.ErrHistoryFetchFailed().SetDebug(
			fmt.Errorf("list submissions of contest %s: %w", contestID, err))
	}

	l.cache.update(contestID, true, func(cached []subm.HistoryEntry) []subm.HistoryEntry {
		return Merge(cached, fetched)
	})
	log.Debug("loaded submission history", slog.Int("count", len(fetched)))
	return nil
}

// Merge combines cached entries with a fetched history. The fetched list is
// deduplicated by submission id and keeps its order. Entries known only to
// the cache stay in front. For shared ids the cached entry wins unless it is
// still being judged and the fetched one has a final status.
func Merge(cached []subm.HistoryEntry, fetched []subm.HistoryEntry) []subm.HistoryEntry {
	cachedByID := make(map[string]subm.HistoryEntry, len(cached))
	for _, e := range cached {
		cachedByID[e.SubmissionID] = e
	}

	fetchedIDs := make(map[string]struct{}, len(fetched))
	dedup := make([]subm.HistoryEntry, 0, len(fetched))
	for _, e := range fetched {
		if _, dup := fetchedIDs[e.SubmissionID]; dup {
			continue
		}
		fetchedIDs[e.SubmissionID] = struct{}{}
		dedup = append(dedup, e)
	}

	res := make([]subm.HistoryEntry, 0, len(cached)+len(dedup))
	for _, e := range cached {
		if _, ok := fetchedIDs[e.SubmissionID]; !ok {
			res = append(res, e)
		}
	}
	for _, f := range dedup {
		c, ok := cachedByID[f.SubmissionID]
		if !ok || (!c.Status.IsFinal() && f.Status.IsFinal()) {
			res = append(res, f)
			continue
		}
		if c.CaseID == "" {
			c.CaseID = f.CaseID
		}
		if c.CaseCode == "" {
			c.CaseCode = f.CaseCode
		}
		if c.LanguageID == 0 {
			c.LanguageID = f.LanguageID
		}
		res = append(res, c)
	}
	return res
}
