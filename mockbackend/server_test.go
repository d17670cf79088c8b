package mockbackend_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/programme-lv/contest-client/api"
	"github.com/programme-lv/contest-client/contest"
	"github.com/programme-lv/contest-client/evalstream"
	"github.com/programme-lv/contest-client/mockbackend"
	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/programme-lv/contest-client/subm"
	"github.com/programme-lv/contest-client/submhist"
	"github.com/programme-lv/contest-client/submsrvc"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startMock(t *testing.T) string {
	t.Helper()
	store, err := mockbackend.LoadSeed("")
	require.NoError(t, err)
	srv, err := mockbackend.NewServer(store, mockbackend.Options{
		JWTKey:          []byte("test-key"),
		StageDelay:      time.Millisecond,
		RateLimit:       2,
		RateLimitWindow: time.Minute,
		LogLevel:        slog.LevelError,
	})
	require.NoError(t, err)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(hs.Close)
	return hs.URL
}

func newClient(t *testing.T, baseURL string, username string) *api.Client {
	t.Helper()
	c := api.New(baseURL, api.WithBackoff(func() retry.Backoff {
		return retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond))
	}))
	if username != "" {
		// seed passwords equal usernames
		_, err := c.Login(context.Background(), username, username)
		require.NoError(t, err)
	}
	return c
}

func TestSubmitJudgeAndReconcile(t *testing.T) {
	baseURL := startMock(t)
	ctx := context.Background()
	client := newClient(t, baseURL, "alice")

	cache := submhist.NewCache()
	loader := submhist.NewLoader(cache, client)
	history, err := loader.Get(ctx, "C1", "K1")
	require.NoError(t, err)
	assert.Empty(t, history)

	_, cases, err := client.ContestCases(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, cases, 2)

	coord := submsrvc.New(client,
		&evalstream.WSDialer{BaseURL: baseURL, Token: client.Token()},
		submsrvc.WithSink(submhist.NewReconciler(cache, submhist.StaticCases{"C1": cases})),
		submsrvc.WithChannelOptions(evalstream.WithJudgeTimeout(10*time.Second)))
	defer coord.Close()

	req := subm.Request{
		Code:       "print(sum(map(int, input().split())))\n# verdict: WA\n",
		CaseID:     "P1",
		ContestID:  "C1",
		ClassID:    "K1",
		LanguageID: 71,
	}
	require.NoError(t, coord.Submit(ctx, req))

	require.Eventually(t, func() bool {
		st := coord.State()
		return st.LatestUpdate != nil && st.LatestUpdate.IsFinal() && !st.IsJudging
	}, 5*time.Second, 10*time.Millisecond)

	st := coord.State()
	assert.NotEmpty(t, st.SubmissionID)
	assert.NoError(t, st.JudgingError)
	assert.Equal(t, subm.StatusWrongAnswer, st.LatestUpdate.FinalStatus)
	assert.Equal(t, 80.0, st.LatestUpdate.Score)
	assert.Len(t, st.LatestUpdate.Testcases, 5)

	entries := cache.Get("C1")
	require.Len(t, entries, 1)
	assert.Equal(t, st.SubmissionID, entries[0].SubmissionID)
	assert.Equal(t, subm.StatusWrongAnswer, entries[0].Status)
	assert.Equal(t, "A", entries[0].CaseCode)
	assert.Equal(t, 71, entries[0].LanguageID)

	refreshed, err := loader.Refresh(ctx, "C1", "K1")
	require.NoError(t, err)
	require.Len(t, refreshed, 1)
	assert.Equal(t, subm.StatusWrongAnswer, refreshed[0].Status)
	assert.Equal(t, 80.0, refreshed[0].Score)

	// the limit is two submissions a minute
	req.Code = "print(1)"
	require.NoError(t, coord.Submit(ctx, req))
	err = coord.Submit(ctx, req)
	require.Error(t, err)
	assert.True(t, srvcerror.HasCode(err, srvcerror.ErrCodeRateLimited))
	st = coord.State()
	assert.Equal(t, "rate limited", st.SubmissionError)
	assert.Empty(t, st.SubmissionID)
	assert.False(t, st.IsJudging)

	refreshed, err = loader.Refresh(ctx, "C1", "K1")
	require.NoError(t, err)
	assert.Len(t, refreshed, 2)
}

func TestSubmitRejections(t *testing.T) {
	baseURL := startMock(t)
	ctx := context.Background()
	client := newClient(t, baseURL, "alice")

	base := subm.Request{Code: "x", CaseID: "P1", ContestID: "C1", ClassID: "K1", LanguageID: 71}

	req := base
	req.LanguageID = 73
	_, err := client.Submit(ctx, req)
	require.Error(t, err)
	assert.Equal(t, "Invalid programming language", err.Error())

	req = base
	req.CaseID = "P3"
	_, err = client.Submit(ctx, req)
	require.Error(t, err)
	assert.Equal(t, "case is not part of the contest", err.Error())

	req = base
	req.ContestID, req.CaseID = "C2", "P3"
	_, err = client.Submit(ctx, req)
	require.Error(t, err)
	assert.Equal(t, "contest is closed", err.Error())

	req = base
	req.CaseID = ""
	_, err = client.Submit(ctx, req)
	require.Error(t, err)
	assert.Equal(t, "case_id is a required field", err.Error())

	anon := newClient(t, baseURL, "")
	_, err = anon.Submit(ctx, base)
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))

	_, err = anon.Login(ctx, "alice", "wrong")
	require.Error(t, err)
	assert.Equal(t, "invalid credentials", err.Error())
}

func TestLiveChannelOfJudgedSubmission(t *testing.T) {
	baseURL := startMock(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := newClient(t, baseURL, "bob")

	conn, err := (&evalstream.WSDialer{BaseURL: baseURL, Token: client.Token()}).Dial(ctx, "seed-1")
	require.NoError(t, err)
	defer conn.Close()

	upd, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "seed-1", upd.SubmissionID)
	assert.Equal(t, subm.StatusAccepted, upd.FinalStatus)

	_, err = (&evalstream.WSDialer{BaseURL: baseURL}).Dial(ctx, "seed-1")
	assert.Error(t, err)
}

func TestClassViews(t *testing.T) {
	baseURL := startMock(t)
	ctx := context.Background()

	student := newClient(t, baseURL, "alice")
	_, err := student.ListAllContestSubmissions(ctx, "C1", "K1")
	require.Error(t, err)
	assert.Equal(t, "forbidden", err.Error())

	lecturer := newClient(t, baseURL, "karlis")
	all, err := lecturer.ListAllContestSubmissions(ctx, "C1", "K1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "bob", all[0].Username)
	assert.Equal(t, "A", all[0].CaseCode)

	class, err := lecturer.GetClass(ctx, "K1")
	require.NoError(t, err)
	assert.Len(t, class.Students, 2)

	contests, err := lecturer.ListClassContests(ctx, "K1")
	require.NoError(t, err)
	require.Len(t, contests, 2)
	require.NotNil(t, contests[0].Contest)
	assert.Equal(t, "Spring practice", contests[0].Contest.Name)
	assert.True(t, contests[0].IsOpen(time.Now()))
	assert.False(t, contests[1].IsOpen(time.Now()))

	lb, err := student.GetLeaderboard(ctx, "C1", "K1")
	require.NoError(t, err)
	require.Len(t, lb.Leaderboard, 2)
	assert.Equal(t, "bob", lb.Leaderboard[0].Username)
	assert.Equal(t, 1, lb.Leaderboard[0].SolvedCount)
	assert.Equal(t, contest.CaseResult{Score: 100}, lb.Leaderboard[0].CaseResults["A"])
	assert.Equal(t, 2, lb.Leaderboard[1].Rank)

	var pdf bytes.Buffer
	_, err = student.DownloadStatement(ctx, contest.Case{CaseID: "P1", PdfFileURL: "/static/statements/a.pdf"}, &pdf)
	require.NoError(t, err)
	assert.Contains(t, pdf.String(), "%PDF-1.4")
}
