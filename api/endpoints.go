package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/programme-lv/contest-client/contest"
	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/programme-lv/contest-client/subm"
)

const casesCacheKey = "cases:all"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a token and starts using it
func (c *Client) Login(ctx context.Context, username string, password string) (string, error) {
	body, err := encodeJSON(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", srvcerror.ErrRequestFailed("Login failed.").SetDebug(err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/auth/login", nil, body)
	if err != nil {
		return "", srvcerror.ErrRequestFailed("Login failed.").SetDebug(err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp loginResponse
	err = c.send(req, &resp, func() *srvcerror.Error {
		return srvcerror.ErrRequestFailed("Login failed.")
	})
	if err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

func classQuery(classID string) url.Values {
	if classID == "" {
		return nil
	}
	return url.Values{"class_transaction_id": {classID}}
}

// ListContestSubmissions returns the viewer's history of a contest, newest first
func (c *Client) ListContestSubmissions(ctx context.Context, contestID string, classID string) ([]subm.HistoryEntry, error) {
	var res []subm.HistoryEntry
	path := "/api/submissions/contest/" + url.PathEscape(contestID)
	if err := c.get(ctx, path, classQuery(classID), &res, "Could not load submission history."); err != nil {
		return nil, err
	}
	return res, nil
}

// ListAllContestSubmissions returns the submissions of every student of a class
func (c *Client) ListAllContestSubmissions(ctx context.Context, contestID string, classID string) ([]subm.ClassSubmission, error) {
	var res []subm.ClassSubmission
	path := "/api/submission/all/" + url.PathEscape(contestID)
	if err := c.get(ctx, path, classQuery(classID), &res, "Could not load class submissions."); err != nil {
		return nil, err
	}
	return res, nil
}

// ListCases returns all cases. The list is cached for the case TTL.
func (c *Client) ListCases(ctx context.Context) ([]contest.Case, error) {
	if cached, found := c.cache.Get(casesCacheKey); found {
		if cases, ok := cached.([]contest.Case); ok {
			return cloneCases(cases), nil
		}
	}

	var res []contest.Case
	if err := c.get(ctx, "/api/cases", nil, &res, "Could not load cases."); err != nil {
		return nil, err
	}
	c.cache.Set(casesCacheKey, res, 0)
	return cloneCases(res), nil
}

// InvalidateCases drops the cached case list
func (c *Client) InvalidateCases() {
	c.cache.Delete(casesCacheKey)
}

func (c *Client) GetContest(ctx context.Context, contestID string) (contest.ContestDetail, error) {
	var res contest.ContestDetail
	path := "/api/contests/" + url.PathEscape(contestID)
	if err := c.get(ctx, path, nil, &res, "Could not load contest."); err != nil {
		return contest.ContestDetail{}, err
	}
	return res, nil
}

// ContestCases returns the contest together with its assigned cases
func (c *Client) ContestCases(ctx context.Context, contestID string) (contest.ContestDetail, []contest.Case, error) {
	detail, err := c.GetContest(ctx, contestID)
	if err != nil {
		return contest.ContestDetail{}, nil, err
	}
	all, err := c.ListCases(ctx)
	if err != nil {
		return contest.ContestDetail{}, nil, err
	}
	return detail, contest.FilterAssigned(all, detail), nil
}

func (c *Client) GetClass(ctx context.Context, classID string) (contest.Class, error) {
	var res contest.Class
	path := "/api/class-detail/" + url.PathEscape(classID)
	if err := c.get(ctx, path, nil, &res, "Could not load class."); err != nil {
		return contest.Class{}, err
	}
	return res, nil
}

func (c *Client) ListClassContests(ctx context.Context, classID string) ([]contest.ClassContest, error) {
	var res []contest.ClassContest
	path := "/api/classes/" + url.PathEscape(classID) + "/contests"
	if err := c.get(ctx, path, nil, &res, "Could not load class contests."); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetLeaderboard(ctx context.Context, contestID string, classID string) (contest.Leaderboard, error) {
	var res contest.Leaderboard
	path := "/api/leaderboard/" + url.PathEscape(contestID)
	if err := c.get(ctx, path, classQuery(classID), &res, "Could not load leaderboard."); err != nil {
		return contest.Leaderboard{}, err
	}
	return res, nil
}

func cloneCases(cases []contest.Case) []contest.Case {
	res := make([]contest.Case, len(cases))
	copy(res, cases)
	return res
}
