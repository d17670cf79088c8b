package mockbackend

import (
	"sort"
	"time"

	"github.com/programme-lv/contest-client/contest"
	"github.com/programme-lv/contest-client/subm"
)

// minutes added to the penalty for every rejected attempt before
// the first accepted one
const attemptPenalty = 20

func earliest(subms []Submission) time.Time {
	var t time.Time
	for _, sb := range subms {
		if t.IsZero() || sb.SubmitTime.Before(t) {
			t = sb.SubmitTime
		}
	}
	return t
}

// buildLeaderboard scores every participant on the given cases. A case
// is solved by its first accepted submission; its penalty is the minutes
// from start to that submission plus attemptPenalty per rejected final
// verdict before it. Submissions still being judged are not counted.
func buildLeaderboard(cases []contest.Case, participants []contest.UserProfile, subms []Submission, start time.Time) contest.Leaderboard {
	lb := contest.Leaderboard{
		Cases:       make([]contest.LeaderboardCase, 0, len(cases)),
		Leaderboard: make([]contest.LeaderboardRow, 0, len(participants)),
	}
	codes := make(map[string]string, len(cases))
	for _, c := range cases {
		lb.Cases = append(lb.Cases, contest.LeaderboardCase{CaseID: c.CaseID, CaseCode: c.ProblemCode})
		codes[c.CaseID] = c.ProblemCode
	}

	byUser := make(map[string][]Submission)
	for _, sb := range subms {
		byUser[sb.UserID] = append(byUser[sb.UserID], sb)
	}

	for _, p := range participants {
		row := contest.LeaderboardRow{
			UserID:      p.UserID,
			Name:        p.Name,
			Username:    p.Username,
			CaseResults: make(map[string]contest.CaseResult),
		}

		own := byUser[p.UserID]
		sort.Slice(own, func(i, j int) bool {
			return own[i].SubmitTime.Before(own[j].SubmitTime)
		})

		solved := make(map[string]bool)
		rejected := make(map[string]int)
		for _, sb := range own {
			code, ok := codes[sb.CaseID]
			if !ok || !sb.Status.IsFinal() {
				continue
			}
			if best, seen := row.CaseResults[code]; !seen || sb.Score > best.Score {
				row.CaseResults[code] = contest.CaseResult{Score: sb.Score}
			}
			if solved[sb.CaseID] {
				continue
			}
			if sb.Status != subm.StatusAccepted {
				rejected[sb.CaseID]++
				continue
			}
			solved[sb.CaseID] = true
			row.SolvedCount++
			minutes := 0
			if !start.IsZero() && sb.SubmitTime.After(start) {
				minutes = int(sb.SubmitTime.Sub(start) / time.Minute)
			}
			row.TotalPenalty += minutes + attemptPenalty*rejected[sb.CaseID]
		}
		lb.Leaderboard = append(lb.Leaderboard, row)
	}

	contest.Rank(lb.Leaderboard)
	return lb
}
