package contest

import "sort"

type LeaderboardCase struct {
	CaseID   string `json:"case_id"`
	CaseCode string `json:"case_code"`
}

type CaseResult struct {
	Score float64 `json:"score"`
}

type LeaderboardRow struct {
	Rank         int                   `json:"rank"`
	UserID       string                `json:"user_id"`
	Name         string                `json:"name"`
	Username     string                `json:"username"`
	SolvedCount  int                   `json:"solved_count"`
	TotalPenalty int                   `json:"total_penalty"`
	CaseResults  map[string]CaseResult `json:"case_results"` // keyed by case code
}

type Leaderboard struct {
	Cases       []LeaderboardCase `json:"cases"`
	Leaderboard []LeaderboardRow  `json:"leaderboard"`
}

// Rank orders rows by solved count desc, then penalty asc, then username,
// and assigns ranks. Rows with equal solved count and penalty share a rank.
func Rank(rows []LeaderboardRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SolvedCount != rows[j].SolvedCount {
			return rows[i].SolvedCount > rows[j].SolvedCount
		}
		if rows[i].TotalPenalty != rows[j].TotalPenalty {
			return rows[i].TotalPenalty < rows[j].TotalPenalty
		}
		return rows[i].Username < rows[j].Username
	})
	for i := range rows {
		if i > 0 &&
			rows[i].SolvedCount == rows[i-1].SolvedCount &&
			rows[i].TotalPenalty == rows[i-1].TotalPenalty {
			rows[i].Rank = rows[i-1].Rank
			continue
		}
		rows[i].Rank = i + 1
	}
}
