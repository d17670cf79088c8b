package subm

import "time"

// HistoryEntry is one row of the viewer's submission history in a contest
type HistoryEntry struct {
	SubmissionID string    `json:"submission_id"`
	ContestID    string    `json:"contest_id"`
	CaseID       string    `json:"case_id"`
	CaseCode     string    `json:"case_code"`
	Status       Status    `json:"status"`
	Score        float64   `json:"score"`
	SubmitTime   time.Time `json:"submit_time"`
	LanguageID   int       `json:"language_id"`
}

// ClassSubmission is a history row of any student, as listed for lecturers
type ClassSubmission struct {
	HistoryEntry
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}
