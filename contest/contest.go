package contest

import "time"

// Case is a single problem of a contest
type Case struct {
	CaseID        string `json:"case_id"`
	Name          string `json:"name"`
	ProblemCode   string `json:"problem_code"`
	TimeLimitMs   int    `json:"time_limit_ms"`
	MemoryLimitMb int    `json:"memory_limit_mb"`
	PdfFileURL    string `json:"pdf_file_url"`
}

// CaseRef is how a contest detail response refers to its assigned cases
type CaseRef struct {
	CaseID string `json:"case_id"`
}

type Contest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ContestDetail struct {
	Contest
	Cases []CaseRef `json:"cases"`
}

// FindCase returns the case with the given id
func FindCase(cases []Case, caseID string) (Case, bool) {
	for _, c := range cases {
		if c.CaseID == caseID {
			return c, true
		}
	}
	return Case{}, false
}

// FilterAssigned keeps the cases referenced by the contest detail,
// preserving the order of all
func FilterAssigned(all []Case, detail ContestDetail) []Case {
	assigned := make(map[string]struct{}, len(detail.Cases))
	for _, ref := range detail.Cases {
		assigned[ref.CaseID] = struct{}{}
	}
	res := make([]Case, 0, len(assigned))
	for _, c := range all {
		if _, ok := assigned[c.CaseID]; ok {
			res = append(res, c)
		}
	}
	return res
}

type UserProfile struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

type Class struct {
	ClassTransactionID string        `json:"class_transaction_id"`
	ClassName          string        `json:"class_name"`
	ClassCode          string        `json:"class_code"`
	CourseOutlineID    string        `json:"course_outline_id"`
	SemesterID         string        `json:"semester_id"`
	Students           []UserProfile `json:"students,omitempty"`
	Assistants         []UserProfile `json:"assistants,omitempty"`
}

// ClassContest assigns a contest to a class for a time window
type ClassContest struct {
	ClassTransactionID string    `json:"class_transaction_id"`
	ContestID          string    `json:"contest_id"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	CreatedAt          time.Time `json:"created_at"`
	Contest            *Contest  `json:"contest,omitempty"`
}

// IsOpen reports whether submissions are accepted at t
func (cc ClassContest) IsOpen(t time.Time) bool {
	return !t.Before(cc.StartTime) && t.Before(cc.EndTime)
}
