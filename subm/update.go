package subm

// TestcaseResult is the outcome of one test of a submission
type TestcaseResult struct {
	Number         int     `json:"number"`
	Verdict        string  `json:"verdict"`
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expected_output"`
	ActualOutput   string  `json:"actual_output"`
	Stderr         *string `json:"stderr,omitempty"`
	TimeMs         float64 `json:"time_ms"`
	MemoryKb       int     `json:"memory_kb"`
}

// LiveUpdate is one judging progress message pushed over the live channel.
// Updates of one submission arrive in non-decreasing completeness; the
// first update with a final status is the last one.
type LiveUpdate struct {
	SubmissionID string           `json:"submission_id"`
	CaseID       string           `json:"case_id,omitempty"`
	Score        float64          `json:"score"`
	FinalStatus  Status           `json:"final_status"`
	Testcases    []TestcaseResult `json:"testcases"`
}

func (u LiveUpdate) IsFinal() bool {
	return u.FinalStatus.IsFinal()
}

// Passed counts the test cases with a passing verdict
func (u LiveUpdate) Passed() int {
	n := 0
	for _, tc := range u.Testcases {
		if tc.Verdict == "Passed" || tc.Verdict == string(StatusAccepted) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so that holders of a snapshot cannot
// observe later mutations
func (u LiveUpdate) Clone() LiveUpdate {
	cp := u
	if u.Testcases != nil {
		cp.Testcases = make([]TestcaseResult, len(u.Testcases))
		copy(cp.Testcases, u.Testcases)
	}
	return cp
}
