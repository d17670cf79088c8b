package subm

// Status is the overall verdict of a submission as reported by the judge
type Status string

const (
	StatusPending       Status = "Pending"
	StatusJudging       Status = "Judging"
	StatusAccepted      Status = "Accepted"
	StatusWrongAnswer   Status = "Wrong Answer"
	StatusTimeLimit     Status = "Time Limit Exceeded"
	StatusMemoryLimit   Status = "Memory Limit Exceeded"
	StatusRuntimeError  Status = "Runtime Error"
	StatusCompileError  Status = "Compile Error"
	StatusInternalError Status = "Internal Error"
)

// IsFinal reports whether no further judging updates follow this status.
// Unknown verdict strings are treated as final.
func (s Status) IsFinal() bool {
	switch s {
	case "", StatusPending, StatusJudging:
		return false
	}
	return true
}

// Short returns the table abbreviation of the verdict
func (s Status) Short() string {
	switch s {
	case StatusPending:
		return "PD"
	case StatusJudging:
		return "JG"
	case StatusAccepted:
		return "AC"
	case StatusWrongAnswer:
		return "WA"
	case StatusTimeLimit:
		return "TLE"
	case StatusMemoryLimit:
		return "MLE"
	case StatusRuntimeError:
		return "RE"
	case StatusCompileError:
		return "CE"
	case StatusInternalError:
		return "IE"
	}
	return string(s)
}
