package subm

import "time"

// SourceFile is an uploaded solution file
type SourceFile struct {
	Name    string `form:"filename" validate:"required"`
	Content []byte `form:"content" validate:"required,min=1"`
}

// Request is the payload of a solution submission.
// Exactly one of Code and File is set.
type Request struct {
	Code       string      `form:"code" validate:"required_without=File,excluded_with=File"`
	File       *SourceFile `form:"file" validate:"omitempty"`
	CaseID     string      `form:"case_id" validate:"required"`
	ContestID  string      `form:"contest_id" validate:"required"`
	ClassID    string      `form:"class_id"`
	LanguageID int         `form:"language_id" validate:"required,gt=0"`
}

// SubmitResponse is returned by the backend as soon as the submission is stored
type SubmitResponse struct {
	SubmissionID string `json:"submission_id"`
}

// Submitted is what the client knows about an accepted submission
// before any judging update arrives. Live updates do not carry the
// language, so it is captured here.
type Submitted struct {
	SubmissionID string
	ContestID    string
	ClassID      string
	CaseID       string
	LanguageID   int
	SubmittedAt  time.Time
}

func NewSubmitted(req Request, resp SubmitResponse, at time.Time) Submitted {
	return Submitted{
		SubmissionID: resp.SubmissionID,
		ContestID:    req.ContestID,
		ClassID:      req.ClassID,
		CaseID:       req.CaseID,
		LanguageID:   req.LanguageID,
		SubmittedAt:  at,
	}
}
