package mockbackend

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/programme-lv/contest-client/auth"
	"github.com/programme-lv/contest-client/contest"
	"github.com/programme-lv/contest-client/httpjson"
	"github.com/programme-lv/contest-client/logger"
	"github.com/programme-lv/contest-client/planglist"
	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/programme-lv/contest-client/subm"
)

const maxSourceBytes = 1 << 20

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string              `json:"token"`
	User  contest.UserProfile `json:"user"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		httpjson.HandleError(log, w, srvcerror.ErrInvalidSubmission("malformed login request").SetDebug(err))
		return
	}
	user, err := s.store.Authenticate(req.Username, req.Password)
	if err != nil {
		httpjson.HandleError(log, w, err)
		return
	}
	token, err := auth.GenerateJWT(user.ID, user.Username, user.Name, user.Role, s.jwtKey, s.now())
	if err != nil {
		httpjson.HandleError(log, w, srvcerror.ErrInternalSE().SetDebug(err))
		return
	}
	log.Info("user logged in", "username", user.Username)
	httpjson.WriteJson(w, http.StatusOK, loginResponse{Token: token, User: user.Profile()})
}

func (s *Server) listCases(w http.ResponseWriter, r *http.Request) {
	httpjson.WriteJson(w, http.StatusOK, s.store.Cases())
}

func (s *Server) getContest(w http.ResponseWriter, r *http.Request) {
	detail, err := s.store.Contest(chi.URLParam(r, "contestId"))
	if err != nil {
		httpjson.HandleError(logger.FromContext(r.Context()), w, err)
		return
	}
	httpjson.WriteJson(w, http.StatusOK, detail)
}

func (s *Server) getClass(w http.ResponseWriter, r *http.Request) {
	class, err := s.store.Class(chi.URLParam(r, "classId"))
	if err != nil {
		httpjson.HandleError(logger.FromContext(r.Context()), w, err)
		return
	}
	httpjson.WriteJson(w, http.StatusOK, class)
}

func (s *Server) listClassContests(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.ClassContests(chi.URLParam(r, "classId"))
	if err != nil {
		httpjson.HandleError(logger.FromContext(r.Context()), w, err)
		return
	}
	httpjson.WriteJson(w, http.StatusOK, res)
}

// statementPDF is served for every statement link of the seed
const statementPDF = "%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << /Root 1 0 R >>\n%%EOF\n"

func (s *Server) getStatement(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	for _, c := range s.store.Cases() {
		if c.PdfFileURL == "/static/statements/"+name {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = io.WriteString(w, statementPDF)
			return
		}
	}
	httpjson.HandleError(logger.FromContext(r.Context()), w, srvcerror.ErrNotFound("statement"))
}

// readSubmission decodes the multipart submit form
func readSubmission(r *http.Request) (subm.Request, error) {
	if err := r.ParseMultipartForm(maxSourceBytes); err != nil {
		return subm.Request{}, srvcerror.ErrInvalidSubmission("malformed submission form").SetDebug(err)
	}
	req := subm.Request{
		Code:      r.FormValue("code"),
		CaseID:    r.FormValue("case_id"),
		ContestID: r.FormValue("contest_id"),
		ClassID:   r.FormValue("class_id"),
	}
	if raw := r.FormValue("language_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return subm.Request{}, srvcerror.ErrInvalidSubmission("language_id must be a number").SetDebug(err)
		}
		req.LanguageID = id
	}

	f, hdr, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return subm.Request{}, srvcerror.ErrInvalidSubmission("malformed source file").SetDebug(err)
	default:
		defer f.Close()
		content, err := io.ReadAll(io.LimitReader(f, maxSourceBytes+1))
		if err != nil {
			return subm.Request{}, srvcerror.ErrInvalidSubmission("malformed source file").SetDebug(err)
		}
		if len(content) > maxSourceBytes {
			return subm.Request{}, srvcerror.ErrInvalidSubmission("source file is too large")
		}
		req.File = &subm.SourceFile{Name: hdr.Filename, Content: content}
	}
	return req, nil
}

func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	claims := auth.ClaimsFromContext(r.Context())
	now := s.now()

	req, err := readSubmission(r)
	if err != nil {
		httpjson.HandleError(log, w, err)
		return
	}
	if err := s.validator.Struct(req); err != nil {
		httpjson.HandleError(log, w, srvcerror.ErrInvalidSubmission(err.Error()).SetDebug(err))
		return
	}

	lang, err := planglist.Resolve(strconv.Itoa(req.LanguageID))
	if err != nil {
		httpjson.HandleError(log, w, err)
		return
	}

	detail, err := s.store.Contest(req.ContestID)
	if err != nil {
		httpjson.HandleError(log, w, err)
		return
	}
	assigned := contest.FilterAssigned(s.store.Cases(), detail)
	c, ok := contest.FindCase(assigned, req.CaseID)
	if !ok {
		httpjson.HandleError(log, w, srvcerror.ErrInvalidSubmission("case is not part of the contest"))
		return
	}

	if req.ClassID != "" {
		cc, ok := s.store.Schedule(req.ClassID, req.ContestID)
		if !ok {
			httpjson.HandleError(log, w, srvcerror.ErrInvalidSubmission("contest is not assigned to the class"))
			return
		}
		if !s.store.InClass(req.ClassID, claims.UserID) {
			httpjson.HandleError(log, w, srvcerror.ErrForbidden())
			return
		}
		if !cc.IsOpen(now) {
			httpjson.HandleError(log, w, srvcerror.ErrInvalidSubmission("contest is closed"))
			return
		}
	}

	if !s.limiter.Allow(claims.UserID, now) {
		httpjson.HandleError(log, w, srvcerror.ErrRateLimited())
		return
	}

	code := req.Code
	if req.File != nil {
		code = string(req.File.Content)
	}
	sb := Submission{
		HistoryEntry: subm.HistoryEntry{
			SubmissionID: uuid.NewString(),
			ContestID:    req.ContestID,
			CaseID:       c.CaseID,
			CaseCode:     c.ProblemCode,
			Status:       subm.StatusPending,
			SubmitTime:   now,
			LanguageID:   lang.ID,
		},
		UserID:  claims.UserID,
		ClassID: req.ClassID,
		Code:    code,
	}
	s.store.SaveSubmission(sb)
	s.judge.Start(sb)

	log.Info("submission created",
		"submission_id", sb.SubmissionID,
		"username", claims.Username,
		"case_id", sb.CaseID,
		"language", lang.ShortName)
	httpjson.WriteJson(w, http.StatusCreated, subm.SubmitResponse{SubmissionID: sb.SubmissionID})
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	subms := s.store.Submissions(SubmissionFilter{
		ContestID: chi.URLParam(r, "contestId"),
		ClassID:   r.URL.Query().Get("class_transaction_id"),
		UserID:    claims.UserID,
	})
	res := make([]subm.HistoryEntry, 0, len(subms))
	for _, sb := range subms {
		res = append(res, sb.HistoryEntry)
	}
	httpjson.WriteJson(w, http.StatusOK, res)
}

func (s *Server) listClassSubmissions(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if !claims.Role.CanViewClass() {
		httpjson.HandleError(logger.FromContext(r.Context()), w, srvcerror.ErrForbidden())
		return
	}
	subms := s.store.Submissions(SubmissionFilter{
		ContestID: chi.URLParam(r, "contestId"),
		ClassID:   r.URL.Query().Get("class_transaction_id"),
	})
	res := make([]subm.ClassSubmission, 0, len(subms))
	for _, sb := range subms {
		row := subm.ClassSubmission{HistoryEntry: sb.HistoryEntry, UserID: sb.UserID}
		if u, ok := s.store.User(sb.UserID); ok {
			row.Username = u.Username
			row.Name = u.Name
		}
		res = append(res, row)
	}
	httpjson.WriteJson(w, http.StatusOK, res)
}

func (s *Server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := s.leaderboard(chi.URLParam(r, "contestId"), r.URL.Query().Get("class_transaction_id"))
	if err != nil {
		httpjson.HandleError(logger.FromContext(r.Context()), w, err)
		return
	}
	httpjson.WriteJson(w, http.StatusOK, lb)
}

func (s *Server) leaderboard(contestID string, classID string) (contest.Leaderboard, error) {
	detail, err := s.store.Contest(contestID)
	if err != nil {
		return contest.Leaderboard{}, err
	}
	cases := contest.FilterAssigned(s.store.Cases(), detail)
	subms := s.store.Submissions(SubmissionFilter{ContestID: contestID, ClassID: classID})

	var participants []contest.UserProfile
	start := earliest(subms)
	if classID != "" {
		class, err := s.store.Class(classID)
		if err != nil {
			return contest.Leaderboard{}, err
		}
		participants = class.Students
		if cc, ok := s.store.Schedule(classID, contestID); ok {
			start = cc.StartTime
		}
	} else {
		seen := map[string]bool{}
		for _, sb := range subms {
			if seen[sb.UserID] {
				continue
			}
			seen[sb.UserID] = true
			if u, ok := s.store.User(sb.UserID); ok {
				participants = append(participants, u.Profile())
			} else {
				participants = append(participants, contest.UserProfile{UserID: sb.UserID})
			}
		}
	}
	return buildLeaderboard(cases, participants, subms, start), nil
}
