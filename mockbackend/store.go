package mockbackend

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/contest-client/auth"
	"github.com/programme-lv/contest-client/contest"
	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/programme-lv/contest-client/subm"
	"golang.org/x/crypto/bcrypt"
)

//go:embed seed.toml
var defaultSeed []byte

type seedUser struct {
	ID       string    `toml:"id"`
	Username string    `toml:"username"`
	Name     string    `toml:"name"`
	Role     auth.Role `toml:"role"`
	Password string    `toml:"password"`
}

type seedCase struct {
	CaseID        string `toml:"case_id"`
	Name          string `toml:"name"`
	ProblemCode   string `toml:"problem_code"`
	TimeLimitMs   int    `toml:"time_limit_ms"`
	MemoryLimitMb int    `toml:"memory_limit_mb"`
	PdfFileURL    string `toml:"pdf_file_url"`
	Tests         int    `toml:"tests"`
}

type seedContest struct {
	ID          string   `toml:"id"`
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Cases       []string `toml:"cases"`
}

type seedClass struct {
	ClassTransactionID string   `toml:"class_transaction_id"`
	ClassName          string   `toml:"class_name"`
	ClassCode          string   `toml:"class_code"`
	CourseOutlineID    string   `toml:"course_outline_id"`
	SemesterID         string   `toml:"semester_id"`
	Students           []string `toml:"students"`
	Assistants         []string `toml:"assistants"`
}

type seedClassContest struct {
	ClassTransactionID string    `toml:"class_transaction_id"`
	ContestID          string    `toml:"contest_id"`
	StartTime          time.Time `toml:"start_time"`
	EndTime            time.Time `toml:"end_time"`
}

type seedSubmission struct {
	SubmissionID string      `toml:"submission_id"`
	UserID       string      `toml:"user_id"`
	ContestID    string      `toml:"contest_id"`
	ClassID      string      `toml:"class_id"`
	CaseID       string      `toml:"case_id"`
	Status       subm.Status `toml:"status"`
	Score        float64     `toml:"score"`
	LanguageID   int         `toml:"language_id"`
	SubmitTime   time.Time   `toml:"submit_time"`
}

type seed struct {
	Users         []seedUser         `toml:"users"`
	Cases         []seedCase         `toml:"cases"`
	Contests      []seedContest      `toml:"contests"`
	Classes       []seedClass        `toml:"classes"`
	ClassContests []seedClassContest `toml:"class_contests"`
	Submissions   []seedSubmission   `toml:"submissions"`
}

// User is an account of the mock backend
type User struct {
	ID           string
	Username     string
	Name         string
	Role         auth.Role
	PasswordHash []byte
}

func (u User) Profile() contest.UserProfile {
	return contest.UserProfile{UserID: u.ID, Username: u.Username, Name: u.Name, Role: string(u.Role)}
}

// Submission is a stored submission with its owner and source
type Submission struct {
	subm.HistoryEntry
	UserID  string
	ClassID string
	Code    string
}

// Store keeps all mock data in memory
type Store struct {
	lock sync.Mutex

	users    map[string]User // by id
	byName   map[string]string
	cases    []contest.Case
	tests    map[string]int // tests per case id
	contests map[string]contest.ContestDetail
	classes  map[string]contest.Class
	schedule []contest.ClassContest
	subms    map[string]*Submission
}

// LoadSeed reads a seed file, or the embedded development seed when path is empty
func LoadSeed(path string) (*Store, error) {
	data := defaultSeed
	if path != "" {
		var err error
		data, err = os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("reading seed file: %w", err)
		}
	}
	return NewStore(data)
}

// NewStore builds a store from toml seed data
func NewStore(data []byte) (*Store, error) {
	var sd seed
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&sd); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}

	s := &Store{
		users:    make(map[string]User),
		byName:   make(map[string]string),
		tests:    make(map[string]int),
		contests: make(map[string]contest.ContestDetail),
		classes:  make(map[string]contest.Class),
		subms:    make(map[string]*Submission),
	}

	for _, u := range sd.Users {
		// seed accounts only, the minimum cost keeps startup fast
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password of %s: %w", u.Username, err)
		}
		s.users[u.ID] = User{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role, PasswordHash: hash}
		s.byName[u.Username] = u.ID
	}

	for _, c := range sd.Cases {
		s.cases = append(s.cases, contest.Case{
			CaseID:        c.CaseID,
			Name:          c.Name,
			ProblemCode:   c.ProblemCode,
			TimeLimitMs:   c.TimeLimitMs,
			MemoryLimitMb: c.MemoryLimitMb,
			PdfFileURL:    c.PdfFileURL,
		})
		tests := c.Tests
		if tests <= 0 {
			tests = 1
		}
		s.tests[c.CaseID] = tests
	}

	for _, c := range sd.Contests {
		detail := contest.ContestDetail{Contest: contest.Contest{ID: c.ID, Name: c.Name, Description: c.Description}}
		for _, id := range c.Cases {
			if _, ok := contest.FindCase(s.cases, id); !ok {
				return nil, fmt.Errorf("contest %s references unknown case %s", c.ID, id)
			}
			detail.Cases = append(detail.Cases, contest.CaseRef{CaseID: id})
		}
		s.contests[c.ID] = detail
	}

	for _, c := range sd.Classes {
		class := contest.Class{
			ClassTransactionID: c.ClassTransactionID,
			ClassName:          c.ClassName,
			ClassCode:          c.ClassCode,
			CourseOutlineID:    c.CourseOutlineID,
			SemesterID:         c.SemesterID,
		}
		for _, id := range c.Students {
			u, ok := s.users[id]
			if !ok {
				return nil, fmt.Errorf("class %s references unknown user %s", c.ClassTransactionID, id)
			}
			class.Students = append(class.Students, u.Profile())
		}
		for _, id := range c.Assistants {
			u, ok := s.users[id]
			if !ok {
				return nil, fmt.Errorf("class %s references unknown user %s", c.ClassTransactionID, id)
			}
			class.Assistants = append(class.Assistants, u.Profile())
		}
		s.classes[c.ClassTransactionID] = class
	}

	for _, cc := range sd.ClassContests {
		if _, ok := s.contests[cc.ContestID]; !ok {
			return nil, fmt.Errorf("class contest references unknown contest %s", cc.ContestID)
		}
		s.schedule = append(s.schedule, contest.ClassContest{
			ClassTransactionID: cc.ClassTransactionID,
			ContestID:          cc.ContestID,
			StartTime:          cc.StartTime,
			EndTime:            cc.EndTime,
			CreatedAt:          cc.StartTime,
		})
	}

	for _, sb := range sd.Submissions {
		entry := subm.HistoryEntry{
			SubmissionID: sb.SubmissionID,
			ContestID:    sb.ContestID,
			CaseID:       sb.CaseID,
			Status:       sb.Status,
			Score:        sb.Score,
			SubmitTime:   sb.SubmitTime,
			LanguageID:   sb.LanguageID,
		}
		if c, ok := contest.FindCase(s.cases, sb.CaseID); ok {
			entry.CaseCode = c.ProblemCode
		}
		s.subms[sb.SubmissionID] = &Submission{HistoryEntry: entry, UserID: sb.UserID, ClassID: sb.ClassID}
	}

	return s, nil
}

// Authenticate checks the password of a user
func (s *Store) Authenticate(username string, password string) (User, error) {
	s.lock.Lock()
	u, ok := s.users[s.byName[username]]
	s.lock.Unlock()
	if !ok {
		return User{}, srvcerror.ErrUnauthorized().WithMessage("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return User{}, srvcerror.ErrUnauthorized().WithMessage("invalid credentials")
	}
	return u, nil
}

func (s *Store) User(id string) (User, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *Store) Cases() []contest.Case {
	s.lock.Lock()
	defer s.lock.Unlock()
	res := make([]contest.Case, len(s.cases))
	copy(res, s.cases)
	return res
}

// TestCount is the number of tests the simulated judge runs for a case
func (s *Store) TestCount(caseID string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.tests[caseID]
}

func (s *Store) Contest(id string) (contest.ContestDetail, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	detail, ok := s.contests[id]
	if !ok {
		return contest.ContestDetail{}, srvcerror.ErrNotFound("contest")
	}
	detail.Cases = append([]contest.CaseRef(nil), detail.Cases...)
	return detail, nil
}

func (s *Store) Class(id string) (contest.Class, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	class, ok := s.classes[id]
	if !ok {
		return contest.Class{}, srvcerror.ErrNotFound("class")
	}
	return class, nil
}

// ClassContests lists the contests of a class with their details attached
func (s *Store) ClassContests(classID string) ([]contest.ClassContest, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.classes[classID]; !ok {
		return nil, srvcerror.ErrNotFound("class")
	}
	res := []contest.ClassContest{}
	for _, cc := range s.schedule {
		if cc.ClassTransactionID != classID {
			continue
		}
		detail := s.contests[cc.ContestID]
		ct := detail.Contest
		cc.Contest = &ct
		res = append(res, cc)
	}
	return res, nil
}

// Schedule returns the window of a contest in a class
func (s *Store) Schedule(classID string, contestID string) (contest.ClassContest, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, cc := range s.schedule {
		if cc.ClassTransactionID == classID && cc.ContestID == contestID {
			return cc, true
		}
	}
	return contest.ClassContest{}, false
}

// InClass reports whether the user is a student or assistant of the class
func (s *Store) InClass(classID string, userID string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	class, ok := s.classes[classID]
	if !ok {
		return false
	}
	for _, p := range append(append([]contest.UserProfile(nil), class.Students...), class.Assistants...) {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (s *Store) SaveSubmission(sb Submission) {
	s.lock.Lock()
	defer s.lock.Unlock()
	cp := sb
	s.subms[sb.SubmissionID] = &cp
}

func (s *Store) Submission(id string) (Submission, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	sb, ok := s.subms[id]
	if !ok {
		return Submission{}, false
	}
	return *sb, true
}

// SetResult stores the latest verdict of a submission
func (s *Store) SetResult(id string, status subm.Status, score float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if sb, ok := s.subms[id]; ok {
		sb.Status = status
		sb.Score = score
	}
}

// SubmissionFilter selects submissions of a contest. Empty fields match all.
type SubmissionFilter struct {
	ContestID string
	ClassID   string
	UserID    string
}

// Submissions returns the matching submissions, newest first
func (s *Store) Submissions(f SubmissionFilter) []Submission {
	s.lock.Lock()
	res := []Submission{}
	for _, sb := range s.subms {
		if f.ContestID != "" && sb.ContestID != f.ContestID {
			continue
		}
		if f.ClassID != "" && sb.ClassID != f.ClassID {
			continue
		}
		if f.UserID != "" && sb.UserID != f.UserID {
			continue
		}
		res = append(res, *sb)
	}
	s.lock.Unlock()

	sort.Slice(res, func(i, j int) bool {
		if !res[i].SubmitTime.Equal(res[j].SubmitTime) {
			return res[i].SubmitTime.After(res[j].SubmitTime)
		}
		return res[i].SubmissionID > res[j].SubmissionID
	})
	return res
}
