package main

import (
	"errors"
	"os"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/programme-lv/contest-client/contest"
	"github.com/programme-lv/contest-client/subm"
	"github.com/programme-lv/contest-client/submsrvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJudgingOver(t *testing.T) {
	judging := &subm.LiveUpdate{FinalStatus: subm.StatusJudging}
	final := &subm.LiveUpdate{FinalStatus: subm.StatusWrongAnswer}

	tests := []struct {
		name string
		st   submsrvc.State
		want bool
	}{
		{"idle", submsrvc.State{}, false},
		{"submitting", submsrvc.State{IsSubmitting: true}, false},
		{"submission error", submsrvc.State{SubmissionError: "rate limited"}, true},
		{"waiting for first update", submsrvc.State{SubmissionID: "s1"}, false},
		{"judging", submsrvc.State{SubmissionID: "s1", LatestUpdate: judging, IsJudging: true}, false},
		{"channel gone", submsrvc.State{SubmissionID: "s1", LatestUpdate: judging}, true},
		{"final", submsrvc.State{SubmissionID: "s1", LatestUpdate: final, IsJudging: true}, true},
		{"judging error", submsrvc.State{SubmissionID: "s1", JudgingError: errors.New("timeout")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, judgingOver(tt.st))
		})
	}
}

func TestJudgeModelQuitsOnFinalUpdate(t *testing.T) {
	states := make(chan submsrvc.State)
	var m tea.Model = newJudgeModel("A Sum", 2, states)

	m, cmd := m.Update(stateMsg(submsrvc.State{SubmissionID: "s1"}))
	require.NotNil(t, cmd)
	assert.False(t, m.(judgeModel).done)
	assert.Contains(t, m.View(), "Waiting for the judge")

	final := &subm.LiveUpdate{
		SubmissionID: "s1",
		FinalStatus:  subm.StatusAccepted,
		Score:        100,
		Testcases: []subm.TestcaseResult{
			{Number: 1, Verdict: "Passed"},
			{Number: 2, Verdict: "Passed"},
		},
	}
	m, cmd = m.Update(stateMsg(submsrvc.State{SubmissionID: "s1", LatestUpdate: final, IsJudging: true}))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	jm := m.(judgeModel)
	assert.True(t, jm.done)
	assert.False(t, jm.cancelled)
	assert.Equal(t, final, jm.state.LatestUpdate)
	assert.Contains(t, m.View(), "2/2 tests")
	assert.NotContains(t, m.View(), "Press q")
}

func TestJudgeModelCancel(t *testing.T) {
	m, cmd := newJudgeModel("A Sum", 0, nil).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.True(t, m.(judgeModel).cancelled)
}

func TestJudgeModelStatesClosed(t *testing.T) {
	m, cmd := newJudgeModel("A Sum", 0, nil).Update(statesClosedMsg{})
	require.NotNil(t, cmd)
	assert.True(t, m.(judgeModel).done)
}

func TestJudgeModelShowsSubmissionError(t *testing.T) {
	m, _ := newJudgeModel("A Sum", 0, nil).Update(stateMsg(submsrvc.State{SubmissionError: "Invalid programming language"}))
	assert.Contains(t, m.View(), "Invalid programming language")
}

func TestWaitForState(t *testing.T) {
	states := make(chan submsrvc.State, 1)
	states <- submsrvc.State{SubmissionID: "s1"}
	assert.Equal(t, stateMsg(submsrvc.State{SubmissionID: "s1"}), waitForState(states)())

	close(states)
	assert.Equal(t, statesClosedMsg{}, waitForState(states)())
}

func TestFindCase(t *testing.T) {
	cases := []contest.Case{
		{CaseID: "P1", ProblemCode: "A"},
		{CaseID: "P2", ProblemCode: "B"},
	}
	c, ok := findCase(cases, "P2")
	require.True(t, ok)
	assert.Equal(t, "B", c.ProblemCode)

	c, ok = findCase(cases, "a")
	require.True(t, ok)
	assert.Equal(t, "P1", c.CaseID)

	_, ok = findCase(cases, "C")
	assert.False(t, ok)
}

func TestBuildRequest(t *testing.T) {
	req, lang, err := buildRequest(submitOpts{contestID: "C1", code: "print(1)", lang: "python"}, "P1", "K1")
	require.NoError(t, err)
	assert.Equal(t, 71, lang.ID)
	assert.Equal(t, subm.Request{Code: "print(1)", CaseID: "P1", ContestID: "C1", ClassID: "K1", LanguageID: 71}, req)

	_, _, err = buildRequest(submitOpts{contestID: "C1", code: "x"}, "P1", "")
	assert.EqualError(t, err, "--lang is required with --code")

	_, _, err = buildRequest(submitOpts{contestID: "C1", code: "x", lang: "rust"}, "P1", "")
	assert.Error(t, err)
}

func TestBuildRequestGuessesLanguageFromFile(t *testing.T) {
	path := t.TempDir() + "/main.cpp"
	require.NoError(t, os.WriteFile(path, []byte("int main() {}"), 0o600))

	req, lang, err := buildRequest(submitOpts{contestID: "C1", file: path}, "P1", "")
	require.NoError(t, err)
	assert.Equal(t, "cpp", lang.ShortName)
	require.NotNil(t, req.File)
	assert.Equal(t, "main.cpp", req.File.Name)
	assert.Equal(t, []byte("int main() {}"), req.File.Content)
	assert.Empty(t, req.Code)
}

func TestPlainLine(t *testing.T) {
	assert.Equal(t, "submitting", plainLine(submsrvc.State{IsSubmitting: true}))
	assert.Equal(t, "s1 waiting for the judge", plainLine(submsrvc.State{SubmissionID: "s1"}))
	upd := &subm.LiveUpdate{FinalStatus: subm.StatusJudging, Score: 50, Testcases: []subm.TestcaseResult{{Number: 1}}}
	assert.Equal(t, "s1 Judging tests=1 score=50", plainLine(submsrvc.State{SubmissionID: "s1", LatestUpdate: upd}))
}
