package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/programme-lv/contest-client/submsrvc"
)

// judgingOver reports whether nothing more will happen for the submit flow
func judgingOver(st submsrvc.State) bool {
	if st.IsSubmitting {
		return false
	}
	if st.SubmissionError != "" || st.JudgingError != nil {
		return true
	}
	if st.LatestUpdate == nil {
		return false
	}
	// the channel is gone once it stops judging after an update
	return st.LatestUpdate.IsFinal() || !st.IsJudging
}

type stateMsg submsrvc.State

type statesClosedMsg struct{}

func waitForState(states <-chan submsrvc.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-states
		if !ok {
			return statesClosedMsg{}
		}
		return stateMsg(st)
	}
}

// judgeModel shows the live progress of one submission
type judgeModel struct {
	title     string
	numTests  int
	spinner   spinner.Model
	states    <-chan submsrvc.State
	state     submsrvc.State
	done      bool
	cancelled bool
}

func newJudgeModel(title string, numTests int, states <-chan submsrvc.State) judgeModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#3498db"))
	return judgeModel{
		title:    title,
		numTests: numTests,
		spinner:  s,
		states:   states,
		state:    submsrvc.State{IsSubmitting: true},
	}
}

func (m judgeModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForState(m.states))
}

func (m judgeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancelled = true
			return m, tea.Quit
		}
	case stateMsg:
		m.state = submsrvc.State(msg)
		if judgingOver(m.state) {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForState(m.states)
	case statesClosedMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m judgeModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title) + "\n\n")

	st := m.state
	busy := m.spinner.View() + " "
	if m.done {
		busy = ""
	}
	switch {
	case st.IsSubmitting:
		b.WriteString(busy + "Submitting...\n")
	case st.SubmissionError != "":
		b.WriteString(errorStyle.Render(st.SubmissionError) + "\n")
	default:
		b.WriteString(dimStyle.Render("submission "+st.SubmissionID) + "\n")
		if upd := st.LatestUpdate; upd != nil {
			progress := fmt.Sprintf("%d/%d tests", len(upd.Testcases), m.numTests)
			if m.numTests == 0 {
				progress = fmt.Sprintf("%d tests", len(upd.Testcases))
			}
			if upd.IsFinal() {
				busy = ""
			}
			b.WriteString(fmt.Sprintf("%s%s  %s  score %s\n",
				busy,
				statusStyle(upd.FinalStatus).Render(string(upd.FinalStatus)),
				progress,
				formatScore(upd.Score)))
			if len(upd.Testcases) > 0 {
				b.WriteString(testcaseTable(upd.Testcases) + "\n")
			}
		} else if !m.done {
			b.WriteString(busy + "Waiting for the judge...\n")
		}
		if st.JudgingError != nil {
			b.WriteString(errorStyle.Render(st.JudgingError.Error()) + "\n")
		}
	}

	if !m.done {
		b.WriteString(dimStyle.Render("\nPress q to stop following.") + "\n")
	}
	return b.String()
}
