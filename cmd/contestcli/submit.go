package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/programme-lv/contest-client/contest"
	"github.com/programme-lv/contest-client/evalstream"
	"github.com/programme-lv/contest-client/planglist"
	"github.com/programme-lv/contest-client/subm"
	"github.com/programme-lv/contest-client/submhist"
	"github.com/programme-lv/contest-client/submsrvc"
	"github.com/programme-lv/contest-client/translations"
	"github.com/spf13/cobra"
)

type submitOpts struct {
	contestID string
	caseRef   string
	lang      string
	file      string
	code      string
	plain     bool
}

func newSubmitCmd(a *app) *cobra.Command {
	var opts submitOpts
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a solution and follow its judging",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd.Context(), a, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.contestID, "contest", "c", "", "contest id (required)")
	cmd.Flags().StringVarP(&opts.caseRef, "case", "p", "", "case id or problem code (required)")
	cmd.Flags().StringVarP(&opts.lang, "lang", "l", "", "language id or short name, guessed from the file name by default")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "source file")
	cmd.Flags().StringVar(&opts.code, "code", "", "source code, instead of --file")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print progress lines instead of the interactive view")
	cmd.MarkFlagRequired("contest")
	cmd.MarkFlagRequired("case")
	cmd.MarkFlagsMutuallyExclusive("file", "code")
	return cmd
}

// findCase matches a case by id or by problem code
func findCase(cases []contest.Case, ref string) (contest.Case, bool) {
	if c, ok := contest.FindCase(cases, ref); ok {
		return c, true
	}
	for _, c := range cases {
		if strings.EqualFold(c.ProblemCode, ref) {
			return c, true
		}
	}
	return contest.Case{}, false
}

func buildRequest(opts submitOpts, caseID string, classID string) (subm.Request, planglist.ProgrLang, error) {
	req := subm.Request{CaseID: caseID, ContestID: opts.contestID, ClassID: classID, Code: opts.code}

	if opts.file != "" {
		content, err := os.ReadFile(filepath.Clean(opts.file))
		if err != nil {
			return subm.Request{}, planglist.ProgrLang{}, fmt.Errorf("reading source file: %w", err)
		}
		req.File = &subm.SourceFile{Name: filepath.Base(opts.file), Content: content}
		req.Code = ""
	}

	var lang planglist.ProgrLang
	switch {
	case opts.lang != "":
		l, err := planglist.Resolve(opts.lang)
		if err != nil {
			return subm.Request{}, planglist.ProgrLang{}, err
		}
		lang = l
	case opts.file != "":
		l, ok := planglist.GuessByFilename(opts.file)
		if !ok {
			return subm.Request{}, planglist.ProgrLang{}, fmt.Errorf("cannot guess the language of %s, use --lang", opts.file)
		}
		lang = l
	default:
		return subm.Request{}, planglist.ProgrLang{}, errors.New("--lang is required with --code")
	}
	req.LanguageID = lang.ID
	return req, lang, nil
}

func runSubmit(ctx context.Context, a *app, opts submitOpts) error {
	_, cases, err := a.client.ContestCases(ctx, opts.contestID)
	if err != nil {
		return err
	}
	c, ok := findCase(cases, opts.caseRef)
	if !ok {
		return fmt.Errorf("case %q is not part of contest %s", opts.caseRef, opts.contestID)
	}

	req, lang, err := buildRequest(opts, c.CaseID, a.classID)
	if err != nil {
		return planglist.Localize(err, a.cfg.Locale)
	}
	validator, err := translations.NewValidator(a.cfg.Locale)
	if err != nil {
		return err
	}

	cache := submhist.NewCache()
	loader := submhist.NewLoader(cache, a.client)
	if _, err := loader.Get(ctx, opts.contestID, a.classID); err != nil {
		a.log.Warn("submission history unavailable", "error", err)
	}
	reconciler := submhist.NewReconciler(cache, submhist.StaticCases{opts.contestID: cases},
		submhist.WithReconcilerLogger(a.log))

	coord := submsrvc.New(a.client,
		&evalstream.WSDialer{BaseURL: a.cfg.LiveURL(), Token: a.client.Token()},
		submsrvc.WithSink(reconciler),
		submsrvc.WithLogger(a.log.With("module", "submsrvc")),
		submsrvc.WithRequestValidator(validator),
		submsrvc.WithChannelOptions(
			evalstream.WithJudgeTimeout(a.cfg.JudgeTimeout.Duration),
			evalstream.WithLogger(a.log.With("module", "evalstream")),
		))
	defer coord.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	states := coord.Watch(watchCtx)

	submit := coord.SubmitCmd()
	go func() {
		// failures are reported through the state
		_ = submit.Handle(ctx, req)
	}()

	title := fmt.Sprintf("%s %s (%s)", c.ProblemCode, c.Name, lang.FullName)
	var final submsrvc.State
	if opts.plain {
		final = followPlain(a.out, title, states)
	} else {
		m, err := tea.NewProgram(newJudgeModel(title, 0, states)).Run()
		if err != nil {
			return err
		}
		jm := m.(judgeModel)
		if jm.cancelled {
			return nil
		}
		final = jm.state
	}

	if final.SubmissionError != "" {
		return errors.New(final.SubmissionError)
	}
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, historyTable(cache.Get(opts.contestID)))
	if final.JudgingError != nil {
		return final.JudgingError
	}
	return nil
}

// followPlain prints one line per change of the judging status
func followPlain(w io.Writer, title string, states <-chan submsrvc.State) submsrvc.State {
	fmt.Fprintln(w, titleStyle.Render(title))
	var last string
	var st submsrvc.State
	for st = range states {
		line := plainLine(st)
		if line != "" && line != last {
			fmt.Fprintln(w, line)
			last = line
		}
		if judgingOver(st) {
			break
		}
	}
	return st
}

func plainLine(st submsrvc.State) string {
	switch {
	case st.IsSubmitting:
		return "submitting"
	case st.SubmissionError != "":
		return "error: " + st.SubmissionError
	case st.JudgingError != nil:
		return "error: " + st.JudgingError.Error()
	case st.LatestUpdate != nil:
		upd := st.LatestUpdate
		return fmt.Sprintf("%s %s tests=%d score=%s",
			st.SubmissionID, upd.FinalStatus, len(upd.Testcases), formatScore(upd.Score))
	case st.SubmissionID != "":
		return st.SubmissionID + " waiting for the judge"
	}
	return ""
}
