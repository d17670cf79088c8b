package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/programme-lv/contest-client/auth"
	"github.com/programme-lv/contest-client/planglist"
	"github.com/programme-lv/contest-client/submhist"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and store the token in the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(a.out, "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if _, err := a.client.Login(cmd.Context(), args[0], password); err != nil {
				return err
			}
			if err := a.saveToken(); err != nil {
				return fmt.Errorf("saving token: %w", err)
			}
			claims, err := auth.Inspect(a.client.Token())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s (%s)\n", okStyle.Render("Logged in as"), claims.Username, claims.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password, read from stdin when empty")
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Token == "" {
				return errors.New("not logged in")
			}
			claims, err := auth.Inspect(a.cfg.Token)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s (%s), %s\n", claims.Username, claims.Name, claims.Role)
			if claims.Expired(time.Now()) {
				fmt.Fprintln(a.out, failStyle.Render("token expired, log in again"))
			} else if claims.ExpiresAt != nil {
				fmt.Fprintln(a.out, dimStyle.Render("token valid until "+formatTime(claims.ExpiresAt.Time)))
			}
			return nil
		},
	}
}

func newLangsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "langs",
		Short: "List programming languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := newTable("ID", "Name", "Language", "File", "Enabled")
			for _, l := range planglist.ListProgrLangs() {
				enabled := okStyle.Render("yes")
				if !l.Enabled {
					enabled = dimStyle.Render("no")
				}
				t.Row(strconv.Itoa(l.ID), l.ShortName, l.FullName, l.CodeFilename, enabled)
			}
			fmt.Fprintln(a.out, t.Render())
			return nil
		},
	}
}

func newCasesCmd(a *app) *cobra.Command {
	var contestID string
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "List the cases of a contest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, cases, err := a.client.ContestCases(cmd.Context(), contestID)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, titleStyle.Render(detail.Name))
			t := newTable("Code", "Name", "Time", "Memory", "ID")
			for _, c := range cases {
				t.Row(c.ProblemCode, c.Name,
					fmt.Sprintf("%d ms", c.TimeLimitMs),
					fmt.Sprintf("%d MB", c.MemoryLimitMb),
					dimStyle.Render(c.CaseID))
			}
			fmt.Fprintln(a.out, t.Render())
			return nil
		},
	}
	cmd.Flags().StringVarP(&contestID, "contest", "c", "", "contest id (required)")
	cmd.MarkFlagRequired("contest")
	return cmd
}

func requireClass(a *app) error {
	if a.classID == "" {
		return errors.New("no class selected, use --class or set class_id in the config")
	}
	return nil
}

func newContestsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "contests",
		Short: "List the contests of the class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireClass(a); err != nil {
				return err
			}
			contests, err := a.client.ListClassContests(cmd.Context(), a.classID)
			if err != nil {
				return err
			}
			now := time.Now()
			t := newTable("ID", "Name", "Start", "End", "")
			for _, cc := range contests {
				name := ""
				if cc.Contest != nil {
					name = cc.Contest.Name
				}
				state := dimStyle.Render("closed")
				if cc.IsOpen(now) {
					state = okStyle.Render("open")
				}
				t.Row(cc.ContestID, name, formatTime(cc.StartTime), formatTime(cc.EndTime), state)
			}
			fmt.Fprintln(a.out, t.Render())
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var contestID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show your submissions in a contest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := submhist.NewLoader(submhist.NewCache(), a.client)
			entries, err := loader.Query().Handle(cmd.Context(), submhist.HistoryQuery{
				ContestID: contestID,
				ClassID:   a.classID,
			})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.out, dimStyle.Render("no submissions yet"))
				return nil
			}
			fmt.Fprintln(a.out, historyTable(entries))
			return nil
		},
	}
	cmd.Flags().StringVarP(&contestID, "contest", "c", "", "contest id (required)")
	cmd.MarkFlagRequired("contest")
	return cmd
}

func newLeaderboardCmd(a *app) *cobra.Command {
	var contestID string
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the contest leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, err := a.client.GetLeaderboard(cmd.Context(), contestID, a.classID)
			if err != nil {
				return err
			}
			codes := make([]string, 0, len(lb.Cases))
			for _, c := range lb.Cases {
				codes = append(codes, c.CaseCode)
			}
			sort.Strings(codes)

			headers := append([]string{"#", "Name", "Solved", "Penalty"}, codes...)
			t := newTable(headers...)
			for _, row := range lb.Leaderboard {
				cells := []string{strconv.Itoa(row.Rank), row.Name, strconv.Itoa(row.SolvedCount), strconv.Itoa(row.TotalPenalty)}
				for _, code := range codes {
					res, ok := row.CaseResults[code]
					switch {
					case !ok:
						cells = append(cells, dimStyle.Render("-"))
					case res.Score >= 100:
						cells = append(cells, okStyle.Render(formatScore(res.Score)))
					default:
						cells = append(cells, formatScore(res.Score))
					}
				}
				t.Row(cells...)
			}
			fmt.Fprintln(a.out, t.Render())
			return nil
		},
	}
	cmd.Flags().StringVarP(&contestID, "contest", "c", "", "contest id (required)")
	cmd.MarkFlagRequired("contest")
	return cmd
}

func newSubmissionsCmd(a *app) *cobra.Command {
	var contestID string
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List every submission of the class in a contest (lecturers)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireClass(a); err != nil {
				return err
			}
			rows, err := a.client.ListAllContestSubmissions(cmd.Context(), contestID, a.classID)
			if err != nil {
				return err
			}
			t := newTable("Time", "Student", "Case", "Status", "Score", "Language")
			for _, r := range rows {
				t.Row(
					formatTime(r.SubmitTime),
					r.Name+" "+dimStyle.Render(r.Username),
					r.CaseCode,
					renderStatus(r.Status),
					formatScore(r.Score),
					planglist.DisplayName(r.LanguageID),
				)
			}
			fmt.Fprintln(a.out, t.Render())
			return nil
		},
	}
	cmd.Flags().StringVarP(&contestID, "contest", "c", "", "contest id (required)")
	cmd.MarkFlagRequired("contest")
	return cmd
}

func newStatementCmd(a *app) *cobra.Command {
	var (
		contestID string
		caseRef   string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Download the pdf statement of a case",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cases, err := a.client.ContestCases(cmd.Context(), contestID)
			if err != nil {
				return err
			}
			c, ok := findCase(cases, caseRef)
			if !ok {
				return fmt.Errorf("case %q is not part of contest %s", caseRef, contestID)
			}
			if c.PdfFileURL == "" {
				return fmt.Errorf("case %s has no statement", c.ProblemCode)
			}
			if output == "" {
				output = c.ProblemCode + ".pdf"
			}
			f, err := os.Create(filepath.Clean(output))
			if err != nil {
				return err
			}
			n, err := a.client.DownloadStatement(cmd.Context(), c, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(output)
				return err
			}
			fmt.Fprintf(a.out, "saved %s (%d bytes)\n", output, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&contestID, "contest", "c", "", "contest id (required)")
	cmd.Flags().StringVarP(&caseRef, "case", "p", "", "case id or problem code (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, <code>.pdf by default")
	cmd.MarkFlagRequired("contest")
	cmd.MarkFlagRequired("case")
	return cmd
}
