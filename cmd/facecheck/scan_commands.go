package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/integrity"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run an integrity scan and record it in the run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			report, _, err := a.Service.RunScan(cmd.Context())
			if err != nil && report == nil {
				return err
			}
			if ctx.jsonOutput() {
				if jsonErr := writeJSON(cmd, report); jsonErr != nil {
					return jsonErr
				}
				return err
			}
			printReport(cmd, report)
			return err
		},
	}
}

func printReport(cmd *cobra.Command, report *integrity.Report) {
	rows := make([][]string, 0, len(report.Classifications))
	for _, info := range integrity.SortedIssueTypes() {
		cat, ok := report.Classifications[info]
		if !ok {
			continue
		}
		count := strconv.Itoa(cat.Count)
		if _, performed := report.PerCategoryCounts[info]; !performed {
			count = "failed"
		}
		state := string(cat.State)
		if state == "" {
			state = "-"
		}
		rows = append(rows, []string{string(info), string(cat.Severity), string(cat.Fixability), count, state})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"Issue", "Severity", "Fixability", "Count", "State"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "Scan %s: %d issues, %d/%d checks performed in %dms\n",
		report.ScanID, report.TotalIssues, report.ChecksPerformed, report.ChecksAttempted, report.DurationMs)
	for _, fc := range report.FailedChecks {
		fmt.Fprintf(out, "  %s failed: %s\n", fc.IssueType, fc.Reason)
	}
}

func newFixCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fix <issue-type>",
		Short: "Apply the automatic fix for one issue type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Service.ApplyFix(cmd.Context(), integrity.IssueType(args[0]))
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d fixed, %d failed (%s), index rebuilt: %v\n",
				res.IssueType, res.FixedCount, res.FailedCount, res.State, res.IndexRebuilt)
			if len(res.Errors) > 0 {
				rows := make([][]string, 0, len(res.Errors))
				for _, e := range res.Errors {
					rows = append(rows, []string{strconv.FormatInt(e.ID, 10), e.Message})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Error"}, rows, []columnAlignment{alignRight, alignLeft}))
			}
			return nil
		},
	}
}

func newIssueTypesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "issue-types",
		Short: "List issue categories with their severity and fixability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			types := a.Service.IssueTypes()
			if ctx.jsonOutput() {
				return writeJSON(cmd, types)
			}
			rows := make([][]string, 0, len(types))
			for _, t := range types {
				policy := t.Policy
				if policy == "" {
					policy = "-"
				}
				rows = append(rows, []string{string(t.Type), string(t.Severity), string(t.Fixability), policy})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Issue", "Severity", "Fixability", "Policy"}, rows, nil))
			return nil
		},
	}
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent integrity scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := a.Service.ListRuns(cmd.Context(), domain.ScanRunStatus(status), limit, 0)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, runs)
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					string(r.Status),
					strconv.Itoa(r.TotalIssues),
					fmt.Sprintf("%d/%d", r.ChecksPerformed, r.ChecksAttempted),
					strconv.FormatInt(r.DurationMs, 10),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Scan", "Started", "Status", "Issues", "Checks", "ms"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (complete or partial)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")
	return cmd
}
