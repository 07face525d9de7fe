package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/timmy/facecheck/internal/integrity"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "audit <person-id>",
		Short: "Score a person's descriptors against their centroid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePersonID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			audit, err := a.Service.AuditPerson(cmd.Context(), id, threshold)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, audit)
			}
			printAudit(cmd, audit)
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Similarity below which a descriptor is an outlier (0 uses the configured value)")
	return cmd
}

func printAudit(cmd *cobra.Command, audit *integrity.EmbeddingAudit) {
	out := cmd.OutOrStdout()
	if !audit.Eligible {
		fmt.Fprintf(out, "Person %d has %d usable descriptors, too few to audit\n", audit.PersonID, audit.Considered)
		return
	}
	rows := make([][]string, 0, len(audit.Similarities))
	for _, s := range audit.Similarities {
		flag := ""
		if s.Outlier {
			flag = "outlier"
		}
		rows = append(rows, []string{
			strconv.FormatInt(s.DescriptorID, 10),
			strconv.FormatInt(s.PhotoID, 10),
			formatRatio(s.Similarity),
			flag,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Descriptor", "Photo", "Similarity", ""},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "Person %d: %d outliers below %s\n", audit.PersonID, len(audit.OutlierIDs), formatRatio(audit.Threshold))
}

func printExclusion(cmd *cobra.Command, verb string, res *integrity.ExclusionResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "Person %d: %s %d descriptors (%s), index rebuilt: %v\n",
		res.PersonID, verb, res.Count, formatIDs(res.ChangedIDs), res.IndexRebuilt)
	for _, e := range res.Errors {
		fmt.Fprintf(cmd.OutOrStdout(), "  descriptor %d: %s\n", e.ID, e.Message)
	}
}

func newClearOutliersCommand(ctx *commandContext) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "clear-outliers <person-id>",
		Short: "Exclude a person's outlier descriptors from the similarity index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePersonID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Service.ClearOutliers(cmd.Context(), id, threshold)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			printExclusion(cmd, "excluded", res)
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Similarity below which a descriptor is an outlier (0 uses the configured value)")
	return cmd
}

func newReinstateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reinstate <person-id>",
		Short: "Clear the excluded flag on a person's descriptors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePersonID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Service.Reinstate(cmd.Context(), id)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			printExclusion(cmd, "reinstated", res)
			return nil
		},
	}
}

func newMassAuditCommand(ctx *commandContext) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "mass-audit",
		Short: "Audit every person and exclude their outlier descriptors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Service.MassAudit(cmd.Context(), threshold)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			rows := make([][]string, 0, len(res.Persons))
			for _, p := range res.Persons {
				if p.Excluded == 0 {
					continue
				}
				rows = append(rows, []string{
					strconv.FormatInt(p.PersonID, 10),
					strconv.Itoa(p.Before),
					strconv.Itoa(p.After),
					strconv.Itoa(p.Excluded),
				})
			}
			out := cmd.OutOrStdout()
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"Person", "Before", "After", "Excluded"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
				))
			}
			fmt.Fprintf(out, "Audited %d persons at %s: %d descriptors excluded, index rebuilt: %v\n",
				len(res.Persons), formatRatio(res.Threshold), res.TotalExcluded, res.IndexRebuilt)
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Similarity below which a descriptor is an outlier (0 uses the configured value)")
	return cmd
}
