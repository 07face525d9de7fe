package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func parsePersonID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid person id %q", arg)
	}
	return id, nil
}

func newDuplicatesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates",
		Short: "List persons sharing an identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			groups, err := a.Service.FindDuplicates(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, groups)
			}
			if len(groups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No duplicate identities found")
				return nil
			}
			rows := make([][]string, 0, len(groups))
			for _, g := range groups {
				names := make([]string, 0, len(g.Persons))
				for _, p := range g.Persons {
					names = append(names, p.DisplayName)
				}
				rows = append(rows, []string{g.MatchField, g.Value, formatIDs(g.PersonIDs()), strings.Join(names, ", ")})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value", "Persons", "Names"}, rows, nil))
			return nil
		},
	}
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var keepID int64
	var discardIDs []int64
	cmd := &cobra.Command{
		Use:   "merge --keep <id> --discard <id>[,<id>...]",
		Short: "Merge duplicate persons into one record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Service.Merge(cmd.Context(), keepID, discardIDs)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			merged := "-"
			if len(res.MergedFields) > 0 {
				merged = strings.Join(res.MergedFields, ", ")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d persons into %d: %d observations and %d descriptors moved, backfilled %s\n",
				res.DeletedCount, res.KeptID, res.MovedObservations, res.MovedDescriptors, merged)
			return nil
		},
	}
	cmd.Flags().Int64Var(&keepID, "keep", 0, "Person to keep")
	cmd.Flags().Int64SliceVar(&discardIDs, "discard", nil, "Persons to fold into the kept one")
	_ = cmd.MarkFlagRequired("keep")
	_ = cmd.MarkFlagRequired("discard")
	return cmd
}

func newDeletePersonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-person <id>",
		Short: "Delete a person, unlinking their observations",
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
			res, err := a.Service.DeletePerson(cmd.Context(), id)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted person %d: %d observations unlinked, %d descriptors removed\n",
				res.PersonID, res.UnlinkedObservations, res.DeletedDescriptors)
			return nil
		},
	}
}
