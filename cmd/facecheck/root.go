package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var jsonFlag bool
	var verboseFlag bool

	ctx := newCommandContext(&configFlag, &jsonFlag, &verboseFlag)
	return newRootCommandWithContext(ctx, &configFlag, &jsonFlag, &verboseFlag)
}

func newRootCommandWithContext(ctx *commandContext, configFlag *string, jsonFlag, verboseFlag *bool) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "facecheck",
		Short:         "Integrity checks and repairs for the face-tagging dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(jsonFlag, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(verboseFlag, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newFixCommand(ctx))
	rootCmd.AddCommand(newIssueTypesCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newDuplicatesCommand(ctx))
	rootCmd.AddCommand(newMergeCommand(ctx))
	rootCmd.AddCommand(newDeletePersonCommand(ctx))
	rootCmd.AddCommand(newAuditCommand(ctx))
	rootCmd.AddCommand(newClearOutliersCommand(ctx))
	rootCmd.AddCommand(newReinstateCommand(ctx))
	rootCmd.AddCommand(newMassAuditCommand(ctx))
	rootCmd.AddCommand(newSettingsCommand(ctx))

	return rootCmd
}
