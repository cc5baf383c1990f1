package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var selectOpts struct {
	modelID int
	notes   string
}

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Save the chosen model for a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		saved, err := e.runner.Select(cmd.Context(), sessionURL, selectOpts.modelID, selectOpts.notes)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), outputFmt, saved, func() string {
			return fmt.Sprintf("Selected model %d\n", selectOpts.modelID)
		})
	},
}

func init() {
	selectCmd.Flags().StringVarP(&sessionURL, "session", "s", "", "BMD session URL or path")
	selectCmd.Flags().IntVarP(&selectOpts.modelID, "model", "m", 0, "model id to select")
	selectCmd.Flags().StringVar(&selectOpts.notes, "notes", "", "selection notes")
	_ = selectCmd.MarkFlagRequired("session")
	_ = selectCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(selectCmd)
}
