package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/hawcbmd/internal/storage"
)

var historyOpts struct {
	endpointID int
	limit      int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored recommendation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context(), historyOpts.endpointID, historyOpts.limit)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), outputFmt, runs, func() string {
			t := newTable("Run", "Created", "Endpoint", "Type", "Rules", "Models", "Recommended")
			for _, r := range runs {
				var ids []string
				for _, id := range r.RecommendedIDs() {
					ids = append(ids, strconv.Itoa(id))
				}
				t.add(r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), strconv.Itoa(r.EndpointID),
					string(r.DataType), string(r.RuleSource), strconv.Itoa(len(r.Models)), strings.Join(ids, ","))
			}
			return t.render()
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printRun(cmd, run)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyOpts.endpointID, "endpoint", "e", 0, "only runs for this endpoint")
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 20, "maximum runs to list")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
