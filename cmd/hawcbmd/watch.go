package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/hawcbmd/internal/logger"
)

var watchEvery time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the recommendation on a fixed interval until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchEvery <= 0 {
			return eris.New("--every must be positive")
		}
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		logger.Info("Watching endpoint %d every %v", endpointID, watchEvery)

		consecutiveFailures := 0
		cycle := func() {
			run, err := e.runner.Recommend(ctx, endpointID, sessionURL)
			if err != nil {
				consecutiveFailures++
				logger.Error("Recommendation cycle failed: %v", err)
				return
			}
			if consecutiveFailures > 0 && e.tg != nil {
				if err := e.tg.SendRecovery(endpointID, consecutiveFailures); err != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", err)
				}
			}
			consecutiveFailures = 0
			logger.Debug("Run %s stored", run.ID)
		}

		cycle()
		ticker := time.NewTicker(watchEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info("Watch stopped")
				return nil
			case <-ticker.C:
				cycle()
			}
		}
	},
}

func init() {
	addSessionFlags(watchCmd)
	watchCmd.Flags().DurationVar(&watchEvery, "every", time.Hour, "interval between runs")
	rootCmd.AddCommand(watchCmd)
}
