package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/hawcbmd/internal/chart"
	"github.com/rewired-gh/hawcbmd/internal/logger"
	"github.com/rewired-gh/hawcbmd/internal/pipeline"
)

var plotOpts struct {
	out       string
	xlog      bool
	ylog      bool
	doseUnits int
	modelIDs  []int
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render the dose-response chart with BMD curves as SVG",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		w := cmd.OutOrStdout()
		if plotOpts.out != "" && plotOpts.out != "-" {
			f, err := os.Create(plotOpts.out)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close()
			w = f
		}

		err = e.runner.Plot(cmd.Context(), endpointID, sessionURL, pipeline.PlotOptions{
			XLog:      plotOpts.xlog,
			YLog:      plotOpts.ylog,
			DoseUnits: plotOpts.doseUnits,
			ModelIDs:  plotOpts.modelIDs,
			Chart: chart.Options{
				Width:   cfg.Chart.Width,
				Height:  cfg.Chart.Height,
				Samples: cfg.Chart.Samples,
			},
		}, w)
		if err != nil {
			return err
		}
		if plotOpts.out != "" && plotOpts.out != "-" {
			logger.Info("Chart written to %s", plotOpts.out)
		}
		return nil
	},
}

func init() {
	addSessionFlags(plotCmd)
	plotCmd.Flags().StringVar(&plotOpts.out, "out", "", "output SVG file (default stdout)")
	plotCmd.Flags().BoolVar(&plotOpts.xlog, "xlog", false, "log-scale dose axis")
	plotCmd.Flags().BoolVar(&plotOpts.ylog, "ylog", false, "log-scale response axis")
	plotCmd.Flags().IntVar(&plotOpts.doseUnits, "units", 0, "dose units id to display (default session units)")
	plotCmd.Flags().IntSliceVar(&plotOpts.modelIDs, "model", nil, "model ids to draw (default recommended)")
	rootCmd.AddCommand(plotCmd)
}
