package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/hawcbmd/internal/format"
	"github.com/rewired-gh/hawcbmd/internal/models"
	"github.com/rewired-gh/hawcbmd/internal/recommend"
)

var (
	endpointID int
	sessionURL string
)

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&endpointID, "endpoint", "e", 0, "HAWC endpoint id")
	cmd.Flags().StringVarP(&sessionURL, "session", "s", "", "BMD session URL or path")
	_ = cmd.MarkFlagRequired("endpoint")
	_ = cmd.MarkFlagRequired("session")
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Classify a session's models and pick the recommended model per BMR",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		run, err := e.runner.Recommend(cmd.Context(), endpointID, sessionURL)
		if err != nil {
			return err
		}
		return printRun(cmd, run)
	},
}

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Run the session's models on the server, wait for them, then recommend",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		run, err := e.runner.ExecuteAndRecommend(cmd.Context(), endpointID, sessionURL)
		if err != nil {
			return err
		}
		return printRun(cmd, run)
	},
}

func init() {
	addSessionFlags(recommendCmd)
	addSessionFlags(executeCmd)
	rootCmd.AddCommand(recommendCmd, executeCmd)
}

type modelRow struct {
	ID          int      `json:"id" yaml:"id"`
	BMRIndex    int      `json:"bmr_index" yaml:"bmr_index"`
	Name        string   `json:"name" yaml:"name"`
	Bin         string   `json:"logic_bin" yaml:"logic_bin"`
	BMD         string   `json:"bmd" yaml:"bmd"`
	BMDL        string   `json:"bmdl" yaml:"bmdl"`
	BMDU        string   `json:"bmdu" yaml:"bmdu"`
	AIC         string   `json:"aic" yaml:"aic"`
	Recommended bool     `json:"recommended" yaml:"recommended"`
	Variable    string   `json:"recommended_variable,omitempty" yaml:"recommended_variable,omitempty"`
	Notes       []string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type runReport struct {
	Run       *models.Run         `json:"run" yaml:"run"`
	Summaries []recommend.Summary `json:"summaries" yaml:"summaries"`
	Models    []modelRow          `json:"models" yaml:"models"`
}

func newRunReport(run *models.Run) runReport {
	rep := runReport{Run: run, Summaries: recommend.Summarize(run.Models)}
	for _, m := range run.Models {
		var notes []string
		for _, b := range []models.Bin{models.BinFailure, models.BinWarning} {
			notes = append(notes, m.Recommendation.LogicNotes[b]...)
		}
		rep.Models = append(rep.Models, modelRow{
			ID:          m.ID,
			BMRIndex:    m.BMRIndex,
			Name:        m.Name,
			Bin:         m.Recommendation.LogicBin.String(),
			BMD:         format.Number(m.Output.BMD),
			BMDL:        format.Number(m.Output.BMDL),
			BMDU:        format.Number(m.Output.BMDU),
			AIC:         format.Number(m.Output.AIC),
			Recommended: m.Recommendation.Recommended,
			Variable:    m.Recommendation.RecommendedVariable,
			Notes:       notes,
		})
	}
	return rep
}

func printRun(cmd *cobra.Command, run *models.Run) error {
	rep := newRunReport(run)
	return emit(cmd.OutOrStdout(), outputFmt, rep, func() string {
		t := newTable("ID", "BMR", "Model", "Bin", "BMD", "BMDL", "BMDU", "AIC", "Rec", "Notes")
		for _, r := range rep.Models {
			rec := ""
			if r.Recommended {
				rec = "* " + r.Variable
			}
			t.add(strconv.Itoa(r.ID), strconv.Itoa(r.BMRIndex+1), r.Name, r.Bin,
				r.BMD, r.BMDL, r.BMDU, r.AIC, rec, strings.Join(r.Notes, "; "))
		}
		head := fmt.Sprintf("Run %s: endpoint %d (%s), %s rules\n\n",
			run.ID, run.EndpointID, run.DataType, run.RuleSource)
		return head + t.render()
	})
}
