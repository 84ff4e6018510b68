package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/leadops/leadbase-cli/pkg/report"
)

var reportDate string

func initReportClient() (report.Client, error) {
	if cfg.Report.CallDetailURL == "" || cfg.Report.OperatorTimeURL == "" {
		return nil, eris.New("report endpoints are required (LEADBASE_REPORT_CALL_DETAIL_URL, LEADBASE_REPORT_OPERATOR_TIME_URL)")
	}
	return report.NewClient(cfg.Report.CallDetailURL, cfg.Report.OperatorTimeURL, cfg.Report.Token), nil
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Fetch dialer call reports",
}

var reportCallsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Fetch the per-call detail report for one day",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := initReportClient()
		if err != nil {
			return err
		}
		raw, err := client.CallDetail(cmd.Context(), reportDate)
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	},
}

var reportOperatorsCmd = &cobra.Command{
	Use:   "operators",
	Short: "Fetch per-operator time aggregates for one day",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := initReportClient()
		if err != nil {
			return err
		}
		raw, err := client.OperatorTimes(cmd.Context(), reportDate)
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{reportCallsCmd, reportOperatorsCmd} {
		c.Flags().StringVar(&reportDate, "date", time.Now().Format("2006-01-02"), "report day (YYYY-MM-DD)")
	}
	reportCmd.AddCommand(reportCallsCmd)
	reportCmd.AddCommand(reportOperatorsCmd)
	rootCmd.AddCommand(reportCmd)
}
