package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tsheet/internal/aggregate"
	"github.com/Tiliavir/tsheet/internal/gateway"
	"github.com/Tiliavir/tsheet/internal/table"
	"github.com/Tiliavir/tsheet/internal/timecalc"
)

func newReportCommand(a *app) *cobra.Command {
	var (
		window  rangeFlags
		format  string
		allDays bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show daily totals against the preferred hours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			u, err := signedIn(e)
			if err != nil {
				return err
			}
			r, err := window.resolve(e, a.now())
			if err != nil {
				return err
			}
			records, err := e.client.ListRecords(a.ctx, r.FromDay(), r.ToDay())
			if err != nil {
				return fmt.Errorf("loading records: %s", gateway.Message(err))
			}

			target := preferredHours(e, u)
			days := aggregate.Summarize(records, target)
			if allDays {
				totals := aggregate.GroupTotals(records)
				days = days[:0]
				for _, d := range r.Days() {
					days = append(days, aggregate.Classify(d, totals, target))
				}
			}

			out := cmd.OutOrStdout()
			switch format {
			case "csv":
				fmt.Fprintln(out, "date,total_hours,preferred_hours,meets")
				for _, d := range days {
					fmt.Fprintf(out, "%s,%s,%s,%t\n", d.Day, table.FormatHours(d.Total), table.FormatHours(d.Target), d.Meets)
				}
			case "json":
				return writeJSON(out, struct {
					From  string             `json:"from"`
					To    string             `json:"to"`
					Days  []aggregate.Status `json:"days"`
					Total float64            `json:"total"`
				}{r.FromDay(), r.ToDay(), days, aggregate.Sum(records)})
			case "md":
				printReport(out, r, days, aggregate.Sum(records))
			default:
				return fmt.Errorf("unknown format %q (want md, csv or json)", format)
			}
			return nil
		},
	}
	window.register(cmd)
	cmd.Flags().StringVar(&format, "format", "md", "Output format: md, csv, json")
	cmd.Flags().BoolVar(&allDays, "all-days", false, "Include days without records")
	return cmd
}

func printReport(w io.Writer, r timecalc.Range, days []aggregate.Status, total float64) {
	fmt.Fprintf(w, "Report %s\n", r.Label())
	fmt.Fprintln(w, "----------------------------------------")
	if len(days) == 0 {
		fmt.Fprintln(w, "No records found.")
	}
	var under int
	for _, d := range days {
		mark := "ok"
		if !d.Meets {
			mark = "under by " + timecalc.FormatHours(d.Deficit)
			under++
		}
		fmt.Fprintf(w, "%-14s%-10s%s\n", d.Day, timecalc.FormatHours(d.Total), mark)
	}
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(w, "%-14s%-10s%d day(s) under target\n", "Total", timecalc.FormatHours(total), under)
}
