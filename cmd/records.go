package cmd

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tsheet/internal/aggregate"
	"github.com/Tiliavir/tsheet/internal/gateway"
	"github.com/Tiliavir/tsheet/internal/model"
	"github.com/Tiliavir/tsheet/internal/sheet"
	"github.com/Tiliavir/tsheet/internal/table"
	"github.com/Tiliavir/tsheet/internal/timecalc"
)

// rangeFlags selects a window of days either explicitly or by preset.
type rangeFlags struct {
	from   string
	to     string
	preset string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "Last day (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&f.preset, "preset", "", "Named window: last7, last14, last30, last90, week")
}

// explicit reports whether a day was given on the command line.
func (f *rangeFlags) explicit() bool { return f.from != "" || f.to != "" }

// resolve returns the selected window. Without flags the configured default
// preset applies.
func (f *rangeFlags) resolve(e *env, now time.Time) (timecalc.Range, error) {
	if f.explicit() {
		if f.preset != "" {
			return timecalc.Range{}, fmt.Errorf("--preset cannot be combined with --from/--to")
		}
		to := f.to
		if to == "" {
			to = now.Format(model.DayLayout)
		}
		from := f.from
		if from == "" {
			from = to
		}
		return timecalc.ParseRange(from, to, now.Location())
	}
	preset := f.preset
	if preset == "" {
		preset = e.cfg.Records.DefaultRange
	}
	return timecalc.Preset(preset, now)
}

func newRecordsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"rec"},
		Short:   "List and manage time records",
	}
	cmd.AddCommand(
		newRecordsListCommand(a),
		newRecordsAddCommand(a),
		newRecordsEditCommand(a),
		newRecordsDeleteCommand(a),
		newRecordsExportCommand(a),
	)
	return cmd
}

func newRecordsListCommand(a *app) *cobra.Command {
	var (
		window rangeFlags
		all    bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records in a date window",
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

			var records []model.Record
			switch {
			case all:
				records, err = e.client.AllRecords(a.ctx)
				records = inRange(records, r)
			case window.explicit():
				records, err = e.client.FilterRecords(a.ctx, r.FromDay(), r.ToDay())
			default:
				records, err = e.client.ListRecords(a.ctx, r.FromDay(), r.ToDay())
			}
			if err != nil {
				return fmt.Errorf("loading records: %s", gateway.Message(err))
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return writeJSON(out, records)
			case "csv":
				printRecordsCSV(out, records, all)
			case "table":
				fmt.Fprintf(out, "Records %s\n", r.Label())
				printRecords(out, records, preferredHours(e, u), all)
			default:
				return fmt.Errorf("unknown format %q (want table, csv or json)", format)
			}
			return nil
		},
	}
	window.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "Show every user's records (admin)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, csv, json")
	return cmd
}

func inRange(records []model.Record, r timecalc.Range) []model.Record {
	from, to := r.FromDay(), r.ToDay()
	out := records[:0:0]
	for _, rec := range records {
		if d := rec.Day(); d >= from && d <= to {
			out = append(out, rec)
		}
	}
	return out
}

func newRecordsAddCommand(a *app) *cobra.Command {
	var (
		date, description, hours, forEmail string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Book a record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			if date == "" {
				date = a.now().Format(model.DayLayout)
			}
			draft := table.Draft{
				table.FieldDate:        date,
				table.FieldDescription: description,
				table.FieldHours:       hours,
			}

			var s *sheet.Sheet[model.Record]
			if forEmail != "" {
				draft[table.FieldEmail] = forEmail
				s = sheet.New(table.AdminRecordColumns(), &sheet.AdminRecordsBackend{API: e.client}, e.log,
					sheet.WithCreateColumns(table.AdminRecordCreateColumns()))
			} else {
				s = sheet.New(table.RecordColumns(), &sheet.RecordsBackend{API: e.client}, e.log)
			}
			rec, msg, err := s.Create(a.ctx, draft)
			if err != nil {
				return describe("add failed", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s  %s  %s  (id %s)\n",
				notice(msg, "Record added."), rec.Day(), rec.Description, timecalc.FormatHours(rec.Hours), rec.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVarP(&description, "description", "m", "", "What was done")
	cmd.Flags().StringVar(&hours, "hours", "", "Duration in hours")
	cmd.Flags().StringVar(&forEmail, "for", "", "Book for the user with this email (admin)")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("hours")
	return cmd
}

func newRecordsEditCommand(a *app) *cobra.Command {
	var (
		date, description, hours string
		all                      bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			var s *sheet.Sheet[model.Record]
			if all {
				s = sheet.New(table.AdminRecordColumns(), &sheet.AdminRecordsBackend{API: e.client}, e.log)
			} else {
				s = sheet.New(table.RecordColumns(), &sheet.RecordsBackend{API: e.client}, e.log)
			}
			if err := s.Reload(a.ctx); err != nil {
				return fmt.Errorf("loading records: %s", gateway.Message(err))
			}
			if !s.Begin(args[0]) {
				return fmt.Errorf("record %s not found", args[0])
			}
			changes := map[string]string{}
			if cmd.Flags().Changed("date") {
				changes[table.FieldDate] = date
			}
			if cmd.Flags().Changed("description") {
				changes[table.FieldDescription] = description
			}
			if cmd.Flags().Changed("hours") {
				changes[table.FieldHours] = hours
			}
			if len(changes) == 0 {
				return fmt.Errorf("nothing to change: pass --date, --description or --hours")
			}
			for field, value := range changes {
				if err := s.UpdateField(field, value); err != nil {
					return err
				}
			}
			rec, msg, err := s.Commit(a.ctx)
			if err != nil {
				return describe("edit failed", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s  %s  %s\n",
				notice(msg, "Record updated."), rec.Day(), rec.Description, timecalc.FormatHours(rec.Hours))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "New day (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&description, "description", "m", "", "New description")
	cmd.Flags().StringVar(&hours, "hours", "", "New duration in hours")
	cmd.Flags().BoolVar(&all, "all", false, "Look the record up among every user's records (admin)")
	return cmd
}

func newRecordsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			s := sheet.New(table.RecordColumns(), &sheet.RecordsBackend{API: e.client}, e.log)
			msg, err := s.Delete(a.ctx, args[0])
			if err != nil {
				return describe("delete failed", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), notice(msg, "Record deleted."))
			return nil
		},
	}
}

func newRecordsExportCommand(a *app) *cobra.Command {
	var userID, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the server's CSV export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			if userID == "" {
				u, err := signedIn(e)
				if err != nil {
					return err
				}
				userID = u.ID
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			n, err := e.client.ExportRecords(a.ctx, userID, w)
			if err != nil {
				return describe("export failed", err)
			}
			if output != "" && output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", n, output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id to export (defaults to the signed-in user)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

// describe turns validation and server errors into one readable line.
func describe(prefix string, err error) error {
	var verr *table.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	if gateway.IsRetryable(err) {
		return fmt.Errorf("%s: %s (temporary, try again)", prefix, gateway.Message(err))
	}
	return fmt.Errorf("%s: %s", prefix, gateway.Message(err))
}

// printRecords groups records by day and marks each day against target.
func printRecords(w io.Writer, records []model.Record, target float64, withOwner bool) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}
	key := model.Record.Day
	if withOwner {
		key = aggregate.OwnerDay
	}
	totals := aggregate.TotalsBy(records, key)

	// Rows of one group must be adjacent whatever order the server used.
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(x, y model.Record) int {
		return cmp.Or(strings.Compare(x.Day(), y.Day()), strings.Compare(key(x), key(y)))
	})

	var current string
	for _, r := range sorted {
		if k := key(r); k != current {
			current = k
			st := aggregate.Classify(k, totals, target)
			mark := "under"
			if st.Meets {
				mark = "ok"
			}
			header := r.Day()
			if withOwner {
				header += "  " + ownerLabel(r)
			}
			fmt.Fprintf(w, "%s  %s / %s  %s\n", header, timecalc.FormatHours(st.Total), timecalc.FormatHours(target), mark)
		}
		fmt.Fprintf(w, "  %-26s%-40s%s\n", r.ID, r.Description, timecalc.FormatHours(r.Hours))
	}
	fmt.Fprintf(w, "Total  %s\n", timecalc.FormatHours(aggregate.Sum(records)))
}

func ownerLabel(r model.Record) string {
	if name := r.OwnerName(); name != "" {
		return name
	}
	if r.Owner != nil && r.Owner.Email != "" {
		return r.Owner.Email
	}
	return "No user assigned"
}

func printRecordsCSV(w io.Writer, records []model.Record, withOwner bool) {
	if withOwner {
		fmt.Fprintln(w, "id,date,user,description,duration")
	} else {
		fmt.Fprintln(w, "id,date,description,duration")
	}
	for _, r := range records {
		if withOwner {
			fmt.Fprintf(w, "%s,%s,%s,%s,%s\n", csvEscape(r.ID), r.Day(), csvEscape(ownerLabel(r)),
				csvEscape(r.Description), table.FormatHours(r.Hours))
			continue
		}
		fmt.Fprintf(w, "%s,%s,%s,%s\n", csvEscape(r.ID), r.Day(), csvEscape(r.Description), table.FormatHours(r.Hours))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	needsQuote := false
	for _, c := range s {
		if c == ',' || c == '"' || c == '\n' || c == '\r' {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return s
	}
	// Escape internal double quotes by doubling them.
	escaped := ""
	for _, c := range s {
		if c == '"' {
			escaped += "\""
		}
		escaped += string(c)
	}
	return `"` + escaped + `"`
}
