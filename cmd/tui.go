package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/tsheet/internal/aggregate"
	"github.com/Tiliavir/tsheet/internal/gateway"
	"github.com/Tiliavir/tsheet/internal/logging"
	"github.com/Tiliavir/tsheet/internal/model"
	"github.com/Tiliavir/tsheet/internal/sheet"
	"github.com/Tiliavir/tsheet/internal/table"
	"github.com/Tiliavir/tsheet/internal/timecalc"
	"github.com/Tiliavir/tsheet/internal/tui"
)

func newTUICommand(a *app) *cobra.Command {
	var (
		window rangeFlags
		view   string
	)
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive table",
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

			// The screen belongs to the table; diagnostics go to the log file.
			log, closer, err := logging.OpenFile(e.cfg.Log)
			if err != nil {
				return err
			}
			defer closer.Close()
			client, err := gateway.New(gateway.Config{BaseURL: e.cfg.Server.BaseURL, Timeout: e.cfg.Server.Timeout}, e.session, log)
			if err != nil {
				return err
			}

			var m tea.Model
			switch view {
			case "records":
				r, err := window.resolve(e, a.now())
				if err != nil {
					return err
				}
				m = recordsTable(a, client, log, r, preferredHours(e, u))
			case "all":
				if !u.Role.CanManageAllRecords() {
					return fmt.Errorf("role %q may not see every user's records", u.Role)
				}
				m = allRecordsTable(a, client, log, targets(a, client, preferredHours(e, nil)))
			case "users":
				if !u.Role.CanManageUsers() {
					return fmt.Errorf("role %q may not manage users", u.Role)
				}
				s := sheet.New(table.UserColumns(), &sheet.UsersBackend{API: client}, log,
					sheet.WithCreateColumns(table.UserCreateColumns()), sheet.AppendCreated[model.User]())
				m = tui.New(a.ctx, s, tui.Options[model.User]{Title: "Users"})
			default:
				return fmt.Errorf("unknown view %q (want records, users or all)", view)
			}

			if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(a.ctx)).Run(); err != nil {
				return fmt.Errorf("run TUI: %w", err)
			}
			return nil
		},
	}
	window.register(cmd)
	cmd.Flags().StringVar(&view, "view", "records", "Table to open: records, users, all")
	return cmd
}

func recordsTable(a *app, client *gateway.Client, log zerolog.Logger, r timecalc.Range, target float64) tea.Model {
	backend := &sheet.RecordsBackend{API: client, Range: r}
	s := sheet.New(table.RecordColumns(), backend, log)
	return tui.New(a.ctx, s, tui.Options[model.Record]{
		Title:    "My records",
		Window:   r.Label(),
		Classify: tui.RecordHealth(target),
		Shift: func(weeks int) string {
			return backend.Shift(weeks).Label()
		},
		Summary: func(rows []model.Record) string {
			return fmt.Sprintf("%d record(s), %s total, target %s a day",
				len(rows), timecalc.FormatHours(aggregate.Sum(rows)), timecalc.FormatHours(target))
		},
	})
}

func allRecordsTable(a *app, client *gateway.Client, log zerolog.Logger, target func(string) float64) tea.Model {
	s := sheet.New(table.AdminRecordColumns(), &sheet.AdminRecordsBackend{API: client}, log,
		sheet.WithCreateColumns(table.AdminRecordCreateColumns()))
	return tui.New(a.ctx, s, tui.Options[model.Record]{
		Title:    "All records",
		Classify: tui.AdminHealth(target),
		Summary: func(rows []model.Record) string {
			return fmt.Sprintf("%d record(s), %s total", len(rows), timecalc.FormatHours(aggregate.Sum(rows)))
		},
	})
}

// targets maps owner ids to their preferred hours. Users the session may not
// list fall back to fallback.
func targets(a *app, client *gateway.Client, fallback float64) func(string) float64 {
	byID := map[string]float64{}
	if users, err := client.ListUsers(a.ctx); err == nil {
		for _, u := range users {
			byID[u.ID] = u.Target(fallback)
		}
	}
	return func(id string) float64 {
		if t, ok := byID[id]; ok {
			return t
		}
		return fallback
	}
}
