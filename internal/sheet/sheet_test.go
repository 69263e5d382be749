package sheet_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tiliavir/tsheet/internal/aggregate"
	"github.com/Tiliavir/tsheet/internal/auth"
	"github.com/Tiliavir/tsheet/internal/edit"
	"github.com/Tiliavir/tsheet/internal/gateway"
	"github.com/Tiliavir/tsheet/internal/gateway/gatewaytest"
	"github.com/Tiliavir/tsheet/internal/model"
	"github.com/Tiliavir/tsheet/internal/sheet"
	"github.com/Tiliavir/tsheet/internal/table"
	"github.com/Tiliavir/tsheet/internal/timecalc"
)

type env struct {
	srv    *gatewaytest.Server
	client *gateway.Client
	me     model.User
}

func newEnv(t *testing.T, role model.Role) env {
	t.Helper()
	srv := gatewaytest.New(t)
	me := srv.AddUser(model.User{Name: "Ada", Email: "ada@example.com", Role: role, PreferredHours: model.Hours(8)}, "pw")
	client, err := gateway.New(gateway.Config{BaseURL: srv.BaseURL(), Timeout: 5 * time.Second}, auth.Memory(srv.Issue(me)), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return env{srv: srv, client: client, me: me}
}

func february() timecalc.Range {
	r, _ := timecalc.ParseRange("2024-02-01", "2024-02-29", time.UTC)
	return r
}

func recordSheet(e env) *sheet.Sheet[model.Record] {
	return sheet.New(table.RecordColumns(), &sheet.RecordsBackend{API: e.client, Range: february()}, zerolog.Nop())
}

func dayTotal(s *sheet.Sheet[model.Record], day string) float64 {
	return aggregate.GroupTotals(s.Rows())[day]
}

func TestCreateUpdatesAggregate(t *testing.T) {
	e := newEnv(t, model.RoleUser)
	s := recordSheet(e)
	ctx := context.Background()
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if got := dayTotal(s, "2024-02-01"); got != 0 {
		t.Fatalf("total before = %v", got)
	}

	r, msg, err := s.Create(ctx, table.Draft{"description": "X", "date": "2024-02-01", "duration": "4"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if msg == "" {
		t.Error("no server message")
	}
	if _, ok := s.Get(r.ID); !ok {
		t.Error("created record not in store")
	}
	if got := dayTotal(s, "2024-02-01"); got != 4 {
		t.Errorf("total after = %v, want 4", got)
	}
}

func TestCreateInvalidDraftSkipsBackend(t *testing.T) {
	e := newEnv(t, model.RoleUser)
	s := recordSheet(e)
	before := len(e.srv.Requests())

	_, _, err := s.Create(context.Background(), table.Draft{"description": "", "date": "2024-02-01", "duration": "4"})
	var verr *table.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v", err)
	}
	if len(e.srv.Requests()) != before {
		t.Error("backend called with an invalid draft")
	}
}

func TestRejectedUpdateKeepsStoreAndSession(t *testing.T) {
	e := newEnv(t, model.RoleUser)
	rec := e.srv.AddRecord(e.me, model.Record{Date: "2024-02-01", Description: "X", Hours: 4})
	s := recordSheet(e)
	ctx := context.Background()
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}

	e.srv.Fail(http.MethodPut, "/records/:id", http.StatusInternalServerError, "boom")
	if !s.Begin(rec.ID) {
		t.Fatal("Begin failed")
	}
	if err := s.UpdateField(table.FieldHours, "10"); err != nil {
		t.Fatal(err)
	}
	_, _, err := s.Commit(ctx)
	if !gateway.IsRetryable(err) {
		t.Fatalf("Commit err = %v, want retryable server error", err)
	}

	got, _ := s.Get(rec.ID)
	if got.Hours != 4 {
		t.Errorf("store hours = %v, want 4", got.Hours)
	}
	if s.Session().State() != edit.Editing {
		t.Error("session closed after rejection")
	}
	if dayTotal(s, "2024-02-01") != 4 {
		t.Error("aggregate changed after rejection")
	}

	e.srv.Clear()
	updated, _, err := s.Commit(ctx)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if updated.Hours != 10 || dayTotal(s, "2024-02-01") != 10 {
		t.Errorf("after retry: %+v, total %v", updated, dayTotal(s, "2024-02-01"))
	}
}

func TestDeleteRemovesFromAggregate(t *testing.T) {
	e := newEnv(t, model.RoleUser)
	a := e.srv.AddRecord(e.me, model.Record{Date: "2024-02-02", Description: "a", Hours: 3})
	e.srv.AddRecord(e.me, model.Record{Date: "2024-02-02", Description: "b", Hours: 2})
	s := recordSheet(e)
	ctx := context.Background()
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if dayTotal(s, "2024-02-02") != 5 {
		t.Fatalf("total = %v", dayTotal(s, "2024-02-02"))
	}

	if _, err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Get(a.ID); ok {
		t.Error("deleted record still in store")
	}
	if dayTotal(s, "2024-02-02") != 2 {
		t.Errorf("total after delete = %v, want 2", dayTotal(s, "2024-02-02"))
	}
}

func TestDeleteNotFoundKeepsRow(t *testing.T) {
	e := newEnv(t, model.RoleUser)
	a := e.srv.AddRecord(e.me, model.Record{Date: "2024-02-02", Description: "a", Hours: 3})
	s := recordSheet(e)
	ctx := context.Background()
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}

	e.srv.Fail(http.MethodDelete, "/records/:id", http.StatusNotFound, "Record not found")
	if _, err := s.Delete(ctx, a.ID); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("Delete = %v, want ErrNotFound", err)
	}
	if _, ok := s.Get(a.ID); !ok {
		t.Error("row dropped before the next fetch")
	}
}

func TestDeleteCancelsEditOfRow(t *testing.T) {
	e := newEnv(t, model.RoleUser)
	a := e.srv.AddRecord(e.me, model.Record{Date: "2024-02-02", Description: "a", Hours: 3})
	s := recordSheet(e)
	ctx := context.Background()
	_ = s.Reload(ctx)

	s.Begin(a.ID)
	if _, err := s.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if s.Session().State() != edit.Idle {
		t.Error("edit of deleted row still open")
	}
}

func TestReloadFailureKeepsRows(t *testing.T) {
	e := newEnv(t, model.RoleUser)
	e.srv.AddRecord(e.me, model.Record{Date: "2024-02-02", Description: "a", Hours: 3})
	s := recordSheet(e)
	ctx := context.Background()
	_ = s.Reload(ctx)

	e.srv.Fail(http.MethodGet, "/records", http.StatusInternalServerError, "down")
	if err := s.Reload(ctx); err == nil {
		t.Fatal("Reload succeeded")
	}
	if len(s.Rows()) != 1 {
		t.Errorf("rows = %d, want 1", len(s.Rows()))
	}
}

func TestAdminRecordsKeepOwnerOnUpdate(t *testing.T) {
	e := newEnv(t, model.RoleAdmin)
	bob := e.srv.AddUser(model.User{Name: "Bob", Email: "bob@example.com"}, "pw")
	rec := e.srv.AddRecord(bob, model.Record{Date: "2024-02-03", Description: "x", Hours: 1})

	s := sheet.New(table.AdminRecordColumns(), &sheet.AdminRecordsBackend{API: e.client}, zerolog.Nop(),
		sheet.WithCreateColumns(table.AdminRecordCreateColumns()))
	ctx := context.Background()
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}

	s.Begin(rec.ID)
	_ = s.UpdateField(table.FieldDescription, "y")
	got, _, err := s.Commit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.OwnerName() != "Bob" || got.Description != "y" {
		t.Errorf("updated = %+v", got)
	}

	created, _, err := s.Create(ctx, table.Draft{"email": "bob@example.com", "date": "2024-02-04", "description": "z", "duration": "2"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rows := s.Rows(); rows[0].ID != created.ID {
		t.Error("created record not prepended")
	}
	totals := aggregate.TotalsBy(s.Rows(), aggregate.OwnerDay)
	if totals[bob.ID+"|2024-02-04"] != 2 {
		t.Errorf("totals = %v", totals)
	}
}

func TestUsersSheet(t *testing.T) {
	e := newEnv(t, model.RoleAdmin)
	s := sheet.New(table.UserColumns(), &sheet.UsersBackend{API: e.client}, zerolog.Nop(),
		sheet.WithCreateColumns(table.UserCreateColumns()), sheet.AppendCreated[model.User]())
	ctx := context.Background()
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}

	draft := s.Blank()
	draft["name"], draft["email"] = "Cy", "cy@example.com"
	if _, _, err := s.Create(ctx, draft); err == nil {
		t.Fatal("Create without password succeeded")
	}
	draft["password"] = "pw"
	cy, _, err := s.Create(ctx, draft)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rows := s.Rows()
	if rows[len(rows)-1].ID != cy.ID {
		t.Error("new user not appended")
	}

	s.Begin(cy.ID)
	_ = s.UpdateField(table.FieldRole, "user_manager")
	_ = s.UpdateField(table.FieldPreferredHours, "6")
	got, _, err := s.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got.Role != model.RoleUserManager || got.Target(0) != 6 {
		t.Errorf("updated = %+v", got)
	}

	s.Begin(cy.ID)
	_ = s.UpdateField(table.FieldPreferredHours, "17")
	if _, _, err := s.Commit(ctx); err == nil {
		t.Error("preferred hours 17 accepted")
	}
	s.Cancel()

	if _, err := s.Delete(ctx, cy.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get(cy.ID); ok {
		t.Error("deleted user still present")
	}
}

func TestApplyCreatedAfterReloadDoesNotDuplicate(t *testing.T) {
	e := newEnv(t, model.RoleUser)
	s := recordSheet(e)
	ctx := context.Background()

	r, _, err := e.client.CreateRecord(ctx, model.RecordInput{Description: "X", Date: "2024-02-01", Hours: 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	s.ApplyCreated(r)
	if n := len(s.Rows()); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestRecordsBackendShift(t *testing.T) {
	e := newEnv(t, model.RoleUser)
	e.srv.AddRecord(e.me, model.Record{Date: "2024-02-01", Description: "in", Hours: 1})
	e.srv.AddRecord(e.me, model.Record{Date: "2024-03-01", Description: "later", Hours: 1})
	backend := &sheet.RecordsBackend{API: e.client, Range: february()}
	s := sheet.New(table.RecordColumns(), backend, zerolog.Nop())
	ctx := context.Background()

	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if rows := s.Rows(); len(rows) != 1 || rows[0].Description != "in" {
		t.Fatalf("rows = %+v", rows)
	}
	if got := backend.Shift(1).FromDay(); got != "2024-02-08" {
		t.Errorf("shifted from = %s", got)
	}
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if rows := s.Rows(); len(rows) != 1 || rows[0].Description != "later" {
		t.Errorf("rows after shift = %+v", rows)
	}
}
