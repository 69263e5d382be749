package model_test

import (
	"encoding/json"
	"testing"

	"github.com/Tiliavir/tsheet/internal/model"
)

func TestRecordDecodesOwnerForms(t *testing.T) {
	var bare model.Record
	if err := json.Unmarshal([]byte(`{"_id":"r1","date":"2024-01-01","description":"x","duration":3,"userId":"u1"}`), &bare); err != nil {
		t.Fatalf("Unmarshal bare owner: %v", err)
	}
	if bare.Owner == nil || bare.Owner.ID != "u1" {
		t.Errorf("Owner = %+v, want id u1", bare.Owner)
	}

	var populated model.Record
	payload := `{"_id":"r2","date":"2024-01-02T00:00:00.000Z","description":"y","duration":2.5,
		"userId":{"_id":"u2","name":"Ada","email":"ada@example.com"}}`
	if err := json.Unmarshal([]byte(payload), &populated); err != nil {
		t.Fatalf("Unmarshal populated owner: %v", err)
	}
	if populated.OwnerName() != "Ada" {
		t.Errorf("OwnerName = %q, want %q", populated.OwnerName(), "Ada")
	}
	if populated.Day() != "2024-01-02" {
		t.Errorf("Day = %q, want %q", populated.Day(), "2024-01-02")
	}
	if populated.Hours != 2.5 {
		t.Errorf("Hours = %v, want 2.5", populated.Hours)
	}
}

func TestRecordWithoutOwner(t *testing.T) {
	var r model.Record
	if err := json.Unmarshal([]byte(`{"_id":"r1","date":"2024-01-01","description":"x","duration":1}`), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r.Owner != nil {
		t.Errorf("Owner = %+v, want nil", r.Owner)
	}
	if r.OwnerName() != "" {
		t.Errorf("OwnerName = %q, want empty", r.OwnerName())
	}
}

func TestParseDay(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2024-01-01", "2024-01-01", false},
		{"2024-01-01T23:30:00.000Z", "2024-01-01", false},
		{"2024-13-01", "", true},
		{"2024-01-01garbage", "", true},
		{"2024-01-01T25:00:00Z", "", true},
		{"yesterday", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := model.ParseDay(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDay(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDay(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRoleCapabilities(t *testing.T) {
	tests := []struct {
		role        model.Role
		manageUsers bool
		manageAll   bool
	}{
		{model.RoleUser, false, false},
		{model.RoleUserManager, true, false},
		{model.RoleAdmin, true, true},
	}
	for _, tt := range tests {
		if got := tt.role.CanManageUsers(); got != tt.manageUsers {
			t.Errorf("%s.CanManageUsers() = %v, want %v", tt.role, got, tt.manageUsers)
		}
		if got := tt.role.CanManageAllRecords(); got != tt.manageAll {
			t.Errorf("%s.CanManageAllRecords() = %v, want %v", tt.role, got, tt.manageAll)
		}
	}

	if _, err := model.ParseRole("root"); err == nil {
		t.Error("ParseRole(root): expected error")
	}
	if r, err := model.ParseRole("user_manager"); err != nil || r != model.RoleUserManager {
		t.Errorf("ParseRole(user_manager) = %q, %v", r, err)
	}
}

func TestUserTarget(t *testing.T) {
	if got := (model.User{}).Target(8); got != 8 {
		t.Errorf("Target fallback = %v, want 8", got)
	}
	if got := (model.User{PreferredHours: model.Hours(6)}).Target(8); got != 6 {
		t.Errorf("Target = %v, want 6", got)
	}
	if got := (model.User{PreferredHours: model.Hours(0)}).Target(8); got != 0 {
		t.Errorf("Target of explicit zero = %v, want 0", got)
	}
}
