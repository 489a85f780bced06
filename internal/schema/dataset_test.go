package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEmpty(t *testing.T) {
	a := Empty()
	b := Empty()

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("two empty datasets differ (-a +b):\n%s", diff)
	}
	if a == b || a.Settings == b.Settings {
		t.Error("Empty() must return independently constructed values")
	}
	if a.Students == nil || a.Attendance == nil || a.Plans == nil {
		t.Error("collections must be non-nil")
	}
	if a.LastUpdated != 0 {
		t.Errorf("expected LastUpdated 0, got %d", a.LastUpdated)
	}
}

func TestEmpty_DefaultEndpoint(t *testing.T) {
	old := DefaultEndpoint
	defer func() { DefaultEndpoint = old }()

	DefaultEndpoint = ""
	if ds := Empty(); ds.Settings.EndpointURL != "" || ds.Settings.AutoSync {
		t.Errorf("expected local-only defaults, got %+v", ds.Settings)
	}

	DefaultEndpoint = "https://script.example.com/exec"
	ds := Empty()
	if ds.Settings.EndpointURL != DefaultEndpoint {
		t.Errorf("expected endpoint %q, got %q", DefaultEndpoint, ds.Settings.EndpointURL)
	}
	if !ds.Settings.AutoSync {
		t.Error("expected auto-sync on when a default endpoint is built in")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		notDS   bool
	}{
		{name: "full object", input: `{"students":[{"id":"s1","name":"Ayu"}],"lastUpdated":42}`},
		{name: "only version", input: `{"lastUpdated":1}`},
		{name: "empty input", input: ``, wantErr: true, notDS: true},
		{name: "not json", input: `<html>error</html>`, wantErr: true},
		{name: "array", input: `[1,2,3]`, wantErr: true},
		{name: "null", input: `null`, wantErr: true, notDS: true},
		{name: "unrelated object", input: `{"status":"ok"}`, wantErr: true, notDS: true},
		{name: "wrong field type", input: `{"students":"nope"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Parse([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.notDS && !errors.Is(err, ErrNotDataset) {
				t.Errorf("expected ErrNotDataset, got %v", err)
			}
			if err == nil && (ds.Teachers == nil || ds.Students == nil) {
				t.Error("parsed dataset should be normalized")
			}
		})
	}
}

func TestParse_DedupesPresents(t *testing.T) {
	ds, err := Parse([]byte(`{"attendance":[{"id":"a1","date":"2026-01-10","presents":["s1","s2","s1"]}]}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := ds.Attendance[0].Presents; len(got) != 2 || got[0] != "s1" || got[1] != "s2" {
		t.Errorf("expected [s1 s2], got %v", got)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	ds := Empty()
	ds.Students = append(ds.Students, Student{ID: "s1", Name: "Ayu", Class: "X-1"})
	ds.Attendance = append(ds.Attendance, Attendance{ID: "a1", Date: "2026-01-10", Presents: []string{"s1"}})
	ds.Settings.ClubName = "Robotics"
	ds.LastUpdated = 1700000000000

	data, err := ds.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"annualPlans":[]`) {
		t.Errorf("expected annualPlans key in %s", data)
	}

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if diff := cmp.Diff(ds, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestClone(t *testing.T) {
	ds := Empty()
	ds.Students = []Student{{ID: "s1", Name: "Ayu"}}
	ds.Attendance = []Attendance{{ID: "a1", Date: "2026-01-10", Presents: []string{"s1"}}}

	c := ds.Clone()
	if diff := cmp.Diff(ds, c); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	c.Students[0].Name = "Changed"
	c.Attendance[0].Presents[0] = "s9"
	c.Settings.ClubName = "Other"

	if ds.Students[0].Name != "Ayu" {
		t.Error("clone shares student slice with original")
	}
	if ds.Attendance[0].Presents[0] != "s1" {
		t.Error("clone shares presents slice with original")
	}
	if ds.Settings.ClubName != "" {
		t.Error("clone shares settings with original")
	}

	var nilDS *Dataset
	if nilDS.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestAutoSyncEnabled(t *testing.T) {
	tests := []struct {
		name     string
		settings *Settings
		want     bool
	}{
		{name: "no settings", settings: nil, want: false},
		{name: "no endpoint", settings: &Settings{AutoSync: true}, want: false},
		{name: "auto-sync off", settings: &Settings{EndpointURL: "https://x.test", AutoSync: false}, want: false},
		{name: "enabled", settings: &Settings{EndpointURL: "https://x.test", AutoSync: true}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := &Dataset{Settings: tt.settings}
			if got := ds.AutoSyncEnabled(); got != tt.want {
				t.Errorf("AutoSyncEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStudentByID(t *testing.T) {
	ds := Empty()
	ds.Students = []Student{{ID: "s1", Name: "Ayu"}, {ID: "s2", Name: "Budi"}}

	if s, ok := ds.StudentByID("s2"); !ok || s.Name != "Budi" {
		t.Errorf("expected Budi, got %+v (ok=%v)", s, ok)
	}
	if _, ok := ds.StudentByID("gone"); ok {
		t.Error("expected dangling reference to be reported as missing")
	}
}
