package club

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/schema"
)

// memFunnel applies patches to an in-memory Dataset.
type memFunnel struct {
	ds      *schema.Dataset
	updates int
}

func newMemFunnel() *memFunnel {
	return &memFunnel{ds: schema.Empty()}
}

func (m *memFunnel) Snapshot() *schema.Dataset {
	return m.ds.Clone()
}

func (m *memFunnel) Mutate(fn func(ds *schema.Dataset) (app.Patch, error)) error {
	p, err := fn(m.ds.Clone())
	if err != nil {
		return err
	}
	next := m.ds.Clone()
	p.Apply(next)
	next.Normalize()
	next.LastUpdated++
	m.ds = next
	m.updates++
	return nil
}

func addStudents(t *testing.T, r *Roster, names ...string) []schema.Student {
	t.Helper()
	var out []schema.Student
	for _, name := range names {
		s, err := r.AddStudent(schema.Student{Name: name, Class: "7A"})
		if err != nil {
			t.Fatalf("AddStudent(%s) failed: %v", name, err)
		}
		out = append(out, s)
	}
	return out
}

func TestParseDate(t *testing.T) {
	// Friday
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "2024-03-15"},
		{in: "2024-01-02", want: "2024-01-02"},
		{in: "today", want: "2024-03-15"},
		{in: "tomorrow", want: "2024-03-16"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in, now)
			if err != nil {
				t.Fatalf("ParseDate(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}

	if _, err := ParseDate("xyzzy", now); !errors.Is(err, ErrBadDate) {
		t.Errorf("expected ErrBadDate, got %v", err)
	}
}

func TestRosterStudents(t *testing.T) {
	f := newMemFunnel()
	r := NewRoster(f)

	added := addStudents(t, r, "Budi", "Ayu")
	if added[0].ID == "" {
		t.Fatal("AddStudent did not assign an id")
	}

	got := r.Students()
	if len(got) != 2 || got[0].Name != "Ayu" || got[1].Name != "Budi" {
		t.Errorf("Students() = %+v, want Ayu then Budi", got)
	}

	budi := added[0]
	budi.Class = "8B"
	if err := r.UpdateStudent(budi); err != nil {
		t.Fatalf("UpdateStudent failed: %v", err)
	}
	if s, _ := r.Student(budi.ID); s.Class != "8B" {
		t.Errorf("class = %s, want 8B", s.Class)
	}

	if found := r.FindStudents("bud"); len(found) != 1 || found[0].ID != budi.ID {
		t.Errorf("FindStudents(bud) = %+v", found)
	}

	if err := r.RemoveStudent(budi.ID); err != nil {
		t.Fatalf("RemoveStudent failed: %v", err)
	}
	if err := r.RemoveStudent(budi.ID); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("second RemoveStudent: expected ErrStudentNotFound, got %v", err)
	}
	if _, err := r.AddStudent(schema.Student{ID: added[1].ID, Name: "Dup"}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestRosterRejectsInvalidRecord(t *testing.T) {
	f := newMemFunnel()
	r := NewRoster(f)

	if _, err := r.AddStudent(schema.Student{Name: ""}); err == nil {
		t.Error("expected validation error for missing name")
	}
	if _, err := r.AddStudent(schema.Student{Name: "X", Gender: "Q"}); err == nil {
		t.Error("expected validation error for bad gender")
	}
	if f.updates != 0 {
		t.Errorf("invalid records reached the funnel %d times", f.updates)
	}
}

func TestRosterTeachers(t *testing.T) {
	r := NewRoster(newMemFunnel())

	teacher, err := r.AddTeacher(schema.Teacher{Name: "Pak Joko", Role: "advisor"})
	if err != nil {
		t.Fatalf("AddTeacher failed: %v", err)
	}
	teacher.Phone = "0812"
	if err := r.UpdateTeacher(teacher); err != nil {
		t.Fatalf("UpdateTeacher failed: %v", err)
	}
	if diff := cmp.Diff([]schema.Teacher{teacher}, r.Teachers()); diff != "" {
		t.Errorf("Teachers() mismatch (-want +got):\n%s", diff)
	}
	if err := r.RemoveTeacher(teacher.ID); err != nil {
		t.Fatalf("RemoveTeacher failed: %v", err)
	}
	if err := r.UpdateTeacher(teacher); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitteeSkipsDeletedStudents(t *testing.T) {
	f := newMemFunnel()
	r := NewRoster(f)
	c := NewCommittee(f)

	students := addStudents(t, r, "Ayu", "Budi")

	if _, err := c.Assign("missing", "Chair", "2024"); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
	for i, pos := range []string{"Chair", "Treasurer"} {
		if _, err := c.Assign(students[i].ID, pos, "2024"); err != nil {
			t.Fatalf("Assign failed: %v", err)
		}
	}

	if err := r.RemoveStudent(students[0].ID); err != nil {
		t.Fatalf("RemoveStudent failed: %v", err)
	}

	// No cascade: the entry stays stored but is skipped when resolved.
	if got := len(f.Snapshot().Committee); got != 2 {
		t.Errorf("stored committee entries = %d, want 2", got)
	}
	members := c.Members()
	if len(members) != 1 || members[0].Student.Name != "Budi" || members[0].Position != "Treasurer" {
		t.Errorf("Members() = %+v", members)
	}
	if dangling := c.Dangling(); len(dangling) != 1 || dangling[0].StudentID != students[0].ID {
		t.Errorf("Dangling() = %+v", dangling)
	}
}

func TestAttendance(t *testing.T) {
	f := newMemFunnel()
	r := NewRoster(f)
	b := NewAttendanceBook(f)
	b.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }

	students := addStudents(t, r, "Ayu", "Budi")
	ayu, budi := students[0].ID, students[1].ID

	if _, err := b.Record("2024-03-01", "Knots", []string{ayu, budi, ayu}, ""); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := b.Record("today", "First aid", []string{ayu}, ""); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := b.Record("today", "Ghost", []string{"missing"}, ""); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("expected ErrStudentNotFound, got %v", err)
	}

	sheets := b.Sheets()
	if len(sheets) != 2 || sheets[0].Date != "2024-03-15" {
		t.Fatalf("Sheets() = %+v", sheets)
	}
	if got := len(sheets[1].Students); got != 2 {
		t.Errorf("duplicate presents not collapsed: %d students", got)
	}

	rates := b.Rates()
	want := map[string]float64{ayu: 100, budi: 50}
	for _, rate := range rates {
		if rate.Percent() != want[rate.Student.ID] {
			t.Errorf("%s rate = %.1f, want %.1f", rate.Student.Name, rate.Percent(), want[rate.Student.ID])
		}
	}

	if err := r.RemoveStudent(budi); err != nil {
		t.Fatalf("RemoveStudent failed: %v", err)
	}
	for _, sheet := range b.Sheets() {
		for _, s := range sheet.Students {
			if s.ID == budi {
				t.Error("deleted student still resolved on a sheet")
			}
		}
	}

	if err := b.Remove(sheets[0].ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got := len(b.Sheets()); got != 1 {
		t.Errorf("sheets after remove = %d, want 1", got)
	}
}

func TestActivitiesAndPlans(t *testing.T) {
	f := newMemFunnel()

	l := NewActivityLog(f)
	for _, d := range []string{"2024-01-10", "2024-02-20"} {
		if _, err := l.Add(d, "Camp", "", "Field"); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if got := l.List(); got[0].Date != "2024-02-20" {
		t.Errorf("activities not newest first: %+v", got)
	}

	p := NewAnnualPlan(f)
	for _, m := range []int{9, 3, 6} {
		if _, err := p.Add(schema.AnnualPlan{Month: m, Program: "Training", Budget: 100}); err != nil {
			t.Fatalf("Add plan failed: %v", err)
		}
	}
	if _, err := p.Add(schema.AnnualPlan{Month: 13, Program: "Bad"}); err == nil {
		t.Error("expected validation error for month 13")
	}

	var months []int
	for _, plan := range p.List(true) {
		months = append(months, plan.Month)
	}
	if diff := cmp.Diff([]int{3, 6, 9}, months); diff != "" {
		t.Errorf("plan months mismatch (-want +got):\n%s", diff)
	}
	if stored := p.List(false); stored[0].Month != 9 {
		t.Errorf("unsorted list reordered: %+v", stored)
	}

	first := p.List(false)[0]
	if err := p.SetStatus(first.ID, PlanCancelled); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := p.SetStatus(first.ID, "exploded"); err == nil {
		t.Error("expected validation error for unknown status")
	}
	if got := p.Budget(); got != 200 {
		t.Errorf("Budget() = %d, want 200", got)
	}
}

func TestSettingsEditor(t *testing.T) {
	f := newMemFunnel()
	e := NewSettingsEditor(f)

	if err := e.SetEndpoint("https://script.example.com/exec", true); err != nil {
		t.Fatalf("SetEndpoint failed: %v", err)
	}
	if err := e.SetIdentity(Identity{ClubName: "Scouts"}); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}
	if err := e.SetEndpoint("not a url", true); err == nil {
		t.Error("expected validation error for bad endpoint")
	}

	got := e.Get()
	if got.EndpointURL != "https://script.example.com/exec" || !got.AutoSync || got.ClubName != "Scouts" {
		t.Errorf("Get() = %+v", got)
	}
	if !f.Snapshot().AutoSyncEnabled() {
		t.Error("auto-sync should be enabled")
	}
}
