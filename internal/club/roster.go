package club

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/schema"
)

// Roster manages students and teachers.
type Roster struct {
	f Funnel
}

// NewRoster creates a roster manager.
func NewRoster(f Funnel) *Roster {
	return &Roster{f: f}
}

// Students returns all students sorted by class, then name.
func (r *Roster) Students() []schema.Student {
	out := r.f.Snapshot().Students
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Student looks up a student by id.
func (r *Roster) Student(id string) (schema.Student, error) {
	s, ok := r.f.Snapshot().StudentByID(id)
	if !ok {
		return schema.Student{}, fmt.Errorf("%w: %s", ErrStudentNotFound, id)
	}
	return s, nil
}

// FindStudents matches query case-insensitively against name, student
// number and class.
func (r *Roster) FindStudents(query string) []schema.Student {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []schema.Student
	for _, s := range r.Students() {
		if q == "" ||
			strings.Contains(strings.ToLower(s.Name), q) ||
			strings.Contains(strings.ToLower(s.NIS), q) ||
			strings.Contains(strings.ToLower(s.Class), q) {
			out = append(out, s)
		}
	}
	return out
}

// AddStudent stores a new student, assigning an id when s has none.
func (r *Roster) AddStudent(s schema.Student) (schema.Student, error) {
	if s.ID == "" {
		s.ID = schema.NewID()
	}
	if err := schema.ValidateRecord(s); err != nil {
		return schema.Student{}, err
	}

	err := r.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		if contains(ds.Students, s.ID, studentID) {
			return app.Patch{}, fmt.Errorf("%w: student %s", ErrDuplicateID, s.ID)
		}
		students := append(ds.Students, s)
		return app.Patch{Students: &students}, nil
	})
	if err != nil {
		return schema.Student{}, err
	}
	return s, nil
}

// UpdateStudent replaces an existing student.
func (r *Roster) UpdateStudent(s schema.Student) error {
	if err := schema.ValidateRecord(s); err != nil {
		return err
	}
	return r.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		students, replaced := upsert(ds.Students, s, studentID)
		if !replaced {
			return app.Patch{}, fmt.Errorf("%w: %s", ErrStudentNotFound, s.ID)
		}
		return app.Patch{Students: &students}, nil
	})
}

// RemoveStudent deletes a student. Committee entries and attendance
// presents referring to it are left in place.
func (r *Roster) RemoveStudent(id string) error {
	return r.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		students, found := without(ds.Students, id, studentID)
		if !found {
			return app.Patch{}, fmt.Errorf("%w: %s", ErrStudentNotFound, id)
		}
		return app.Patch{Students: &students}, nil
	})
}

// Teachers returns all teachers sorted by name.
func (r *Roster) Teachers() []schema.Teacher {
	out := r.f.Snapshot().Teachers
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddTeacher stores a new teacher, assigning an id when t has none.
func (r *Roster) AddTeacher(t schema.Teacher) (schema.Teacher, error) {
	if t.ID == "" {
		t.ID = schema.NewID()
	}
	if err := schema.ValidateRecord(t); err != nil {
		return schema.Teacher{}, err
	}

	err := r.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		if contains(ds.Teachers, t.ID, teacherID) {
			return app.Patch{}, fmt.Errorf("%w: teacher %s", ErrDuplicateID, t.ID)
		}
		teachers := append(ds.Teachers, t)
		return app.Patch{Teachers: &teachers}, nil
	})
	if err != nil {
		return schema.Teacher{}, err
	}
	return t, nil
}

// UpdateTeacher replaces an existing teacher.
func (r *Roster) UpdateTeacher(t schema.Teacher) error {
	if err := schema.ValidateRecord(t); err != nil {
		return err
	}
	return r.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		teachers, replaced := upsert(ds.Teachers, t, teacherID)
		if !replaced {
			return app.Patch{}, fmt.Errorf("%w: teacher %s", ErrNotFound, t.ID)
		}
		return app.Patch{Teachers: &teachers}, nil
	})
}

// RemoveTeacher deletes a teacher.
func (r *Roster) RemoveTeacher(id string) error {
	return r.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		teachers, found := without(ds.Teachers, id, teacherID)
		if !found {
			return app.Patch{}, fmt.Errorf("%w: teacher %s", ErrNotFound, id)
		}
		return app.Patch{Teachers: &teachers}, nil
	})
}
