package club

import (
	"fmt"
	"strings"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/schema"
)

// Member is a committee entry resolved against the roster.
type Member struct {
	schema.CommitteeMember
	Student schema.Student `json:"student"`
}

// Committee manages the committee structure.
type Committee struct {
	f Funnel
}

// NewCommittee creates a committee manager.
func NewCommittee(f Funnel) *Committee {
	return &Committee{f: f}
}

// Assign places a student in a position. The student must exist now; it
// may be deleted later without touching the committee.
func (c *Committee) Assign(studentID, position, period string) (schema.CommitteeMember, error) {
	m := schema.CommitteeMember{
		ID:        schema.NewID(),
		StudentID: studentID,
		Position:  strings.TrimSpace(position),
		Period:    strings.TrimSpace(period),
	}
	if err := schema.ValidateRecord(m); err != nil {
		return schema.CommitteeMember{}, err
	}

	err := c.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		if _, ok := ds.StudentByID(studentID); !ok {
			return app.Patch{}, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
		}
		committee := append(ds.Committee, m)
		return app.Patch{Committee: &committee}, nil
	})
	if err != nil {
		return schema.CommitteeMember{}, err
	}
	return m, nil
}

// Remove deletes a committee entry.
func (c *Committee) Remove(id string) error {
	return c.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		committee, found := without(ds.Committee, id, memberID)
		if !found {
			return app.Patch{}, fmt.Errorf("%w: committee member %s", ErrNotFound, id)
		}
		return app.Patch{Committee: &committee}, nil
	})
}

// Members returns committee entries whose student still exists, in
// stored order.
func (c *Committee) Members() []Member {
	ds := c.f.Snapshot()
	out := make([]Member, 0, len(ds.Committee))
	for _, m := range ds.Committee {
		s, ok := ds.StudentByID(m.StudentID)
		if !ok {
			continue
		}
		out = append(out, Member{CommitteeMember: m, Student: s})
	}
	return out
}

// Dangling returns committee entries whose student has been deleted.
func (c *Committee) Dangling() []schema.CommitteeMember {
	ds := c.f.Snapshot()
	var out []schema.CommitteeMember
	for _, m := range ds.Committee {
		if _, ok := ds.StudentByID(m.StudentID); !ok {
			out = append(out, m)
		}
	}
	return out
}
