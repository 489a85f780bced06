package club

import (
	"fmt"
	"sort"
	"time"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/schema"
)

// Sheet is an attendance record with its presents resolved.
type Sheet struct {
	schema.Attendance
	Students []schema.Student `json:"students"`
}

// Rate is one student's attendance over all recorded meetings.
type Rate struct {
	Student  schema.Student `json:"student"`
	Attended int            `json:"attended"`
	Meetings int            `json:"meetings"`
}

// Percent returns the attendance rate in percent, 0 when nothing was
// recorded.
func (r Rate) Percent() float64 {
	if r.Meetings == 0 {
		return 0
	}
	return float64(r.Attended) * 100 / float64(r.Meetings)
}

// AttendanceBook manages attendance sheets.
type AttendanceBook struct {
	f   Funnel
	now func() time.Time
}

// NewAttendanceBook creates an attendance manager.
func NewAttendanceBook(f Funnel) *AttendanceBook {
	return &AttendanceBook{f: f, now: time.Now}
}

// Record stores a meeting's attendance. date accepts anything ParseDate
// does. Every id in presents must name an existing student.
func (b *AttendanceBook) Record(date, topic string, presents []string, notes string) (schema.Attendance, error) {
	day, err := ParseDate(date, b.now())
	if err != nil {
		return schema.Attendance{}, err
	}

	a := schema.Attendance{
		ID:       schema.NewID(),
		Date:     day,
		Topic:    topic,
		Presents: append([]string{}, presents...),
		Notes:    notes,
	}
	if err := schema.ValidateRecord(a); err != nil {
		return schema.Attendance{}, err
	}

	err = b.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		for _, id := range a.Presents {
			if _, ok := ds.StudentByID(id); !ok {
				return app.Patch{}, fmt.Errorf("%w: %s", ErrStudentNotFound, id)
			}
		}
		attendance := append(ds.Attendance, a)
		return app.Patch{Attendance: &attendance}, nil
	})
	if err != nil {
		return schema.Attendance{}, err
	}
	return a, nil
}

// Remove deletes an attendance sheet.
func (b *AttendanceBook) Remove(id string) error {
	return b.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		attendance, found := without(ds.Attendance, id, attendanceID)
		if !found {
			return app.Patch{}, fmt.Errorf("%w: attendance %s", ErrNotFound, id)
		}
		return app.Patch{Attendance: &attendance}, nil
	})
}

// Sheets returns all attendance sheets, most recent first, with presents
// resolved. Deleted students are skipped.
func (b *AttendanceBook) Sheets() []Sheet {
	ds := b.f.Snapshot()
	records := ds.Attendance
	sort.SliceStable(records, func(i, j int) bool { return records[i].Date > records[j].Date })

	out := make([]Sheet, 0, len(records))
	for _, a := range records {
		sheet := Sheet{Attendance: a, Students: []schema.Student{}}
		for _, id := range a.Presents {
			if s, ok := ds.StudentByID(id); ok {
				sheet.Students = append(sheet.Students, s)
			}
		}
		out = append(out, sheet)
	}
	return out
}

// Rates returns the attendance rate of every current student, in roster
// order.
func (b *AttendanceBook) Rates() []Rate {
	ds := b.f.Snapshot()

	attended := make(map[string]int, len(ds.Students))
	for _, a := range ds.Attendance {
		for _, id := range a.Presents {
			attended[id]++
		}
	}

	out := make([]Rate, 0, len(ds.Students))
	for _, s := range ds.Students {
		out = append(out, Rate{
			Student:  s,
			Attended: attended[s.ID],
			Meetings: len(ds.Attendance),
		})
	}
	return out
}
