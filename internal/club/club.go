// Package club implements the roster bookkeeping on top of the app
// controller: students and teachers, the committee, attendance sheets,
// the activity log, the annual plan and the settings record.
//
// Managers never hold Dataset state of their own. Reads go through
// Funnel.Snapshot; writes go through Funnel.Mutate and replace whole
// collections, so every change is versioned, persisted and pushed by the
// controller. Deleting a student does not cascade: committee entries and
// attendance presents that point at it are skipped when resolved.
package club

import (
	"errors"
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/schema"
)

// Funnel is the controller as seen by the managers.
type Funnel interface {
	Snapshot() *schema.Dataset
	Mutate(fn func(ds *schema.Dataset) (app.Patch, error)) error
}

var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStudentNotFound is returned when a reference names a missing student.
	ErrStudentNotFound = errors.New("student not found")

	// ErrDuplicateID is returned when adding a record whose id is taken.
	ErrDuplicateID = errors.New("record id already exists")

	// ErrBadDate is returned when a date cannot be understood.
	ErrBadDate = errors.New("unrecognised date")
)

// DateLayout is the on-disk date format of attendance and activities.
const DateLayout = "2006-01-02"

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseDate normalises text to DateLayout. Besides ISO dates it accepts
// natural phrases such as "today", "last friday" or "next monday",
// resolved relative to now.
func ParseDate(text string, now time.Time) (string, error) {
	if text == "" {
		return now.Format(DateLayout), nil
	}
	if t, err := time.Parse(DateLayout, text); err == nil {
		return t.Format(DateLayout), nil
	}

	r, err := dateParser.Parse(text, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", text, err)
	}
	if r == nil {
		return "", fmt.Errorf("%w: %q", ErrBadDate, text)
	}
	return r.Time.Format(DateLayout), nil
}

// upsert replaces the record with the same id or appends rec. It reports
// whether an existing record was replaced. records is not modified.
func upsert[T any](records []T, rec T, idOf func(T) string) ([]T, bool) {
	out := make([]T, 0, len(records)+1)
	replaced := false
	for _, r := range records {
		if idOf(r) == idOf(rec) {
			out = append(out, rec)
			replaced = true
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, rec)
	}
	return out, replaced
}

// without returns records minus the one with id. records is not modified.
func without[T any](records []T, id string, idOf func(T) string) ([]T, bool) {
	out := make([]T, 0, len(records))
	found := false
	for _, r := range records {
		if idOf(r) == id {
			found = true
			continue
		}
		out = append(out, r)
	}
	return out, found
}

func contains[T any](records []T, id string, idOf func(T) string) bool {
	for _, r := range records {
		if idOf(r) == id {
			return true
		}
	}
	return false
}

func studentID(s schema.Student) string        { return s.ID }
func teacherID(t schema.Teacher) string        { return t.ID }
func memberID(m schema.CommitteeMember) string { return m.ID }
func attendanceID(a schema.Attendance) string  { return a.ID }
func activityID(a schema.Activity) string      { return a.ID }
func planID(p schema.AnnualPlan) string        { return p.ID }
