package schema

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Teacher is a club advisor or supervising teacher.
type Teacher struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required,max=200"`
	NIP   string `json:"nip,omitempty"` // staff number
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Student is a club member.
type Student struct {
	ID       string `json:"id" validate:"required"`
	NIS      string `json:"nis,omitempty"` // student number
	Name     string `json:"name" validate:"required,max=200"`
	Class    string `json:"class,omitempty"`
	Gender   string `json:"gender,omitempty" validate:"omitempty,oneof=L P M F"`
	Phone    string `json:"phone,omitempty"`
	JoinedAt string `json:"joinedAt,omitempty"`
}

// CommitteeMember places a student in the committee structure.
// StudentID is a non-owning reference and may dangle.
type CommitteeMember struct {
	ID        string `json:"id" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
	Position  string `json:"position" validate:"required"`
	Period    string `json:"period,omitempty"`
}

// Attendance is one meeting's attendance sheet. Presents is a set of
// student IDs.
type Attendance struct {
	ID       string   `json:"id" validate:"required"`
	Date     string   `json:"date" validate:"required,datetime=2006-01-02"`
	Topic    string   `json:"topic,omitempty"`
	Presents []string `json:"presents"`
	Notes    string   `json:"notes,omitempty"`
}

// Activity is an entry in the activity log.
type Activity struct {
	ID          string `json:"id" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// AnnualPlan is one programme line of the annual plan.
type AnnualPlan struct {
	ID      string `json:"id" validate:"required"`
	Month   int    `json:"month" validate:"min=1,max=12"`
	Program string `json:"program" validate:"required"`
	Target  string `json:"target,omitempty"`
	Budget  int64  `json:"budget,omitempty" validate:"min=0"`
	Status  string `json:"status,omitempty" validate:"omitempty,oneof=planned done cancelled"`
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.New().String()
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateRecord checks a single record against its struct tags.
func ValidateRecord(record any) error {
	if err := validatorInstance().Struct(record); err != nil {
		return fmt.Errorf("invalid %T: %w", record, err)
	}
	return nil
}

// Validate checks every record and that identifiers are unique within
// their collection.
func (d *Dataset) Validate() error {
	if d.Settings != nil {
		if err := ValidateRecord(d.Settings); err != nil {
			return err
		}
	}
	if err := validateCollection("teacher", d.Teachers, func(r Teacher) string { return r.ID }); err != nil {
		return err
	}
	if err := validateCollection("student", d.Students, func(r Student) string { return r.ID }); err != nil {
		return err
	}
	if err := validateCollection("committee member", d.Committee, func(r CommitteeMember) string { return r.ID }); err != nil {
		return err
	}
	if err := validateCollection("attendance", d.Attendance, func(r Attendance) string { return r.ID }); err != nil {
		return err
	}
	if err := validateCollection("activity", d.Activities, func(r Activity) string { return r.ID }); err != nil {
		return err
	}
	return validateCollection("annual plan", d.Plans, func(r AnnualPlan) string { return r.ID })
}

func validateCollection[T any](kind string, records []T, id func(T) string) error {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if err := ValidateRecord(r); err != nil {
			return err
		}
		key := id(r)
		if seen[key] {
			return fmt.Errorf("duplicate %s id %q", kind, key)
		}
		seen[key] = true
	}
	return nil
}
