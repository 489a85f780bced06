package app

import "github.com/clubroster/roster/internal/schema"

// Patch is a partial change to the Dataset. A nil field leaves that part
// of the Dataset unchanged; a non-nil field replaces it wholesale.
//
// Patches are also the on-disk format of daemon inbox files:
//
//	{"students": [{"id": "...", "name": "Ayu"}]}
type Patch struct {
	Teachers   *[]schema.Teacher         `json:"teachers,omitempty"`
	Students   *[]schema.Student         `json:"students,omitempty"`
	Committee  *[]schema.CommitteeMember `json:"committee,omitempty"`
	Attendance *[]schema.Attendance      `json:"attendance,omitempty"`
	Activities *[]schema.Activity        `json:"activities,omitempty"`
	Plans      *[]schema.AnnualPlan      `json:"annualPlans,omitempty"`
	Settings   *schema.Settings          `json:"settings,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Teachers == nil && p.Students == nil && p.Committee == nil &&
		p.Attendance == nil && p.Activities == nil && p.Plans == nil &&
		p.Settings == nil
}

// Apply writes the patch into ds. Slices are copied so ds never shares
// backing arrays with the patch.
func (p Patch) Apply(ds *schema.Dataset) {
	if p.Teachers != nil {
		ds.Teachers = append([]schema.Teacher{}, *p.Teachers...)
	}
	if p.Students != nil {
		ds.Students = append([]schema.Student{}, *p.Students...)
	}
	if p.Committee != nil {
		ds.Committee = append([]schema.CommitteeMember{}, *p.Committee...)
	}
	if p.Attendance != nil {
		ds.Attendance = make([]schema.Attendance, len(*p.Attendance))
		for i, a := range *p.Attendance {
			a.Presents = append([]string{}, a.Presents...)
			ds.Attendance[i] = a
		}
	}
	if p.Activities != nil {
		ds.Activities = append([]schema.Activity{}, *p.Activities...)
	}
	if p.Plans != nil {
		ds.Plans = append([]schema.AnnualPlan{}, *p.Plans...)
	}
	if p.Settings != nil {
		s := *p.Settings
		ds.Settings = &s
	}
}

// PatchFromDataset builds a patch replacing every collection and the
// settings with those of ds. Used for imports.
func PatchFromDataset(ds *schema.Dataset) Patch {
	c := ds.Clone()
	c.Normalize()
	return Patch{
		Teachers:   &c.Teachers,
		Students:   &c.Students,
		Committee:  &c.Committee,
		Attendance: &c.Attendance,
		Activities: &c.Activities,
		Plans:      &c.Plans,
		Settings:   c.Settings,
	}
}
