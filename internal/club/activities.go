package club

import (
	"fmt"
	"sort"
	"time"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/schema"
)

// ActivityLog manages the activity log.
type ActivityLog struct {
	f   Funnel
	now func() time.Time
}

// NewActivityLog creates an activity log manager.
func NewActivityLog(f Funnel) *ActivityLog {
	return &ActivityLog{f: f, now: time.Now}
}

// Add records an activity. date accepts anything ParseDate does.
func (l *ActivityLog) Add(date, title, description, location string) (schema.Activity, error) {
	day, err := ParseDate(date, l.now())
	if err != nil {
		return schema.Activity{}, err
	}

	a := schema.Activity{
		ID:          schema.NewID(),
		Date:        day,
		Title:       title,
		Description: description,
		Location:    location,
	}
	if err := schema.ValidateRecord(a); err != nil {
		return schema.Activity{}, err
	}

	err = l.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		activities := append(ds.Activities, a)
		return app.Patch{Activities: &activities}, nil
	})
	if err != nil {
		return schema.Activity{}, err
	}
	return a, nil
}

// Remove deletes an activity.
func (l *ActivityLog) Remove(id string) error {
	return l.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		activities, found := without(ds.Activities, id, activityID)
		if !found {
			return app.Patch{}, fmt.Errorf("%w: activity %s", ErrNotFound, id)
		}
		return app.Patch{Activities: &activities}, nil
	})
}

// List returns activities, most recent first.
func (l *ActivityLog) List() []schema.Activity {
	out := l.f.Snapshot().Activities
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// Plan statuses.
const (
	PlanPlanned   = "planned"
	PlanDone      = "done"
	PlanCancelled = "cancelled"
)

// AnnualPlan manages the annual programme plan.
type AnnualPlan struct {
	f Funnel
}

// NewAnnualPlan creates an annual plan manager.
func NewAnnualPlan(f Funnel) *AnnualPlan {
	return &AnnualPlan{f: f}
}

// Add stores a programme line. An empty status means planned.
func (p *AnnualPlan) Add(plan schema.AnnualPlan) (schema.AnnualPlan, error) {
	if plan.ID == "" {
		plan.ID = schema.NewID()
	}
	if plan.Status == "" {
		plan.Status = PlanPlanned
	}
	if err := schema.ValidateRecord(plan); err != nil {
		return schema.AnnualPlan{}, err
	}

	err := p.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		if contains(ds.Plans, plan.ID, planID) {
			return app.Patch{}, fmt.Errorf("%w: plan %s", ErrDuplicateID, plan.ID)
		}
		plans := append(ds.Plans, plan)
		return app.Patch{Plans: &plans}, nil
	})
	if err != nil {
		return schema.AnnualPlan{}, err
	}
	return plan, nil
}

// SetStatus changes the status of a programme line.
func (p *AnnualPlan) SetStatus(id, status string) error {
	return p.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		for _, plan := range ds.Plans {
			if plan.ID != id {
				continue
			}
			plan.Status = status
			if err := schema.ValidateRecord(plan); err != nil {
				return app.Patch{}, err
			}
			plans, _ := upsert(ds.Plans, plan, planID)
			return app.Patch{Plans: &plans}, nil
		}
		return app.Patch{}, fmt.Errorf("%w: plan %s", ErrNotFound, id)
	})
}

// Remove deletes a programme line.
func (p *AnnualPlan) Remove(id string) error {
	return p.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		plans, found := without(ds.Plans, id, planID)
		if !found {
			return app.Patch{}, fmt.Errorf("%w: plan %s", ErrNotFound, id)
		}
		return app.Patch{Plans: &plans}, nil
	})
}

// List returns the plan in stored order, or by month when byMonth is set.
func (p *AnnualPlan) List(byMonth bool) []schema.AnnualPlan {
	out := p.f.Snapshot().Plans
	if byMonth {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	}
	return out
}

// Budget returns the total budget of lines that are not cancelled.
func (p *AnnualPlan) Budget() int64 {
	var total int64
	for _, plan := range p.f.Snapshot().Plans {
		if plan.Status != PlanCancelled {
			total += plan.Budget
		}
	}
	return total
}
