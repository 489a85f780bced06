package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultEndpoint is the remote endpoint baked in at build time:
//
//	go build -ldflags "-X github.com/clubroster/roster/internal/schema.DefaultEndpoint=https://..."
//
// An empty value means a fresh Dataset starts in local-only mode.
var DefaultEndpoint = ""

// DefaultAutoSync turns automatic pushes on for fresh Datasets that have
// an endpoint.
var DefaultAutoSync = true

// ErrNotDataset is returned by Parse when the payload is valid JSON but
// does not look like a Dataset.
var ErrNotDataset = errors.New("payload is not a dataset")

// datasetKeys are the top-level JSON keys of a Dataset. Parse requires at
// least one of them to be present.
var datasetKeys = []string{
	"teachers", "students", "committee", "attendance",
	"activities", "annualPlans", "settings", "lastUpdated",
}

// Dataset is the full application state: all record collections, the
// settings record and the version timestamp.
type Dataset struct {
	Teachers   []Teacher         `json:"teachers"`
	Students   []Student         `json:"students"`
	Committee  []CommitteeMember `json:"committee"`
	Attendance []Attendance      `json:"attendance"`
	Activities []Activity        `json:"activities"`
	Plans      []AnnualPlan      `json:"annualPlans"`
	Settings   *Settings         `json:"settings,omitempty"`

	// LastUpdated is the logical version of the whole Dataset in
	// milliseconds since the Unix epoch.
	LastUpdated int64 `json:"lastUpdated"`
}

// Settings holds the sync configuration and the display identity fields
// read by reports and the dashboard.
type Settings struct {
	EndpointURL string `json:"endpointUrl,omitempty" validate:"omitempty,url"`
	AutoSync    bool   `json:"autoSync"`
	LastSync    int64  `json:"lastSync,omitempty"`

	SchoolName  string `json:"schoolName,omitempty"`
	ClubName    string `json:"clubName,omitempty"`
	Address     string `json:"address,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
	AdvisorName string `json:"advisorName,omitempty"`
}

// DefaultSettings derives the settings of a fresh Dataset from
// DefaultEndpoint.
func DefaultSettings() *Settings {
	return &Settings{
		EndpointURL: DefaultEndpoint,
		AutoSync:    DefaultEndpoint != "" && DefaultAutoSync,
	}
}

// Empty returns a freshly constructed Dataset with empty collections and
// default settings. Each call returns an independent value.
func Empty() *Dataset {
	return &Dataset{
		Teachers:   []Teacher{},
		Students:   []Student{},
		Committee:  []CommitteeMember{},
		Attendance: []Attendance{},
		Activities: []Activity{},
		Plans:      []AnnualPlan{},
		Settings:   DefaultSettings(),
	}
}

// Parse decodes a serialized Dataset. The payload must be a JSON object
// carrying at least one Dataset key; anything else is rejected.
func Parse(data []byte) (*Dataset, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload: %w", ErrNotDataset)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if fields == nil || !hasAnyKey(fields, datasetKeys) {
		return nil, ErrNotDataset
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	ds.Normalize()

	return &ds, nil
}

// Marshal serializes the Dataset as one compact JSON blob.
func (d *Dataset) Marshal() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dataset: %w", err)
	}
	return data, nil
}

// Normalize replaces nil collections with empty ones and removes
// duplicate student IDs from attendance presents.
func (d *Dataset) Normalize() {
	if d.Teachers == nil {
		d.Teachers = []Teacher{}
	}
	if d.Students == nil {
		d.Students = []Student{}
	}
	if d.Committee == nil {
		d.Committee = []CommitteeMember{}
	}
	if d.Attendance == nil {
		d.Attendance = []Attendance{}
	}
	if d.Activities == nil {
		d.Activities = []Activity{}
	}
	if d.Plans == nil {
		d.Plans = []AnnualPlan{}
	}
	for i := range d.Attendance {
		d.Attendance[i].Presents = dedupe(d.Attendance[i].Presents)
	}
}

// Clone returns a deep copy. Mutating the copy never affects the original.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}

	c := &Dataset{
		Teachers:    append([]Teacher{}, d.Teachers...),
		Students:    append([]Student{}, d.Students...),
		Committee:   append([]CommitteeMember{}, d.Committee...),
		Attendance:  make([]Attendance, len(d.Attendance)),
		Activities:  append([]Activity{}, d.Activities...),
		Plans:       append([]AnnualPlan{}, d.Plans...),
		LastUpdated: d.LastUpdated,
	}
	for i, a := range d.Attendance {
		a.Presents = append([]string{}, a.Presents...)
		c.Attendance[i] = a
	}
	if d.Settings != nil {
		s := *d.Settings
		c.Settings = &s
	}

	return c
}

// Endpoint returns the configured endpoint URL, or "" in local-only mode.
func (d *Dataset) Endpoint() string {
	if d == nil || d.Settings == nil {
		return ""
	}
	return d.Settings.EndpointURL
}

// AutoSyncEnabled reports whether pushes should follow local writes.
func (d *Dataset) AutoSyncEnabled() bool {
	return d.Endpoint() != "" && d.Settings.AutoSync
}

// StudentByID looks up a student. The boolean is false for dangling
// references.
func (d *Dataset) StudentByID(id string) (Student, bool) {
	for _, s := range d.Students {
		if s.ID == id {
			return s, true
		}
	}
	return Student{}, false
}

// Stats holds record counts per collection.
type Stats struct {
	Teachers    int   `json:"teachers"`
	Students    int   `json:"students"`
	Committee   int   `json:"committee"`
	Attendance  int   `json:"attendance"`
	Activities  int   `json:"activities"`
	Plans       int   `json:"annual_plans"`
	LastUpdated int64 `json:"last_updated"`
}

// Stats returns record counts for dashboards and status output.
func (d *Dataset) Stats() Stats {
	return Stats{
		Teachers:    len(d.Teachers),
		Students:    len(d.Students),
		Committee:   len(d.Committee),
		Attendance:  len(d.Attendance),
		Activities:  len(d.Activities),
		Plans:       len(d.Plans),
		LastUpdated: d.LastUpdated,
	}
}

func hasAnyKey(fields map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

func dedupe(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
