package club

import (
	"strings"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/schema"
)

// Identity holds the display fields of the settings record. Empty fields
// are left unchanged by SetIdentity.
type Identity struct {
	SchoolName  string
	ClubName    string
	Address     string
	LogoURL     string
	AdvisorName string
}

// SettingsEditor edits the settings record.
type SettingsEditor struct {
	f Funnel
}

// NewSettingsEditor creates a settings manager.
func NewSettingsEditor(f Funnel) *SettingsEditor {
	return &SettingsEditor{f: f}
}

// Get returns the current settings, falling back to defaults.
func (e *SettingsEditor) Get() schema.Settings {
	ds := e.f.Snapshot()
	if ds.Settings == nil {
		return *schema.DefaultSettings()
	}
	return *ds.Settings
}

// SetEndpoint changes the remote endpoint and the auto-sync flag. An empty
// url turns the device local-only.
func (e *SettingsEditor) SetEndpoint(url string, autoSync bool) error {
	return e.edit(func(s *schema.Settings) {
		s.EndpointURL = strings.TrimSpace(url)
		s.AutoSync = autoSync
	})
}

// SetAutoSync toggles automatic pushes.
func (e *SettingsEditor) SetAutoSync(on bool) error {
	return e.edit(func(s *schema.Settings) { s.AutoSync = on })
}

// SetIdentity updates the non-empty display fields of id.
func (e *SettingsEditor) SetIdentity(id Identity) error {
	return e.edit(func(s *schema.Settings) {
		set := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		set(&s.SchoolName, id.SchoolName)
		set(&s.ClubName, id.ClubName)
		set(&s.Address, id.Address)
		set(&s.LogoURL, id.LogoURL)
		set(&s.AdvisorName, id.AdvisorName)
	})
}

func (e *SettingsEditor) edit(fn func(s *schema.Settings)) error {
	return e.f.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
		s := schema.DefaultSettings()
		if ds.Settings != nil {
			*s = *ds.Settings
		}
		fn(s)
		if err := schema.ValidateRecord(s); err != nil {
			return app.Patch{}, err
		}
		return app.Patch{Settings: s}, nil
	})
}
