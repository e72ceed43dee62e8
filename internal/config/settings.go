package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings describes the initial company layout: locations, founding
// workers and the seed backlog. It is loaded once at bootstrap when no
// snapshot exists.
type Settings struct {
	Company   string            `yaml:"company"`
	Locations []LocationSetting `yaml:"locations"`
	Workers   []WorkerSetting   `yaml:"workers"`
	Backlog   []string          `yaml:"backlog"`
}

// LocationSetting is one location entry in the settings file.
type LocationSetting struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Inventory   []string `yaml:"inventory"`
}

// WorkerSetting is one founding worker entry in the settings file.
type WorkerSetting struct {
	Name      string `yaml:"name"`
	Role      string `yaml:"role"`
	Model     string `yaml:"model"`
	Location  string `yaml:"location"`
	Objective string `yaml:"objective"`
}

// DefaultSettings is used when no settings file is present: two rooms,
// a CEO, an ideation worker and a validator, plus one seed task.
func DefaultSettings(defaultModel string) *Settings {
	return &Settings{
		Company: "Autocorp",
		Locations: []LocationSetting{
			{Name: "Planning", Description: "Room for initial strategy", Inventory: []string{"whiteboard", "internet"}},
			{Name: "AI Lab", Description: "Space for AI experiments", Inventory: []string{"computers", "gpu"}},
		},
		Workers: []WorkerSetting{
			{Name: "Clara", Role: "CEO", Model: defaultModel, Location: "Planning", Objective: "Set initial goals"},
			{Name: "Rafael", Role: "Ideation", Model: defaultModel, Location: "AI Lab", Objective: "Generate product ideas"},
			{Name: "Marta", Role: "Validator", Model: defaultModel, Location: "Planning", Objective: "Assess feasibility"},
		},
		Backlog: []string{"Plan the launch strategy"},
	}
}

// LoadSettings reads a company settings YAML file. A missing file is not
// an error; the caller falls back to DefaultSettings.
func LoadSettings(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading settings file %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	if len(s.Locations) == 0 {
		return nil, fmt.Errorf("settings file %s defines no locations", path)
	}
	for _, w := range s.Workers {
		found := false
		for _, l := range s.Locations {
			if l.Name == w.Location {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("worker %q references unknown location %q", w.Name, w.Location)
		}
	}
	return &s, nil
}
