package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/guild-tickets/internal/domain"
)

// LoadSettingsDefaults returns the settings used for newly materialized
// workspaces. Fields missing from the YAML file keep their built-in value.
func LoadSettingsDefaults(path string) (domain.Settings, error) {
	settings := domain.DefaultSettings()
	if path == "" {
		return settings, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("read settings defaults: %w", err)
	}

	var doc struct {
		Settings domain.Settings `yaml:"settings"`
	}
	doc.Settings = settings
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return settings, fmt.Errorf("parse settings defaults: %w", err)
	}
	if doc.Settings.MaxTicketsPerUser < 1 {
		return settings, fmt.Errorf("settings defaults: max_tickets_per_user must be >= 1")
	}
	return doc.Settings, nil
}
