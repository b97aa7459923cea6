package driving

import "github.com/custodia-labs/vetrina/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Set updates a single setting by its dotted key.
	Set(key, value string) error

	// Unset removes a stored value so the default applies again.
	Unset(key string) error

	// Keys lists the recognised setting keys.
	Keys() []string

	// Overrides lists the keys that have a stored value.
	Overrides() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
