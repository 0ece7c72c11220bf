// Package config manages application-wide settings and directory structures.
// It follows XDG specifications for storing cache, data, configuration, and state.
package config

// Settings are the user-editable preferences stored in settings.json.
type Settings struct {
	// Locale is a BCP 47 tag such as "en" or "fr-CA". Empty means "en".
	Locale string `json:"locale"`
	// MaxConcurrentDownloads bounds the number of transfers in flight.
	MaxConcurrentDownloads int `json:"max_concurrent_downloads"`
	// DedupeWindow is how many handled request IDs the orchestrator remembers.
	DedupeWindow int `json:"dedupe_window"`
	// KeepArchives leaves downloaded archives in place after install.
	KeepArchives bool `json:"keep_archives"`
}

// DefaultSettings returns the settings used when no file exists yet.
func DefaultSettings() *Settings {
	return &Settings{
		Locale:                 "en",
		MaxConcurrentDownloads: 4,
		DedupeWindow:           1024,
	}
}

// Normalize fills zero values with defaults.
func (s *Settings) Normalize() {
	def := DefaultSettings()
	if s.Locale == "" {
		s.Locale = def.Locale
	}
	if s.MaxConcurrentDownloads <= 0 {
		s.MaxConcurrentDownloads = def.MaxConcurrentDownloads
	}
	if s.DedupeWindow <= 0 {
		s.DedupeWindow = def.DedupeWindow
	}
}
