package driven

// ConfigStore holds user settings under dotted keys such as "search.top_k".
// Typed getters return the zero value when a key is missing or holds another type.
type ConfigStore interface {
	// Get returns the raw stored value.
	Get(key string) (any, bool)

	GetString(key string) string
	GetInt(key string) int

	// GetFloat accepts integer values too, since "temperature = 1" is valid TOML.
	GetFloat(key string) (float64, bool)

	GetStringSlice(key string) []string

	// Set stores value and persists it before returning.
	Set(key string, value any) error

	// Unset removes key so the default applies again. Removing a missing key is not an error.
	Unset(key string) error

	// Keys lists the stored keys in sorted order.
	Keys() []string

	// Path locates the backing file, or "" for stores without one.
	Path() string
}
