package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigFile is the settings file name inside the config directory.
const ConfigFile = "config.toml"

const fileHeader = "# vetrina settings. Edit by hand or with 'vetrina settings set <key> <value>'.\n\n"

// ConfigStore keeps settings in a TOML file. Dotted keys map onto tables so
// the file stays readable:
//
//	[search]
//	top_k = 20
//	extra_brands = ["Alfaparf Milano"]
//
// Every change is written to a temporary file and renamed into place, so a
// crash never leaves a half-written config behind.
type ConfigStore struct {
	mu     sync.RWMutex
	dir    string
	path   string
	values map[string]any
}

// NewConfigStore opens dir/config.toml, creating dir if needed.
// An empty dir means ~/.vetrina. A missing file starts an empty store.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".vetrina")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	s := &ConfigStore{
		dir:    dir,
		path:   filepath.Join(dir, ConfigFile),
		values: map[string]any{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ConfigStore) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	var tables map[string]any
	if err := toml.Unmarshal(raw, &tables); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.values = flattenMap(tables, "")
	return nil
}

// Get returns the raw value for key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetString returns key as a string.
func (s *ConfigStore) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// GetInt returns key as an int. TOML decodes integers as int64.
func (s *ConfigStore) GetInt(key string) int {
	v, _ := s.Get(key)
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

// GetFloat returns key as a float64, accepting integers.
func (s *ConfigStore) GetFloat(key string) (float64, bool) {
	v, _ := s.Get(key)
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// GetStringSlice returns key as a list of strings, skipping non-string items.
func (s *ConfigStore) GetStringSlice(key string) []string {
	v, _ := s.Get(key)
	switch list := v.(type) {
	case []string:
		return slices.Clone(list)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Set stores value under key and rewrites the file. On a write failure the
// in-memory value is rolled back.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkKey(key); err != nil {
		return err
	}
	prev, had := s.values[key]
	s.values[key] = value
	if err := s.persist(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Unset removes key and rewrites the file.
func (s *ConfigStore) Unset(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	if !had {
		return nil
	}
	delete(s.values, key)
	if err := s.persist(); err != nil {
		s.values[key] = prev
		return err
	}
	return nil
}

// Keys returns the stored keys, sorted.
func (s *ConfigStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Path returns the config file location.
func (s *ConfigStore) Path() string {
	return s.path
}

// checkKey rejects keys TOML cannot represent next to the existing ones:
// empty segments, or a key that is both a value and a table.
func (s *ConfigStore) checkKey(key string) error {
	if key == "" || slices.Contains(strings.Split(key, "."), "") {
		return domain.NewError("set config", key, domain.ErrInvalidInput, errors.New("malformed key"))
	}
	for existing := range s.values {
		if existing == key {
			continue
		}
		if strings.HasPrefix(existing, key+".") || strings.HasPrefix(key, existing+".") {
			return domain.NewError("set config", key, domain.ErrInvalidInput,
				fmt.Errorf("conflicts with %q", existing))
		}
	}
	return nil
}

// persist writes the current values atomically. Caller holds mu.
func (s *ConfigStore) persist() error {
	encoded, err := toml.Marshal(nestMap(s.values))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	buf.Write(encoded)

	tmp, err := os.CreateTemp(s.dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// nestMap turns {"a.b": 1} into {"a": {"b": 1}}.
func nestMap(flat map[string]any) map[string]any {
	root := map[string]any{}
	for key, value := range flat {
		parts := strings.Split(key, ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	return root
}

// flattenMap turns {"a": {"b": 1}} into {"a.b": 1}.
func flattenMap(tables map[string]any, prefix string) map[string]any {
	flat := map[string]any{}
	for key, value := range tables {
		if prefix != "" {
			key = prefix + "." + key
		}
		if sub, ok := value.(map[string]any); ok {
			for k, v := range flattenMap(sub, key) {
				flat[k] = v
			}
			continue
		}
		flat[key] = value
	}
	return flat
}
