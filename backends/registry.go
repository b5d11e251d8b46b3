package backends

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"t2i_backend/logging"
)

// Settings are string-valued backend settings as read from backends.yaml or
// the backend management API.
type Settings map[string]string

// Clone copies s.
func (s Settings) Clone() Settings {
	if s == nil {
		return nil
	}
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Redacted returns a copy with secret values masked.
func (s Settings) Redacted() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = logging.RedactField(k, v)
	}
	return out
}

// String returns the setting or def when absent or empty.
func (s Settings) String(key, def string) string {
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return def
}

// Int parses an integer setting.
func (s Settings) Int(key string, def int) (int, error) {
	v, ok := s[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidSettings, key, v)
	}
	return n, nil
}

// Duration parses a Go duration setting ("1500ms", "2m").
func (s Settings) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := s[key]
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidSettings, key, v)
	}
	return d, nil
}

// SettingInfo documents one setting of a backend type.
type SettingInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
}

// BackendType describes a kind of backend and how to build it.
type BackendType struct {
	ID          string
	Name        string
	Description string
	Settings    []SettingInfo
	New         func(Settings) (Backend, error)
}

// TypeInfo is the JSON form of a BackendType.
type TypeInfo struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Settings    []SettingInfo `json:"settings"`
}

// Registry maps type ids to backend types. Pool builds every backend through
// it, and the startup checks use it to reject unknown types in backends.yaml.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]BackendType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]BackendType)}
}

// DefaultRegistry has the built-in placeholder, sdapi and openai types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(PlaceholderType())
	r.Register(SDAPIType())
	r.Register(OpenAIType())
	return r
}

// Register adds or replaces a backend type.
func (r *Registry) Register(t BackendType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.ID] = t
}

// Type looks up a type by id.
func (r *Registry) Type(id string) (BackendType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[id]
	return t, ok
}

// Defaults returns the default settings of a type.
func (r *Registry) Defaults(id string) Settings {
	t, ok := r.Type(id)
	if !ok {
		return Settings{}
	}
	s := make(Settings, len(t.Settings))
	for _, info := range t.Settings {
		if info.Default != "" {
			s[info.Name] = info.Default
		}
	}
	return s
}

// Build constructs a backend of type id.
func (r *Registry) Build(id string, settings Settings) (Backend, error) {
	t, ok := r.Type(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, id)
	}
	return t.New(settings)
}

// Describe lists the registered types sorted by id.
func (r *Registry) Describe() []TypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TypeInfo, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, TypeInfo{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Settings:    t.Settings,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
